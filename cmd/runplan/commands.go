package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/myrjola/runplan/internal/errors"
	"github.com/myrjola/runplan/internal/i18n"
	"github.com/myrjola/runplan/internal/schedule"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errUnknownFormat = errors.NewSentinel("unknown format")

type normalizedFile struct {
	File string `json:"file"`
	schedule.Schedule
}

func (app *application) normalizeCommand() *cobra.Command {
	var start string
	cmd := &cobra.Command{
		Use:   "normalize FILE...",
		Short: "Print the canonical form of raw plans without storing them",
		Long: `Normalize reads raw plan JSON files ("-" for stdin) and prints the canonical schedules as JSON,
including the warnings produced while correcting them. Nothing is stored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDate(start)
			if err != nil {
				return err
			}
			normalizer := schedule.NewNormalizer(app.defaults())
			results := make([]normalizedFile, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, path := range args {
				g.Go(func() error {
					plan, readErr := readPlan(path, cmd.InOrStdin())
					if readErr != nil {
						return readErr
					}
					sched, normErr := normalizer.Normalize(plan, startDate, 0)
					if normErr != nil {
						return errors.Wrap(normErr, "normalize", slog.String("path", path))
					}
					for _, w := range sched.Warnings {
						app.logger.LogAttrs(ctx, slog.LevelWarn, "normalization warning",
							slog.String("path", path), slog.String("warning", w))
					}
					results[i] = normalizedFile{File: path, Schedule: sched}
					return nil
				})
			}
			if err = g.Wait(); err != nil {
				return errors.Wrap(err, "normalize plans")
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day of the plan as YYYY-MM-DD (default today)")
	return cmd
}

func (app *application) saveCommand() *cobra.Command {
	var (
		userID int64
		start  string
	)
	cmd := &cobra.Command{
		Use:   "save FILE",
		Short: "Replace the stored schedule of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDate(start)
			if err != nil {
				return err
			}
			plan, err := readPlan(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return app.withStorage(cmd.Context(), userID, func(ctx context.Context, s storage) error {
				sched, saveErr := s.service.Save(ctx, userID, plan, startDate)
				if saveErr != nil {
					return errors.Wrap(saveErr, "save schedule")
				}
				return printSchedule(cmd.OutOrStdout(), sched)
			})
		},
	}
	userFlag(cmd, &userID)
	cmd.Flags().StringVar(&start, "start", "", "first day of the plan as YYYY-MM-DD (default today)")
	return cmd
}

func (app *application) graftCommand() *cobra.Command {
	var (
		userID int64
		cutoff string
	)
	cmd := &cobra.Command{
		Use:   "graft FILE",
		Short: "Replace the stored schedule of a user from the week of the cutoff onwards",
		Long: `Graft keeps the weeks before the cutoff week and replaces everything from the Monday of the
cutoff week with the plan. New weeks continue the numbering of the kept ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoffDate, err := parseDate(cutoff)
			if err != nil {
				return err
			}
			plan, err := readPlan(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return app.withStorage(cmd.Context(), userID, func(ctx context.Context, s storage) error {
				sched, saveErr := s.service.SaveFromCutoff(ctx, userID, plan, cutoffDate)
				if saveErr != nil {
					return errors.Wrap(saveErr, "graft schedule")
				}
				return printSchedule(cmd.OutOrStdout(), sched)
			})
		},
	}
	userFlag(cmd, &userID)
	cmd.Flags().StringVar(&cutoff, "cutoff", "", "first replaced day as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("cutoff")
	return cmd
}

func (app *application) showCommand() *cobra.Command {
	var (
		userID int64
		format string
		lang   string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored schedule of a user",
		Long: `Show prints the stored schedule. Formats:

  summary    one line per week
  markdown   one table per week
  html       the markdown rendered as HTML
  json       weeks, days and exercises with their ids`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			language := i18n.Language(lang)
			if !i18n.IsSupported(language) {
				return errors.New("unsupported language", slog.String("lang", lang))
			}
			return app.withStorage(cmd.Context(), userID, func(ctx context.Context, s storage) error {
				weeks, err := s.service.Schedule(ctx, userID)
				if err != nil {
					return errors.Wrap(err, "load schedule")
				}
				return renderWeeks(cmd.OutOrStdout(), weeks, format, language)
			})
		},
	}
	userFlag(cmd, &userID)
	cmd.Flags().StringVar(&format, "format", "summary", "output format: summary, markdown, html or json")
	cmd.Flags().StringVar(&lang, "lang", string(i18n.DefaultLanguage), "label language: ru or en")
	return cmd
}

func (app *application) exportCommand() *cobra.Command {
	var (
		userID int64
		dir    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the data of a user into a standalone SQLite file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withStorage(cmd.Context(), userID, func(ctx context.Context, s storage) error {
				path, err := s.db.ExportUser(ctx, userID, dir)
				if err != nil {
					return errors.Wrap(err, "export user")
				}
				if _, err = fmt.Fprintln(cmd.OutOrStdout(), path); err != nil {
					return errors.Wrap(err, "print export path")
				}
				return nil
			})
		},
	}
	userFlag(cmd, &userID)
	cmd.Flags().StringVar(&dir, "dir", ".", "directory for the export file")
	return cmd
}

func (app *application) generateCommand() *cobra.Command {
	var (
		userID int64
		start  string
		prompt string
		graft  bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a plan with the chat model and store it",
		Long: `Generate asks the configured chat model for a plan and stores it like save does. With --graft the
start date is used as the cutoff and the plan replaces only the weeks from there on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := parseDate(start)
			if err != nil {
				return err
			}
			generator, err := app.planGenerator()
			if err != nil {
				return err
			}
			plan, err := generator.Generate(cmd.Context(), prompt)
			if err != nil {
				return errors.Wrap(err, "generate plan")
			}
			return app.withStorage(cmd.Context(), userID, func(ctx context.Context, s storage) error {
				var (
					sched   schedule.Schedule
					saveErr error
				)
				if graft {
					sched, saveErr = s.service.SaveFromCutoff(ctx, userID, plan, startDate)
				} else {
					sched, saveErr = s.service.Save(ctx, userID, plan, startDate)
				}
				if saveErr != nil {
					return errors.Wrap(saveErr, "store generated plan", slog.Bool("graft", graft))
				}
				return printSchedule(cmd.OutOrStdout(), sched)
			})
		},
	}
	userFlag(cmd, &userID)
	cmd.Flags().StringVar(&start, "start", "", "first day of the plan as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "goal, level and constraints of the athlete")
	cmd.Flags().BoolVar(&graft, "graft", false, "keep the weeks before --start")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func userFlag(cmd *cobra.Command, userID *int64) {
	cmd.Flags().Int64Var(userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
}

func printSchedule(w io.Writer, sched schedule.Schedule) error {
	for _, week := range sched.Weeks {
		if _, err := fmt.Fprintln(w, schedule.WeekSummary(week)); err != nil {
			return errors.Wrap(err, "print week")
		}
	}
	for _, warning := range sched.Warnings {
		if _, err := fmt.Fprintln(w, "warning: "+warning); err != nil {
			return errors.Wrap(err, "print warning")
		}
	}
	return nil
}

func renderWeeks(w io.Writer, weeks []schedule.Week, format string, lang i18n.Language) error {
	switch format {
	case "summary":
		return printSchedule(w, schedule.Schedule{Weeks: weeks, Warnings: nil})
	case "markdown":
		if _, err := io.WriteString(w, schedule.RenderMarkdown(weeks, lang)); err != nil {
			return errors.Wrap(err, "write markdown")
		}
		return nil
	case "html":
		html, err := schedule.RenderHTML(weeks, lang)
		if err != nil {
			return errors.Wrap(err, "render html")
		}
		if _, err = w.Write(html); err != nil {
			return errors.Wrap(err, "write html")
		}
		return nil
	case "json":
		return writeJSON(w, weeks)
	default:
		return errors.Wrap(errUnknownFormat, "render weeks", slog.String("format", format))
	}
}

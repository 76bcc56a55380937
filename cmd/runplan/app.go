package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/runplan/internal/envstruct"
	"github.com/myrjola/runplan/internal/errors"
	"github.com/myrjola/runplan/internal/logging"
	"github.com/myrjola/runplan/internal/plangen"
	"github.com/myrjola/runplan/internal/schedule"
	"github.com/myrjola/runplan/internal/sqlite"
	"github.com/myrjola/runplan/internal/viewcache"
	"github.com/spf13/cobra"
)

var errMissingAPIKey = errors.NewSentinel("RUNPLAN_OPENAI_API_KEY not set")

type application struct {
	logger    *slog.Logger
	lookupEnv func(string) (string, bool)
	cfg       config
}

func (app *application) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "runplan",
		Short: "Normalize and store running training plans",
		Long: `runplan turns loosely structured training plans into canonical Monday to Sunday weeks and
stores them per user in SQLite.

Configuration comes from the environment:

  RUNPLAN_SQLITE_URL          database file, ":memory:" for a throwaway database
  RUNPLAN_REDIS_ADDR          Redis address for the schedule view cache
  RUNPLAN_CACHE_TTL_SECONDS   view cache lifetime
  RUNPLAN_OPENAI_API_KEY      key for the generate command
  RUNPLAN_OPENAI_MODEL        chat model for the generate command
  RUNPLAN_OPENAI_BASE_URL     OpenAI compatible endpoint
  RUNPLAN_WARMUP_KM           warm-up assumed for interval and fartlek days
  RUNPLAN_COOLDOWN_KM         cool-down assumed for interval and fartlek days`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := envstruct.Populate(&app.cfg, app.lookupEnv); err != nil {
				return errors.Wrap(err, "populate config")
			}
			return nil
		},
	}
	root.AddCommand(
		app.normalizeCommand(),
		app.saveCommand(),
		app.graftCommand(),
		app.showCommand(),
		app.exportCommand(),
		app.generateCommand(),
	)
	return root
}

func (app *application) defaults() schedule.Defaults {
	return schedule.Defaults{WarmupKm: app.cfg.WarmupKm, CooldownKm: app.cfg.CooldownKm}
}

type storage struct {
	db      *sqlite.Database
	service *schedule.Service
}

// withStorage opens the database and the view cache for the duration of fn.
func (app *application) withStorage(ctx context.Context, userID int64, fn func(context.Context, storage) error) (
	err error) {
	ctx = logging.WithAttrs(ctx, slog.Int64("user_id", userID))
	// The optimizer goroutine stops with dbCtx, which is cancelled before the database closes.
	dbCtx, cancel := context.WithCancel(ctx)

	db, err := sqlite.NewDatabase(dbCtx, app.cfg.SqliteURL, app.logger)
	if err != nil {
		cancel()
		return errors.Wrap(err, "open db", slog.String("url", app.cfg.SqliteURL))
	}
	defer func() {
		cancel()
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close db"))
		}
	}()

	ttl := time.Duration(app.cfg.CacheTTLSeconds) * time.Second
	var cache schedule.Cache
	if app.cfg.RedisAddr != "" {
		redisCache, redisErr := viewcache.NewRedis(ctx, app.cfg.RedisAddr, "runplan:schedule", ttl)
		if redisErr != nil {
			return errors.Wrap(redisErr, "connect redis", slog.String("addr", app.cfg.RedisAddr))
		}
		defer func() {
			if closeErr := redisCache.Close(); closeErr != nil {
				err = errors.Join(err, errors.Wrap(closeErr, "close redis"))
			}
		}()
		cache = redisCache
	} else {
		cache = viewcache.NewMemory(ttl)
	}

	return fn(ctx, storage{
		db:      db,
		service: schedule.NewService(db, cache, app.defaults(), app.logger),
	})
}

func (app *application) planGenerator() (*plangen.Client, error) {
	if app.cfg.OpenAIAPIKey == "" {
		return nil, errMissingAPIKey
	}
	return plangen.New(plangen.Config{
		APIKey:     app.cfg.OpenAIAPIKey,
		Model:      app.cfg.OpenAIModel,
		BaseURL:    app.cfg.OpenAIBaseURL,
		MaxRetries: 2, //nolint:mnd // SDK default
	}, app.logger), nil
}

// readPlan decodes a raw plan from path, "-" meaning stdin.
func readPlan(path string, stdin io.Reader) (schedule.RawPlan, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read plan", slog.String("path", path))
	}
	var plan schedule.RawPlan
	if err = json.Unmarshal(data, &plan); err != nil {
		return nil, errors.Wrap(err, "decode plan", slog.String("path", path))
	}
	return plan, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse date", slog.String("date", s))
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode json")
	}
	return nil
}

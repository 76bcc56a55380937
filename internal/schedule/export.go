package schedule

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/myrjola/runplan/internal/errors"
	"github.com/myrjola/runplan/internal/i18n"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// RenderMarkdown renders weeks as a markdown document with one table per week.
func RenderMarkdown(weeks []Week, lang i18n.Language) string {
	tr := func(key string) string { return i18n.Translate(lang, key) }

	var b strings.Builder
	b.WriteString("# " + tr("schedule.title") + "\n")
	for _, w := range weeks {
		b.WriteString("\n## " + fmt.Sprintf(tr("schedule.week"), w.WeekNumber) + " · " + w.StartDate + "\n\n")
		b.WriteString(fmt.Sprintf(tr("schedule.week.volume"), formatKm(w.TotalVolumeKm)) + "\n\n")
		b.WriteString("| " + strings.Join([]string{
			tr("schedule.column.date"),
			tr("schedule.column.type"),
			tr("schedule.column.km"),
			tr("schedule.column.pace"),
			tr("schedule.column.detail"),
		}, " | ") + " |\n")
		b.WriteString("|---|---|---:|---|---|\n")
		for _, d := range w.Days {
			typ := DayTypeLabel(d.Type, lang)
			if d.IsKeyWorkout {
				typ += " (**" + tr("schedule.key") + "**)"
			}
			km := ""
			if d.DistanceKm != nil {
				km = formatKm(*d.DistanceKm)
			}
			pace := ""
			if d.Pace != nil {
				pace = *d.Pace
			}
			b.WriteString("| " + strings.Join([]string{
				d.Date, typ, km, pace, markdownCell(d.Description),
			}, " | ") + " |\n")
		}
	}
	return b.String()
}

// RenderHTML renders weeks as an HTML fragment.
func RenderHTML(weeks []Week, lang i18n.Language) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(weeks, lang)), &buf); err != nil {
		return nil, errors.Wrap(err, "convert markdown", slog.Int("weeks", len(weeks)))
	}
	return buf.Bytes(), nil
}

// markdownCell keeps multi-line descriptions inside a single table cell.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Split(s, "\n"), "; ")
}

// DayTypeLabel returns the human readable name of t.
func DayTypeLabel(t DayType, lang i18n.Language) string {
	return i18n.Translate(lang, "day."+string(t))
}

// WeekSummary describes w on one line, e.g. "#3 2025-03-17 42.5 km, 5 runs".
func WeekSummary(w Week) string {
	running := 0
	for _, d := range w.Days {
		if d.Type.IsRunning() {
			running++
		}
	}
	return "#" + strconv.Itoa(w.WeekNumber) + " " + w.StartDate + " " + formatKm(w.TotalVolumeKm) + " km, " +
		strconv.Itoa(running) + " runs"
}

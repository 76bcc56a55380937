package testhelpers

import (
	"io"
	"log/slog"

	"github.com/myrjola/runplan/internal/logging"
)

// NewLogger creates a debug level logger with the given log sink such as [NewWriter].
func NewLogger(logSink io.Writer) *slog.Logger {
	return logging.NewLogger(logSink, slog.LevelDebug)
}

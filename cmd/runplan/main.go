package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/myrjola/runplan/internal/errors"
	"github.com/myrjola/runplan/internal/logging"
)

type config struct {
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"RUNPLAN_SQLITE_URL" envDefault:"./runplan.sqlite3"`
	// RedisAddr enables the Redis view cache. Empty keeps the cache in process memory.
	RedisAddr       string `env:"RUNPLAN_REDIS_ADDR" envDefault:""`
	CacheTTLSeconds int    `env:"RUNPLAN_CACHE_TTL_SECONDS" envDefault:"3600"`
	OpenAIAPIKey    string `env:"RUNPLAN_OPENAI_API_KEY" envDefault:""`
	OpenAIModel     string `env:"RUNPLAN_OPENAI_MODEL" envDefault:"gpt-4o"`
	// OpenAIBaseURL points the generator at an OpenAI compatible endpoint.
	OpenAIBaseURL string  `env:"RUNPLAN_OPENAI_BASE_URL" envDefault:""`
	WarmupKm      float64 `env:"RUNPLAN_WARMUP_KM" envDefault:"2"`
	CooldownKm    float64 `env:"RUNPLAN_COOLDOWN_KM" envDefault:"1.5"`
}

// run executes the command line args. Output meant for the user goes to stdout, logs go through logger.
func run(
	ctx context.Context,
	logger *slog.Logger,
	lookupEnv func(string) (string, bool),
	args []string,
	stdin io.Reader,
	stdout io.Writer,
) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	ctx = logging.WithAttrs(ctx, slog.String("run_id", uuid.NewString()))

	app := &application{
		logger:    logger,
		lookupEnv: lookupEnv,
	}
	cmd := app.rootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return errors.Wrap(err, "execute command")
	}
	return nil
}

func main() {
	ctx := context.Background()
	logger := logging.NewLogger(os.Stderr, slog.LevelInfo)
	if err := run(ctx, logger, os.LookupEnv, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "runplan failed", errors.SlogError(err))
		os.Exit(1)
	}
}

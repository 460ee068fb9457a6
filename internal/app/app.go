package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tracktable/tracktable/connectors/mysql"
	"github.com/tracktable/tracktable/connectors/postgres"
	"github.com/tracktable/tracktable/internal/config"
	"github.com/tracktable/tracktable/internal/orchestrator"
	"github.com/tracktable/tracktable/internal/ui"
	"github.com/tracktable/tracktable/pkg/dialect"
)

// NewLogger builds the application logger from the logging settings.
func NewLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// NewRegistry returns a registry with every built-in dialect registered.
func NewRegistry() *dialect.Registry {
	r := dialect.NewRegistry()
	r.Register(dialect.TagPostgres,
		func(cfg dialect.ConnConfig, logger *slog.Logger) dialect.Adapter {
			return postgres.NewAdapter(cfg, logger)
		},
		func() dialect.Synthesizer { return postgres.NewSynthesizer() },
	)
	r.Register(dialect.TagMySQL,
		func(cfg dialect.ConnConfig, logger *slog.Logger) dialect.Adapter {
			return mysql.NewAdapter(cfg, logger)
		},
		func() dialect.Synthesizer { return mysql.NewSynthesizer() },
	)
	return r
}

// Session is a fully wired tracktable instance bound to one database.
type Session struct {
	Config  *config.Config
	Logger  *slog.Logger
	Adapter dialect.Adapter
	Orch    *orchestrator.Orchestrator
	Console *ui.Console
}

// Setup resolves the configured dialect and wires the orchestrator,
// console, and adapter together. It does not connect; callers connect
// when they are ready to talk to the database.
func Setup(cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) (*Session, error) {
	registry := NewRegistry()
	adapterFactory, synthFactory, err := registry.Resolve(dialect.Tag(cfg.Database.Dialect))
	if err != nil {
		return nil, err
	}

	adapter := adapterFactory(cfg.ConnConfig(), logger)
	synth := synthFactory()
	console := ui.NewConsole(in, out)

	opts := orchestrator.Options{
		Naming:              cfg.Naming(),
		IncludeViews:        cfg.App.IncludeViews,
		BackupBeforeChanges: cfg.App.BackupBeforeChanges,
		BackupDir:           cfg.App.BackupDir,
		MaxRetries:          cfg.App.MaxRetries,
		RetryDelay:          cfg.App.RetryDelay,
	}
	orch := orchestrator.New(adapter, synth, opts, console.SelectTables, console.Confirm, logger)

	return &Session{
		Config:  cfg,
		Logger:  logger,
		Adapter: adapter,
		Orch:    orch,
		Console: console,
	}, nil
}

// Run drives the interactive console loop until quit or EOF. The adapter
// is connected on entry and disconnected on exit.
func Run(ctx context.Context, s *Session, out io.Writer) error {
	if err := s.Adapter.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.Adapter.Disconnect(ctx); err != nil {
			s.Logger.Warn("disconnect failed", "error", err)
		}
	}()

	schema := DefaultSchema(s.Config)
	for {
		fmt.Fprint(out, "\n[t]ables  [p]review  [a]pply  [r]ollback  [l]edger  [q]uit > ")
		line, err := s.Console.ReadLine()
		if err != nil {
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "t", "tables":
			tables, err := s.Adapter.ListTables(ctx, schema)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			s.Console.RenderTables(tables)
		case "p", "preview":
			previews, err := s.Orch.Preview(ctx, schema)
			if err != nil {
				reportError(out, err)
				continue
			}
			s.Console.RenderPreviews(previews)
		case "a", "apply":
			report, err := s.Orch.Apply(ctx, schema)
			if err != nil {
				reportError(out, err)
				continue
			}
			fmt.Fprintf(out, "Applied history tracking to %d tables.\n", len(report.Tables))
			if report.BackupPath != "" {
				fmt.Fprintf(out, "Backup written to %s\n", report.BackupPath)
			}
		case "r", "rollback":
			if err := s.Orch.Rollback(ctx); err != nil {
				reportError(out, err)
				continue
			}
			fmt.Fprintln(out, "All recorded changes reversed.")
		case "l", "ledger":
			s.Console.RenderLedger(s.Orch.Ledger())
		case "q", "quit", "exit":
			return nil
		case "":
		default:
			fmt.Fprintln(out, "Unknown command.")
		}
	}
}

func reportError(out io.Writer, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrCancelled):
		fmt.Fprintln(out, "Cancelled.")
	case errors.Is(err, orchestrator.ErrNoTables):
		fmt.Fprintln(out, "No eligible tables.")
	default:
		fmt.Fprintf(out, "Error: %v\n", err)
	}
}

// DefaultSchema is where table introspection starts: an explicit
// default_schema setting wins, otherwise the public schema on postgres and
// the configured database on mysql.
func DefaultSchema(cfg *config.Config) string {
	if cfg.App.DefaultSchema != "" {
		return cfg.App.DefaultSchema
	}
	if dialect.Tag(cfg.Database.Dialect) == dialect.TagMySQL {
		return cfg.Database.Database
	}
	return "public"
}

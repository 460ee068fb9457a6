package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracktable/tracktable/internal/telemetry"
	"github.com/tracktable/tracktable/pkg/dialect"
)

// State tracks where an orchestrator invocation is in its workflow.
type State string

const (
	StateIdle            State = "idle"
	StateMetadataFetched State = "metadata_fetched"
	StateTablesSelected  State = "tables_selected"
	StatePreviewed       State = "previewed"
	StateApplying        State = "applying"
	StateApplied         State = "applied"
	StateFailed          State = "failed"
)

// TableSelector narrows introspected candidates to the tables to act on.
// Implemented outside the core (console, tests); returns table names.
type TableSelector func(candidates []dialect.TableMetadata) []string

// ConfirmFunc asks for a yes/no decision before destructive work.
type ConfirmFunc func(prompt string) bool

// Options is the configuration surface the orchestrator consumes.
type Options struct {
	Naming              dialect.NamingConfig
	IncludeViews        bool
	BackupBeforeChanges bool
	BackupDir           string
	MaxRetries          int
	RetryDelay          time.Duration
}

// Orchestrator drives the preview/apply/rollback workflow over one adapter
// and synthesizer pair, and owns the in-session change ledger. One logical
// workflow per process: methods are not called concurrently.
type Orchestrator struct {
	adapter  dialect.Adapter
	synth    dialect.Synthesizer
	opts     Options
	selector TableSelector
	confirm  ConfirmFunc
	logger   *slog.Logger
	tracer   trace.Tracer

	fs    afero.Fs
	now   func() time.Time
	state State

	ledger *Ledger
}

func New(adapter dialect.Adapter, synth dialect.Synthesizer, opts Options, selector TableSelector, confirm ConfirmFunc, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		adapter:  adapter,
		synth:    synth,
		opts:     opts,
		selector: selector,
		confirm:  confirm,
		logger:   logger,
		tracer:   telemetry.Tracer("tracktable"),
		fs:       afero.NewOsFs(),
		now:      time.Now,
		state:    StateIdle,
		ledger:   NewLedger(),
	}
}

// State returns the terminal state of the most recent invocation.
func (o *Orchestrator) State() State { return o.state }

// SetSelector replaces the table selector. Non-interactive commands use
// this to select from flags instead of the console.
func (o *Orchestrator) SetSelector(sel TableSelector) { o.selector = sel }

// SetConfirm replaces the confirmation prompt.
func (o *Orchestrator) SetConfirm(fn ConfirmFunc) { o.confirm = fn }

// Ledger exposes the session ledger entries in application order.
func (o *Orchestrator) Ledger() []LedgerEntry { return o.ledger.Entries() }

// TablePreview is the synthesized-but-unexecuted DDL for one table.
type TablePreview struct {
	Schema          string
	Table           string
	HistoryTableDDL string
	TriggerDDL      []string
}

// ApplyReport summarizes a successful apply.
type ApplyReport struct {
	Tables     []string
	BackupPath string
	Entries    []LedgerEntry
}

// tablePlan is one table's full synthesis, computed before any execution.
type tablePlan struct {
	meta       dialect.TableMetadata
	historyDDL string
	triggerDDL []string
	backupDDL  string
}

// Preview synthesizes DDL for the selected tables without executing
// anything; the database is only read.
func (o *Orchestrator) Preview(ctx context.Context, schema string) ([]TablePreview, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.preview",
		trace.WithAttributes(attribute.String("schema", schema)))
	defer span.End()

	o.state = StateIdle
	plans, err := o.plan(ctx, schema)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	previews := make([]TablePreview, 0, len(plans))
	for _, p := range plans {
		previews = append(previews, TablePreview{
			Schema:          p.meta.Schema,
			Table:           p.meta.Name,
			HistoryTableDDL: p.historyDDL,
			TriggerDDL:      p.triggerDDL,
		})
	}
	o.state = StatePreviewed
	return previews, nil
}

// Apply executes the synthesized DDL for the selected tables inside one
// transaction spanning the whole batch. On any failure the entire batch
// rolls back and the ledger is left untouched; on success one ledger entry
// is appended per created object, in application order.
func (o *Orchestrator) Apply(ctx context.Context, schema string) (*ApplyReport, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.apply",
		trace.WithAttributes(attribute.String("schema", schema)))
	defer span.End()

	o.state = StateIdle
	plans, err := o.plan(ctx, schema)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("tables", len(plans)))

	prompt := fmt.Sprintf("Create history tables and triggers for %d tables?", len(plans))
	if !o.confirm(prompt) {
		o.logger.Info("apply cancelled by user", "schema", schema)
		return nil, ErrCancelled
	}

	report := &ApplyReport{}
	if o.opts.BackupBeforeChanges {
		statements := make([]string, 0, len(plans))
		for _, p := range plans {
			statements = append(statements, p.backupDDL)
		}
		path, err := writeBackup(o.fs, o.opts.BackupDir, statements, o.now())
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		o.logger.Info("backup written", "path", path)
		report.BackupPath = path
	}

	user, err := o.currentUser(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	o.state = StateApplying
	if err := o.withRetry(ctx, "begin", func() error { return o.adapter.Begin(ctx) }); err != nil {
		o.state = StateFailed
		span.RecordError(err)
		return nil, err
	}

	committed := false
	defer func() {
		if !committed {
			// Execute failures already roll back implicitly; this covers
			// every other abnormal exit while the transaction is open.
			if err := o.adapter.Rollback(ctx); err != nil {
				o.logger.Warn("rollback on abnormal exit failed", "error", err)
			}
		}
	}()

	pending := make([]LedgerEntry, 0, len(plans)*2)
	for _, p := range plans {
		if _, err := o.adapter.Execute(ctx, p.historyDDL); err != nil {
			o.state = StateFailed
			span.RecordError(err)
			return nil, fmt.Errorf("create history table for %s.%s: %w", p.meta.Schema, p.meta.Name, err)
		}
		pending = append(pending, newEntry(p.meta.Schema, p.meta.Name, ActionCreateHistoryTable, user, o.now()))

		for _, stmt := range p.triggerDDL {
			if _, err := o.adapter.Execute(ctx, stmt); err != nil {
				o.state = StateFailed
				span.RecordError(err)
				return nil, fmt.Errorf("create triggers for %s.%s: %w", p.meta.Schema, p.meta.Name, err)
			}
		}
		pending = append(pending, newEntry(p.meta.Schema, p.meta.Name, ActionCreateTriggers, user, o.now()))

		report.Tables = append(report.Tables, p.meta.Name)
		o.logger.Info("history enabled", "schema", p.meta.Schema, "table", p.meta.Name)
	}

	if err := o.adapter.Commit(ctx); err != nil {
		o.state = StateFailed
		span.RecordError(err)
		return nil, err
	}
	committed = true

	for _, entry := range pending {
		o.ledger.Append(entry)
	}
	report.Entries = pending
	o.state = StateApplied
	return report, nil
}

// Rollback reverses the ledger in reverse chronological order, executing
// inverse DDL per entry and removing each entry only after its reversal
// succeeded. A mid-reversal failure leaves the ledger truncated to the
// unreversed remainder, so retrying is safe.
func (o *Orchestrator) Rollback(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.rollback",
		trace.WithAttributes(attribute.Int("entries", o.ledger.Len())))
	defer span.End()

	entries := o.ledger.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		statements, err := o.inverseDDL(entry)
		if err != nil {
			span.RecordError(err)
			return &RollbackFailure{Entry: entry, Err: err}
		}
		for _, stmt := range statements {
			if err := o.withRetry(ctx, "rollback", func() error {
				_, execErr := o.adapter.Execute(ctx, stmt)
				return execErr
			}); err != nil {
				span.RecordError(err)
				return &RollbackFailure{Entry: entry, Err: err}
			}
		}
		o.ledger.RemoveLast()
		o.logger.Info("reversed", "action", entry.Action, "schema", entry.Schema, "table", entry.Table)
	}
	return nil
}

func (o *Orchestrator) inverseDDL(entry LedgerEntry) ([]string, error) {
	switch entry.Action {
	case ActionCreateTriggers:
		return o.synth.GenerateTriggerDropDDL(entry.Schema, entry.Table, o.opts.Naming)
	case ActionCreateHistoryTable:
		ddl, err := o.synth.GenerateHistoryTableDropDDL(entry.Schema, entry.Table, o.opts.Naming)
		if err != nil {
			return nil, err
		}
		return []string{ddl}, nil
	default:
		return nil, fmt.Errorf("unknown ledger action %q", entry.Action)
	}
}

// plan introspects the schema, applies selection, and synthesizes all DDL
// up front so execution starts only with a fully validated batch.
func (o *Orchestrator) plan(ctx context.Context, schema string) ([]tablePlan, error) {
	var tables []dialect.TableMetadata
	err := o.withRetry(ctx, "list tables", func() error {
		var listErr error
		tables, listErr = o.adapter.ListTables(ctx, schema)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	o.state = StateMetadataFetched

	candidates := make([]dialect.TableMetadata, 0, len(tables))
	for _, t := range tables {
		if t.Kind == dialect.KindView && !o.opts.IncludeViews {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, ErrNoTables
	}

	byName := make(map[string]dialect.TableMetadata, len(candidates))
	for _, t := range candidates {
		byName[t.Name] = t
	}

	selected := o.selector(candidates)
	plans := make([]tablePlan, 0, len(selected))
	for _, name := range selected {
		meta, ok := byName[name]
		if !ok {
			o.logger.Warn("selection does not match a candidate table", "table", name)
			continue
		}
		plan, err := o.planTable(ctx, meta)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if len(plans) == 0 {
		return nil, ErrNoTables
	}
	o.state = StateTablesSelected
	return plans, nil
}

func (o *Orchestrator) planTable(ctx context.Context, meta dialect.TableMetadata) (tablePlan, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.plan_table",
		trace.WithAttributes(telemetry.TableAttributes(meta.Schema, meta.Name)...))
	defer span.End()

	var columns []dialect.ColumnMetadata
	err := o.withRetry(ctx, "list columns", func() error {
		var listErr error
		columns, listErr = o.adapter.ListColumns(ctx, meta.Schema, meta.Name)
		return listErr
	})
	if err != nil {
		return tablePlan{}, err
	}

	constraints, _ := o.adapter.ListConstraints(ctx, meta.Schema, meta.Name)
	markPrimaryKeys(columns, constraints)
	meta.Columns = columns

	historyDDL, err := o.synth.GenerateHistoryTableDDL(meta.Schema, meta.Name, columns, o.opts.Naming)
	if err != nil {
		return tablePlan{}, err
	}
	triggerDDL, err := o.synth.GenerateTriggerDDL(meta.Schema, meta.Name, columns, o.opts.Naming)
	if err != nil {
		return tablePlan{}, err
	}
	backupDDL, err := o.synth.GenerateBackupDDL(meta.Schema, meta.Name)
	if err != nil {
		return tablePlan{}, err
	}
	return tablePlan{meta: meta, historyDDL: historyDDL, triggerDDL: triggerDDL, backupDDL: backupDDL}, nil
}

// markPrimaryKeys merges constraint introspection into column metadata for
// dialects whose column listing does not carry key membership. Constraint
// introspection is best-effort, so absent data leaves columns untouched.
func markPrimaryKeys(columns []dialect.ColumnMetadata, constraints []dialect.ConstraintMetadata) {
	for _, c := range constraints {
		if c.Type != dialect.ConstraintPrimaryKey {
			continue
		}
		for _, keyCol := range c.Columns {
			for i := range columns {
				if columns[i].Name == keyCol {
					columns[i].PrimaryKey = true
				}
			}
		}
	}
}

func (o *Orchestrator) currentUser(ctx context.Context) (string, error) {
	var user string
	err := o.withRetry(ctx, "current user", func() error {
		var userErr error
		user, userErr = o.adapter.CurrentUser(ctx)
		return userErr
	})
	return user, err
}

package dialect

import (
	"context"
	"time"
)

// Tag identifies a supported database dialect.
type Tag string

const (
	TagPostgres Tag = "postgres"
	TagMySQL    Tag = "mysql"
)

// TableKind distinguishes catalog object types.
type TableKind string

const (
	KindBaseTable TableKind = "BASE TABLE"
	KindView      TableKind = "VIEW"
)

// ColumnMetadata is an immutable snapshot of one column as introspected
// from the catalog. Length/Precision/Scale are zero when the catalog does
// not report them for the column's type.
type ColumnMetadata struct {
	Name         string
	DeclaredType string
	Nullable     bool
	Default      string
	Ordinal      int
	Length       int
	Precision    int
	Scale        int
	PrimaryKey   bool
}

// TableMetadata is an immutable snapshot of one catalog table. Columns are
// ordered by ordinal position.
type TableMetadata struct {
	Name    string
	Schema  string
	Kind    TableKind
	Columns []ColumnMetadata
}

// ConstraintMetadata describes one table constraint. Columns are ordered by
// their position within the constraint.
type ConstraintMetadata struct {
	Name    string
	Type    string
	Columns []string
}

const ConstraintPrimaryKey = "PRIMARY KEY"

// ConnConfig carries everything an adapter needs to reach a database.
type ConnConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Timeout  time.Duration
}

// Result is the outcome of a single executed statement: row data for
// queries, an affected-row count for everything else.
type Result struct {
	Columns  []string
	Rows     [][]any
	Affected int64
}

// Adapter is the uniform capability set every dialect implements. All
// operations are synchronous; implementations serialize access to the
// underlying connection so interleaved call sites never mix on the wire.
//
// ListConstraints is best-effort: dialects that cannot introspect
// constraints return an empty slice, never an error.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Ping(ctx context.Context) error

	ListDatabases(ctx context.Context) ([]string, error)
	ListSchemas(ctx context.Context, database string) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]TableMetadata, error)
	ListColumns(ctx context.Context, schema, table string) ([]ColumnMetadata, error)
	ListConstraints(ctx context.Context, schema, table string) ([]ConstraintMetadata, error)

	Execute(ctx context.Context, query string, args ...any) (Result, error)
	ExecuteBatch(ctx context.Context, queries []string) error

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	CurrentUser(ctx context.Context) (string, error)
}

// Synthesizer turns column metadata and naming configuration into
// dialect-native DDL text. Implementations are deterministic: identical
// inputs always yield byte-identical output.
type Synthesizer interface {
	// GenerateHistoryTableDDL builds the CREATE TABLE IF NOT EXISTS
	// statement for a table's history twin, including audit columns and
	// the primary-key clause.
	GenerateHistoryTableDDL(schema, table string, columns []ColumnMetadata, cfg NamingConfig) (string, error)

	// GenerateTriggerDDL builds the ordered statement list that installs
	// change capture for the table. Column metadata is required by
	// dialects whose trigger bodies must enumerate columns; others may
	// ignore it. Dialects without native triggers return
	// ErrUnsupportedOperation instead of emitting invalid DDL.
	GenerateTriggerDDL(schema, table string, columns []ColumnMetadata, cfg NamingConfig) ([]string, error)

	// GenerateBackupDDL builds a dialect-native export statement for
	// pre-change backups. Advisory only, never executed transactionally.
	GenerateBackupDDL(schema, table string) (string, error)

	// GenerateHistoryTableDropDDL builds the inverse of
	// GenerateHistoryTableDDL.
	GenerateHistoryTableDropDDL(schema, table string, cfg NamingConfig) (string, error)

	// GenerateTriggerDropDDL builds the ordered inverse of
	// GenerateTriggerDDL.
	GenerateTriggerDropDDL(schema, table string, cfg NamingConfig) ([]string, error)
}

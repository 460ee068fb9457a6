package dialect

// NamingConfig controls how history objects are named.
type NamingConfig struct {
	HistorySuffix   string
	TimestampColumn string
	OperationColumn string
	UserColumn      string
}

// DefaultNaming returns the stock naming scheme.
func DefaultNaming() NamingConfig {
	return NamingConfig{
		HistorySuffix:   "_hst",
		TimestampColumn: "history_timestamp",
		OperationColumn: "history_operation",
		UserColumn:      "history_user",
	}
}

// HistoryTable returns the history table name for a source table.
func (c NamingConfig) HistoryTable(table string) string {
	return table + c.HistorySuffix
}

// AuditColumn is one synthesized audit column in generic terms; dialect
// synthesizers render the concrete type text.
type AuditColumn struct {
	Name string
	Role AuditRole
}

// AuditRole identifies which of the three audit columns an AuditColumn is.
type AuditRole int

const (
	AuditTimestamp AuditRole = iota
	AuditOperation
	AuditUser
)

// AuditColumns returns the audit columns to append to a history table for
// the given original column set. An audit column whose name collides with
// an original column is skipped entirely: originals are never renamed or
// overwritten, and the collision is not an error.
func (c NamingConfig) AuditColumns(columns []ColumnMetadata) []AuditColumn {
	existing := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		existing[col.Name] = struct{}{}
	}

	candidates := []AuditColumn{
		{Name: c.TimestampColumn, Role: AuditTimestamp},
		{Name: c.OperationColumn, Role: AuditOperation},
		{Name: c.UserColumn, Role: AuditUser},
	}
	out := make([]AuditColumn, 0, len(candidates))
	for _, cand := range candidates {
		if _, ok := existing[cand.Name]; ok {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// PrimaryKeyColumns returns the history table's primary-key column set:
// every original primary-key column in ordinal order, plus the timestamp
// column. An empty result means the source table has no primary key and
// the history table is created without one.
func (c NamingConfig) PrimaryKeyColumns(columns []ColumnMetadata) []string {
	keys := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		if col.PrimaryKey {
			keys = append(keys, col.Name)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	for _, key := range keys {
		if key == c.TimestampColumn {
			return keys
		}
	}
	return append(keys, c.TimestampColumn)
}

package postgres

import (
	"fmt"
	"strings"

	"github.com/tracktable/tracktable/pkg/dialect"
)

// Synthesizer renders Postgres DDL for history tables and their capture
// triggers. All output is a pure function of the inputs.
type Synthesizer struct{}

func NewSynthesizer() dialect.Synthesizer {
	return &Synthesizer{}
}

func (s *Synthesizer) GenerateHistoryTableDDL(schema, table string, columns []dialect.ColumnMetadata, cfg dialect.NamingConfig) (string, error) {
	if err := dialect.ValidateTable(schema, table, columns); err != nil {
		return "", err
	}
	if err := dialect.ValidateNaming(cfg); err != nil {
		return "", err
	}
	historyTable := cfg.HistoryTable(table)

	defs := make([]string, 0, len(columns)+4)
	for _, col := range columns {
		defs = append(defs, renderColumn(col))
	}
	for _, audit := range cfg.AuditColumns(columns) {
		defs = append(defs, audit.Name+" "+auditType(audit.Role))
	}
	if keys := cfg.PrimaryKeyColumns(columns); len(keys) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s.%s (\n", schema, historyTable)
	b.WriteString("    " + strings.Join(defs, ",\n    "))
	b.WriteString("\n);\n\n")
	fmt.Fprintf(&b, "COMMENT ON TABLE %s.%s IS 'History table for %s.%s';",
		schema, historyTable, schema, table)
	return b.String(), nil
}

func auditType(role dialect.AuditRole) string {
	switch role {
	case dialect.AuditTimestamp:
		return "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"
	case dialect.AuditOperation:
		return "VARCHAR(10)"
	default:
		return "VARCHAR(100)"
	}
}

// renderColumn carries over the declared type with its length or
// precision/scale, plus NOT NULL; no other source constraints survive into
// the history table.
func renderColumn(col dialect.ColumnMetadata) string {
	def := col.Name + " " + typeText(col)
	if !col.Nullable {
		def += " NOT NULL"
	}
	return def
}

func typeText(col dialect.ColumnMetadata) string {
	t := strings.ToUpper(col.DeclaredType)
	if strings.Contains(t, "(") {
		return t
	}
	switch {
	case col.Precision > 0 && col.Scale > 0 && isNumericFamily(t):
		return fmt.Sprintf("%s(%d,%d)", t, col.Precision, col.Scale)
	case col.Length > 0 && isCharFamily(t):
		return fmt.Sprintf("%s(%d)", t, col.Length)
	default:
		return t
	}
}

func isNumericFamily(t string) bool {
	return strings.Contains(t, "NUMERIC") || strings.Contains(t, "DECIMAL")
}

func isCharFamily(t string) bool {
	return strings.Contains(t, "CHAR")
}

// GenerateTriggerDDL returns the trigger function followed by the trigger
// itself. The function inserts the pre-image row (OLD) into the history
// table tagged with the operation and the invoking user; column metadata is
// not needed because Postgres can expand OLD.* positionally.
func (s *Synthesizer) GenerateTriggerDDL(schema, table string, _ []dialect.ColumnMetadata, cfg dialect.NamingConfig) ([]string, error) {
	if !dialect.ValidIdentifier(schema) || !dialect.ValidIdentifier(table) {
		return nil, &dialect.ValidationError{Field: "table", Message: fmt.Sprintf("invalid identifier %s.%s", schema, table)}
	}
	if err := dialect.ValidateNaming(cfg); err != nil {
		return nil, err
	}
	historyTable := cfg.HistoryTable(table)
	function := triggerName(table)

	fn := fmt.Sprintf(`CREATE OR REPLACE FUNCTION %[1]s.%[2]s()
RETURNS TRIGGER AS $$
BEGIN
    IF (TG_OP = 'DELETE') THEN
        INSERT INTO %[1]s.%[3]s
        SELECT OLD.*,
               CURRENT_TIMESTAMP,
               'DELETE',
               CURRENT_USER;
        RETURN OLD;
    ELSIF (TG_OP = 'UPDATE') THEN
        INSERT INTO %[1]s.%[3]s
        SELECT OLD.*,
               CURRENT_TIMESTAMP,
               'UPDATE',
               CURRENT_USER;
        RETURN NEW;
    END IF;
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;`, schema, function, historyTable)

	trigger := fmt.Sprintf(`CREATE TRIGGER %[2]s
AFTER UPDATE OR DELETE ON %[1]s.%[3]s
FOR EACH ROW
EXECUTE FUNCTION %[1]s.%[2]s();`, schema, function, table)

	return []string{fn, trigger}, nil
}

func (s *Synthesizer) GenerateBackupDDL(schema, table string) (string, error) {
	if !dialect.ValidIdentifier(schema) || !dialect.ValidIdentifier(table) {
		return "", &dialect.ValidationError{Field: "table", Message: fmt.Sprintf("invalid identifier %s.%s", schema, table)}
	}
	return fmt.Sprintf(`\copy %[1]s.%[2]s TO 'backup_%[1]s_%[2]s.csv' CSV HEADER;`, schema, table), nil
}

func (s *Synthesizer) GenerateHistoryTableDropDDL(schema, table string, cfg dialect.NamingConfig) (string, error) {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s.%s;", schema, cfg.HistoryTable(table)), nil
}

func (s *Synthesizer) GenerateTriggerDropDDL(schema, table string, _ dialect.NamingConfig) ([]string, error) {
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s.%s;", triggerName(table), schema, table),
		fmt.Sprintf("DROP FUNCTION IF EXISTS %s.%s();", schema, triggerName(table)),
	}, nil
}

func triggerName(table string) string {
	return table + "_history_trigger"
}

package mysql

import (
	"fmt"
	"strings"

	"github.com/tracktable/tracktable/pkg/dialect"
)

// Synthesizer renders MySQL DDL. Unlike Postgres there is no trigger
// function object and no row-wildcard insert, so trigger bodies enumerate
// every column explicitly and one trigger is emitted per event.
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
		def := quoteIdent(col.Name) + " " + typeText(col)
		if !col.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	for _, audit := range cfg.AuditColumns(columns) {
		defs = append(defs, quoteIdent(audit.Name)+" "+auditType(audit.Role))
	}
	if keys := cfg.PrimaryKeyColumns(columns); len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, key := range keys {
			quoted[i] = quoteIdent(key)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s.%s (\n", quoteIdent(schema), quoteIdent(historyTable))
	b.WriteString("    " + strings.Join(defs, ",\n    "))
	b.WriteString("\n);")
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

func typeText(col dialect.ColumnMetadata) string {
	// MySQL catalogs report types with their arguments baked in.
	return strings.ToUpper(col.DeclaredType)
}

// GenerateTriggerDDL emits one AFTER UPDATE and one AFTER DELETE trigger.
// MySQL triggers cannot SELECT OLD.*, so the insert lists the original
// columns as OLD references followed by literals for the audit columns.
func (s *Synthesizer) GenerateTriggerDDL(schema, table string, columns []dialect.ColumnMetadata, cfg dialect.NamingConfig) ([]string, error) {
	if err := dialect.ValidateTable(schema, table, columns); err != nil {
		return nil, err
	}
	if err := dialect.ValidateNaming(cfg); err != nil {
		return nil, err
	}

	update := s.buildTrigger(schema, table, columns, cfg, "UPDATE")
	del := s.buildTrigger(schema, table, columns, cfg, "DELETE")
	return []string{update, del}, nil
}

func (s *Synthesizer) buildTrigger(schema, table string, columns []dialect.ColumnMetadata, cfg dialect.NamingConfig, event string) string {
	historyTable := cfg.HistoryTable(table)

	targets := make([]string, 0, len(columns)+3)
	values := make([]string, 0, len(columns)+3)
	for _, col := range columns {
		targets = append(targets, quoteIdent(col.Name))
		values = append(values, "OLD."+quoteIdent(col.Name))
	}
	for _, audit := range cfg.AuditColumns(columns) {
		targets = append(targets, quoteIdent(audit.Name))
		switch audit.Role {
		case dialect.AuditTimestamp:
			values = append(values, "CURRENT_TIMESTAMP")
		case dialect.AuditOperation:
			values = append(values, "'"+event+"'")
		case dialect.AuditUser:
			values = append(values, "CURRENT_USER()")
		}
	}

	return fmt.Sprintf(`CREATE TRIGGER %s
AFTER %s ON %s.%s
FOR EACH ROW
INSERT INTO %s.%s (%s)
VALUES (%s);`,
		quoteIdent(triggerName(table, event)),
		event,
		quoteIdent(schema), quoteIdent(table),
		quoteIdent(schema), quoteIdent(historyTable),
		strings.Join(targets, ", "),
		strings.Join(values, ", "))
}

func (s *Synthesizer) GenerateBackupDDL(schema, table string) (string, error) {
	if !dialect.ValidIdentifier(schema) || !dialect.ValidIdentifier(table) {
		return "", &dialect.ValidationError{Field: "table", Message: fmt.Sprintf("invalid identifier %s.%s", schema, table)}
	}
	return fmt.Sprintf(
		"SELECT * INTO OUTFILE 'backup_%[1]s_%[2]s.csv' FIELDS TERMINATED BY ',' ENCLOSED BY '\"' LINES TERMINATED BY '\\n' FROM %[3]s.%[4]s;",
		schema, table, quoteIdent(schema), quoteIdent(table)), nil
}

func (s *Synthesizer) GenerateHistoryTableDropDDL(schema, table string, cfg dialect.NamingConfig) (string, error) {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s.%s;", quoteIdent(schema), quoteIdent(cfg.HistoryTable(table))), nil
}

func (s *Synthesizer) GenerateTriggerDropDDL(schema, table string, _ dialect.NamingConfig) ([]string, error) {
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s.%s;", quoteIdent(schema), quoteIdent(triggerName(table, "UPDATE"))),
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s.%s;", quoteIdent(schema), quoteIdent(triggerName(table, "DELETE"))),
	}, nil
}

func triggerName(table, event string) string {
	return table + "_history_" + strings.ToLower(event)
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

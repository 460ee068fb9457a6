package dialect

import (
	"fmt"
	"regexp"
)

// Identifier rules shared by the supported dialects: leading letter or
// underscore, alphanumerics/underscores after, 63 bytes max (the Postgres
// limit, which is stricter than MySQL's).
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const maxIdentifierLen = 63

// ValidIdentifier reports whether name is usable unquoted in both dialects.
func ValidIdentifier(name string) bool {
	return name != "" && len(name) <= maxIdentifierLen && identifierPattern.MatchString(name)
}

// ValidateTable checks the metadata a synthesizer is about to consume.
// A table with zero columns, or with names that cannot be rendered as
// identifiers, is malformed input rather than a query failure.
func ValidateTable(schema, table string, columns []ColumnMetadata) error {
	if !ValidIdentifier(schema) {
		return &ValidationError{Field: "schema", Message: fmt.Sprintf("invalid identifier %q", schema)}
	}
	if !ValidIdentifier(table) {
		return &ValidationError{Field: "table", Message: fmt.Sprintf("invalid identifier %q", table)}
	}
	if len(columns) == 0 {
		return &ValidationError{Field: "columns", Message: fmt.Sprintf("table %s.%s has no columns", schema, table)}
	}
	for _, col := range columns {
		if !ValidIdentifier(col.Name) {
			return &ValidationError{Field: "columns", Message: fmt.Sprintf("invalid column identifier %q", col.Name)}
		}
		if col.DeclaredType == "" {
			return &ValidationError{Field: "columns", Message: fmt.Sprintf("column %q has no declared type", col.Name)}
		}
	}
	return nil
}

// ValidateNaming checks a naming configuration before synthesis.
func ValidateNaming(cfg NamingConfig) error {
	if cfg.HistorySuffix == "" {
		return &ValidationError{Field: "historySuffix", Message: "must not be empty"}
	}
	if !identifierPattern.MatchString(cfg.HistorySuffix) {
		return &ValidationError{Field: "historySuffix", Message: fmt.Sprintf("invalid suffix %q", cfg.HistorySuffix)}
	}
	for field, name := range map[string]string{
		"timestampColumn": cfg.TimestampColumn,
		"operationColumn": cfg.OperationColumn,
		"userColumn":      cfg.UserColumn,
	} {
		if !ValidIdentifier(name) {
			return &ValidationError{Field: field, Message: fmt.Sprintf("invalid identifier %q", name)}
		}
	}
	return nil
}

package dialect

import (
	"errors"
	"strings"
	"testing"
)

func TestValidIdentifier(t *testing.T) {
	valid := []string{"orders", "_hidden", "Order2", "a"}
	for _, name := range valid {
		if !ValidIdentifier(name) {
			t.Fatalf("expected %q valid", name)
		}
	}

	invalid := []string{"", "2orders", "ord-ers", "orders;drop", "ord ers", strings.Repeat("a", 64)}
	for _, name := range invalid {
		if ValidIdentifier(name) {
			t.Fatalf("expected %q invalid", name)
		}
	}
}

func TestValidateTableNoColumns(t *testing.T) {
	err := ValidateTable("public", "orders", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "columns" {
		t.Fatalf("field = %q", verr.Field)
	}
}

func TestValidateTableBadColumn(t *testing.T) {
	columns := []ColumnMetadata{{Name: "id; drop table x", DeclaredType: "integer"}}
	if err := ValidateTable("public", "orders", columns); err == nil {
		t.Fatalf("expected error for unsafe column name")
	}

	columns = []ColumnMetadata{{Name: "id"}}
	if err := ValidateTable("public", "orders", columns); err == nil {
		t.Fatalf("expected error for missing declared type")
	}
}

func TestValidateNaming(t *testing.T) {
	if err := ValidateNaming(DefaultNaming()); err != nil {
		t.Fatalf("default naming rejected: %v", err)
	}

	bad := DefaultNaming()
	bad.HistorySuffix = ""
	if err := ValidateNaming(bad); err == nil {
		t.Fatalf("empty suffix accepted")
	}

	bad = DefaultNaming()
	bad.TimestampColumn = "history timestamp"
	if err := ValidateNaming(bad); err == nil {
		t.Fatalf("unsafe timestamp column accepted")
	}
}

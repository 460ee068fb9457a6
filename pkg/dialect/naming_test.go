package dialect

import (
	"testing"

	"pgregory.net/rapid"
)

func TestDefaultNaming(t *testing.T) {
	cfg := DefaultNaming()
	if cfg.HistorySuffix != "_hst" {
		t.Fatalf("unexpected suffix %q", cfg.HistorySuffix)
	}
	if got := cfg.HistoryTable("orders"); got != "orders_hst" {
		t.Fatalf("history table = %q", got)
	}
}

func TestAuditColumnsSkipsCollisions(t *testing.T) {
	cfg := DefaultNaming()
	columns := []ColumnMetadata{
		{Name: "id"},
		{Name: "history_operation"},
	}

	audit := cfg.AuditColumns(columns)
	if len(audit) != 2 {
		t.Fatalf("expected 2 audit columns, got %d", len(audit))
	}
	for _, col := range audit {
		if col.Name == "history_operation" {
			t.Fatalf("colliding audit column was not skipped")
		}
	}
	if audit[0].Role != AuditTimestamp || audit[1].Role != AuditUser {
		t.Fatalf("surviving audit columns out of order: %+v", audit)
	}
}

func TestAuditColumnsAllCollide(t *testing.T) {
	cfg := DefaultNaming()
	columns := []ColumnMetadata{
		{Name: "history_timestamp"},
		{Name: "history_operation"},
		{Name: "history_user"},
	}
	if audit := cfg.AuditColumns(columns); len(audit) != 0 {
		t.Fatalf("expected no audit columns, got %+v", audit)
	}
}

func TestPrimaryKeyColumns(t *testing.T) {
	cfg := DefaultNaming()

	columns := []ColumnMetadata{
		{Name: "tenant_id", Ordinal: 1, PrimaryKey: true},
		{Name: "order_id", Ordinal: 2, PrimaryKey: true},
		{Name: "total", Ordinal: 3},
	}
	keys := cfg.PrimaryKeyColumns(columns)
	want := []string{"tenant_id", "order_id", "history_timestamp"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestPrimaryKeyColumnsNoKey(t *testing.T) {
	cfg := DefaultNaming()
	columns := []ColumnMetadata{{Name: "value", Ordinal: 1}}
	if keys := cfg.PrimaryKeyColumns(columns); keys != nil {
		t.Fatalf("expected no key set, got %v", keys)
	}
}

func TestPrimaryKeyColumnsTimestampAlreadyKeyed(t *testing.T) {
	cfg := DefaultNaming()
	columns := []ColumnMetadata{
		{Name: "history_timestamp", Ordinal: 1, PrimaryKey: true},
	}
	keys := cfg.PrimaryKeyColumns(columns)
	if len(keys) != 1 || keys[0] != "history_timestamp" {
		t.Fatalf("timestamp column duplicated in key set: %v", keys)
	}
}

func TestAuditColumnsRapid(t *testing.T) {
	cfg := DefaultNaming()
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(
			rapid.SampledFrom([]string{
				"id", "name", "total", "history_timestamp", "history_operation", "history_user",
			}), 0, 6).Draw(t, "names")

		columns := make([]ColumnMetadata, 0, len(names))
		seen := make(map[string]bool)
		for _, n := range names {
			if seen[n] {
				continue
			}
			seen[n] = true
			columns = append(columns, ColumnMetadata{Name: n, Ordinal: len(columns) + 1})
		}

		audit := cfg.AuditColumns(columns)
		for _, col := range audit {
			if seen[col.Name] {
				t.Fatalf("audit column %q collides with an original column", col.Name)
			}
		}

		// audit columns keep the timestamp/operation/user ordering
		lastRole := AuditRole(-1)
		for _, col := range audit {
			if col.Role <= lastRole {
				t.Fatalf("audit roles out of order: %+v", audit)
			}
			lastRole = col.Role
		}
	})
}

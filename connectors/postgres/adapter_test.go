package postgres

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tracktable/tracktable/pkg/dialect"
)

func TestDSN(t *testing.T) {
	a := &Adapter{cfg: dialect.ConnConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "app",
		Password: "s3cret",
		Database: "shop",
		SSLMode:  "require",
		Timeout:  10 * time.Second,
	}, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	dsn := a.dsn()
	for _, want := range []string{
		"postgres://",
		"app:s3cret@db.internal:5432/shop",
		"sslmode=require",
		"connect_timeout=10",
	} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("missing %q in %q", want, dsn)
		}
	}
}

func TestDSNOmitsEmptyOptions(t *testing.T) {
	a := &Adapter{cfg: dialect.ConnConfig{Host: "localhost", Port: 5432, User: "u", Database: "d"}}
	dsn := a.dsn()
	if strings.Contains(dsn, "sslmode") || strings.Contains(dsn, "connect_timeout") {
		t.Fatalf("empty options rendered: %q", dsn)
	}
}

func TestReturnsRows(t *testing.T) {
	rowQueries := []string{
		"SELECT 1",
		"  select current_user",
		"WITH t AS (SELECT 1) SELECT * FROM t",
		"SHOW server_version",
	}
	for _, q := range rowQueries {
		if !returnsRows(q) {
			t.Fatalf("%q should return rows", q)
		}
	}

	execQueries := []string{
		"CREATE TABLE x (id int)",
		"DROP TABLE x",
		"INSERT INTO x VALUES (1)",
		"COMMENT ON TABLE x IS 'y'",
	}
	for _, q := range execQueries {
		if returnsRows(q) {
			t.Fatalf("%q should not return rows", q)
		}
	}
}

func TestGroupConstraints(t *testing.T) {
	rows := [][]any{
		{"orders_pkey", "PRIMARY KEY", "tenant_id"},
		{"orders_pkey", "PRIMARY KEY", "order_id"},
		{"orders_total_check", "CHECK", "total"},
	}
	constraints := groupConstraints(rows)
	if len(constraints) != 2 {
		t.Fatalf("expected 2 constraints, got %+v", constraints)
	}
	pk := constraints[0]
	if pk.Name != "orders_pkey" || pk.Type != dialect.ConstraintPrimaryKey {
		t.Fatalf("pk = %+v", pk)
	}
	if len(pk.Columns) != 2 || pk.Columns[0] != "tenant_id" || pk.Columns[1] != "order_id" {
		t.Fatalf("pk columns out of order: %v", pk.Columns)
	}
}

func TestFirstColumn(t *testing.T) {
	res := dialect.Result{Rows: [][]any{{"alpha"}, {"beta"}, {42}, {}}}
	got := firstColumn(res)
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("got %v", got)
	}
}

func TestTableKind(t *testing.T) {
	if tableKind("VIEW") != dialect.KindView || tableKind("view") != dialect.KindView {
		t.Fatalf("view not recognized")
	}
	if tableKind("BASE TABLE") != dialect.KindBaseTable {
		t.Fatalf("base table not recognized")
	}
}

func TestToInt(t *testing.T) {
	if toInt(int32(7)) != 7 || toInt(int64(9)) != 9 || toInt(3) != 3 {
		t.Fatalf("integer conversions broken")
	}
	if toInt("x") != 0 || toInt(nil) != 0 {
		t.Fatalf("non-integers should yield 0")
	}
}

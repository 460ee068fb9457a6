package mysql

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tracktable/tracktable/pkg/dialect"
)

func newTestAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	conn, err := db.Conn(context.Background())
	if err != nil {
		t.Fatalf("pin connection: %v", err)
	}
	a := &Adapter{
		cfg:      dialect.ConnConfig{Host: "localhost", Port: 3306, Database: "shop"},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		db:       db,
		conn:     conn,
		activeDB: "shop",
	}
	t.Cleanup(func() {
		_ = conn.Close()
		_ = db.Close()
	})
	return a, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecuteBeforeConnect(t *testing.T) {
	a := &Adapter{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if _, err := a.Execute(context.Background(), "SELECT 1"); !errors.Is(err, dialect.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestListTables(t *testing.T) {
	a, mock := newTestAdapter(t)
	mock.ExpectQuery("SHOW FULL TABLES").WillReturnRows(
		sqlmock.NewRows([]string{"Tables_in_shop", "Table_type"}).
			AddRow("orders", "BASE TABLE").
			AddRow("order_summary", "VIEW"))

	tables, err := a.ListTables(context.Background(), "shop")
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[0].Name != "orders" || tables[0].Kind != dialect.KindBaseTable {
		t.Fatalf("table[0] = %+v", tables[0])
	}
	if tables[1].Name != "order_summary" || tables[1].Kind != dialect.KindView {
		t.Fatalf("table[1] = %+v", tables[1])
	}
	expectationsMet(t, mock)
}

func TestListTablesSwitchesDatabase(t *testing.T) {
	a, mock := newTestAdapter(t)
	mock.ExpectExec("USE `warehouse`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SHOW FULL TABLES").WillReturnRows(
		sqlmock.NewRows([]string{"Tables_in_warehouse", "Table_type"}).
			AddRow("stock", "BASE TABLE"))

	if _, err := a.ListTables(context.Background(), "warehouse"); err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if a.activeDB != "warehouse" {
		t.Fatalf("active database not updated: %q", a.activeDB)
	}
	expectationsMet(t, mock)
}

func TestListColumns(t *testing.T) {
	a, mock := newTestAdapter(t)
	header := []string{"Field", "Type", "Collation", "Null", "Key", "Default", "Extra"}
	mock.ExpectQuery("SHOW FULL COLUMNS FROM `orders`").WillReturnRows(
		sqlmock.NewRows(header).
			AddRow("id", "int(11)", nil, "NO", "PRI", nil, "auto_increment").
			AddRow("total", "decimal(10,2)", nil, "YES", "", "0.00", ""))

	columns, err := a.ListColumns(context.Background(), "shop", "orders")
	if err != nil {
		t.Fatalf("list columns: %v", err)
	}
	if len(columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(columns))
	}

	id := columns[0]
	if id.Name != "id" || !id.PrimaryKey || id.Nullable || id.Length != 11 || id.Ordinal != 1 {
		t.Fatalf("id = %+v", id)
	}
	total := columns[1]
	if total.Name != "total" || total.PrimaryKey || !total.Nullable {
		t.Fatalf("total = %+v", total)
	}
	if total.Precision != 10 || total.Scale != 2 {
		t.Fatalf("decimal args not parsed: %+v", total)
	}
	expectationsMet(t, mock)
}

func TestTransactionDepth(t *testing.T) {
	a, mock := newTestAdapter(t)
	ctx := context.Background()

	mock.ExpectExec("START TRANSACTION").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := a.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	// nested begin/commit must not touch the wire
	if err := a.Begin(ctx); err != nil {
		t.Fatalf("nested begin: %v", err)
	}
	if err := a.Commit(ctx); err != nil {
		t.Fatalf("inner commit: %v", err)
	}

	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := a.Commit(ctx); err != nil {
		t.Fatalf("outer commit: %v", err)
	}
	if a.txDepth != 0 {
		t.Fatalf("depth = %d after outer commit", a.txDepth)
	}

	// commit with no open transaction is a no-op
	if err := a.Commit(ctx); err != nil {
		t.Fatalf("idle commit: %v", err)
	}
	expectationsMet(t, mock)
}

func TestImplicitRollbackOnQueryFailure(t *testing.T) {
	a, mock := newTestAdapter(t)
	ctx := context.Background()

	mock.ExpectExec("START TRANSACTION").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := a.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}

	mock.ExpectExec("CREATE TABLE broken (").WillReturnError(errors.New("syntax error"))
	mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := a.Execute(ctx, "CREATE TABLE broken (")
	var qerr *dialect.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if a.txDepth != 0 {
		t.Fatalf("transaction still open after failure: depth %d", a.txDepth)
	}
	expectationsMet(t, mock)
}

func TestExecuteBatch(t *testing.T) {
	a, mock := newTestAdapter(t)

	mock.ExpectExec("START TRANSACTION").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE a (id INT)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b (id INT)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	err := a.ExecuteBatch(context.Background(), []string{
		"CREATE TABLE a (id INT)",
		"CREATE TABLE b (id INT)",
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	expectationsMet(t, mock)
}

func TestCurrentUser(t *testing.T) {
	a, mock := newTestAdapter(t)
	mock.ExpectQuery("SELECT CURRENT_USER()").WillReturnRows(
		sqlmock.NewRows([]string{"CURRENT_USER()"}).AddRow("app@%"))

	user, err := a.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if user != "app@%" {
		t.Fatalf("user = %q", user)
	}
	expectationsMet(t, mock)
}

func TestListDatabasesFiltersSystem(t *testing.T) {
	a, mock := newTestAdapter(t)
	mock.ExpectQuery("SHOW DATABASES").WillReturnRows(
		sqlmock.NewRows([]string{"Database"}).
			AddRow("shop").
			AddRow("information_schema").
			AddRow("mysql").
			AddRow("warehouse"))

	dbs, err := a.ListDatabases(context.Background())
	if err != nil {
		t.Fatalf("list databases: %v", err)
	}
	if len(dbs) != 2 || dbs[0] != "shop" || dbs[1] != "warehouse" {
		t.Fatalf("dbs = %v", dbs)
	}
	expectationsMet(t, mock)
}

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/tracktable/tracktable/pkg/dialect"
)

// Adapter is the MySQL dialect.Adapter. It pins one physical connection
// from the pool so session state, in particular the active database set by
// USE, survives across calls; every operation serializes on one mutex.
type Adapter struct {
	cfg    dialect.ConnConfig
	logger *slog.Logger

	mu       sync.Mutex
	db       *sql.DB
	conn     *sql.Conn
	activeDB string
	txDepth  int
}

func NewAdapter(cfg dialect.ConnConfig, logger *slog.Logger) dialect.Adapter {
	return &Adapter{cfg: cfg, logger: logger}
}

func (a *Adapter) dsn() string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		a.cfg.User, a.cfg.Password, a.cfg.Host, a.cfg.Port, a.cfg.Database)
	if a.cfg.Timeout > 0 {
		dsn += fmt.Sprintf("&timeout=%ds", int(a.cfg.Timeout.Seconds()))
	}
	return dsn
}

func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		return nil
	}

	db, err := sql.Open("mysql", a.dsn())
	if err != nil {
		return a.connectionError(err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return a.connectionError(err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return a.connectionError(err)
	}

	a.db = db
	a.conn = conn
	a.activeDB = a.cfg.Database
	a.txDepth = 0
	a.logger.Debug("mysql connected", "host", a.cfg.Host, "database", a.cfg.Database)
	return nil
}

func (a *Adapter) connectionError(err error) error {
	return &dialect.ConnectionError{
		Dialect: dialect.TagMySQL,
		Addr:    fmt.Sprintf("%s:%d/%s", a.cfg.Host, a.cfg.Port, a.cfg.Database),
		Err:     err,
	}
}

func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	if dbErr := a.db.Close(); err == nil {
		err = dbErr
	}
	a.conn = nil
	a.db = nil
	a.txDepth = 0
	return err
}

func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return dialect.ErrNotConnected
	}
	if err := a.conn.PingContext(ctx); err != nil {
		return &dialect.ConnectionError{Dialect: dialect.TagMySQL, Addr: a.cfg.Host, Err: err}
	}
	return nil
}

func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	res, err := a.Execute(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		name := asString(row[0])
		if isSystemDatabase(name) {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func isSystemDatabase(name string) bool {
	switch strings.ToLower(name) {
	case "mysql", "information_schema", "performance_schema", "sys":
		return true
	}
	return false
}

// ListSchemas treats schemas and databases as the same namespace, the
// MySQL convention. It switches the active database with USE, a stateful
// side effect on the pinned connection that later calls rely on.
func (a *Adapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	if database != "" {
		if err := a.useDatabase(ctx, database); err != nil {
			return nil, err
		}
	}
	return a.ListDatabases(ctx)
}

func (a *Adapter) useDatabase(ctx context.Context, database string) error {
	a.mu.Lock()
	if a.conn == nil {
		a.mu.Unlock()
		return dialect.ErrNotConnected
	}
	current := a.activeDB
	a.mu.Unlock()
	if current == database {
		return nil
	}
	if _, err := a.Execute(ctx, "USE "+quoteIdent(database)); err != nil {
		return err
	}
	a.mu.Lock()
	a.activeDB = database
	a.mu.Unlock()
	return nil
}

func (a *Adapter) ListTables(ctx context.Context, schema string) ([]dialect.TableMetadata, error) {
	if err := a.useDatabase(ctx, schema); err != nil {
		return nil, err
	}
	res, err := a.Execute(ctx, "SHOW FULL TABLES")
	if err != nil {
		return nil, err
	}
	tables := make([]dialect.TableMetadata, 0, len(res.Rows))
	for _, row := range res.Rows {
		kind := dialect.KindBaseTable
		if len(row) > 1 && strings.EqualFold(asString(row[1]), "VIEW") {
			kind = dialect.KindView
		}
		tables = append(tables, dialect.TableMetadata{
			Name:   asString(row[0]),
			Schema: schema,
			Kind:   kind,
		})
	}
	return tables, nil
}

// ListColumns reads SHOW FULL COLUMNS: declared types arrive with their
// length baked in (e.g. varchar(100)), and the Key marker carries primary
// key membership directly.
func (a *Adapter) ListColumns(ctx context.Context, schema, table string) ([]dialect.ColumnMetadata, error) {
	if err := a.useDatabase(ctx, schema); err != nil {
		return nil, err
	}
	res, err := a.Execute(ctx, fmt.Sprintf("SHOW FULL COLUMNS FROM %s", quoteIdent(table)))
	if err != nil {
		return nil, err
	}

	fieldIdx := columnIndex(res.Columns, "Field", 0)
	typeIdx := columnIndex(res.Columns, "Type", 1)
	nullIdx := columnIndex(res.Columns, "Null", 3)
	keyIdx := columnIndex(res.Columns, "Key", 4)
	defaultIdx := columnIndex(res.Columns, "Default", 5)

	columns := make([]dialect.ColumnMetadata, 0, len(res.Rows))
	for i, row := range res.Rows {
		col := dialect.ColumnMetadata{
			Name:         asString(row[fieldIdx]),
			DeclaredType: asString(row[typeIdx]),
			Nullable:     strings.EqualFold(asString(row[nullIdx]), "YES"),
			Ordinal:      i + 1,
			PrimaryKey:   strings.EqualFold(asString(row[keyIdx]), "PRI"),
		}
		if defaultIdx < len(row) {
			col.Default = asString(row[defaultIdx])
		}
		col.Length, col.Precision, col.Scale = parseTypeArgs(col.DeclaredType)
		columns = append(columns, col)
	}
	return columns, nil
}

// parseTypeArgs extracts (n) or (p,s) from a MySQL type literal.
func parseTypeArgs(declared string) (length, precision, scale int) {
	open := strings.IndexByte(declared, '(')
	closing := strings.IndexByte(declared, ')')
	if open < 0 || closing <= open {
		return 0, 0, 0
	}
	args := strings.Split(declared[open+1:closing], ",")
	switch len(args) {
	case 1:
		length = atoi(args[0])
	case 2:
		precision = atoi(args[0])
		scale = atoi(args[1])
	}
	return length, precision, scale
}

func atoi(s string) int {
	n := 0
	for _, ch := range strings.TrimSpace(s) {
		if ch < '0' || ch > '9' {
			return 0
		}
		n = n*10 + int(ch-'0')
	}
	return n
}

// ListConstraints is best-effort; on any failure it returns an empty set.
func (a *Adapter) ListConstraints(ctx context.Context, schema, table string) ([]dialect.ConstraintMetadata, error) {
	res, err := a.Execute(ctx,
		`SELECT constraint_name, column_name
		 FROM information_schema.key_column_usage
		 WHERE table_schema = ? AND table_name = ?
		 ORDER BY constraint_name, ordinal_position`, schema, table)
	if err != nil {
		a.logger.Warn("constraint introspection failed", "schema", schema, "table", table, "error", err)
		return nil, nil
	}
	out := make([]dialect.ConstraintMetadata, 0)
	index := make(map[string]int)
	for _, row := range res.Rows {
		name := asString(row[0])
		column := asString(row[1])
		i, ok := index[name]
		if !ok {
			ctype := "KEY"
			if name == "PRIMARY" {
				ctype = dialect.ConstraintPrimaryKey
			}
			index[name] = len(out)
			out = append(out, dialect.ConstraintMetadata{Name: name, Type: ctype})
			i = index[name]
		}
		out[i].Columns = append(out[i].Columns, column)
	}
	return out, nil
}

func (a *Adapter) Execute(ctx context.Context, query string, args ...any) (dialect.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return dialect.Result{}, dialect.ErrNotConnected
	}

	if returnsRows(query) {
		rows, err := a.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return dialect.Result{}, a.queryFailedLocked(ctx, query, err)
		}
		defer rows.Close()
		return collectRows(rows, func(err error) error {
			return a.queryFailedLocked(ctx, query, err)
		})
	}

	res, err := a.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return dialect.Result{}, a.queryFailedLocked(ctx, query, err)
	}
	affected, _ := res.RowsAffected()
	return dialect.Result{Affected: affected}, nil
}

func collectRows(rows *sql.Rows, fail func(error) error) (dialect.Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return dialect.Result{}, fail(err)
	}
	out := dialect.Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return dialect.Result{}, fail(err)
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return dialect.Result{}, fail(err)
	}
	return out, nil
}

func (a *Adapter) ExecuteBatch(ctx context.Context, queries []string) error {
	if err := a.Begin(ctx); err != nil {
		return err
	}
	for _, query := range queries {
		if _, err := a.Execute(ctx, query); err != nil {
			return err
		}
	}
	return a.Commit(ctx)
}

func (a *Adapter) Begin(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return dialect.ErrNotConnected
	}
	if a.txDepth == 0 {
		if _, err := a.conn.ExecContext(ctx, "START TRANSACTION"); err != nil {
			return &dialect.QueryError{Statement: "START TRANSACTION", Err: err}
		}
	}
	a.txDepth++
	return nil
}

func (a *Adapter) Commit(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return dialect.ErrNotConnected
	}
	if a.txDepth == 0 {
		return nil
	}
	a.txDepth--
	if a.txDepth == 0 {
		if _, err := a.conn.ExecContext(ctx, "COMMIT"); err != nil {
			return &dialect.QueryError{Statement: "COMMIT", Err: err}
		}
	}
	return nil
}

func (a *Adapter) Rollback(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rollbackLocked(ctx)
}

func (a *Adapter) rollbackLocked(ctx context.Context) error {
	if a.conn == nil {
		return dialect.ErrNotConnected
	}
	if a.txDepth == 0 {
		return nil
	}
	a.txDepth = 0
	if _, err := a.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return &dialect.QueryError{Statement: "ROLLBACK", Err: err}
	}
	return nil
}

func (a *Adapter) CurrentUser(ctx context.Context) (string, error) {
	res, err := a.Execute(ctx, "SELECT CURRENT_USER()")
	if err != nil {
		return "", err
	}
	if len(res.Rows) > 0 && len(res.Rows[0]) > 0 {
		if user := asString(res.Rows[0][0]); user != "" {
			return user, nil
		}
	}
	return "SYSTEM", nil
}

func (a *Adapter) queryFailedLocked(ctx context.Context, query string, err error) error {
	if a.txDepth > 0 {
		if rbErr := a.rollbackLocked(ctx); rbErr != nil {
			a.logger.Warn("implicit rollback failed", "error", rbErr)
		}
	}
	return &dialect.QueryError{Statement: query, Err: err}
}

func returnsRows(query string) bool {
	head := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "SHOW") ||
		strings.HasPrefix(head, "DESCRIBE") || strings.HasPrefix(head, "EXPLAIN")
}

// columnIndex locates a result column by name, falling back to the
// positional index SHOW statements have used across server versions.
func columnIndex(columns []string, name string, fallback int) int {
	for i, c := range columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return fallback
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tracktable/tracktable/pkg/dialect"
)

// Adapter is the Postgres dialect.Adapter. It holds one physical
// connection guarded by a mutex; database switches reconnect because a
// Postgres session is bound to a single database.
type Adapter struct {
	cfg    dialect.ConnConfig
	logger *slog.Logger

	mu      sync.Mutex
	conn    *pgx.Conn
	txDepth int
}

func NewAdapter(cfg dialect.ConnConfig, logger *slog.Logger) dialect.Adapter {
	return &Adapter{cfg: cfg, logger: logger}
}

func (a *Adapter) dsn() string {
	host := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(a.cfg.User, a.cfg.Password),
		Host:   host,
		Path:   "/" + a.cfg.Database,
	}
	q := url.Values{}
	if a.cfg.SSLMode != "" {
		q.Set("sslmode", a.cfg.SSLMode)
	}
	if a.cfg.Timeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(a.cfg.Timeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectLocked(ctx)
}

func (a *Adapter) connectLocked(ctx context.Context) error {
	if a.conn != nil {
		return nil
	}
	conn, err := pgx.Connect(ctx, a.dsn())
	if err != nil {
		return &dialect.ConnectionError{
			Dialect: dialect.TagPostgres,
			Addr:    fmt.Sprintf("%s:%d/%s", a.cfg.Host, a.cfg.Port, a.cfg.Database),
			Err:     err,
		}
	}
	a.conn = conn
	a.txDepth = 0
	a.logger.Debug("postgres connected", "host", a.cfg.Host, "database", a.cfg.Database)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close(ctx)
	a.conn = nil
	a.txDepth = 0
	return err
}

func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return dialect.ErrNotConnected
	}
	if err := a.conn.Ping(ctx); err != nil {
		return &dialect.ConnectionError{Dialect: dialect.TagPostgres, Addr: a.cfg.Host, Err: err}
	}
	return nil
}

func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	res, err := a.Execute(ctx,
		`SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname`)
	if err != nil {
		return nil, err
	}
	return firstColumn(res), nil
}

// ListSchemas switches the active database first when it differs from the
// current one. Postgres cannot change databases on a live session, so the
// switch reconnects under the same lock that serializes queries.
func (a *Adapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	if err := a.useDatabase(ctx, database); err != nil {
		return nil, err
	}
	res, err := a.Execute(ctx,
		`SELECT schema_name FROM information_schema.schemata
		 WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		 ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	return firstColumn(res), nil
}

func (a *Adapter) useDatabase(ctx context.Context, database string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return dialect.ErrNotConnected
	}
	if database == "" || database == a.cfg.Database {
		return nil
	}
	if a.txDepth > 0 {
		return &dialect.QueryError{
			Statement: "-- switch database",
			Err:       errors.New("cannot switch database inside an open transaction"),
		}
	}
	if err := a.conn.Close(ctx); err != nil {
		a.logger.Warn("closing connection before database switch", "error", err)
	}
	a.conn = nil
	a.cfg.Database = database
	return a.connectLocked(ctx)
}

func (a *Adapter) ListTables(ctx context.Context, schema string) ([]dialect.TableMetadata, error) {
	res, err := a.Execute(ctx,
		`SELECT table_name, table_type FROM information_schema.tables
		 WHERE table_schema = $1
		 ORDER BY table_name`, schema)
	if err != nil {
		return nil, err
	}
	tables := make([]dialect.TableMetadata, 0, len(res.Rows))
	for _, row := range res.Rows {
		name, _ := row[0].(string)
		kind, _ := row[1].(string)
		tables = append(tables, dialect.TableMetadata{
			Name:   name,
			Schema: schema,
			Kind:   tableKind(kind),
		})
	}
	return tables, nil
}

func tableKind(catalogType string) dialect.TableKind {
	if strings.EqualFold(catalogType, "VIEW") {
		return dialect.KindView
	}
	return dialect.KindBaseTable
}

func (a *Adapter) ListColumns(ctx context.Context, schema, table string) ([]dialect.ColumnMetadata, error) {
	res, err := a.Execute(ctx,
		`SELECT column_name,
		        data_type,
		        is_nullable,
		        COALESCE(column_default, ''),
		        ordinal_position,
		        COALESCE(character_maximum_length, 0),
		        COALESCE(numeric_precision, 0),
		        COALESCE(numeric_scale, 0)
		 FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, err
	}
	columns := make([]dialect.ColumnMetadata, 0, len(res.Rows))
	for _, row := range res.Rows {
		col := dialect.ColumnMetadata{}
		col.Name, _ = row[0].(string)
		col.DeclaredType, _ = row[1].(string)
		nullable, _ := row[2].(string)
		col.Nullable = strings.EqualFold(nullable, "YES")
		col.Default, _ = row[3].(string)
		col.Ordinal = toInt(row[4])
		col.Length = toInt(row[5])
		col.Precision = toInt(row[6])
		col.Scale = toInt(row[7])
		columns = append(columns, col)
	}
	return columns, nil
}

// ListConstraints is best-effort: introspection failures yield an empty
// result so callers can proceed without constraint knowledge.
func (a *Adapter) ListConstraints(ctx context.Context, schema, table string) ([]dialect.ConstraintMetadata, error) {
	res, err := a.Execute(ctx,
		`SELECT tc.constraint_name, tc.constraint_type, kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON kcu.constraint_name = tc.constraint_name
		  AND kcu.table_schema = tc.table_schema
		  AND kcu.table_name = tc.table_name
		 WHERE tc.table_schema = $1 AND tc.table_name = $2
		 ORDER BY tc.constraint_name, kcu.ordinal_position`, schema, table)
	if err != nil {
		a.logger.Warn("constraint introspection failed", "schema", schema, "table", table, "error", err)
		return nil, nil
	}
	return groupConstraints(res.Rows), nil
}

func groupConstraints(rows [][]any) []dialect.ConstraintMetadata {
	out := make([]dialect.ConstraintMetadata, 0)
	index := make(map[string]int)
	for _, row := range rows {
		name, _ := row[0].(string)
		ctype, _ := row[1].(string)
		column, _ := row[2].(string)
		i, ok := index[name]
		if !ok {
			index[name] = len(out)
			out = append(out, dialect.ConstraintMetadata{Name: name, Type: ctype})
			i = index[name]
		}
		out[i].Columns = append(out[i].Columns, column)
	}
	return out
}

// Execute runs one statement. Statements without parameters go through the
// simple protocol, which permits multi-statement DDL text. A failure inside
// an open transaction triggers an implicit rollback before the QueryError
// surfaces.
func (a *Adapter) Execute(ctx context.Context, query string, args ...any) (dialect.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return dialect.Result{}, dialect.ErrNotConnected
	}

	if len(args) == 0 && !returnsRows(query) {
		tag, err := a.conn.Exec(ctx, query)
		if err != nil {
			return dialect.Result{}, a.queryFailedLocked(ctx, query, err)
		}
		return dialect.Result{Affected: tag.RowsAffected()}, nil
	}

	rows, err := a.conn.Query(ctx, query, args...)
	if err != nil {
		return dialect.Result{}, a.queryFailedLocked(ctx, query, err)
	}
	defer rows.Close()

	var res dialect.Result
	for _, fd := range rows.FieldDescriptions() {
		res.Columns = append(res.Columns, string(fd.Name))
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			rows.Close()
			return dialect.Result{}, a.queryFailedLocked(ctx, query, err)
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return dialect.Result{}, a.queryFailedLocked(ctx, query, err)
	}
	res.Affected = rows.CommandTag().RowsAffected()
	return res, nil
}

// ExecuteBatch runs all statements inside one transaction; any failure
// rolls the whole batch back.
func (a *Adapter) ExecuteBatch(ctx context.Context, queries []string) error {
	if err := a.Begin(ctx); err != nil {
		return err
	}
	for _, query := range queries {
		if _, err := a.Execute(ctx, query); err != nil {
			// Execute already rolled the transaction back.
			return err
		}
	}
	return a.Commit(ctx)
}

// Begin opens a transaction on the first call; nested calls only deepen a
// counter, they are not savepoints.
func (a *Adapter) Begin(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return dialect.ErrNotConnected
	}
	if a.txDepth == 0 {
		if _, err := a.conn.Exec(ctx, "BEGIN"); err != nil {
			return wrapQueryError("BEGIN", err)
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
		if _, err := a.conn.Exec(ctx, "COMMIT"); err != nil {
			return wrapQueryError("COMMIT", err)
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
	if _, err := a.conn.Exec(ctx, "ROLLBACK"); err != nil {
		return wrapQueryError("ROLLBACK", err)
	}
	return nil
}

func (a *Adapter) CurrentUser(ctx context.Context) (string, error) {
	res, err := a.Execute(ctx, "SELECT CURRENT_USER")
	if err != nil {
		return "", err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return "SYSTEM", nil
	}
	if user, ok := res.Rows[0][0].(string); ok && user != "" {
		return user, nil
	}
	return "SYSTEM", nil
}

func (a *Adapter) queryFailedLocked(ctx context.Context, query string, err error) error {
	if a.txDepth > 0 {
		if rbErr := a.rollbackLocked(ctx); rbErr != nil {
			a.logger.Warn("implicit rollback failed", "error", rbErr)
		}
	}
	return wrapQueryError(query, err)
}

func wrapQueryError(query string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		err = fmt.Errorf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	}
	return &dialect.QueryError{Statement: query, Err: err}
}

func returnsRows(query string) bool {
	head := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "SHOW") ||
		strings.HasPrefix(head, "WITH")
}

func firstColumn(res dialect.Result) []string {
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		if s, ok := row[0].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}

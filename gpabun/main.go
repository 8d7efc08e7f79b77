// Package gpabun provides a Bun backed entity store for gpadmin resources
package gpabun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/iancoleman/strcase"
	"github.com/lemmego/gpadmin"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// =====================================
// Connection
// =====================================

// Open connects to the database described by config. Postgres goes through
// pgdriver unless Options["bun"]["postgres_driver"] is "pq".
func Open(config gpadmin.Config) (*bun.DB, error) {
	bunOpts, _ := config.Options["bun"].(map[string]interface{})

	var sqlDB *sql.DB
	var err error

	driver := strings.ToLower(config.Driver)
	switch driver {
	case "postgres", "postgresql":
		pq, _ := bunOpts["postgres_driver"].(string)
		sqlDB, err = createPostgresConnection(config, pq == "pq")
	case "mysql":
		sqlDB, err = createMySQLConnection(config)
	case "sqlite", "sqlite3":
		sqlDB, err = createSQLiteConnection(config)
	default:
		return nil, gpadmin.NewError(gpadmin.ErrorTypeUnsupported, fmt.Sprintf("unsupported driver: %s", config.Driver))
	}
	if err != nil {
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConnection, "failed to connect to database", err)
	}

	// Configure connection pool
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	var db *bun.DB
	switch driver {
	case "postgres", "postgresql":
		db = bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		db = bun.NewDB(sqlDB, mysqldialect.New())
	default:
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	}

	level := strings.ToLower(config.LogLevel)
	if l, ok := bunOpts["log_level"].(string); ok {
		level = strings.ToLower(l)
	}
	if level != "" && level != "silent" {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(level == "debug" || level == "info"),
		))
	}

	return db, nil
}

// SupportedDrivers returns the list of supported database drivers
func SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3"}
}

func createPostgresConnection(config gpadmin.Config, useLibPQ bool) (*sql.DB, error) {
	dsn := buildPostgresURL(config)
	if useLibPQ {
		return sql.Open("postgres", dsn)
	}
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
}

func createMySQLConnection(config gpadmin.Config) (*sql.DB, error) {
	return sql.Open("mysql", buildMySQLDSN(config))
}

func createSQLiteConnection(config gpadmin.Config) (*sql.DB, error) {
	return sql.Open("sqlite3", config.Database)
}

// buildPostgresURL builds a postgres:// connection URL
func buildPostgresURL(config gpadmin.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	mode := "disable"
	if config.SSL.Enabled && config.SSL.Mode != "" {
		mode = config.SSL.Mode
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.Username, config.Password),
		Host:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Path:     "/" + config.Database,
		RawQuery: "sslmode=" + mode,
	}
	return u.String()
}

// buildMySQLDSN builds a MySQL DSN
func buildMySQLDSN(config gpadmin.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	mysqlConfig := mysql.NewConfig()
	mysqlConfig.User = config.Username
	mysqlConfig.Passwd = config.Password
	mysqlConfig.Net = "tcp"
	mysqlConfig.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	mysqlConfig.DBName = config.Database
	mysqlConfig.ParseTime = true
	if config.SSL.Enabled {
		mysqlConfig.TLSConfig = config.SSL.Mode
	}
	return mysqlConfig.FormatDSN()
}

// =====================================
// Store Implementation
// =====================================

// Store implements gpadmin.Store for entities of type T
type Store[T any] struct {
	db bun.IDB
}

// New creates a store of T entities on db, which may be a *bun.DB or a bun.Tx
func New[T any](db bun.IDB) *Store[T] {
	return &Store[T]{db: db}
}

// DB returns the underlying Bun handle
func (s *Store[T]) DB() bun.IDB { return s.db }

// Create inserts a new entity
func (s *Store[T]) Create(ctx context.Context, entity *T) error {
	_, err := s.db.NewInsert().Model(entity).Exec(ctx)
	return convertBunError(err)
}

// FindByID retrieves an entity by primary key, applying opts (typically
// preloads) to the lookup
func (s *Store[T]) FindByID(ctx context.Context, id interface{}, opts ...gpadmin.QueryOption) (*T, error) {
	entity := new(T)
	err := s.buildSelectQuery(entity, opts...).Where("?TablePKs = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, convertBunError(err)
	}
	return entity, nil
}

// QueryOne returns the first entity matching opts
func (s *Store[T]) QueryOne(ctx context.Context, opts ...gpadmin.QueryOption) (*T, error) {
	entity := new(T)
	err := s.buildSelectQuery(entity, opts...).Limit(1).Scan(ctx)
	if err != nil {
		return nil, convertBunError(err)
	}
	return entity, nil
}

// Query returns every entity matching opts
func (s *Store[T]) Query(ctx context.Context, opts ...gpadmin.QueryOption) ([]*T, error) {
	entities := make([]*T, 0)
	err := s.buildSelectQuery(&entities, opts...).Scan(ctx)
	if err != nil {
		return nil, convertBunError(err)
	}
	return entities, nil
}

// Count returns the number of entities matching the conditions of opts
func (s *Store[T]) Count(ctx context.Context, opts ...gpadmin.QueryOption) (int64, error) {
	query := gpadmin.BuildQuery(opts...)
	q := s.db.NewSelect().Model((*T)(nil))
	for _, condition := range query.Conditions {
		q = applyCondition(q, condition, false)
	}

	count, err := q.Count(ctx)
	return int64(count), convertBunError(err)
}

// Update writes the given columns of entity
func (s *Store[T]) Update(ctx context.Context, entity *T, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	q := s.db.NewUpdate().Model(entity)
	for name, value := range updates {
		q = q.Set("? = ?", bun.Ident(name), value)
	}

	_, err := q.WherePK().Exec(ctx)
	return convertBunError(err)
}

// Delete removes entity by its primary key
func (s *Store[T]) Delete(ctx context.Context, entity *T) error {
	result, err := s.db.NewDelete().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return convertBunError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return convertBunError(err)
	}
	if rowsAffected == 0 {
		return gpadmin.NewError(gpadmin.ErrorTypeNotFound, "entity not found")
	}
	return nil
}

// Transaction runs fn with a store bound to a database transaction. A store
// that already wraps a transaction runs fn directly.
func (s *Store[T]) Transaction(ctx context.Context, fn gpadmin.TransactionFunc[T]) error {
	var db *bun.DB
	switch conn := s.db.(type) {
	case *bun.DB:
		db = conn
	case bun.Tx:
		return fn(&Store[T]{db: conn})
	default:
		return gpadmin.NewError(gpadmin.ErrorTypeTransaction, "unable to start transaction: invalid database type")
	}

	var fnErr error
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		fnErr = fn(&Store[T]{db: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeTransaction, "transaction failed", err)
	}
	return nil
}

// =====================================
// Query Building Helpers
// =====================================

// buildSelectQuery builds a Bun select query from query options
func (s *Store[T]) buildSelectQuery(dest interface{}, opts ...gpadmin.QueryOption) *bun.SelectQuery {
	query := gpadmin.BuildQuery(opts...)

	q := s.db.NewSelect().Model(dest)

	// Apply relation loading first so joined columns are qualified
	for _, preload := range query.Preloads {
		q = q.Relation(relationName(preload))
	}

	for _, condition := range query.Conditions {
		q = applyCondition(q, condition, false)
	}

	for _, order := range query.Orders {
		expr := column(order.Field) + " ASC"
		if order.Direction == gpadmin.OrderDesc {
			expr = column(order.Field) + " DESC"
		}
		q = q.OrderExpr(expr, bun.Ident(order.Field))
	}

	if query.Limit != nil {
		q = q.Limit(*query.Limit)
	}
	if query.Offset != nil {
		q = q.Offset(*query.Offset)
	}

	return q
}

// relationName maps a relation path ("author.company") to the Bun
// relation names ("Author.Company")
func relationName(relation string) string {
	parts := strings.Split(relation, ".")
	for i, p := range parts {
		parts[i] = strcase.ToCamel(p)
	}
	return strings.Join(parts, ".")
}

// column returns the placeholder for a column of the queried model. Bare
// names are qualified with the model alias since relations add joins.
func column(field string) string {
	if strings.Contains(field, ".") {
		return "?"
	}
	return "?TableAlias.?"
}

// applyCondition adds condition to q, OR-ed with the previous conditions
// when or is set
func applyCondition(q *bun.SelectQuery, condition gpadmin.Condition, or bool) *bun.SelectQuery {
	switch cond := condition.(type) {
	case gpadmin.CompositeCondition:
		if len(cond.Conditions) == 0 {
			return q
		}
		sep := " AND "
		if or {
			sep = " OR "
		}
		return q.WhereGroup(sep, func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, sub := range cond.Conditions {
				q = applyCondition(q, sub, cond.Logic == gpadmin.LogicOr)
			}
			return q
		})
	default:
		expr, args := conditionExpression(condition)
		if or {
			return q.WhereOr(expr, args...)
		}
		return q.Where(expr, args...)
	}
}

// conditionExpression renders a basic condition with the column as an
// identifier argument
func conditionExpression(condition gpadmin.Condition) (string, []interface{}) {
	field := condition.Field()
	col := column(field)
	ident := bun.Ident(field)
	value := condition.Value()

	switch condition.Operator() {
	case gpadmin.OpIn:
		return col + " IN (?)", []interface{}{ident, bun.In(toSlice(value))}
	case gpadmin.OpNotIn:
		return col + " NOT IN (?)", []interface{}{ident, bun.In(toSlice(value))}
	case gpadmin.OpIsNull, gpadmin.OpIsNotNull:
		return col + " " + string(condition.Operator()), []interface{}{ident}
	case gpadmin.OpNotEqual:
		return col + " <> ?", []interface{}{ident, value}
	default:
		return col + " " + string(condition.Operator()) + " ?", []interface{}{ident, value}
	}
}

func toSlice(value interface{}) []interface{} {
	if values, ok := value.([]interface{}); ok {
		return values
	}
	return []interface{}{value}
}

// =====================================
// Error Conversion
// =====================================

// convertBunError converts Bun and driver errors to gpadmin errors
func convertBunError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeNotFound, "record not found", err)
	}
	if errors.Is(err, sql.ErrTxDone) {
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeTransaction, "transaction already finished", err)
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		code := pgErr.Field('C')
		var e gpadmin.Error
		switch {
		case code == "23505":
			e = gpadmin.NewErrorWithCode(gpadmin.ErrorTypeDuplicate, "duplicate key violation", code)
		case pgErr.IntegrityViolation():
			e = gpadmin.NewErrorWithCode(gpadmin.ErrorTypeConstraint, "constraint violation", code)
		default:
			e = gpadmin.NewErrorWithCode(gpadmin.ErrorTypeDatabase, pgErr.Field('M'), code)
		}
		e.Cause = err
		return e
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "duplicate") || strings.Contains(errStr, "unique"):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeDuplicate, "duplicate key violation", err)
	case strings.Contains(errStr, "foreign key") || strings.Contains(errStr, "constraint"):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConstraint, "constraint violation", err)
	case strings.Contains(errStr, "timeout"):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeTimeout, "operation timeout", err)
	case strings.Contains(errStr, "connection"):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConnection, "connection error", err)
	}
	return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeDatabase, "database operation failed", err)
}

var _ gpadmin.Store[struct{}] = (*Store[struct{}])(nil)

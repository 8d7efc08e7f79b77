// Package gpagorm provides a GORM backed entity store for gpadmin resources
package gpagorm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/lemmego/gpadmin"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// =====================================
// Connection
// =====================================

// Open connects to the database described by config. The GORM log level
// comes from config.LogLevel, or from Options["gorm"]["log_level"].
func Open(config gpadmin.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(config.LogLevel)),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
	}

	// Apply custom configurations from options
	if options, ok := config.Options["gorm"]; ok {
		if gormOpts, ok := options.(map[string]interface{}); ok {
			if level, ok := gormOpts["log_level"].(string); ok {
				gormConfig.Logger = logger.Default.LogMode(logLevel(level))
			}
			if singularTable, ok := gormOpts["singular_table"].(bool); ok {
				gormConfig.NamingStrategy = schema.NamingStrategy{
					SingularTable: singularTable,
				}
			}
		}
	}

	var dialector gorm.Dialector
	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(buildPostgresDSN(config))
	case "mysql":
		dialector = mysql.Open(buildMySQLDSN(config))
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(config.Database)
	case "sqlserver", "mssql":
		dialector = sqlserver.Open(buildSQLServerDSN(config))
	default:
		return nil, gpadmin.NewError(gpadmin.ErrorTypeUnsupported, fmt.Sprintf("unsupported driver: %s", config.Driver))
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConnection, "failed to connect to database", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConnection, "failed to get underlying sql.DB", err)
	}
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

	return db, nil
}

// SupportedDrivers returns the list of supported database drivers
func SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3", "sqlserver", "mssql"}
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent", "":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	default:
		return logger.Info
	}
}

// =====================================
// Store Implementation
// =====================================

// Store implements gpadmin.Store for entities of type T
type Store[T any] struct {
	db *gorm.DB
}

// New creates a store of T entities on db
func New[T any](db *gorm.DB) *Store[T] {
	return &Store[T]{db: db}
}

// DB returns the underlying GORM handle
func (s *Store[T]) DB() *gorm.DB { return s.db }

// Create inserts a new entity
func (s *Store[T]) Create(ctx context.Context, entity *T) error {
	result := s.db.WithContext(ctx).Create(entity)
	return convertGormError(result.Error)
}

// FindByID retrieves an entity by primary key, applying opts (typically
// preloads) to the lookup
func (s *Store[T]) FindByID(ctx context.Context, id interface{}, opts ...gpadmin.QueryOption) (*T, error) {
	var entity T
	result := s.buildQuery(ctx, opts...).
		Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).
		Take(&entity)
	if result.Error != nil {
		return nil, convertGormError(result.Error)
	}
	return &entity, nil
}

// QueryOne returns the first entity matching opts
func (s *Store[T]) QueryOne(ctx context.Context, opts ...gpadmin.QueryOption) (*T, error) {
	var entity T
	result := s.buildQuery(ctx, opts...).Take(&entity)
	if result.Error != nil {
		return nil, convertGormError(result.Error)
	}
	return &entity, nil
}

// Query returns every entity matching opts
func (s *Store[T]) Query(ctx context.Context, opts ...gpadmin.QueryOption) ([]*T, error) {
	var entities []*T
	result := s.buildQuery(ctx, opts...).Find(&entities)
	if result.Error != nil {
		return nil, convertGormError(result.Error)
	}
	return entities, nil
}

// Count returns the number of entities matching the conditions of opts
func (s *Store[T]) Count(ctx context.Context, opts ...gpadmin.QueryOption) (int64, error) {
	query := gpadmin.BuildQuery(opts...)
	db := s.db.WithContext(ctx).Model(new(T))
	for _, condition := range query.Conditions {
		db = applyCondition(db, condition)
	}

	var count int64
	result := db.Count(&count)
	return count, convertGormError(result.Error)
}

// Update writes the given columns of entity
func (s *Store[T]) Update(ctx context.Context, entity *T, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(entity).Updates(updates)
	return convertGormError(result.Error)
}

// Delete removes entity by its primary key
func (s *Store[T]) Delete(ctx context.Context, entity *T) error {
	result := s.db.WithContext(ctx).Delete(entity)
	if result.Error != nil {
		return convertGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return gpadmin.NewError(gpadmin.ErrorTypeNotFound, "entity not found")
	}
	return nil
}

// Transaction runs fn with a store bound to a database transaction
func (s *Store[T]) Transaction(ctx context.Context, fn gpadmin.TransactionFunc[T]) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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

// buildQuery builds a GORM query from query options
func (s *Store[T]) buildQuery(ctx context.Context, opts ...gpadmin.QueryOption) *gorm.DB {
	query := gpadmin.BuildQuery(opts...)

	db := s.db.WithContext(ctx).Model(new(T))

	// Apply conditions
	for _, condition := range query.Conditions {
		db = applyCondition(db, condition)
	}

	// Apply ordering
	for _, order := range query.Orders {
		db = db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: order.Field},
			Desc:   order.Direction == gpadmin.OrderDesc,
		})
	}

	if query.Limit != nil {
		db = db.Limit(*query.Limit)
	}
	if query.Offset != nil {
		db = db.Offset(*query.Offset)
	}

	// Apply preloads
	for _, preload := range query.Preloads {
		db = db.Preload(preloadName(preload))
	}

	return db
}

// preloadName maps a relation path ("author.company") to the GORM
// association names ("Author.Company")
func preloadName(relation string) string {
	parts := strings.Split(relation, ".")
	for i, p := range parts {
		parts[i] = strcase.ToCamel(p)
	}
	return strings.Join(parts, ".")
}

// applyCondition applies a condition to the GORM query
func applyCondition(db *gorm.DB, condition gpadmin.Condition) *gorm.DB {
	if expr := toExpression(condition); expr != nil {
		return db.Where(expr)
	}
	return db
}

// toExpression converts a condition to a GORM clause. Column names are
// quoted by the dialect.
func toExpression(condition gpadmin.Condition) clause.Expression {
	switch cond := condition.(type) {
	case gpadmin.BasicCondition:
		return basicExpression(cond)
	case gpadmin.CompositeCondition:
		exprs := make([]clause.Expression, 0, len(cond.Conditions))
		for _, sub := range cond.Conditions {
			if e := toExpression(sub); e != nil {
				exprs = append(exprs, e)
			}
		}
		if len(exprs) == 0 {
			return nil
		}
		if cond.Logic == gpadmin.LogicOr {
			return clause.Or(exprs...)
		}
		return clause.And(exprs...)
	default:
		return clause.Expr{SQL: condition.String(), Vars: []interface{}{condition.Value()}}
	}
}

// basicExpression converts a basic condition
func basicExpression(condition gpadmin.BasicCondition) clause.Expression {
	column := clause.Column{Name: condition.Field()}
	value := condition.Value()

	switch condition.Operator() {
	case gpadmin.OpEqual:
		return clause.Eq{Column: column, Value: value}
	case gpadmin.OpNotEqual:
		return clause.Neq{Column: column, Value: value}
	case gpadmin.OpGreaterThan:
		return clause.Gt{Column: column, Value: value}
	case gpadmin.OpGreaterThanOrEqual:
		return clause.Gte{Column: column, Value: value}
	case gpadmin.OpLessThan:
		return clause.Lt{Column: column, Value: value}
	case gpadmin.OpLessThanOrEqual:
		return clause.Lte{Column: column, Value: value}
	case gpadmin.OpLike:
		return clause.Like{Column: column, Value: value}
	case gpadmin.OpNotLike:
		return clause.Not(clause.Like{Column: column, Value: value})
	case gpadmin.OpIn:
		return clause.IN{Column: column, Values: toSlice(value)}
	case gpadmin.OpNotIn:
		return clause.Not(clause.IN{Column: column, Values: toSlice(value)})
	case gpadmin.OpIsNull:
		return clause.Eq{Column: column, Value: nil}
	case gpadmin.OpIsNotNull:
		return clause.Neq{Column: column, Value: nil}
	default:
		return clause.Expr{SQL: "? " + string(condition.Operator()) + " ?", Vars: []interface{}{column, value}}
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

// convertGormError converts GORM errors to gpadmin errors
func convertGormError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeNotFound, "record not found", err)
	case errors.Is(err, gorm.ErrInvalidTransaction):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeTransaction, "invalid transaction", err)
	case errors.Is(err, gorm.ErrNotImplemented), errors.Is(err, gorm.ErrUnsupportedRelation):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeUnsupported, "operation not supported", err)
	case errors.Is(err, gorm.ErrMissingWhereClause), errors.Is(err, gorm.ErrPrimaryKeyRequired),
		errors.Is(err, gorm.ErrModelValueRequired), errors.Is(err, gorm.ErrInvalidData):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeValidation, "invalid statement", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeDuplicate, "duplicate key violation", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConstraint, "constraint violation", err)
	}

	// Check for common database constraint errors
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

// =====================================
// DSN Builders
// =====================================

// buildPostgresDSN builds a PostgreSQL DSN
func buildPostgresDSN(config gpadmin.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database)

	if config.SSL.Enabled {
		dsn += " sslmode=" + config.SSL.Mode
		if config.SSL.CertFile != "" {
			dsn += " sslcert=" + config.SSL.CertFile
		}
		if config.SSL.KeyFile != "" {
			dsn += " sslkey=" + config.SSL.KeyFile
		}
		if config.SSL.CAFile != "" {
			dsn += " sslrootcert=" + config.SSL.CAFile
		}
	} else {
		dsn += " sslmode=disable"
	}

	return dsn
}

// buildMySQLDSN builds a MySQL DSN
func buildMySQLDSN(config gpadmin.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	if config.SSL.Enabled {
		dsn += "&tls=" + config.SSL.Mode
	}

	return dsn
}

// buildSQLServerDSN builds a SQL Server DSN
func buildSQLServerDSN(config gpadmin.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)
}

var _ gpadmin.Store[struct{}] = (*Store[struct{}])(nil)

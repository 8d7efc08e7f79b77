package gpadmin

import (
	"strings"
	"time"
)

// =====================================
// Core Types and Constants
// =====================================

// Config represents database connection configuration shared by the store adapters
type Config struct {
	// Connection details
	Driver        string `json:"driver" yaml:"driver" mapstructure:"driver"`
	ConnectionURL string `json:"connection_url" yaml:"connection_url" mapstructure:"connection_url"`
	Host          string `json:"host" yaml:"host" mapstructure:"host"`
	Port          int    `json:"port" yaml:"port" mapstructure:"port"`
	Database      string `json:"database" yaml:"database" mapstructure:"database"`
	Username      string `json:"username" yaml:"username" mapstructure:"username"`
	Password      string `json:"password" yaml:"password" mapstructure:"password"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`

	// LogLevel is the adapter query log level: silent, error, warn, info or debug
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// Additional options
	Options map[string]interface{} `json:"options" yaml:"options" mapstructure:"options"`

	// SSL/TLS configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl" mapstructure:"ssl"`
}

// SSLConfig represents SSL/TLS configuration
type SSLConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Mode     string `json:"mode" yaml:"mode" mapstructure:"mode"`
	CertFile string `json:"cert_file" yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file" mapstructure:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file" mapstructure:"ca_file"`
}

// Operator represents query operators
type Operator string

const (
	OpEqual              Operator = "="
	OpNotEqual           Operator = "!="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpLike               Operator = "LIKE"
	OpNotLike            Operator = "NOT LIKE"
	OpIn                 Operator = "IN"
	OpNotIn              Operator = "NOT IN"
	OpIsNull             Operator = "IS NULL"
	OpIsNotNull          Operator = "IS NOT NULL"
)

// LogicOperator represents logic operators for combining conditions
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Order represents sorting order
type Order struct {
	Field     string
	Direction OrderDirection
}

// OrderDirection represents sort direction
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// ParseDirection maps a free-form request value to a sort direction.
// Anything other than "desc" (case-insensitive) sorts ascending.
func ParseDirection(s string) OrderDirection {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return OrderDesc
	}
	return OrderAsc
}

// FormContext tells the validation markup generator which form is rendered
type FormContext string

const (
	FormCreate FormContext = "create"
	FormEdit   FormContext = "edit"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeDuplicate       ErrorType = "duplicate"
	ErrorTypeConnection      ErrorType = "connection"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypePermission      ErrorType = "permission"
	ErrorTypeConstraint      ErrorType = "constraint"
	ErrorTypeTransaction     ErrorType = "transaction"
	ErrorTypeUnsupported     ErrorType = "unsupported"
	ErrorTypeInternal        ErrorType = "internal"
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeDatabase        ErrorType = "database"
	ErrorTypeConfiguration   ErrorType = "configuration"
)

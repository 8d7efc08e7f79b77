package gpadmin

import (
	"strings"
)

// =====================================
// Query Building
// =====================================

// QueryOption mutates a Query. Stores translate the resulting Query into
// their own dialect.
type QueryOption interface {
	Apply(query *Query)
}

// Query represents a backend neutral list query
type Query struct {
	Conditions []Condition
	Orders     []Order
	Limit      *int
	Offset     *int
	Preloads   []string
}

// Condition represents a query condition
type Condition interface {
	Field() string
	Operator() Operator
	Value() interface{}
	String() string
}

// BasicCondition implements Condition
type BasicCondition struct {
	FieldName string
	Op        Operator
	Val       interface{}
}

func (c BasicCondition) Field() string      { return c.FieldName }
func (c BasicCondition) Operator() Operator { return c.Op }
func (c BasicCondition) Value() interface{} { return c.Val }
func (c BasicCondition) String() string {
	switch c.Op {
	case OpIsNull, OpIsNotNull:
		return c.FieldName + " " + string(c.Op)
	}
	return c.FieldName + " " + string(c.Op) + " ?"
}

// CompositeCondition for AND/OR operations
type CompositeCondition struct {
	Conditions []Condition
	Logic      LogicOperator
}

func (c CompositeCondition) Field() string      { return "" }
func (c CompositeCondition) Operator() Operator { return "" }
func (c CompositeCondition) Value() interface{} { return nil }
func (c CompositeCondition) String() string {
	if len(c.Conditions) == 0 {
		return ""
	}

	parts := make([]string, 0, len(c.Conditions))
	for _, cond := range c.Conditions {
		parts = append(parts, cond.String())
	}

	return "(" + strings.Join(parts, " "+string(c.Logic)+" ") + ")"
}

// =====================================
// Query Option Implementations
// =====================================

// ConditionOption implements QueryOption for basic conditions
type ConditionOption struct {
	Condition Condition
}

func (o ConditionOption) Apply(query *Query) {
	query.Conditions = append(query.Conditions, o.Condition)
}

// CompositeConditionOption implements QueryOption for composite conditions
type CompositeConditionOption struct {
	Conditions []Condition
	Logic      LogicOperator
}

func (o CompositeConditionOption) Apply(query *Query) {
	if len(o.Conditions) == 0 {
		return
	}
	query.Conditions = append(query.Conditions, CompositeCondition{
		Conditions: o.Conditions,
		Logic:      o.Logic,
	})
}

// OrderOption implements QueryOption for ordering
type OrderOption struct {
	Order Order
}

func (o OrderOption) Apply(query *Query) {
	query.Orders = append(query.Orders, o.Order)
}

// LimitOption implements QueryOption for limiting results
type LimitOption struct {
	Count int
}

func (o LimitOption) Apply(query *Query) {
	n := o.Count
	query.Limit = &n
}

// OffsetOption implements QueryOption for result offset
type OffsetOption struct {
	Count int
}

func (o OffsetOption) Apply(query *Query) {
	n := o.Count
	query.Offset = &n
}

// PreloadOption implements QueryOption for eager loading
type PreloadOption struct {
	Relations []string
}

func (o PreloadOption) Apply(query *Query) {
	query.Preloads = append(query.Preloads, o.Relations...)
}

// =====================================
// Query Builder Functions
// =====================================

// Where creates a basic WHERE condition
func Where(field string, operator Operator, value interface{}) QueryOption {
	return ConditionOption{Condition: WhereCondition(field, operator, value)}
}

// WhereCondition builds a bare condition for use inside AndOption / OrOption
func WhereCondition(field string, operator Operator, value interface{}) Condition {
	return BasicCondition{
		FieldName: field,
		Op:        operator,
		Val:       value,
	}
}

// WhereIn creates a WHERE IN condition
func WhereIn(field string, values []interface{}) QueryOption {
	return Where(field, OpIn, values)
}

// WhereLike creates a WHERE LIKE condition
func WhereLike(field string, value string) QueryOption {
	return Where(field, OpLike, value)
}

// WhereNull creates a WHERE IS NULL condition
func WhereNull(field string) QueryOption {
	return Where(field, OpIsNull, nil)
}

// AndOption creates an AND composite condition
func AndOption(conditions ...Condition) QueryOption {
	return CompositeConditionOption{
		Conditions: conditions,
		Logic:      LogicAnd,
	}
}

// OrOption creates an OR composite condition
func OrOption(conditions ...Condition) QueryOption {
	return CompositeConditionOption{
		Conditions: conditions,
		Logic:      LogicOr,
	}
}

// OrderBy creates an ordering option
func OrderBy(field string, direction OrderDirection) QueryOption {
	return OrderOption{
		Order: Order{
			Field:     field,
			Direction: direction,
		},
	}
}

// Limit creates a limit option
func Limit(count int) QueryOption {
	return LimitOption{Count: count}
}

// Offset creates an offset option
func Offset(count int) QueryOption {
	return OffsetOption{Count: count}
}

// Preload creates a preload option for eager loading
func Preload(relations ...string) QueryOption {
	return PreloadOption{Relations: relations}
}

// NewQuery creates a new empty query
func NewQuery() *Query {
	return &Query{
		Conditions: make([]Condition, 0),
		Orders:     make([]Order, 0),
		Preloads:   make([]string, 0),
	}
}

// BuildQuery applies opts in order to a fresh Query
func BuildQuery(opts ...QueryOption) *Query {
	q := NewQuery()
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(q)
		}
	}
	return q
}

// String returns a readable rendering of the query, used in debug logs
func (q *Query) String() string {
	if q == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("WHERE ")
	if len(q.Conditions) == 0 {
		b.WriteString("1")
	}
	for i, c := range q.Conditions {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(c.String())
	}
	for i, o := range q.Orders {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(o.Field + " " + string(o.Direction))
	}
	return b.String()
}

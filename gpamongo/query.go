package gpamongo

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lemmego/gpadmin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// =====================================
// Filter Building
// =====================================

// buildFilter converts conditions to a MongoDB filter. Multiple conditions
// are AND-ed.
func buildFilter(conditions []gpadmin.Condition) bson.M {
	filters := make([]bson.M, 0, len(conditions))
	for _, condition := range conditions {
		if f := buildCondition(condition); len(f) > 0 {
			filters = append(filters, f)
		}
	}

	switch len(filters) {
	case 0:
		return bson.M{}
	case 1:
		return filters[0]
	default:
		return bson.M{"$and": filters}
	}
}

// buildCondition converts a single condition
func buildCondition(condition gpadmin.Condition) bson.M {
	cond, ok := condition.(gpadmin.CompositeCondition)
	if !ok {
		return operatorFilter(fieldName(condition.Field()), condition.Operator(), condition.Value())
	}

	filters := make([]bson.M, 0, len(cond.Conditions))
	for _, sub := range cond.Conditions {
		if f := buildCondition(sub); len(f) > 0 {
			filters = append(filters, f)
		}
	}
	if len(filters) == 0 {
		return bson.M{}
	}
	if cond.Logic == gpadmin.LogicOr {
		return bson.M{"$or": filters}
	}
	return bson.M{"$and": filters}
}

// operatorFilter builds the filter for one field and operator
func operatorFilter(field string, operator gpadmin.Operator, value interface{}) bson.M {
	// String ids are matched as ObjectIDs when they parse as one
	if field == "_id" {
		value = objectID(value)
	}

	switch operator {
	case gpadmin.OpEqual:
		return bson.M{field: value}
	case gpadmin.OpNotEqual:
		return bson.M{field: bson.M{"$ne": value}}
	case gpadmin.OpGreaterThan:
		return bson.M{field: bson.M{"$gt": value}}
	case gpadmin.OpGreaterThanOrEqual:
		return bson.M{field: bson.M{"$gte": value}}
	case gpadmin.OpLessThan:
		return bson.M{field: bson.M{"$lt": value}}
	case gpadmin.OpLessThanOrEqual:
		return bson.M{field: bson.M{"$lte": value}}
	case gpadmin.OpLike:
		return bson.M{field: primitive.Regex{Pattern: likePattern(fmt.Sprint(value)), Options: "is"}}
	case gpadmin.OpNotLike:
		return bson.M{field: bson.M{"$not": primitive.Regex{Pattern: likePattern(fmt.Sprint(value)), Options: "is"}}}
	case gpadmin.OpIn:
		return bson.M{field: bson.M{"$in": ids(field, value)}}
	case gpadmin.OpNotIn:
		return bson.M{field: bson.M{"$nin": ids(field, value)}}
	case gpadmin.OpIsNull:
		return bson.M{field: nil}
	case gpadmin.OpIsNotNull:
		return bson.M{field: bson.M{"$ne": nil}}
	default:
		return bson.M{field: value}
	}
}

func ids(field string, value interface{}) interface{} {
	values, ok := value.([]interface{})
	if !ok || field != "_id" {
		return value
	}
	converted := make([]interface{}, len(values))
	for i, v := range values {
		converted[i] = objectID(v)
	}
	return converted
}

// likePattern converts a SQL LIKE pattern to an anchored regular
// expression: % matches any run of characters and _ a single one
func likePattern(like string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range like {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// fieldName maps resource column names to document keys
func fieldName(name string) string {
	if strings.EqualFold(name, "id") {
		return "_id"
	}
	return name
}

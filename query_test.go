package gpadmin

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicCondition(t *testing.T) {
	condition := BasicCondition{FieldName: "age", Op: OpGreaterThan, Val: 18}

	assert.Equal(t, "age", condition.Field())
	assert.Equal(t, OpGreaterThan, condition.Operator())
	assert.Equal(t, 18, condition.Value())
	assert.Equal(t, "age > ?", condition.String())
	assert.Equal(t, "deleted_at IS NULL", BasicCondition{FieldName: "deleted_at", Op: OpIsNull}.String())
}

func TestCompositeCondition(t *testing.T) {
	condition := CompositeCondition{
		Conditions: []Condition{
			WhereCondition("name", OpLike, "%a%"),
			WhereCondition("email", OpLike, "%a%"),
		},
		Logic: LogicOr,
	}
	assert.Equal(t, "(name LIKE ? OR email LIKE ?)", condition.String())
	assert.Equal(t, "", CompositeCondition{}.String())
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(
		Where("status", OpEqual, "active"),
		WhereIn("role", []interface{}{"admin", "editor"}),
		WhereLike("name", "%ada%"),
		WhereNull("deleted_at"),
		OrOption(WhereCondition("a", OpEqual, 1), WhereCondition("b", OpEqual, 2)),
		AndOption(),
		OrderBy("name", OrderDesc),
		Limit(10),
		Offset(20),
		Preload("author", "comments"),
		nil,
	)

	require.Len(t, q.Conditions, 5, "empty composites are dropped")
	assert.Equal(t, OpIn, q.Conditions[1].Operator())
	assert.Equal(t, []Order{{Field: "name", Direction: OrderDesc}}, q.Orders)
	require.NotNil(t, q.Limit)
	require.NotNil(t, q.Offset)
	assert.Equal(t, 10, *q.Limit)
	assert.Equal(t, 20, *q.Offset)
	assert.Equal(t, []string{"author", "comments"}, q.Preloads)
	assert.Equal(t,
		"WHERE status = ? AND role IN ? AND name LIKE ? AND deleted_at IS NULL AND (a = ? OR b = ?) ORDER BY name DESC",
		q.String())
}

func TestEmptyQuery(t *testing.T) {
	q := BuildQuery()
	assert.Empty(t, q.Conditions)
	assert.Nil(t, q.Limit)
	assert.Equal(t, "WHERE 1", q.String())

	var nilQuery *Query
	assert.Equal(t, "", nilQuery.String())
}

func TestParseDirection(t *testing.T) {
	assert.Equal(t, OrderDesc, ParseDirection("desc"))
	assert.Equal(t, OrderDesc, ParseDirection(" DESC "))
	assert.Equal(t, OrderAsc, ParseDirection("asc"))
	assert.Equal(t, OrderAsc, ParseDirection(""))
	assert.Equal(t, OrderAsc, ParseDirection("descending"))
}

func TestParseListRequest(t *testing.T) {
	values, err := url.ParseQuery("search=+foo+&sort=name&sort_order=desc&page=3")
	require.NoError(t, err)

	req := ParseListRequest(values)
	assert.Equal(t, ListRequest{Search: "foo", Sort: "name", SortOrder: "desc", Page: 3}, req)
	assert.Equal(t, OrderDesc, req.Direction())

	req = ParseListRequest(url.Values{"page": {"-2"}})
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, OrderAsc, req.Direction())

	req = ParseListRequest(url.Values{"page": {"abc"}})
	assert.Equal(t, 1, req.Page)
}

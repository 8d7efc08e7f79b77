package gpamongo

import (
	"errors"
	"regexp"
	"testing"

	"github.com/lemmego/gpadmin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestBuildFilter(t *testing.T) {
	q := gpadmin.BuildQuery(
		gpadmin.Where("published", gpadmin.OpEqual, true),
		gpadmin.Where("order", gpadmin.OpGreaterThanOrEqual, 2),
		gpadmin.WhereNull("author_id"),
	)

	assert.Equal(t, bson.M{"$and": []bson.M{
		{"published": true},
		{"order": bson.M{"$gte": 2}},
		{"author_id": nil},
	}}, buildFilter(q.Conditions))

	assert.Equal(t, bson.M{}, buildFilter(nil))
	assert.Equal(t, bson.M{"title": bson.M{"$ne": "x"}},
		buildFilter(gpadmin.BuildQuery(gpadmin.Where("title", gpadmin.OpNotEqual, "x")).Conditions))
}

func TestBuildFilterSearch(t *testing.T) {
	q := gpadmin.BuildQuery(gpadmin.OrOption(
		gpadmin.WhereCondition("title", gpadmin.OpLike, "%go%"),
		gpadmin.WhereCondition("email", gpadmin.OpLike, "%go%"),
	))

	assert.Equal(t, bson.M{"$or": []bson.M{
		{"title": primitive.Regex{Pattern: "^.*go.*$", Options: "is"}},
		{"email": primitive.Regex{Pattern: "^.*go.*$", Options: "is"}},
	}}, buildFilter(q.Conditions))
}

func TestBuildFilterIDs(t *testing.T) {
	oid := primitive.NewObjectID()

	q := gpadmin.BuildQuery(gpadmin.Where("id", gpadmin.OpEqual, oid.Hex()))
	assert.Equal(t, bson.M{"_id": oid}, buildFilter(q.Conditions))

	q = gpadmin.BuildQuery(gpadmin.WhereIn("id", []interface{}{oid.Hex(), 7}))
	assert.Equal(t, bson.M{"_id": bson.M{"$in": []interface{}{oid, 7}}}, buildFilter(q.Conditions))

	q = gpadmin.BuildQuery(gpadmin.Where("_id", gpadmin.OpEqual, "slug"))
	assert.Equal(t, bson.M{"_id": "slug"}, buildFilter(q.Conditions), "non hex ids are kept")
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "^.*ada.*$", likePattern("%ada%"))
	assert.Equal(t, "^a\\.b.$", likePattern("a.b_"))
	assert.Equal(t, "^\\(x\\)$", likePattern("(x)"))
}

func TestLikeFilterSpansLines(t *testing.T) {
	filter := operatorFilter("body", gpadmin.OpLike, "%Engine%")
	re, ok := filter["body"].(primitive.Regex)
	require.True(t, ok)

	// the server applies the same i and s flags
	compiled := regexp.MustCompile("(?" + re.Options + ")" + re.Pattern)
	assert.True(t, compiled.MatchString("Notes\non the analytical engine"))
	assert.False(t, compiled.MatchString("Notes\non the loom"))
}

func TestFindOptions(t *testing.T) {
	q := gpadmin.BuildQuery(gpadmin.OrderBy("order", gpadmin.OrderDesc), gpadmin.OrderBy("id", gpadmin.OrderAsc),
		gpadmin.Limit(25), gpadmin.Offset(50))

	opts := findOptions(q)
	assert.Equal(t, bson.D{{Key: "order", Value: -1}, {Key: "_id", Value: 1}}, opts.Sort)
	require.NotNil(t, opts.Limit)
	require.NotNil(t, opts.Skip)
	assert.Equal(t, int64(25), *opts.Limit)
	assert.Equal(t, int64(50), *opts.Skip)

	opts = findOptions(gpadmin.BuildQuery())
	assert.Nil(t, opts.Sort)
	assert.Nil(t, opts.Limit)
}

func TestPipeline(t *testing.T) {
	s := &Store[TestPost]{relations: map[string]Relation{}}
	s.WithRelation("tags", Relation{Collection: "post_tags", LocalField: "_id", ForeignField: "post_id", Many: true})

	q := gpadmin.BuildQuery(gpadmin.Where("published", gpadmin.OpEqual, true), gpadmin.OrderBy("title", gpadmin.OrderAsc),
		gpadmin.Limit(10), gpadmin.Preload("author", "tags"))

	assert.Equal(t, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"published": true}}},
		{{Key: "$sort", Value: bson.D{{Key: "title", Value: 1}}}},
		{{Key: "$limit", Value: int64(10)}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "authors"},
			{Key: "localField", Value: "author_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "author"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$author"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "post_tags"},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "post_id"},
			{Key: "as", Value: "tags"},
		}}},
	}, s.pipeline(q))
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "test_posts", collectionName[TestPost]())
	assert.Equal(t, "people", collectionName[Person]())
}

func TestConnectionURI(t *testing.T) {
	assert.Equal(t, "mongodb://localhost:27017/panel", buildConnectionURI(gpadmin.Config{Database: "panel"}))
	assert.Equal(t, "mongodb://admin:s3cret@db:27018/panel?tls=true&tlsCAFile=%2Fca.pem",
		buildConnectionURI(gpadmin.Config{
			Host: "db", Port: 27018, Username: "admin", Password: "s3cret", Database: "panel",
			SSL: gpadmin.SSLConfig{Enabled: true, CAFile: "/ca.pem"},
		}))
	assert.Equal(t, "mongodb+srv://cluster", buildConnectionURI(gpadmin.Config{ConnectionURL: "mongodb+srv://cluster"}))
}

func TestConvertMongoError(t *testing.T) {
	assert.Nil(t, convertMongoError(nil))
	assert.True(t, gpadmin.IsNotFound(convertMongoError(mongo.ErrNoDocuments)))
	assert.True(t, gpadmin.IsDuplicate(convertMongoError(mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}},
	})))
	assert.True(t, gpadmin.IsPermission(convertMongoError(mongo.CommandError{Code: 13, Message: "unauthorized"})))
	assert.True(t, gpadmin.IsErrorType(convertMongoError(errors.New("boom")), gpadmin.ErrorTypeDatabase))
}

// Person is pluralized irregularly
type Person struct {
	ID primitive.ObjectID `bson:"_id,omitempty"`
}

package gpabun

import (
	"context"
	"errors"
	"testing"

	"github.com/lemmego/gpadmin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/uptrace/bun"
)

// Test models with Bun tags
type TestAuthor struct {
	bun.BaseModel `bun:"table:test_authors,alias:author"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
}

type TestPost struct {
	bun.BaseModel `bun:"table:test_posts,alias:post"`

	ID        int64       `bun:"id,pk,autoincrement" json:"id"`
	Title     string      `bun:"title,notnull" json:"title"`
	Email     string      `bun:"email,notnull,unique" json:"email"`
	Order     int         `bun:"order,notnull,default:0" json:"order"`
	Published bool        `bun:"published,notnull,default:false" json:"published"`
	Cover     string      `bun:"cover" json:"cover"`
	AuthorID  *int64      `bun:"author_id" json:"author_id"`
	Author    *TestAuthor `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty"`
}

// testPosts declares the post resource
type testPosts struct {
	prunes *[]string
}

func (d testPosts) Fields() []gpadmin.Item {
	return []gpadmin.Item{
		gpadmin.NewPanel("Post",
			gpadmin.NewText("title").WithRules("required").WithSortable(),
			gpadmin.NewText("email").WithRules("required|email"),
		),
		gpadmin.NewCheck("published"),
		gpadmin.NewBelongsTo("author"),
		gpadmin.NewImage("cover").WithStorage(recorder{d.prunes}).WithFolder("covers").WithVariants("thumbs"),
	}
}

// recorder is a file storage remembering deleted keys
type recorder struct {
	keys *[]string
}

func (r recorder) Delete(ctx context.Context, key string) error {
	*r.keys = append(*r.keys, key)
	return nil
}

type BunStoreTestSuite struct {
	suite.Suite
	db     *bun.DB
	store  *Store[TestPost]
	ctx    context.Context
	prunes []string
}

func (suite *BunStoreTestSuite) SetupTest() {
	db, err := Open(gpadmin.Config{
		Driver:       "sqlite",
		Database:     ":memory:",
		MaxOpenConns: 1,
		Options: map[string]interface{}{
			"bun": map[string]interface{}{
				"log_level": "silent",
			},
		},
	})
	require.NoError(suite.T(), err)

	suite.ctx = context.Background()
	for _, model := range []interface{}{(*TestAuthor)(nil), (*TestPost)(nil)} {
		_, err := db.NewCreateTable().Model(model).Exec(suite.ctx)
		require.NoError(suite.T(), err)
	}

	suite.db = db
	suite.store = New[TestPost](db)
	suite.prunes = nil

	grace := &TestAuthor{Name: "Grace"}
	_, err = db.NewInsert().Model(grace).Exec(suite.ctx)
	require.NoError(suite.T(), err)

	posts := []*TestPost{
		{Title: "Compilers", Email: "compilers@example.com", Order: 2, AuthorID: &grace.ID, Cover: "cobol.jpg"},
		{Title: "Bugs", Email: "bugs@example.com", Order: 0, AuthorID: &grace.ID},
		{Title: "Nanoseconds", Email: "nanoseconds@example.com", Order: 1},
	}
	for _, p := range posts {
		require.NoError(suite.T(), suite.store.Create(suite.ctx, p))
	}
}

func (suite *BunStoreTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *BunStoreTestSuite) resource(opts ...gpadmin.ResourceOption) *gpadmin.Resource[TestPost] {
	r, err := gpadmin.NewResource[TestPost](suite.store, testPosts{prunes: &suite.prunes}, opts...)
	require.NoError(suite.T(), err)
	return r
}

func (suite *BunStoreTestSuite) TestCreateAssignsPrimaryKey() {
	post := &TestPost{Title: "Ships", Email: "ships@example.com"}
	require.NoError(suite.T(), suite.store.Create(suite.ctx, post))
	assert.Equal(suite.T(), int64(4), post.ID)
}

func (suite *BunStoreTestSuite) TestFindByID() {
	post, err := suite.store.FindByID(suite.ctx, 1, gpadmin.Preload("author"))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Compilers", post.Title)
	require.NotNil(suite.T(), post.Author)
	assert.Equal(suite.T(), "Grace", post.Author.Name)

	_, err = suite.store.FindByID(suite.ctx, 999)
	assert.True(suite.T(), gpadmin.IsNotFound(err))
}

func (suite *BunStoreTestSuite) TestResourceFindJoinsRelations() {
	r := suite.resource()
	require.Equal(suite.T(), []string{"author"}, r.WithFields())

	post, err := r.Find(suite.ctx, 1)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), post.ID)
	require.NotNil(suite.T(), post.Author)
	assert.Equal(suite.T(), "Grace", post.Author.Name)

	_, err = r.Find(suite.ctx, 999)
	assert.True(suite.T(), gpadmin.IsNotFound(err))
}

func (suite *BunStoreTestSuite) TestQueryConditions() {
	posts, err := suite.store.Query(suite.ctx,
		gpadmin.OrOption(
			gpadmin.WhereCondition("title", gpadmin.OpLike, "%ano%"),
			gpadmin.WhereCondition("email", gpadmin.OpLike, "%bugs%"),
		),
		gpadmin.OrderBy("title", gpadmin.OrderAsc),
	)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), posts, 2)
	assert.Equal(suite.T(), "Bugs", posts[0].Title)
	assert.Equal(suite.T(), "Nanoseconds", posts[1].Title)

	posts, err = suite.store.Query(suite.ctx,
		gpadmin.WhereIn("id", []interface{}{1, 3}),
		gpadmin.WhereNull("author_id"),
		gpadmin.Preload("author"),
	)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), posts, 1, "conditions are qualified when relations are joined")
	assert.Equal(suite.T(), "Nanoseconds", posts[0].Title)

	posts, err = suite.store.Query(suite.ctx, gpadmin.Where("order", gpadmin.OpNotEqual, 1), gpadmin.Limit(1), gpadmin.Offset(1),
		gpadmin.OrderBy("order", gpadmin.OrderDesc))
	require.NoError(suite.T(), err)
	require.Len(suite.T(), posts, 1)
	assert.Equal(suite.T(), "Bugs", posts[0].Title)

	count, err := suite.store.Count(suite.ctx, gpadmin.Where("order", gpadmin.OpGreaterThan, 0), gpadmin.Limit(1))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), count, "limits do not apply to counts")
}

func (suite *BunStoreTestSuite) TestQueryOne() {
	post, err := suite.store.QueryOne(suite.ctx, gpadmin.OrderBy("order", gpadmin.OrderAsc))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Bugs", post.Title)

	_, err = suite.store.QueryOne(suite.ctx, gpadmin.Where("title", gpadmin.OpEqual, "Missing"))
	assert.True(suite.T(), gpadmin.IsNotFound(err))
}

func (suite *BunStoreTestSuite) TestResourceRows() {
	r := suite.resource(gpadmin.WithPerPage(2), gpadmin.WithSearch("title", "email"))

	page, err := r.Rows(suite.ctx, gpadmin.ListRequest{Sort: "title", SortOrder: "desc", Page: 1})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), page.Total)
	assert.Equal(suite.T(), 2, page.LastPage)
	assert.True(suite.T(), page.HasMorePages())
	require.Len(suite.T(), page.Items, 2)
	assert.Equal(suite.T(), "Nanoseconds", page.Items[0].Title)
	assert.Equal(suite.T(), "Compilers", page.Items[1].Title)
	require.NotNil(suite.T(), page.Items[1].Author)
	assert.Equal(suite.T(), "Grace", page.Items[1].Author.Name)

	page, err = r.Rows(suite.ctx, gpadmin.ListRequest{Search: "bugs", Page: 1})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), page.Total)
	assert.Equal(suite.T(), "Bugs", page.Items[0].Title)
}

func (suite *BunStoreTestSuite) TestSortableResource() {
	r := suite.resource(gpadmin.WithSortable())

	page, err := r.Rows(suite.ctx, gpadmin.ListRequest{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), page.Items, 3)
	assert.Equal(suite.T(), []string{"Bugs", "Nanoseconds", "Compilers"},
		[]string{page.Items[0].Title, page.Items[1].Title, page.Items[2].Title})

	post, err := r.MakeNew(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 3, post.Order)
}

func (suite *BunStoreTestSuite) TestResourceUpdate() {
	r := suite.resource()

	err := r.Update(suite.ctx, 2, map[string]interface{}{"title": "First Bug", "published": "1"})
	require.NoError(suite.T(), err)

	post, err := suite.store.FindByID(suite.ctx, 2)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "First Bug", post.Title)
	assert.True(suite.T(), post.Published)

	err = r.Update(suite.ctx, 42, map[string]interface{}{"title": "x"})
	assert.True(suite.T(), gpadmin.IsNotFound(err))
}

func (suite *BunStoreTestSuite) TestDuplicateEmail() {
	err := suite.store.Create(suite.ctx, &TestPost{Title: "Copy", Email: "bugs@example.com"})
	assert.True(suite.T(), gpadmin.IsDuplicate(err))
}

func (suite *BunStoreTestSuite) TestResourceDelete() {
	r := suite.resource(gpadmin.WithAtomicDelete())

	ok, err := r.Delete(suite.ctx, 1)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), []string{"covers/cobol.jpg", "covers/thumbs/cobol.jpg"}, suite.prunes)

	count, err := r.Count(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), count)

	_, err = r.Delete(suite.ctx, 1)
	assert.True(suite.T(), gpadmin.IsNotFound(err))
}

func (suite *BunStoreTestSuite) TestTransactionRollback() {
	boom := errors.New("boom")
	err := suite.store.Transaction(suite.ctx, func(tx gpadmin.Store[TestPost]) error {
		post, err := tx.FindByID(suite.ctx, 3)
		if err != nil {
			return err
		}
		if err := tx.Delete(suite.ctx, post); err != nil {
			return err
		}
		// Nested transactions reuse the open one
		return tx.Transaction(suite.ctx, func(gpadmin.Store[TestPost]) error { return boom })
	})
	assert.ErrorIs(suite.T(), err, boom)

	_, err = suite.store.FindByID(suite.ctx, 3)
	assert.NoError(suite.T(), err, "delete was rolled back")
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(gpadmin.Config{Driver: "oracle"})
	assert.True(t, gpadmin.IsErrorType(err, gpadmin.ErrorTypeUnsupported))
}

func TestRelationName(t *testing.T) {
	assert.Equal(t, "Author", relationName("author"))
	assert.Equal(t, "Author.Company", relationName("author.company"))
}

func TestConnectionStrings(t *testing.T) {
	config := gpadmin.Config{Host: "db", Port: 5432, Username: "admin", Password: "s3cret", Database: "panel"}
	assert.Equal(t, "postgres://admin:s3cret@db:5432/panel?sslmode=disable", buildPostgresURL(config))

	config.SSL = gpadmin.SSLConfig{Enabled: true, Mode: "require"}
	assert.Equal(t, "postgres://admin:s3cret@db:5432/panel?sslmode=require", buildPostgresURL(config))

	config.SSL = gpadmin.SSLConfig{}
	config.Port = 3306
	assert.Equal(t, "admin:s3cret@tcp(db:3306)/panel?parseTime=true", buildMySQLDSN(config))
}

func TestConvertBunError(t *testing.T) {
	assert.Nil(t, convertBunError(nil))
	assert.True(t, gpadmin.IsDuplicate(convertBunError(errors.New("UNIQUE constraint failed: test_posts.email"))))
	assert.True(t, gpadmin.IsErrorType(convertBunError(errors.New("FOREIGN KEY constraint failed")), gpadmin.ErrorTypeConstraint))
	assert.True(t, gpadmin.IsErrorType(convertBunError(errors.New("disk I/O")), gpadmin.ErrorTypeDatabase))
}

func TestBunStoreTestSuite(t *testing.T) {
	suite.Run(t, new(BunStoreTestSuite))
}

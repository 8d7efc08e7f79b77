package gpamongo

import (
	"context"
	"reflect"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
	"github.com/lemmego/gpadmin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Relation describes how a preloaded relation is looked up from another
// collection
type Relation struct {
	// Collection holding the related documents
	Collection string
	// LocalField on this collection's documents
	LocalField string
	// ForeignField on the related documents, "_id" by default
	ForeignField string
	// Many keeps every match as an array instead of unwinding to one document
	Many bool
}

// CollectionNamer lets entities choose their collection
type CollectionNamer interface {
	CollectionName() string
}

// Store implements gpadmin.Store for documents of type T
type Store[T any] struct {
	collection *mongo.Collection
	relations  map[string]Relation
	session    mongo.Session
}

// New creates a store of T documents in db. The collection defaults to the
// plural snake_case name of T unless T implements CollectionNamer.
func New[T any](db *mongo.Database) *Store[T] {
	return NewWithCollection[T](db.Collection(collectionName[T]()))
}

// NewWithCollection creates a store of T documents in collection
func NewWithCollection[T any](collection *mongo.Collection) *Store[T] {
	return &Store[T]{collection: collection, relations: map[string]Relation{}}
}

func collectionName[T any]() string {
	var zero T
	if n, ok := interface{}(&zero).(CollectionNamer); ok {
		return n.CollectionName()
	}
	return inflection.Plural(strcase.ToSnake(reflect.TypeOf(zero).Name()))
}

// WithRelation registers how the preload name is resolved. Unregistered
// preloads use relation, e.g. "author" reads "authors" by "author_id".
func (s *Store[T]) WithRelation(name string, rel Relation) *Store[T] {
	s.relations[name] = rel
	return s
}

// Collection returns the underlying collection
func (s *Store[T]) Collection() *mongo.Collection { return s.collection }

func (s *Store[T]) relation(name string) Relation {
	rel, ok := s.relations[name]
	if !ok {
		rel = Relation{
			Collection: inflection.Plural(strcase.ToSnake(name)),
			LocalField: strcase.ToSnake(name) + "_id",
		}
	}
	if rel.ForeignField == "" {
		rel.ForeignField = "_id"
	}
	return rel
}

// context binds ctx to the store's transaction session, if any
func (s *Store[T]) context(ctx context.Context) context.Context {
	if s.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, s.session)
}

// Create inserts a new document and stores the generated id on entity
func (s *Store[T]) Create(ctx context.Context, entity *T) error {
	result, err := s.collection.InsertOne(s.context(ctx), entity)
	if err != nil {
		return convertMongoError(err)
	}

	if result.InsertedID != nil {
		if current := gpadmin.ResolvePath(entity, "_id"); current == nil || reflect.ValueOf(current).IsZero() {
			// Entities without an _id field keep the generated id server side only
			_ = gpadmin.SetPath(entity, "_id", result.InsertedID)
		}
	}
	return nil
}

// FindByID retrieves a document by _id. Hex strings are converted to
// ObjectIDs.
func (s *Store[T]) FindByID(ctx context.Context, id interface{}, opts ...gpadmin.QueryOption) (*T, error) {
	opts = append([]gpadmin.QueryOption{gpadmin.Where("_id", gpadmin.OpEqual, id)}, opts...)
	return s.QueryOne(ctx, opts...)
}

// QueryOne returns the first document matching opts
func (s *Store[T]) QueryOne(ctx context.Context, opts ...gpadmin.QueryOption) (*T, error) {
	limited := make([]gpadmin.QueryOption, 0, len(opts)+1)
	limited = append(limited, opts...)
	entities, err := s.Query(ctx, append(limited, gpadmin.Limit(1))...)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeNotFound, "document not found", mongo.ErrNoDocuments)
	}
	return entities[0], nil
}

// Query returns every document matching opts. Preloads run as an
// aggregation with $lookup stages.
func (s *Store[T]) Query(ctx context.Context, opts ...gpadmin.QueryOption) ([]*T, error) {
	ctx = s.context(ctx)
	query := gpadmin.BuildQuery(opts...)

	var cursor *mongo.Cursor
	var err error
	if len(query.Preloads) > 0 {
		cursor, err = s.collection.Aggregate(ctx, s.pipeline(query))
	} else {
		cursor, err = s.collection.Find(ctx, buildFilter(query.Conditions), findOptions(query))
	}
	if err != nil {
		return nil, convertMongoError(err)
	}
	defer cursor.Close(ctx)

	entities := make([]*T, 0)
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, convertMongoError(err)
	}
	return entities, nil
}

// Count returns the number of documents matching the conditions of opts
func (s *Store[T]) Count(ctx context.Context, opts ...gpadmin.QueryOption) (int64, error) {
	query := gpadmin.BuildQuery(opts...)
	count, err := s.collection.CountDocuments(s.context(ctx), buildFilter(query.Conditions))
	return count, convertMongoError(err)
}

// Update sets the given fields on the stored document of entity
func (s *Store[T]) Update(ctx context.Context, entity *T, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	id, err := documentID(entity)
	if err != nil {
		return err
	}

	set := bson.M{}
	for field, value := range updates {
		set[fieldName(field)] = value
	}

	result, err := s.collection.UpdateOne(s.context(ctx), bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return convertMongoError(err)
	}
	if result.MatchedCount == 0 {
		return gpadmin.NewError(gpadmin.ErrorTypeNotFound, "document not found")
	}
	return nil
}

// Delete removes the stored document of entity
func (s *Store[T]) Delete(ctx context.Context, entity *T) error {
	id, err := documentID(entity)
	if err != nil {
		return err
	}

	result, err := s.collection.DeleteOne(s.context(ctx), bson.M{"_id": id})
	if err != nil {
		return convertMongoError(err)
	}
	if result.DeletedCount == 0 {
		return gpadmin.NewError(gpadmin.ErrorTypeNotFound, "document not found")
	}
	return nil
}

// Transaction runs fn in a session transaction. Stores already bound to a
// session run fn directly since MongoDB has no nested transactions.
func (s *Store[T]) Transaction(ctx context.Context, fn gpadmin.TransactionFunc[T]) error {
	if s.session != nil {
		return fn(s)
	}

	session, err := s.collection.Database().Client().StartSession()
	if err != nil {
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeTransaction, "failed to start session", err)
	}
	defer session.EndSession(ctx)

	var fnErr error
	_, err = session.WithTransaction(ctx, func(mongo.SessionContext) (interface{}, error) {
		fnErr = fn(&Store[T]{collection: s.collection, relations: s.relations, session: session})
		return nil, fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeTransaction, "transaction failed", err)
	}
	return nil
}

// pipeline builds the aggregation for a query with preloads
func (s *Store[T]) pipeline(query *gpadmin.Query) mongo.Pipeline {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: buildFilter(query.Conditions)}}}
	if sort := sortDocument(query.Orders); len(sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	}
	if query.Offset != nil {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: int64(*query.Offset)}})
	}
	if query.Limit != nil {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(*query.Limit)}})
	}

	for _, name := range query.Preloads {
		rel := s.relation(name)
		as := strcase.ToSnake(name)
		pipeline = append(pipeline, bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: rel.Collection},
			{Key: "localField", Value: rel.LocalField},
			{Key: "foreignField", Value: rel.ForeignField},
			{Key: "as", Value: as},
		}}})
		if !rel.Many {
			pipeline = append(pipeline, bson.D{{Key: "$unwind", Value: bson.D{
				{Key: "path", Value: "$" + as},
				{Key: "preserveNullAndEmptyArrays", Value: true},
			}}})
		}
	}
	return pipeline
}

// findOptions converts ordering and paging to find options
func findOptions(query *gpadmin.Query) *options.FindOptions {
	opts := options.Find()
	if sort := sortDocument(query.Orders); len(sort) > 0 {
		opts.SetSort(sort)
	}
	if query.Limit != nil {
		opts.SetLimit(int64(*query.Limit))
	}
	if query.Offset != nil {
		opts.SetSkip(int64(*query.Offset))
	}
	return opts
}

func sortDocument(orders []gpadmin.Order) bson.D {
	sort := bson.D{}
	for _, order := range orders {
		direction := 1
		if order.Direction == gpadmin.OrderDesc {
			direction = -1
		}
		sort = append(sort, bson.E{Key: fieldName(order.Field), Value: direction})
	}
	return sort
}

// documentID reads the _id of entity
func documentID(entity interface{}) (interface{}, error) {
	id := gpadmin.ResolvePath(entity, "_id")
	if id == nil || reflect.ValueOf(id).IsZero() {
		return nil, gpadmin.NewError(gpadmin.ErrorTypeInvalidArgument, "document has no _id")
	}
	return objectID(id), nil
}

// objectID converts hex strings to ObjectIDs and leaves other ids alone
func objectID(id interface{}) interface{} {
	if hex, ok := id.(string); ok {
		if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
			return oid
		}
	}
	return id
}

var _ gpadmin.Store[struct{}] = (*Store[struct{}])(nil)

package gpadmin

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
)

// =====================================
// Definition Contract
// =====================================

// Definition declares the fields of a resource. Fields is called once, when
// the resource is built.
type Definition interface {
	Fields() []Item
}

// Namer lets a definition choose its resource name
type Namer interface {
	Name() string
}

// NewObjectFormatter fills defaults into entities created by MakeNew
type NewObjectFormatter[T any] interface {
	FormatNewObject(ctx context.Context, entity *T) error
}

// EditAuthorizer restricts which entities may be edited
type EditAuthorizer[T any] interface {
	CanEdit(ctx context.Context, entity *T) bool
}

// DeleteAuthorizer restricts which entities may be deleted
type DeleteAuthorizer[T any] interface {
	CanDelete(ctx context.Context, entity *T) bool
}

// =====================================
// Resource
// =====================================

// Resource binds a field definition to the store of one entity type and
// builds the index, edit and delete behavior of the admin panel from it.
type Resource[T any] struct {
	store  Store[T]
	def    Definition
	items  []Item
	fields []Field
	scope  []QueryOption
	settings
}

// NewResource validates def and builds a resource over store. It fails with
// an ErrorTypeConfiguration error when the definition is missing, declares no
// fields, or declares empty or repeated paths.
func NewResource[T any](store Store[T], def Definition, opts ...ResourceOption) (*Resource[T], error) {
	if store == nil {
		return nil, NewError(ErrorTypeConfiguration, "resource requires a store")
	}
	if def == nil {
		return nil, NewError(ErrorTypeConfiguration, "resource requires a definition")
	}

	r := &Resource[T]{
		store:    store,
		def:      def,
		settings: defaultSettings(),
	}
	for _, opt := range opts {
		opt(&r.settings)
	}

	r.items = def.Fields()
	if len(r.items) == 0 {
		return nil, NewError(ErrorTypeConfiguration, fmt.Sprintf("resource %s declares no fields", r.Name()))
	}
	fields, ok := flatten(r.items)
	if !ok {
		return nil, NewError(ErrorTypeConfiguration, fmt.Sprintf("resource %s declares a nil field", r.Name()))
	}
	r.fields = fields
	seen := make(map[string]bool, len(r.fields))
	for _, f := range r.fields {
		if strings.TrimSpace(f.Path()) == "" {
			return nil, NewError(ErrorTypeConfiguration, fmt.Sprintf("resource %s declares a field without path", r.Name()))
		}
		if seen[f.Path()] {
			return nil, NewError(ErrorTypeConfiguration, fmt.Sprintf("resource %s declares field %q twice", r.Name(), f.Path()))
		}
		seen[f.Path()] = true
		if c, ok := f.(checker); ok {
			if err := c.check(); err != nil {
				return nil, err
			}
		}
	}

	if r.sortable {
		if t := reflect.TypeOf((*T)(nil)).Elem(); t.Kind() == reflect.Struct && fieldIndex(t, r.sortField) == nil {
			return nil, NewError(ErrorTypeConfiguration, fmt.Sprintf("%s has no sort field %q", t, r.sortField))
		}
	}

	return r, nil
}

// flatten expands panels depth first. It reports false when any item,
// nested ones included, is nil.
func flatten(items []Item) ([]Field, bool) {
	out := make([]Field, 0, len(items))
	for _, item := range items {
		if isNilItem(item) {
			return nil, false
		}
		if p, ok := item.(*Panel); ok {
			nested, ok := flatten(p.Items())
			if !ok {
				return nil, false
			}
			out = append(out, nested...)
			continue
		}
		out = append(out, item.FieldsFlattened()...)
	}
	return out, true
}

// Name is the resource identifier: the definition's own name, or the
// pluralised snake_case entity type name ("blog_posts").
func (r *Resource[T]) Name() string {
	if r.name != "" {
		return r.name
	}
	if n, ok := r.def.(Namer); ok {
		return n.Name()
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	return inflection.Plural(strcase.ToSnake(t.Name()))
}

func (r *Resource[T]) Store() Store[T]       { return r.store }
func (r *Resource[T]) Definition() Definition { return r.def }
func (r *Resource[T]) PerPage() int           { return r.perPage }
func (r *Resource[T]) IsSortable() bool       { return r.sortable }
func (r *Resource[T]) SortField() string      { return r.sortField }
func (r *Resource[T]) DefaultSort() string    { return r.defaultSort }
func (r *Resource[T]) Search() []string       { return r.search }
func (r *Resource[T]) NameField() string      { return r.nameField }
func (r *Resource[T]) SingleResource() bool   { return r.singleResource }

// =====================================
// Fields
// =====================================

// Fields returns the declared fields and panels
func (r *Resource[T]) Fields() []Item { return r.items }

// FieldsFlattened returns every field in declaration order, with panels
// replaced by their contents
func (r *Resource[T]) FieldsFlattened() []Field { return r.fields }

// FieldFor returns the first field declared at path, in either bracket or
// dot notation
func (r *Resource[T]) FieldFor(path string) (Field, bool) {
	normalized := NormalizePath(path)
	for _, f := range r.fields {
		if f.Path() == path || f.ValuePath() == normalized {
			return f, true
		}
	}
	return nil, false
}

// Panels returns the declared panels
func (r *Resource[T]) Panels() []*Panel {
	var out []*Panel
	for _, item := range r.items {
		if p, ok := item.(*Panel); ok {
			out = append(out, p)
		}
	}
	return out
}

// IndexFields returns the fields shown in the index table
func (r *Resource[T]) IndexFields() []Field {
	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		if f.ShowInIndex() {
			out = append(out, f)
		}
	}
	return out
}

// EditFields returns the fields shown in the edit form. The multiple edit
// form leaves out fields excluded on multiple.
func (r *Resource[T]) EditFields(multiple bool) []Field {
	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		if f.ShowInEdit() && !(multiple && f.ExcludeOnMultiple()) {
			out = append(out, f)
		}
	}
	return out
}

// SortableFields returns the fields whose header sorts the index
func (r *Resource[T]) SortableFields() []Field {
	var out []Field
	for _, f := range r.fields {
		if f.Sortable() {
			out = append(out, f)
		}
	}
	return out
}

// WithFields returns the relations to eager load: the configured ones, or
// else those of the relationship fields
func (r *Resource[T]) WithFields() []string {
	if len(r.with) > 0 {
		return r.with
	}
	var out []string
	for _, f := range r.fields {
		if rel, ok := f.(Relationship); ok {
			out = append(out, rel.Relation())
		}
	}
	return out
}

// =====================================
// Querying
// =====================================

// Scoped returns a copy of the resource whose base query is opts instead of
// the eager load of WithFields
func (r *Resource[T]) Scoped(opts ...QueryOption) *Resource[T] {
	c := *r
	c.scope = append(make([]QueryOption, 0, len(opts)), opts...)
	return &c
}

func (r *Resource[T]) baseQuery() []QueryOption {
	if r.scope != nil {
		return append([]QueryOption(nil), r.scope...)
	}
	if with := r.WithFields(); len(with) > 0 {
		return []QueryOption{Preload(with...)}
	}
	return nil
}

// Query builds the index query for req: the base query, the search filter
// when a term is given, then exactly one ordering. Sortable resources always
// order by their sort field; otherwise a requested sort on a known column
// wins over the default sort.
func (r *Resource[T]) Query(req ListRequest) []QueryOption {
	opts := r.baseQuery()

	if term := strings.TrimSpace(req.Search); term != "" && len(r.search) > 0 {
		conds := make([]Condition, 0, len(r.search))
		for _, col := range r.search {
			conds = append(conds, WhereCondition(col, OpLike, "%"+term+"%"))
		}
		opts = append(opts, OrOption(conds...))
	}

	opts = append(opts, r.order(req))

	if ce := r.logger.Check(zap.DebugLevel, "resource query built"); ce != nil {
		ce.Write(
			zap.String("resource", r.Name()),
			zap.String("query", BuildQuery(opts...).String()),
		)
	}
	return opts
}

func (r *Resource[T]) order(req ListRequest) QueryOption {
	if r.sortable {
		return OrderBy(r.sortField, OrderAsc)
	}
	if col, ok := r.sortColumn(req.Sort); ok {
		return OrderBy(col, req.Direction())
	}
	return OrderBy(r.defaultSort, OrderAsc)
}

// sortColumn maps a requested sort to a column. Only declared fields and the
// resource's own sort columns are accepted.
func (r *Resource[T]) sortColumn(sort string) (string, bool) {
	if sort == "" {
		return "", false
	}
	if sort == r.defaultSort || sort == r.sortField {
		return sort, true
	}
	if f, ok := r.FieldFor(sort); ok && orderable(f) {
		return f.DatabaseField(), true
	}
	return "", false
}

// orderable reports whether f maps to a column of the resource's own table.
// HasMany names a relation, and nested paths only sort when declared
// sortable.
func orderable(f Field) bool {
	if f.Kind() == KindHasMany {
		return false
	}
	col := f.DatabaseField()
	if col == "" {
		return false
	}
	return f.Sortable() || !strings.ContainsAny(col, "[.")
}

// Rows loads the page of the index requested by req
func (r *Resource[T]) Rows(ctx context.Context, req ListRequest) (*Page[T], error) {
	return Paginate(ctx, r.store, req.Page, r.perPage, r.Query(req)...)
}

// Find loads the entity with the given id
func (r *Resource[T]) Find(ctx context.Context, id interface{}) (*T, error) {
	return r.store.FindByID(ctx, id, r.baseQuery()...)
}

// First loads the first entity by default sort, used by single resources
func (r *Resource[T]) First(ctx context.Context) (*T, error) {
	return r.store.QueryOne(ctx, append(r.baseQuery(), OrderBy(r.defaultSort, OrderAsc))...)
}

// Count returns the number of entities in the resource's scope
func (r *Resource[T]) Count(ctx context.Context) (int64, error) {
	return r.store.Count(ctx, r.scope...)
}

// =====================================
// Mutations
// =====================================

// Create stores a new entity
func (r *Resource[T]) Create(ctx context.Context, entity *T) error {
	if err := r.store.Create(ctx, entity); err != nil {
		return err
	}
	r.logger.Info("resource entity created", zap.String("resource", r.Name()))
	return nil
}

// Update loads the entity with the given id and writes data to it. Keys
// naming a declared field are converted with the field's MapFromRequest and
// written to its database column; other keys are written as given.
func (r *Resource[T]) Update(ctx context.Context, id interface{}, data map[string]interface{}) error {
	entity, err := r.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	updates := make(map[string]interface{}, len(data))
	for key, value := range data {
		f, ok := r.FieldFor(key)
		if !ok {
			updates[key] = value
			continue
		}
		mapped, err := f.MapFromRequest(value)
		if err != nil {
			return err
		}
		updates[f.DatabaseField()] = mapped
	}

	if err := r.store.Update(ctx, entity, updates); err != nil {
		return err
	}
	r.logger.Info("resource entity updated",
		zap.String("resource", r.Name()),
		zap.Any("id", id),
		zap.Int("columns", len(updates)),
	)
	return nil
}

// Delete removes target, which is either a *T or an id to look up. It
// returns false without side effects when CanDelete denies it. Prune hooks
// run before the entity is deleted; when any of them fails nothing is
// deleted.
func (r *Resource[T]) Delete(ctx context.Context, target interface{}) (bool, error) {
	entity, err := r.resolve(ctx, target)
	if err != nil {
		return false, err
	}

	if !r.CanDelete(ctx, entity) {
		r.logger.Warn("resource delete denied", zap.String("resource", r.Name()))
		return false, nil
	}

	run := func(s Store[T]) error {
		if err := r.Prune(ctx, entity); err != nil {
			return err
		}
		return s.Delete(ctx, entity)
	}
	if r.atomicDelete {
		err = r.store.Transaction(ctx, run)
	} else {
		err = run(r.store)
	}
	if err != nil {
		return false, err
	}

	r.logger.Info("resource entity deleted", zap.String("resource", r.Name()))
	return true, nil
}

func (r *Resource[T]) resolve(ctx context.Context, target interface{}) (*T, error) {
	switch t := target.(type) {
	case nil:
		return nil, NewError(ErrorTypeInvalidArgument, "nothing to delete")
	case *T:
		if t == nil {
			return nil, NewError(ErrorTypeInvalidArgument, "nothing to delete")
		}
		return t, nil
	case T:
		return &t, nil
	}
	return r.Find(ctx, target)
}

// Prune runs the prune hook of every prunable field in declaration order.
// All hooks run; their failures are joined.
func (r *Resource[T]) Prune(ctx context.Context, entity *T) error {
	var errs []error
	for _, f := range r.fields {
		p, ok := f.(Prunable)
		if !ok {
			continue
		}
		if err := p.Prune(ctx, entity); err != nil {
			r.logger.Warn("resource prune failed",
				zap.String("resource", r.Name()),
				zap.String("field", f.Path()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("prune %s: %w", f.Path(), err))
		}
	}
	return errors.Join(errs...)
}

// CanEdit reports whether entity may be edited
func (r *Resource[T]) CanEdit(ctx context.Context, entity *T) bool {
	if a, ok := r.def.(EditAuthorizer[T]); ok {
		return a.CanEdit(ctx, entity)
	}
	return true
}

// CanDelete reports whether entity may be deleted
func (r *Resource[T]) CanDelete(ctx context.Context, entity *T) bool {
	if a, ok := r.def.(DeleteAuthorizer[T]); ok {
		return a.CanDelete(ctx, entity)
	}
	return true
}

// MakeNew returns an unsaved entity with the definition's defaults applied.
// On sortable resources the sort field receives the next order position.
func (r *Resource[T]) MakeNew(ctx context.Context) (*T, error) {
	entity := new(T)
	if f, ok := r.def.(NewObjectFormatter[T]); ok {
		if err := f.FormatNewObject(ctx, entity); err != nil {
			return nil, err
		}
	}

	if r.sortable {
		next, err := r.allocator.Next(ctx, r.Name(), r.Count)
		if err != nil {
			return nil, err
		}
		if err := SetPath(entity, r.sortField, next); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

// ValidationRules maps each edit form field with rules to its rule string,
// with "{id}" replaced by id. A nil id (creation) replaces it with "".
func (r *Resource[T]) ValidationRules(id interface{}) map[string]string {
	idStr := ""
	if id != nil {
		idStr = fmt.Sprint(id)
	}
	rules := make(map[string]string)
	for _, f := range r.fields {
		if !f.ShowInEdit() || f.Rules() == "" {
			continue
		}
		rules[f.Path()] = strings.ReplaceAll(f.Rules(), "{id}", idStr)
	}
	return rules
}

// MainActions returns the actions shown above the index
func (r *Resource[T]) MainActions() []Action {
	if p, ok := r.def.(MainActionsProvider); ok {
		return p.MainActions()
	}
	return []Action{ActionNew}
}

// Actions returns the actions applicable to selected rows
func (r *Resource[T]) Actions() []Action {
	if p, ok := r.def.(ActionsProvider); ok {
		return p.Actions()
	}
	return []Action{ActionDelete}
}

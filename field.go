package gpadmin

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// =====================================
// Field Contract
// =====================================

// Kind tags a field variant so a rendering layer can pick a widget
type Kind string

const (
	KindText      Kind = "text"
	KindNumber    Kind = "number"
	KindCheck     Kind = "check"
	KindDate      Kind = "date"
	KindSelect    Kind = "select"
	KindBelongsTo Kind = "belongsTo"
	KindHasMany   Kind = "hasMany"
	KindFile      Kind = "file"
	KindImage     Kind = "image"
)

// DefaultDeleteConfirmation is the confirmation prompt used by fields that
// don't set their own.
const DefaultDeleteConfirmation = "Are you sure"

// Item is anything a resource definition can declare: a Field or a Panel
type Item interface {
	FieldsFlattened() []Field
}

// Field describes one displayable and editable attribute of an entity
type Field interface {
	Item

	// Path is the declared path. It is the form input name, the validation
	// key and the sort/search column.
	Path() string
	// ValuePath is the declared path in dot notation.
	ValuePath() string
	Kind() Kind

	Title(tr Translator, forHeader bool) string
	Description(tr Translator) string
	Value(entity interface{}) interface{}
	Label(entity interface{}) string
	MapFromRequest(value interface{}) (interface{}, error)

	Rules() string
	HTMLValidation(entity interface{}, ctx FormContext) string

	ShowInIndex() bool
	ShowInEdit() bool
	Sortable() bool
	RowClass() string
	SortableHeaderClass() string
	WithoutHeader() bool
	ExcludeOnMultiple() bool
	PolicyAction() string
	DatabaseField() string
	DeleteConfirmationMessage(tr Translator) string
}

// Relationship is implemented by fields that point at related entities. The
// relation name is eager loaded by resources.
type Relationship interface {
	Relation() string
}

// Prunable is implemented by fields that own data outside the entity row,
// cleaned up right before the entity is deleted.
type Prunable interface {
	Prune(ctx context.Context, entity interface{}) error
}

// checker is implemented by fields that can detect their own
// misconfiguration when a resource is built.
type checker interface {
	check() error
}

// =====================================
// Base Field
// =====================================

// Base holds the configuration shared by every field variant. F is the
// concrete variant, returned by the fluent setters so chains keep the
// variant's own methods available.
type Base[F any] struct {
	self F

	path      string
	valuePath string
	title     string
	rules     string

	showInIndex bool
	showInEdit  bool
	sortable    bool

	withDesc    bool
	description string

	rowClass           string
	withoutIndexHeader bool
	excludeOnMultiple  bool
	deleteConfirmation string
	policyAction       string
}

func (b *Base[F]) init(self F, path string, title ...string) {
	b.self = self
	b.path = path
	b.valuePath = NormalizePath(path)
	if len(title) > 0 {
		b.title = title[0]
	}
	b.showInIndex = true
	b.showInEdit = true
	b.deleteConfirmation = DefaultDeleteConfirmation
}

func (b *Base[F]) Path() string      { return b.path }
func (b *Base[F]) ValuePath() string { return b.valuePath }
func (b *Base[F]) Rules() string     { return b.rules }

func (b *Base[F]) ShowInIndex() bool       { return b.showInIndex }
func (b *Base[F]) ShowInEdit() bool        { return b.showInEdit }
func (b *Base[F]) Sortable() bool          { return b.sortable }
func (b *Base[F]) RowClass() string        { return b.rowClass }
func (b *Base[F]) WithoutHeader() bool     { return b.withoutIndexHeader }
func (b *Base[F]) ExcludeOnMultiple() bool { return b.excludeOnMultiple }
func (b *Base[F]) PolicyAction() string    { return b.policyAction }

// DatabaseField is the column updates and sorts are written against
func (b *Base[F]) DatabaseField() string { return b.path }

// Title returns the header or form label. Fields marked WithoutIndexHeader
// have an empty header.
func (b *Base[F]) Title(tr Translator, forHeader bool) string {
	if forHeader && b.withoutIndexHeader {
		return ""
	}
	if b.title != "" {
		return b.title
	}
	if tr == nil {
		return b.valuePath
	}
	return tr.Choice(b.valuePath, 1)
}

// Description returns the help text shown under the input
func (b *Base[F]) Description(tr Translator) string {
	if b.description != "" {
		return b.description
	}
	if !b.withDesc || tr == nil {
		return ""
	}
	return tr.Choice(b.valuePath+"Desc", 1)
}

// Value resolves the field's path on entity. A nil entity yields nil.
func (b *Base[F]) Value(entity interface{}) interface{} {
	if entity == nil {
		return nil
	}
	return ResolvePath(entity, b.valuePath)
}

// Label renders the value as plain text
func (b *Base[F]) Label(entity interface{}) string {
	return formatValue(b.Value(entity))
}

// MapFromRequest converts a submitted form value into the stored value
func (b *Base[F]) MapFromRequest(value interface{}) (interface{}, error) {
	return value, nil
}

// HTMLValidation returns the HTML5 attributes for the field's input
func (b *Base[F]) HTMLValidation(entity interface{}, ctx FormContext) string {
	return HTMLValidation(b.rules, ctx)
}

// SortableHeaderClass picks the header style matching the row alignment
func (b *Base[F]) SortableHeaderClass() string {
	if strings.Contains(b.rowClass, "text-right") {
		return "sortableHeaderRight"
	}
	return "sortableHeader"
}

// DeleteConfirmationMessage returns the translated confirmation prompt
func (b *Base[F]) DeleteConfirmationMessage(tr Translator) string {
	if tr == nil {
		return b.deleteConfirmation
	}
	return tr.Translate(b.deleteConfirmation)
}

// FieldsFlattened returns the field itself
func (b *Base[F]) FieldsFlattened() []Field {
	if f, ok := any(b.self).(Field); ok {
		return []Field{f}
	}
	return nil
}

// =====================================
// Fluent Configuration
// =====================================

func (b *Base[F]) WithTitle(title string) F {
	b.title = title
	return b.self
}

// WithRules sets the pipe separated validation rules. "{id}" is replaced
// with the edited entity's id.
func (b *Base[F]) WithRules(rules string) F {
	b.rules = rules
	return b.self
}

func (b *Base[F]) WithRowClass(class string) F {
	b.rowClass = class
	return b.self
}

func (b *Base[F]) WithoutIndexHeader() F {
	b.withoutIndexHeader = true
	return b.self
}

func (b *Base[F]) WithSortable(sortable ...bool) F {
	b.sortable = len(sortable) == 0 || sortable[0]
	return b.self
}

// WithDescription sets an explicit description, or with no argument turns on
// the translated "<path>Desc" description.
func (b *Base[F]) WithDescription(description ...string) F {
	b.withDesc = true
	if len(description) > 0 {
		b.description = description[0]
	}
	return b.self
}

func (b *Base[F]) WithPolicyAction(action string) F {
	b.policyAction = action
	return b.self
}

func (b *Base[F]) WithExcludeOnMultiple(exclude ...bool) F {
	b.excludeOnMultiple = len(exclude) == 0 || exclude[0]
	return b.self
}

func (b *Base[F]) WithDeleteConfirmation(message string) F {
	b.deleteConfirmation = message
	return b.self
}

// Hide removes the field from both the index and the edit form
func (b *Base[F]) Hide() F {
	b.showInIndex = false
	b.showInEdit = false
	return b.self
}

// Show puts the field back in both the index and the edit form
func (b *Base[F]) Show() F {
	b.showInIndex = true
	b.showInEdit = true
	return b.self
}

func (b *Base[F]) OnlyInIndex() F {
	b.showInIndex = true
	b.showInEdit = false
	return b.self
}

func (b *Base[F]) OnlyInEdit() F {
	b.showInIndex = false
	b.showInEdit = true
	return b.self
}

func (b *Base[F]) HideInIndex() F {
	b.showInIndex = false
	return b.self
}

func (b *Base[F]) HideInEdit() F {
	b.showInEdit = false
	return b.self
}

// =====================================
// Helpers
// =====================================

// formatValue renders an arbitrary resolved value as plain text
func formatValue(v interface{}) string {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		return formatValue(rv.Elem().Interface())
	}

	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts = append(parts, formatValue(rv.Index(i).Interface()))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

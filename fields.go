package gpadmin

import (
	"context"
	"errors"
	"fmt"
	"path"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
)

// =====================================
// Text
// =====================================

// Text is a plain single line input
type Text struct {
	Base[*Text]
}

// NewText creates a text field bound to path
func NewText(path string, title ...string) *Text {
	f := &Text{}
	f.init(f, path, title...)
	return f
}

func (f *Text) Kind() Kind { return KindText }

// =====================================
// Number
// =====================================

// Number is a numeric input. Submitted strings are parsed to int64, or to
// float64 when the field has a precision or the value has a fraction.
type Number struct {
	Base[*Number]
	precision int
}

// NewNumber creates a number field bound to path
func NewNumber(path string, title ...string) *Number {
	f := &Number{precision: -1}
	f.init(f, path, title...)
	return f
}

func (f *Number) Kind() Kind { return KindNumber }

// WithPrecision fixes the number of decimals shown in the index
func (f *Number) WithPrecision(decimals int) *Number {
	f.precision = decimals
	return f
}

func (f *Number) Label(entity interface{}) string {
	v := f.Value(entity)
	if f.precision < 0 {
		return formatValue(v)
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if !rv.IsValid() || !isNumber(rv.Kind()) {
		return formatValue(v)
	}
	return strconv.FormatFloat(rv.Convert(reflect.TypeOf(float64(0))).Float(), 'f', f.precision, 64)
}

func (f *Number) MapFromRequest(value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if f.precision <= 0 && !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeValidation, fmt.Sprintf("%s must be a number", f.path), err)
	}
	return n, nil
}

// =====================================
// Check
// =====================================

// Check is a boolean checkbox
type Check struct {
	Base[*Check]
	yes string
	no  string
}

// NewCheck creates a checkbox field bound to path
func NewCheck(path string, title ...string) *Check {
	f := &Check{yes: "Yes", no: "No"}
	f.init(f, path, title...)
	return f
}

func (f *Check) Kind() Kind { return KindCheck }

// WithLabels sets the index text for checked and unchecked values
func (f *Check) WithLabels(yes, no string) *Check {
	f.yes, f.no = yes, no
	return f
}

func (f *Check) Label(entity interface{}) string {
	if truthy(f.Value(entity)) {
		return f.yes
	}
	return f.no
}

// MapFromRequest maps checkbox submissions ("1", "on", "true") to bool.
// An absent checkbox arrives as nil and maps to false.
func (f *Check) MapFromRequest(value interface{}) (interface{}, error) {
	return truthy(value), nil
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case *bool:
		return val != nil && *val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "on", "true", "yes":
			return true
		}
		return false
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.IsValid() && isNumber(rv.Kind()) {
		return !rv.IsZero()
	}
	return false
}

// =====================================
// Date
// =====================================

// DefaultDateLayout is the layout Date fields use unless configured
const DefaultDateLayout = "2006-01-02"

// Date is a date (or date time) input
type Date struct {
	Base[*Date]
	layout string
}

// NewDate creates a date field bound to path
func NewDate(path string, title ...string) *Date {
	f := &Date{layout: DefaultDateLayout}
	f.init(f, path, title...)
	return f
}

func (f *Date) Kind() Kind { return KindDate }

// WithLayout sets the time layout used for display and parsing
func (f *Date) WithLayout(layout string) *Date {
	f.layout = layout
	return f
}

// Layout returns the configured time layout
func (f *Date) Layout() string { return f.layout }

func (f *Date) Label(entity interface{}) string {
	switch t := f.Value(entity).(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(f.layout)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(f.layout)
	default:
		return formatValue(t)
	}
}

func (f *Date) MapFromRequest(value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(f.layout, strings.TrimSpace(s))
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeValidation, fmt.Sprintf("%s must match %s", f.path, f.layout), err)
	}
	return t, nil
}

// =====================================
// Select
// =====================================

// Option is one choice of a Select field
type Option struct {
	Value interface{}
	Title string
}

// Select picks one value from a fixed list of options
type Select struct {
	Base[*Select]
	options  []Option
	nullable bool
}

// NewSelect creates a select field bound to path
func NewSelect(path string, title ...string) *Select {
	f := &Select{}
	f.init(f, path, title...)
	return f
}

func (f *Select) Kind() Kind { return KindSelect }

// WithOptions sets the available choices in display order
func (f *Select) WithOptions(options ...Option) *Select {
	f.options = options
	return f
}

// Nullable allows the empty choice
func (f *Select) Nullable() *Select {
	f.nullable = true
	return f
}

// Options returns the configured choices
func (f *Select) Options() []Option { return f.options }

func (f *Select) Label(entity interface{}) string {
	v := f.Value(entity)
	if v == nil {
		return ""
	}
	key := formatValue(v)
	for _, o := range f.options {
		if formatValue(o.Value) == key {
			return o.Title
		}
	}
	return key
}

// MapFromRequest maps the submitted string back to the option value
func (f *Select) MapFromRequest(value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	if s == "" && f.nullable {
		return nil, nil
	}
	for _, o := range f.options {
		if formatValue(o.Value) == s {
			return o.Value, nil
		}
	}
	return nil, NewError(ErrorTypeValidation, fmt.Sprintf("%s: %q is not a valid option", f.path, s))
}

// =====================================
// Relationships
// =====================================

// DefaultDisplayField is the attribute shown for related entities
const DefaultDisplayField = "name"

// BelongsTo shows the parent entity of a to-one relation. The path names the
// relation attribute ("author"); updates are written to the foreign key.
type BelongsTo struct {
	Base[*BelongsTo]
	relation   string
	display    string
	foreignKey string
}

// NewBelongsTo creates a to-one relation field bound to path
func NewBelongsTo(path string, title ...string) *BelongsTo {
	f := &BelongsTo{display: DefaultDisplayField}
	f.init(f, path, title...)
	f.relation = f.valuePath
	f.foreignKey = strcase.ToSnake(f.valuePath) + "_id"
	return f
}

func (f *BelongsTo) Kind() Kind       { return KindBelongsTo }
func (f *BelongsTo) Relation() string { return f.relation }

// WithRelation overrides the relation name used for eager loading
func (f *BelongsTo) WithRelation(relation string) *BelongsTo {
	f.relation = relation
	return f
}

// WithDisplay sets the attribute of the related entity shown in the index
func (f *BelongsTo) WithDisplay(attribute string) *BelongsTo {
	f.display = attribute
	return f
}

// WithForeignKey sets the column holding the related id
func (f *BelongsTo) WithForeignKey(column string) *BelongsTo {
	f.foreignKey = column
	return f
}

func (f *BelongsTo) DatabaseField() string { return f.foreignKey }

func (f *BelongsTo) Label(entity interface{}) string {
	related := f.Value(entity)
	if related == nil {
		return ""
	}
	return formatValue(ResolvePath(related, f.display))
}

// HasMany lists the children of a to-many relation
type HasMany struct {
	Base[*HasMany]
	relation string
	display  string
}

// NewHasMany creates a to-many relation field bound to path
func NewHasMany(path string, title ...string) *HasMany {
	f := &HasMany{display: DefaultDisplayField}
	f.init(f, path, title...)
	f.relation = f.valuePath
	f.showInEdit = false
	return f
}

func (f *HasMany) Kind() Kind       { return KindHasMany }
func (f *HasMany) Relation() string { return f.relation }

// WithRelation overrides the relation name used for eager loading
func (f *HasMany) WithRelation(relation string) *HasMany {
	f.relation = relation
	return f
}

// WithDisplay sets the attribute of each child shown in the index
func (f *HasMany) WithDisplay(attribute string) *HasMany {
	f.display = attribute
	return f
}

func (f *HasMany) Label(entity interface{}) string {
	if f.Value(entity) == nil {
		return ""
	}
	return formatValue(ResolvePath(entity, f.valuePath+".*."+f.display))
}

// =====================================
// Files
// =====================================

// fileBase is shared by File and Image. The stored value is the object
// key relative to the configured folder.
type fileBase[F any] struct {
	Base[F]
	storage FileStorage
	folder  string
}

// WithStorage sets where the uploaded files live
func (f *fileBase[F]) WithStorage(storage FileStorage) F {
	f.storage = storage
	return f.self
}

// WithFolder sets the key prefix files are stored under
func (f *fileBase[F]) WithFolder(folder string) F {
	f.folder = folder
	return f.self
}

// Key returns the full storage key for a stored file name
func (f *fileBase[F]) Key(name string) string {
	if f.folder == "" {
		return name
	}
	return path.Join(f.folder, name)
}

func (f *fileBase[F]) check() error {
	if f.storage == nil {
		return NewError(ErrorTypeConfiguration, fmt.Sprintf("file field %q has no storage", f.path))
	}
	return nil
}

// storedNames returns the file names held by the field on entity
func (f *fileBase[F]) storedNames(entity interface{}) []string {
	var names []string
	var collect func(v interface{})
	collect = func(v interface{}) {
		switch val := v.(type) {
		case nil:
		case string:
			if val != "" {
				names = append(names, val)
			}
		case *string:
			if val != nil && *val != "" {
				names = append(names, *val)
			}
		case []string:
			for _, s := range val {
				collect(s)
			}
		case []interface{}:
			for _, s := range val {
				collect(s)
			}
		}
	}
	collect(f.Value(entity))
	return names
}

func (f *fileBase[F]) deleteKeys(ctx context.Context, keys []string) error {
	if err := f.check(); err != nil {
		return err
	}
	var errs []error
	for _, key := range keys {
		if err := f.storage.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// File is an uploaded document. Its files are removed when the entity is
// deleted.
type File struct {
	fileBase[*File]
}

// NewFile creates a file field bound to path
func NewFile(path string, title ...string) *File {
	f := &File{}
	f.init(f, path, title...)
	return f
}

func (f *File) Kind() Kind { return KindFile }

// Prune deletes every file the entity references
func (f *File) Prune(ctx context.Context, entity interface{}) error {
	names := f.storedNames(entity)
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, f.Key(n))
	}
	return f.deleteKeys(ctx, keys)
}

// Image is an uploaded picture, optionally stored with resized variants
// under sibling folders ("thumbs/<name>").
type Image struct {
	fileBase[*Image]
	variants []string
}

// NewImage creates an image field bound to path
func NewImage(path string, title ...string) *Image {
	f := &Image{}
	f.init(f, path, title...)
	return f
}

func (f *Image) Kind() Kind { return KindImage }

// WithVariants names the folders holding resized copies of each image
func (f *Image) WithVariants(folders ...string) *Image {
	f.variants = append(f.variants, folders...)
	return f
}

// Prune deletes every image and its variants
func (f *Image) Prune(ctx context.Context, entity interface{}) error {
	names := f.storedNames(entity)
	keys := make([]string, 0, len(names)*(len(f.variants)+1))
	for _, n := range names {
		keys = append(keys, f.Key(n))
		for _, v := range f.variants {
			keys = append(keys, f.Key(path.Join(v, n)))
		}
	}
	return f.deleteKeys(ctx, keys)
}

package gpadmin

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// =====================================
// Value Paths
// =====================================

// NormalizePath rewrites bracket notation to dot notation: "tags[0]" becomes
// "tags.0" and "meta[a][b]" becomes "meta.a.b". Normalizing twice is a no-op.
func NormalizePath(path string) string {
	if !strings.ContainsAny(path, "[]") {
		return path
	}
	path = strings.ReplaceAll(path, "[", ".")
	return strings.ReplaceAll(path, "]", "")
}

// ResolvePath reads the value at a normalized dot path. Segments may name
// struct fields, string map keys or slice indexes; a "*" segment collects
// the remainder of the path over every element of a collection. Missing
// segments and nil pointers along the way resolve to nil.
func ResolvePath(target interface{}, path string) interface{} {
	if target == nil {
		return nil
	}
	if path == "" {
		return target
	}
	v, ok := resolve(reflect.ValueOf(target), strings.Split(path, "."))
	if !ok {
		return nil
	}
	return v
}

func resolve(v reflect.Value, segments []string) (interface{}, bool) {
	v = indirect(v)
	if len(segments) == 0 {
		if !v.IsValid() {
			return nil, true
		}
		return v.Interface(), true
	}
	if !v.IsValid() {
		return nil, false
	}

	seg := segments[0]
	if seg == "*" {
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array && v.Kind() != reflect.Map {
			return nil, false
		}
		out := make([]interface{}, 0, v.Len())
		iter := collectionValues(v)
		for _, elem := range iter {
			if r, ok := resolve(elem, segments[1:]); ok {
				out = append(out, r)
			}
		}
		return out, true
	}

	next, ok := step(v, seg)
	if !ok {
		return nil, false
	}
	return resolve(next, segments[1:])
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func collectionValues(v reflect.Value) []reflect.Value {
	if v.Kind() == reflect.Map {
		keys := v.MapKeys()
		out := make([]reflect.Value, 0, len(keys))
		for _, k := range keys {
			out = append(out, v.MapIndex(k))
		}
		return out
	}
	out := make([]reflect.Value, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, v.Index(i))
	}
	return out
}

func step(v reflect.Value, seg string) (reflect.Value, bool) {
	switch v.Kind() {
	case reflect.Struct:
		return structField(v, seg)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		val := v.MapIndex(reflect.ValueOf(seg).Convert(v.Type().Key()))
		if !val.IsValid() {
			return reflect.Value{}, false
		}
		return val, true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= v.Len() {
			return reflect.Value{}, false
		}
		return v.Index(i), true
	}
	return reflect.Value{}, false
}

// structField finds the field a path segment names. Candidates are tried in
// order: exact Go name, case-insensitive Go name, json/gorm/bun/bson tag
// names, then the snake_case form of the Go name.
func structField(v reflect.Value, seg string) (reflect.Value, bool) {
	idx := fieldIndex(v.Type(), seg)
	if idx == nil {
		return reflect.Value{}, false
	}
	f, err := v.FieldByIndexErr(idx)
	if err != nil {
		return reflect.Value{}, false
	}
	return f, true
}

func fieldIndex(t reflect.Type, seg string) []int {
	if f, ok := t.FieldByName(seg); ok && f.IsExported() {
		return f.Index
	}
	fields := reflect.VisibleFields(t)
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && strings.EqualFold(f.Name, seg) {
			return f.Index
		}
	}
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && tagNames(f.Tag)[seg] {
			return f.Index
		}
	}
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && strcase.ToSnake(f.Name) == seg {
			return f.Index
		}
	}
	return nil
}

func tagNames(tag reflect.StructTag) map[string]bool {
	names := make(map[string]bool, 4)
	for _, key := range []string{"json", "bun", "bson"} {
		if name, _, _ := strings.Cut(tag.Get(key), ","); name != "" && name != "-" {
			names[name] = true
		}
	}
	for _, part := range strings.Split(tag.Get("gorm"), ";") {
		if k, val, ok := strings.Cut(part, ":"); ok && strings.EqualFold(strings.TrimSpace(k), "column") {
			names[strings.TrimSpace(val)] = true
		}
	}
	return names
}

// SetPath assigns value to the struct field or map key named by a single
// segment or dot path on target, which must be a non-nil pointer. Numeric
// values are converted to the destination kind.
func SetPath(target interface{}, path string, value interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return NewError(ErrorTypeInvalidArgument, "set path target must be a non-nil pointer")
	}
	segments := strings.Split(NormalizePath(path), ".")
	v := rv.Elem()
	for i, seg := range segments {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return NewError(ErrorTypeInvalidArgument, fmt.Sprintf("cannot allocate %q", path))
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		last := i == len(segments)-1
		switch v.Kind() {
		case reflect.Struct:
			idx := fieldIndex(v.Type(), seg)
			if idx == nil {
				return NewError(ErrorTypeInvalidArgument, fmt.Sprintf("no field %q on %s", seg, v.Type()))
			}
			v = v.FieldByIndex(idx)
			if last {
				return assign(v, value, path)
			}
		case reflect.Map:
			if v.IsNil() || v.Type().Key().Kind() != reflect.String || !last {
				return NewError(ErrorTypeUnsupported, fmt.Sprintf("cannot set %q through a map", path))
			}
			val := reflect.ValueOf(value)
			if !val.IsValid() {
				val = reflect.Zero(v.Type().Elem())
			}
			if !val.Type().AssignableTo(v.Type().Elem()) {
				return NewError(ErrorTypeInvalidArgument, fmt.Sprintf("cannot assign %T to %q", value, path))
			}
			v.SetMapIndex(reflect.ValueOf(seg).Convert(v.Type().Key()), val)
			return nil
		default:
			return NewError(ErrorTypeUnsupported, fmt.Sprintf("cannot set %q on %s", path, v.Kind()))
		}
	}
	return nil
}

func assign(dst reflect.Value, value interface{}, path string) error {
	if !dst.CanSet() {
		return NewError(ErrorTypeInvalidArgument, fmt.Sprintf("field %q is not settable", path))
	}
	src := reflect.ValueOf(value)
	if !src.IsValid() {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if isNumber(src.Kind()) && isNumber(dst.Kind()) && src.Type().ConvertibleTo(dst.Type()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer && src.Type().AssignableTo(dst.Type().Elem()) {
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(src)
		dst.Set(p)
		return nil
	}
	return NewError(ErrorTypeInvalidArgument, fmt.Sprintf("cannot assign %T to %q (%s)", value, path, dst.Type()))
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

package gpadmin

import "reflect"

// Panel groups fields under a heading on the edit form. It has no value of
// its own.
type Panel struct {
	title  string
	fields []Item
}

// NewPanel creates a panel holding fields in order. Panels may be nested.
func NewPanel(title string, fields ...Item) *Panel {
	return &Panel{title: title, fields: fields}
}

func (p *Panel) Title() string { return p.title }

// Items returns the panel's declared children
func (p *Panel) Items() []Item { return p.fields }

// FieldsFlattened returns the fields of the panel, expanding nested panels
func (p *Panel) FieldsFlattened() []Field {
	out := make([]Field, 0, len(p.fields))
	for _, item := range p.fields {
		if isNilItem(item) {
			continue
		}
		out = append(out, item.FieldsFlattened()...)
	}
	return out
}

func isNilItem(item Item) bool {
	if item == nil {
		return true
	}
	v := reflect.ValueOf(item)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

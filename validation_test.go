package gpadmin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRules(t *testing.T) {
	rules := ParseRules("required| max:255 ||unique:users,email,{id}")
	assert.Equal(t, []Rule{
		{Name: "required"},
		{Name: "max", Args: "255"},
		{Name: "unique", Args: "users,email,{id}"},
	}, rules)
	assert.Empty(t, ParseRules("  "))
}

func TestHTMLValidation(t *testing.T) {
	tests := []struct {
		name     string
		rules    string
		ctx      FormContext
		expected string
	}{
		{"no rules", "", FormCreate, ""},
		{"required", "required", FormCreate, "required"},
		{"email with length", "required|email|max:255", FormCreate, `maxlength="255" required type="email"`},
		{"numeric bounds", "integer|min:1|max:10", FormCreate, `max="10" min="1" type="number"`},
		{"text bounds", "min:3|max:20", FormEdit, `maxlength="20" minlength="3"`},
		{"url", "url", FormCreate, `type="url"`},
		{"regex", "regex:/^[a-z]+$/i", FormCreate, `pattern="^[a-z]+$"`},
		{"sometimes keeps required on create", "sometimes|required", FormCreate, "required"},
		{"sometimes relaxes required on edit", "sometimes|required|min:8", FormEdit, `minlength="8"`},
		{"required stays on edit", "required", FormEdit, "required"},
		{"server only rules ignored", "unique:users,email|confirmed", FormCreate, ""},
		{"values escaped", `regex:/^"x"$/`, FormCreate, `pattern="^&#34;x&#34;$"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTMLValidation(tt.rules, tt.ctx))
		})
	}
}

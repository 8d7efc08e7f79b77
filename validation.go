package gpadmin

import (
	"html"
	"sort"
	"strings"
)

// =====================================
// Validation Markup
// =====================================

// Rule is one parsed entry of a pipe separated rule string
type Rule struct {
	Name string
	Args string
}

// ParseRules splits "required|max:255|unique:users,email,{id}" into rules.
// Empty entries are skipped.
func ParseRules(rules string) []Rule {
	if strings.TrimSpace(rules) == "" {
		return nil
	}
	parts := strings.Split(rules, "|")
	out := make([]Rule, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, args, _ := strings.Cut(p, ":")
		out = append(out, Rule{Name: strings.ToLower(name), Args: args})
	}
	return out
}

// HTMLValidation converts server side rules into HTML5 input attributes,
// e.g. `maxlength="255" required type="email"`. In the edit form a
// "sometimes" rule relaxes "required", since the field may be left blank to
// keep the stored value.
func HTMLValidation(rules string, ctx FormContext) string {
	parsed := ParseRules(rules)
	if len(parsed) == 0 {
		return ""
	}

	has := make(map[string]bool, len(parsed))
	for _, r := range parsed {
		has[r.Name] = true
	}
	numeric := has["numeric"] || has["integer"]

	attrs := make(map[string]string)
	for _, r := range parsed {
		switch r.Name {
		case "required":
			if ctx == FormEdit && has["sometimes"] {
				continue
			}
			attrs["required"] = ""
		case "email":
			attrs["type"] = "email"
		case "url":
			attrs["type"] = "url"
		case "numeric", "integer":
			attrs["type"] = "number"
		case "min":
			if numeric {
				attrs["min"] = r.Args
			} else {
				attrs["minlength"] = r.Args
			}
		case "max":
			if numeric {
				attrs["max"] = r.Args
			} else {
				attrs["maxlength"] = r.Args
			}
		case "regex":
			attrs["pattern"] = trimRegexDelimiters(r.Args)
		}
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if attrs[k] == "" && k == "required" {
			out = append(out, k)
			continue
		}
		out = append(out, k+`="`+html.EscapeString(attrs[k])+`"`)
	}
	return strings.Join(out, " ")
}

// trimRegexDelimiters strips "/.../flags" delimiters from a rule pattern
func trimRegexDelimiters(p string) string {
	if len(p) >= 2 && p[0] == '/' {
		if end := strings.LastIndex(p, "/"); end > 0 {
			return p[1:end]
		}
	}
	return p
}

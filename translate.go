package gpadmin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
	"gopkg.in/yaml.v3"
)

// =====================================
// Translation
// =====================================

// Translator resolves display strings for field titles, descriptions and
// confirmation messages.
type Translator interface {
	// Choice resolves a pluralization-aware message for key and count.
	Choice(key string, count int) string
	// Translate resolves a plain message. Unknown keys come back unchanged.
	Translate(key string) string
}

// Catalog is an in-memory Translator for a single locale. Choice keys are
// looked up under Prefix; Translate keys are looked up as given.
type Catalog struct {
	Locale string
	Prefix string

	// HumanizeMissing turns a missing choice key into a readable title built
	// from its last segment ("created_at" -> "Created at").
	HumanizeMissing bool

	messages map[string]string
}

// NewCatalog creates a catalog holding messages keyed by dotted path
func NewCatalog(locale, prefix string, messages map[string]string) *Catalog {
	c := &Catalog{
		Locale:   locale,
		Prefix:   prefix,
		messages: make(map[string]string, len(messages)),
	}
	for k, v := range messages {
		c.messages[k] = v
	}
	return c
}

// LoadCatalog reads <dir>/<locale>.yaml (or .yml). Nested maps are
// flattened into dotted keys.
func LoadCatalog(dir, locale, prefix string) (*Catalog, error) {
	var (
		data []byte
		err  error
	)
	for _, ext := range []string{".yaml", ".yml"} {
		data, err = os.ReadFile(filepath.Join(dir, locale+ext))
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeConfiguration, fmt.Sprintf("failed to read %s translations", locale), err)
	}

	c := NewCatalog(locale, prefix, nil)
	if err := c.Merge(data); err != nil {
		return nil, err
	}
	return c, nil
}

// Merge adds the messages of a YAML document to the catalog
func (c *Catalog) Merge(data []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return NewErrorWithCause(ErrorTypeConfiguration, "invalid translation file", err)
	}
	flattenMessages("", raw, c.messages)
	return nil
}

func flattenMessages(prefix string, in map[string]interface{}, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flattenMessages(key, val, out)
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Choice picks the singular or plural variant of a "singular|plural"
// message and substitutes :count.
func (c *Catalog) Choice(key string, count int) string {
	full := c.Prefix + key
	msg, ok := c.messages[full]
	if !ok {
		if c.HumanizeMissing {
			return humanize(key, count)
		}
		return full
	}

	variants := strings.Split(msg, "|")
	out := variants[0]
	if count != 1 && len(variants) > 1 {
		out = variants[1]
	}
	return strings.ReplaceAll(strings.TrimSpace(out), ":count", strconv.Itoa(count))
}

// Translate returns the message stored under key, or key itself
func (c *Catalog) Translate(key string) string {
	if msg, ok := c.messages[key]; ok {
		return msg
	}
	return key
}

func humanize(key string, count int) string {
	seg := key
	if i := strings.LastIndex(key, "."); i >= 0 {
		seg = key[i+1:]
	}
	words := strings.ToLower(strcase.ToDelimited(seg, ' '))
	if words == "" {
		return key
	}
	if count != 1 {
		if i := strings.LastIndex(words, " "); i >= 0 {
			words = words[:i+1] + inflection.Plural(words[i+1:])
		} else {
			words = inflection.Plural(words)
		}
	}
	return strings.ToUpper(words[:1]) + words[1:]
}

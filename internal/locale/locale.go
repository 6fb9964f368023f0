// Package locale negotiates the response language and resolves caller-facing
// messages.
package locale

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	Chinese = "zh"
	English = "en"
	// Default is also the language every computed text is produced in.
	Default = Chinese
)

// Supported lists the locales responses can be rendered in.
var Supported = []string{Chinese, English}

var translatable = map[string]bool{English: true}

// Translatable reports whether text for loc must be machine translated from
// the source locale.
func Translatable(loc string) bool { return translatable[loc] }

// Normalize folds an arbitrary locale string onto a supported locale: region
// subtags are dropped, then exact and prefix matches are tried in order.
func Normalize(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(raw, "-_"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return Default
	}
	for _, s := range Supported {
		if raw == s {
			return s
		}
	}
	for _, s := range Supported {
		if strings.HasPrefix(raw, s) || strings.HasPrefix(s, raw) {
			return s
		}
	}
	return Default
}

// Negotiate picks the response locale. An explicit value wins, then the
// highest weighted Accept-Language entry, then Default.
func Negotiate(explicit, acceptLanguage string) string {
	if strings.TrimSpace(explicit) != "" {
		return Normalize(explicit)
	}

	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return Default
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err == nil && len(tags) > 0 {
		base, _ := tags[0].Base()
		return Normalize(base.String())
	}

	first, _, _ := strings.Cut(acceptLanguage, ",")
	first, _, _ = strings.Cut(first, ";")
	return Normalize(first)
}

//go:embed messages.yaml
var messagesYAML []byte

// Catalog maps message keys to per-locale text.
type Catalog struct {
	messages map[string]map[string]string
}

// LoadCatalog parses a YAML document of key -> locale -> text.
func LoadCatalog(data []byte) (*Catalog, error) {
	var messages map[string]map[string]string
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse message catalog: %w", err)
	}
	return &Catalog{messages: messages}, nil
}

// DefaultCatalog is built from the embedded messages.yaml.
var DefaultCatalog = mustLoad(messagesYAML)

func mustLoad(data []byte) *Catalog {
	c, err := LoadCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Message returns the text for key in loc, falling back to Default and then
// to the key itself.
func (c *Catalog) Message(key, loc string) string {
	texts, ok := c.messages[key]
	if !ok {
		return key
	}
	if text := texts[loc]; text != "" {
		return text
	}
	if text := texts[Default]; text != "" {
		return text
	}
	return key
}

// Message resolves key against DefaultCatalog.
func Message(key, loc string) string {
	return DefaultCatalog.Message(key, loc)
}

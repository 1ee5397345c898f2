// Package i18n provides localized labels for generated document furniture
// (table of contents heading, cover page title, footnote section heading).
package i18n

import (
	_ "embed"
	"fmt"

	"golang.org/x/text/language"
	yaml "gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var labelsData []byte

var (
	labels    map[string]map[string]string
	supported []language.Tag
	matcher   language.Matcher
)

func init() {
	if err := yaml.Unmarshal(labelsData, &labels); err != nil {
		panic(fmt.Sprintf("malformed embedded label table: %v", err))
	}
	// first tag is the fallback
	supported = []language.Tag{language.English, language.Chinese}
	matcher = language.NewMatcher(supported)
}

// Localizer resolves label names for a single language.
type Localizer struct {
	tag  language.Tag
	base string
}

// New returns a Localizer for the given BCP 47 language tag. Unknown or
// unsupported tags fall back to English.
func New(lang string) *Localizer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	_, idx, _ := matcher.Match(tag)
	base, _ := supported[idx].Base()
	return &Localizer{tag: supported[idx], base: base.String()}
}

// Tag returns resolved language tag, suitable for dc:language metadata.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// Get returns the label with the given name. Missing names return the name
// itself so broken lookups remain visible in the output instead of failing
// the build.
func (l *Localizer) Get(name string) string {
	if t, ok := labels[l.base]; ok {
		if s, ok := t[name]; ok {
			return s
		}
	}
	if s, ok := labels["en"][name]; ok {
		return s
	}
	return name
}

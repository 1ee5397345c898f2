package book

import (
	"bytes"
	"fmt"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"epg/config"
)

// templateValues is a struct that holds variables we make available for
// output name template expansion
type templateValues struct {
	Context  string
	Title    string
	Authors  []string
	ISBN     string
	Language string
}

// ExpandOutputName expands an output file name template with book metadata.
func (b *Book) ExpandOutputName(name config.TemplateFieldName, field, language string) (string, error) {
	values := &templateValues{
		Context:  string(name),
		Title:    b.AsTitleText("Unnamed"),
		Language: language,
	}
	if b.Meta != nil {
		values.Authors = b.Meta.Authors
		values.ISBN = b.Meta.ISBN
	}
	return expandTemplate(name, field, values)
}

func expandTemplate(name config.TemplateFieldName, field string, values *templateValues) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

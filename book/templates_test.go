package book

import (
	"testing"

	"epg/config"
)

func TestExpandOutputName(t *testing.T) {
	bk := &Book{Meta: &Meta{
		Title:   "War and Peace",
		Authors: []string{"Leo Tolstoy"},
		ISBN:    "12345",
	}}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"title only", "{{ .Title }}", "War and Peace"},
		{"author and title", "{{ index .Authors 0 }} - {{ .Title }}", "Leo Tolstoy - War and Peace"},
		{"isbn", "{{ .ISBN }}/{{ .Title }}", "12345/War and Peace"},
		{"sprig function", "{{ .Title | lower }}", "war and peace"},
		{"language", "{{ .Language }}/{{ .Title }}", "en/War and Peace"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bk.ExpandOutputName(config.OutputNameTemplateFieldName, tc.template, "en")
			if err != nil {
				t.Fatalf("ExpandOutputName: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExpandOutputNameBadTemplate(t *testing.T) {
	bk := &Book{}
	if _, err := bk.ExpandOutputName(config.OutputNameTemplateFieldName, "{{ .Title", "en"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExpandOutputNameFallbackTitle(t *testing.T) {
	bk := &Book{}
	got, err := bk.ExpandOutputName(config.OutputNameTemplateFieldName, "{{ .Title }}", "en")
	if err != nil {
		t.Fatalf("ExpandOutputName: %v", err)
	}
	if got != "Unnamed" {
		t.Fatalf("expected fallback title, got %q", got)
	}
}

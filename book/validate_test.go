package book

import (
	"errors"
	"testing"
)

func source() ChapterSource {
	return ChapterSourceFunc(func() (*Chapter, error) { return &Chapter{}, nil })
}

func TestValidateAcceptsResolvableForest(t *testing.T) {
	bk := &Book{
		Chapters: []*TocEntry{
			{Title: "Part", Children: []*TocEntry{
				{Title: "1.1", Source: source()},
			}},
		},
	}
	if err := bk.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsDeadEntry(t *testing.T) {
	bk := &Book{
		Chapters: []*TocEntry{
			{Title: "Fine", Source: source()},
			{Title: "Hollow", Children: []*TocEntry{{Title: "Still hollow"}}},
		},
	}
	err := bk.Validate()
	if !errors.Is(err, ErrDeadTocEntry) {
		t.Fatalf("expected ErrDeadTocEntry, got %v", err)
	}
}

func TestValidateRejectsEmptyBook(t *testing.T) {
	if err := (&Book{}).Validate(); !errors.Is(err, ErrEmptyBook) {
		t.Fatalf("expected ErrEmptyBook, got %v", err)
	}
}

func TestValidateAcceptsHeadOnlyBook(t *testing.T) {
	bk := &Book{Head: source()}
	if err := bk.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestAsTitleText(t *testing.T) {
	if got := (&Book{}).AsTitleText("Unnamed"); got != "Unnamed" {
		t.Fatalf("expected fallback, got %q", got)
	}
	bk := &Book{Meta: &Meta{Title: "  The Title  "}}
	if got := bk.AsTitleText("Unnamed"); got != "The Title" {
		t.Fatalf("expected trimmed title, got %q", got)
	}
}

func TestInlineAsText(t *testing.T) {
	in := Inline{Kind: InlineTag, Tag: &Tag{Name: "em", Content: []Inline{
		{Kind: InlineText, Text: "a"},
		{Kind: InlineMark, Mark: &Mark{ID: 1}},
		{Kind: InlineTag, Tag: &Tag{Name: "b", Content: []Inline{{Kind: InlineText, Text: "c"}}}},
	}}}
	if got := in.AsText(); got != "ac" {
		t.Fatalf("expected %q, got %q", "ac", got)
	}
}

// Package book defines the in-memory book model consumed by the epub
// packager: metadata, the table of contents forest with lazily loaded
// chapters, and the closed set of content block types.
package book

import (
	"strings"
	"time"
)

// Meta carries book level metadata. Every field is optional - absent fields
// are either omitted from the produced package metadata or replaced by
// generated defaults (ISBN by a generated unique identifier, Modified by the
// current time).
type Meta struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Publisher   string     `json:"publisher,omitempty"`
	ISBN        string     `json:"ISBN,omitempty"`
	Authors     []string   `json:"authors,omitempty"`
	Editors     []string   `json:"editors,omitempty"`
	Translators []string   `json:"translators,omitempty"`
	Modified    *time.Time `json:"modified,omitempty"`
}

// ChapterSource produces chapter content on demand. Load is called at most
// once per source, in navigation order, at the point the chapter is written.
type ChapterSource interface {
	Load() (*Chapter, error)
}

// ChapterSourceFunc adapts a plain function to ChapterSource.
type ChapterSourceFunc func() (*Chapter, error)

func (f ChapterSourceFunc) Load() (*Chapter, error) {
	return f()
}

// TocEntry is one entry in the table of contents forest. An entry without a
// Source and without children serves no purpose and fails validation; an
// entry without a Source but with resolvable children is a section heading.
type TocEntry struct {
	Title    string
	Source   ChapterSource
	Children []*TocEntry
}

// Book is the complete input to the packager.
type Book struct {
	Meta      *Meta
	Head      ChapterSource // front matter chapter without a TOC entry
	Prefaces  []*TocEntry
	Chapters  []*TocEntry
	CoverPath string // absolute path to the cover image, empty when absent
}

// HasCover reports whether a cover image was supplied.
func (b *Book) HasCover() bool {
	return b.CoverPath != ""
}

// AsTitleText returns the book title or the supplied fallback when metadata
// has none.
func (b *Book) AsTitleText(fallback string) string {
	if b.Meta != nil && strings.TrimSpace(b.Meta.Title) != "" {
		return strings.TrimSpace(b.Meta.Title)
	}
	return fallback
}

// Chapter holds the materialized content of a single chapter. It is owned by
// whichever ChapterSource produced it and is discarded after rendering.
type Chapter struct {
	Blocks    []Block
	Footnotes []Footnote
}

// HasFormula reports whether any main content block is a formula. Used to
// flag chapters whose markup needs the mathml manifest property.
func (c *Chapter) HasFormula() bool {
	for _, b := range c.Blocks {
		if b.Kind == BlockFormula {
			return true
		}
	}
	return false
}

// BlockKind distinguishes the different kinds of block content.
type BlockKind string

const (
	BlockText    BlockKind = "text"
	BlockTable   BlockKind = "table"
	BlockFormula BlockKind = "formula"
	BlockImage   BlockKind = "image"
)

// Block stores a single content block, keeping the original ordering. Exactly
// one of the payload fields matching Kind is set; the renderer treats any
// other combination as a programming error.
type Block struct {
	Kind    BlockKind
	Text    *TextBlock
	Table   *TableBlock
	Formula *FormulaBlock
	Image   *ImageBlock
}

// TextRole selects the markup a text block renders to.
type TextRole string

const (
	RoleHeading TextRole = "heading"
	RoleBody    TextRole = "body"
	RoleQuote   TextRole = "quote"
)

// TextBlock is a heading, paragraph or quotation with inline content.
type TextBlock struct {
	Role    TextRole
	Content []Inline
}

// TableBlock carries a table either as a parsed tag tree or as an opaque
// markup string, never both.
type TableBlock struct {
	Markup  *Tag   // parsed nested structure
	Opaque  string // raw markup, parsed tolerantly at render time
	Title   []Inline
	Caption []Inline
}

// FormulaBlock carries LaTeX source. Title and Caption apply only to block
// level formulas; inline formulas embedded in text never carry them.
type FormulaBlock struct {
	Latex   string
	Title   []Inline
	Caption []Inline
}

// ImageBlock references an image by absolute source path.
type ImageBlock struct {
	Path    string
	Alt     string
	Title   []Inline
	Caption []Inline
}

// InlineKind distinguishes the different kinds of inline content.
type InlineKind string

const (
	InlineText    InlineKind = "text"
	InlineMark    InlineKind = "mark"
	InlineFormula InlineKind = "formula"
	InlineTag     InlineKind = "tag"
)

// Inline stores a single piece of inline content. Like Block, exactly one
// payload field matching Kind is set.
type Inline struct {
	Kind    InlineKind
	Text    string
	Mark    *Mark
	Formula *FormulaBlock
	Tag     *Tag
}

// AsText returns the plain text of the inline item, recursing into nested
// tags. Marks and formulas contribute nothing.
func (in *Inline) AsText() string {
	switch in.Kind {
	case InlineText:
		return in.Text
	case InlineTag:
		if in.Tag == nil {
			return ""
		}
		var buf strings.Builder
		for _, child := range in.Tag.Content {
			buf.WriteString(child.AsText())
		}
		return buf.String()
	}
	return ""
}

// Mark is an inline footnote reference by numeric ID.
type Mark struct {
	ID int
}

// Tag is a generic nested markup element preserved from the source document.
type Tag struct {
	Name    string
	Attrs   []Attr
	Content []Inline
}

// Attr is a single ordered tag attribute.
type Attr struct {
	Name  string
	Value string
}

// Footnote is one entry of a chapter's footnote section. HasMark records
// whether an inline Mark for this ID exists anywhere in the chapter; a
// footnote is rendered only when HasMark is true and it has content.
type Footnote struct {
	ID      int
	HasMark bool
	Blocks  []Block
}

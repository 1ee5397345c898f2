package epub

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"epg/book"
	"epg/config"
	"epg/i18n"
	"epg/latexmath"
)

// failingMath simulates an engine that cannot convert anything.
type failingMath struct{}

func (failingMath) ToMathML(string, bool) *etree.Element { return nil }
func (failingMath) ToSVG(string) []byte                  { return nil }

func testRenderer(t *testing.T, opts ...func(*renderer)) *renderer {
	t.Helper()
	var buf bytes.Buffer
	r := &renderer{
		assets:      NewRegistry(zip.NewWriter(&buf)),
		math:        latexmath.NewBasic(),
		tableMode:   config.TableModeHTML,
		formulaMode: config.FormulaModeMathML,
		labels:      i18n.New("en"),
		log:         zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller())),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func text(s string) book.Inline {
	return book.Inline{Kind: book.InlineText, Text: s}
}

func para(items ...book.Inline) book.Block {
	return book.Block{Kind: book.BlockText, Text: &book.TextBlock{Role: book.RoleBody, Content: items}}
}

func render(t *testing.T, r *renderer, chapter *book.Chapter) string {
	t.Helper()
	doc, _, err := r.renderChapter(chapter, "test")
	if err != nil {
		t.Fatalf("renderChapter: %v", err)
	}
	s, err := doc.WriteToString()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return s
}

func TestRenderMarkFootnoteRoundTrip(t *testing.T) {
	r := testRenderer(t)
	chapter := &book.Chapter{
		Blocks: []book.Block{
			para(text("see note"), book.Inline{Kind: book.InlineMark, Mark: &book.Mark{ID: 3}}, text(" here")),
		},
		Footnotes: []book.Footnote{
			{ID: 3, HasMark: true, Blocks: []book.Block{para(text("the note"))}},
		},
	}
	out := render(t, r, chapter)

	if n := strings.Count(out, `id="ref-3"`); n != 1 {
		t.Fatalf("expected exactly one inline anchor, got %d\n%s", n, out)
	}
	if n := strings.Count(out, `id="mark-3"`); n != 1 {
		t.Fatalf("expected exactly one back reference, got %d\n%s", n, out)
	}
	if !strings.Contains(out, `href="#mark-3"`) || !strings.Contains(out, `href="#ref-3"`) {
		t.Fatalf("anchors do not link each other:\n%s", out)
	}
	if !strings.Contains(out, `epub:type="noteref"`) {
		t.Fatalf("inline anchor missing noteref type:\n%s", out)
	}
	if !strings.Contains(out, `epub:type="footnotes"`) {
		t.Fatalf("footnote section missing:\n%s", out)
	}
}

func TestRenderFootnoteSkipping(t *testing.T) {
	r := testRenderer(t)
	chapter := &book.Chapter{
		Blocks: []book.Block{para(text("body"))},
		Footnotes: []book.Footnote{
			{ID: 1, HasMark: false, Blocks: []book.Block{para(text("orphan"))}},
			{ID: 2, HasMark: true}, // no content
		},
	}
	out := render(t, r, chapter)

	if strings.Contains(out, "orphan") {
		t.Fatalf("footnote without mark was rendered:\n%s", out)
	}
	if strings.Contains(out, "citations") {
		t.Fatalf("footnote section should be absent:\n%s", out)
	}
}

func TestRenderBackRefSplicedIntoFirstParagraph(t *testing.T) {
	r := testRenderer(t)
	chapter := &book.Chapter{
		Blocks: []book.Block{para(book.Inline{Kind: book.InlineMark, Mark: &book.Mark{ID: 1}})},
		Footnotes: []book.Footnote{
			{ID: 1, HasMark: true, Blocks: []book.Block{para(text("note text"))}},
		},
	}
	out := render(t, r, chapter)

	// back reference precedes the note text inside the same paragraph
	idx := strings.Index(out, `id="mark-1"`)
	txt := strings.Index(out, "note text")
	if idx < 0 || txt < 0 || idx > txt {
		t.Fatalf("back reference not spliced before note text:\n%s", out)
	}
}

func TestRenderTextRoles(t *testing.T) {
	r := testRenderer(t)
	chapter := &book.Chapter{Blocks: []book.Block{
		{Kind: book.BlockText, Text: &book.TextBlock{Role: book.RoleHeading, Content: []book.Inline{text("Title")}}},
		{Kind: book.BlockText, Text: &book.TextBlock{Role: book.RoleQuote, Content: []book.Inline{text("Quoted")}}},
		para(text("Body")),
	}}
	out := render(t, r, chapter)

	if !strings.Contains(out, "<h1>Title</h1>") {
		t.Fatalf("heading missing:\n%s", out)
	}
	if !strings.Contains(out, "<blockquote><p>Quoted</p></blockquote>") {
		t.Fatalf("quote missing:\n%s", out)
	}
	if !strings.Contains(out, "<p>Body</p>") {
		t.Fatalf("paragraph missing:\n%s", out)
	}
}

func TestRenderInlineTextAfterTag(t *testing.T) {
	r := testRenderer(t)
	chapter := &book.Chapter{Blocks: []book.Block{
		para(
			text("before "),
			book.Inline{Kind: book.InlineTag, Tag: &book.Tag{Name: "em", Content: []book.Inline{text("inner")}}},
			text(" after"),
		),
	}}
	out := render(t, r, chapter)

	if !strings.Contains(out, "<p>before <em>inner</em> after</p>") {
		t.Fatalf("trailing text lost or misplaced:\n%s", out)
	}
}

func TestRenderFormulaFailureOmitsElementOnly(t *testing.T) {
	r := testRenderer(t, func(r *renderer) { r.math = failingMath{} })
	chapter := &book.Chapter{Blocks: []book.Block{
		para(text("before")),
		{Kind: book.BlockFormula, Formula: &book.FormulaBlock{Latex: `\frac{1}{0}`}},
		para(text("after")),
	}}
	out := render(t, r, chapter)

	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Fatalf("siblings lost when formula failed:\n%s", out)
	}
	if strings.Contains(out, "math") {
		t.Fatalf("failed formula should produce no output:\n%s", out)
	}
}

func TestRenderFormulaMathML(t *testing.T) {
	r := testRenderer(t)
	chapter := &book.Chapter{Blocks: []book.Block{
		{Kind: book.BlockFormula, Formula: &book.FormulaBlock{Latex: "x^2"}},
	}}
	doc, hasMathML, err := r.renderChapter(chapter, "test")
	if err != nil {
		t.Fatalf("renderChapter: %v", err)
	}
	if !hasMathML {
		t.Fatal("expected MathML flag for mathml mode")
	}
	out, _ := doc.WriteToString()
	if !strings.Contains(out, `display="block"`) {
		t.Fatalf("block formula should use display=block:\n%s", out)
	}
}

func TestRenderFormulaImageMode(t *testing.T) {
	r := testRenderer(t, func(r *renderer) { r.formulaMode = config.FormulaModeImage })
	chapter := &book.Chapter{Blocks: []book.Block{
		{Kind: book.BlockFormula, Formula: &book.FormulaBlock{Latex: "E=mc^2"}},
	}}
	doc, hasMathML, err := r.renderChapter(chapter, "test")
	if err != nil {
		t.Fatalf("renderChapter: %v", err)
	}
	if hasMathML {
		t.Fatal("image mode must not set MathML flag")
	}
	out, _ := doc.WriteToString()
	if !strings.Contains(out, "../assets/") || !strings.Contains(out, ".svg") {
		t.Fatalf("formula image reference missing:\n%s", out)
	}
	if len(r.assets.Manifest()) != 1 {
		t.Fatalf("expected formula asset registered, got %d", len(r.assets.Manifest()))
	}
}

func TestRenderFormulaSuppressed(t *testing.T) {
	r := testRenderer(t, func(r *renderer) { r.formulaMode = config.FormulaModeSuppress })
	chapter := &book.Chapter{Blocks: []book.Block{
		{Kind: book.BlockFormula, Formula: &book.FormulaBlock{Latex: "x"}},
	}}
	out := render(t, r, chapter)

	if strings.Contains(out, "math") || strings.Contains(out, "img") {
		t.Fatalf("suppressed formula leaked into output:\n%s", out)
	}
}

func TestRenderTableOpaqueMarkup(t *testing.T) {
	r := testRenderer(t)
	chapter := &book.Chapter{Blocks: []book.Block{
		{Kind: book.BlockTable, Table: &book.TableBlock{
			Opaque: `<table><tr><td>cell</td></tr></table>`,
		}},
	}}
	out := render(t, r, chapter)

	if !strings.Contains(out, "<td>cell</td>") {
		t.Fatalf("table markup lost:\n%s", out)
	}
	if !strings.Contains(out, `class="alt-wrapper"`) {
		t.Fatalf("table not wrapped:\n%s", out)
	}
}

func TestRenderTableUnparseableMarkup(t *testing.T) {
	r := testRenderer(t)
	chapter := &book.Chapter{Blocks: []book.Block{
		para(text("before")),
		{Kind: book.BlockTable, Table: &book.TableBlock{Opaque: "just words, no tags"}},
		para(text("after")),
	}}
	out := render(t, r, chapter)

	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Fatalf("siblings lost when table markup failed:\n%s", out)
	}
}

func TestRenderTableSuppressed(t *testing.T) {
	r := testRenderer(t, func(r *renderer) { r.tableMode = config.TableModeSuppress })
	chapter := &book.Chapter{Blocks: []book.Block{
		{Kind: book.BlockTable, Table: &book.TableBlock{Opaque: "<table><tr><td>x</td></tr></table>"}},
	}}
	out := render(t, r, chapter)

	if strings.Contains(out, "table") {
		t.Fatalf("suppressed table leaked into output:\n%s", out)
	}
}

func TestRenderTitleCaptionWrapping(t *testing.T) {
	r := testRenderer(t)
	chapter := &book.Chapter{Blocks: []book.Block{
		{Kind: book.BlockTable, Table: &book.TableBlock{
			Opaque:  "<table><tr><td>x</td></tr></table>",
			Title:   []book.Inline{text("Table 1")},
			Caption: []book.Inline{text("numbers")},
		}},
	}}
	out := render(t, r, chapter)

	ti := strings.Index(out, `class="asset-title"`)
	co := strings.Index(out, "<table>")
	ca := strings.Index(out, `class="asset-caption"`)
	if ti < 0 || co < 0 || ca < 0 {
		t.Fatalf("container pieces missing:\n%s", out)
	}
	if !(ti < co && co < ca) {
		t.Fatalf("title/content/caption out of order:\n%s", out)
	}
}

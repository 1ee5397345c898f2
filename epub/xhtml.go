package epub

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"epg/book"
	"epg/config"
	"epg/i18n"
	"epg/latexmath"
	"epg/utils/images"
)

// renderer converts content blocks into XHTML element trees. Backend
// failures (malformed formulas, unparseable table markup) degrade to missing
// output for that element and never abort the chapter; archive write
// failures and missing image files do.
type renderer struct {
	assets      *Registry
	math        latexmath.Renderer
	tableMode   config.TableMode
	formulaMode config.FormulaMode
	rasterize   bool
	labels      *i18n.Localizer
	log         *zap.Logger

	hasMathML bool // tracked per chapter
}

// renderChapter produces the chapter document and reports whether it
// contains MathML markup (needed for the manifest properties attribute).
func (r *renderer) renderChapter(chapter *book.Chapter, title string) (*etree.Document, bool, error) {
	r.hasMathML = false

	doc, root := createChapterDocument(title)
	for _, block := range chapter.Blocks {
		if err := r.appendBlock(root, block); err != nil {
			return nil, false, err
		}
	}
	if err := r.appendFootnotes(root, chapter.Footnotes); err != nil {
		return nil, false, err
	}
	return doc, r.hasMathML, nil
}

func createChapterDocument(title string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")

	head := html.CreateElement("head")

	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")

	link := head.CreateElement("link")
	link.CreateAttr("rel", "stylesheet")
	link.CreateAttr("type", "text/css")
	link.CreateAttr("href", "../"+stylesDir+"/style.css")

	titleElem := head.CreateElement("title")
	titleElem.SetText(title)

	body := html.CreateElement("body")
	return doc, body
}

func (r *renderer) appendBlock(parent *etree.Element, block book.Block) error {
	switch block.Kind {
	case book.BlockText:
		return r.appendText(parent, block.Text)
	case book.BlockTable:
		return r.appendTable(parent, block.Table)
	case book.BlockFormula:
		return r.appendFormula(parent, block.Formula, false)
	case book.BlockImage:
		return r.appendImage(parent, block.Image)
	default:
		r.log.DPanic("Unknown content block kind", zap.String("kind", string(block.Kind)))
		return nil
	}
}

func (r *renderer) appendText(parent *etree.Element, tb *book.TextBlock) error {
	var target *etree.Element
	switch tb.Role {
	case book.RoleHeading:
		target = parent.CreateElement("h1")
	case book.RoleQuote:
		blockquote := parent.CreateElement("blockquote")
		target = blockquote.CreateElement("p")
	case book.RoleBody:
		fallthrough
	default:
		target = parent.CreateElement("p")
	}
	return r.appendInline(target, tb.Content)
}

// appendInline renders inline items left to right. Text runs are appended as
// character data tokens after whatever was emitted before them, so trailing
// text lands behind the most recent inline child; adjacent runs concatenate
// on serialization.
func (r *renderer) appendInline(parent *etree.Element, items []book.Inline) error {
	for _, item := range items {
		switch item.Kind {
		case book.InlineText:
			parent.CreateText(item.Text)
		case book.InlineMark:
			appendMarkAnchor(parent, item.Mark.ID)
		case book.InlineFormula:
			if err := r.appendFormula(parent, item.Formula, true); err != nil {
				return err
			}
		case book.InlineTag:
			el := parent.CreateElement(item.Tag.Name)
			for _, a := range item.Tag.Attrs {
				el.CreateAttr(a.Name, a.Value)
			}
			if err := r.appendInline(el, item.Tag.Content); err != nil {
				return err
			}
		default:
			r.log.DPanic("Unknown inline content kind", zap.String("kind", string(item.Kind)))
		}
	}
	return nil
}

func appendMarkAnchor(parent *etree.Element, id int) {
	a := parent.CreateElement("a")
	a.CreateAttr("id", fmt.Sprintf("ref-%d", id))
	a.CreateAttr("href", fmt.Sprintf("#mark-%d", id))
	a.CreateAttr("class", "super")
	a.CreateAttr("epub:type", "noteref")
	a.SetText(fmt.Sprintf("[%d]", id))
}

func (r *renderer) appendTable(parent *etree.Element, tb *book.TableBlock) error {
	if r.tableMode == config.TableModeSuppress {
		return nil
	}

	var content *etree.Element
	switch {
	case tb.Markup != nil:
		content = etree.NewElement(tb.Markup.Name)
		for _, a := range tb.Markup.Attrs {
			content.CreateAttr(a.Name, a.Value)
		}
		if err := r.appendInline(content, tb.Markup.Content); err != nil {
			return err
		}
	case tb.Opaque != "":
		content = r.parseOpaqueMarkup(tb.Opaque)
	}
	if content == nil {
		r.log.Warn("Table produced no markup, skipping")
		return nil
	}

	wrapper := etree.NewElement("div")
	wrapper.CreateAttr("class", "alt-wrapper")
	wrapper.AddChild(content)
	return r.wrapTitleCaption(parent, wrapper, tb.Title, tb.Caption)
}

// parseOpaqueMarkup converts an opaque table markup string into an element
// tree using a tolerant HTML parse. Returns nil when nothing usable comes
// out.
func (r *renderer) parseOpaqueMarkup(markup string) *etree.Element {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		r.log.Warn("Unable to parse table markup, skipping", zap.Error(err))
		return nil
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			el := etree.NewElement(n.Data)
			for _, a := range n.Attr {
				el.CreateAttr(a.Key, a.Val)
			}
			convertHTMLChildren(el, n)
			return el
		}
	}
	return nil
}

func convertHTMLChildren(parent *etree.Element, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			parent.CreateText(c.Data)
		case html.ElementNode:
			el := parent.CreateElement(c.Data)
			for _, a := range c.Attr {
				el.CreateAttr(a.Key, a.Val)
			}
			convertHTMLChildren(el, c)
		}
	}
}

func (r *renderer) appendFormula(parent *etree.Element, fb *book.FormulaBlock, inline bool) error {
	if r.formulaMode == config.FormulaModeSuppress {
		return nil
	}
	expr := latexmath.Normalize(fb.Latex)
	if expr == "" {
		return nil
	}
	if r.math == nil {
		r.log.Warn("No formula renderer available, skipping formula")
		return nil
	}

	var content *etree.Element
	switch r.formulaMode {
	case config.FormulaModeMathML:
		content = r.math.ToMathML(expr, inline)
		if content == nil {
			r.log.Warn("Unable to convert formula, skipping", zap.String("latex", expr))
			return nil
		}
		r.hasMathML = true
	case config.FormulaModeImage:
		svg := r.math.ToSVG(expr)
		if svg == nil {
			r.log.Warn("Unable to render formula, skipping", zap.String("latex", expr))
			return nil
		}
		data, ext := svg, ".svg"
		if r.rasterize {
			if png, err := images.SVGToPNG(svg, 0, 0); err != nil {
				r.log.Warn("Unable to rasterize formula, keeping vector form", zap.Error(err))
			} else {
				data, ext = png, ".png"
			}
		}
		name, err := r.assets.Add(data, ext)
		if err != nil {
			return err
		}

		img := etree.NewElement("img")
		img.CreateAttr("src", "../"+assetsDir+"/"+name)
		img.CreateAttr("alt", "formula")

		if inline {
			content = etree.NewElement("span")
			content.CreateAttr("class", "formula-inline")
		} else {
			content = etree.NewElement("div")
			content.CreateAttr("class", "alt-wrapper")
		}
		content.AddChild(img)
	}
	if content == nil {
		return nil
	}

	// inline formulas never carry title or caption
	if inline {
		parent.AddChild(content)
		return nil
	}
	return r.wrapTitleCaption(parent, content, fb.Title, fb.Caption)
}

func (r *renderer) appendImage(parent *etree.Element, ib *book.ImageBlock) error {
	name, err := r.assets.Use(ib.Path)
	if err != nil {
		return err
	}

	img := etree.NewElement("img")
	img.CreateAttr("src", "../"+assetsDir+"/"+name)
	img.CreateAttr("alt", "") // caption carries the description

	wrapper := etree.NewElement("div")
	wrapper.CreateAttr("class", "alt-wrapper")
	wrapper.AddChild(img)
	return r.wrapTitleCaption(parent, wrapper, ib.Title, ib.Caption)
}

// wrapTitleCaption attaches content to parent, wrapped in a container with a
// title block above and a caption block below when either is present.
func (r *renderer) wrapTitleCaption(parent, content *etree.Element, title, caption []book.Inline) error {
	if len(title) == 0 && len(caption) == 0 {
		parent.AddChild(content)
		return nil
	}

	container := parent.CreateElement("div")
	container.CreateAttr("class", "asset-container")

	if len(title) > 0 {
		div := container.CreateElement("div")
		div.CreateAttr("class", "asset-title")
		if err := r.appendInline(div, title); err != nil {
			return err
		}
	}
	container.AddChild(content)
	if len(caption) > 0 {
		div := container.CreateElement("div")
		div.CreateAttr("class", "asset-caption")
		if err := r.appendInline(div, caption); err != nil {
			return err
		}
	}
	return nil
}

// appendFootnotes renders the chapter's footnote section. Footnotes without
// a referencing mark or without content are skipped silently. Each rendered
// footnote gets a back-reference anchor spliced in as its very first inline
// element.
func (r *renderer) appendFootnotes(root *etree.Element, footnotes []book.Footnote) error {
	var section *etree.Element
	for _, fn := range footnotes {
		if !fn.HasMark || len(fn.Blocks) == 0 {
			continue
		}

		citation := etree.NewElement("div")
		citation.CreateAttr("class", "citation")
		for _, block := range fn.Blocks {
			if err := r.appendBlock(citation, block); err != nil {
				return err
			}
		}
		if len(citation.ChildElements()) == 0 {
			continue
		}

		ref := etree.NewElement("a")
		ref.CreateAttr("id", fmt.Sprintf("mark-%d", fn.ID))
		ref.CreateAttr("href", fmt.Sprintf("#ref-%d", fn.ID))
		ref.CreateAttr("class", "citation")
		ref.SetText(fmt.Sprintf("[%d]", fn.ID))

		first := citation.ChildElements()[0]
		if first.Tag == "p" {
			first.InsertChildAt(0, ref)
		} else {
			p := etree.NewElement("p")
			p.AddChild(ref)
			citation.InsertChildAt(0, p)
		}

		if section == nil {
			section = root.CreateElement("div")
			section.CreateAttr("class", "citations")
			section.CreateAttr("epub:type", "footnotes")
			h2 := section.CreateElement("h2")
			h2.CreateAttr("class", "citations-title")
			h2.SetText(r.labels.Get("references"))
		}
		section.AddChild(citation)
	}
	return nil
}

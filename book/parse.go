package book

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/maruel/natural"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// Folder based input format:
//
//	meta.json                   - book metadata (optional)
//	index.json                  - TOC forest: {"prefaces": [...], "chapters": [...]}
//	                              entries are {"id": int, "headline": string, "children": [...]}
//	chapters/chapter.xml        - front matter chapter without a TOC entry (optional)
//	chapters/chapter_<id>.xml   - chapter content per index entry id
//	cover.png                   - cover image (optional)
//	assets/<hash>.<ext>         - image files referenced by chapter content
//
// Chapter files are parsed lazily - LoadFolder only verifies they exist.

type indexEntry struct {
	ID       *int         `json:"id"`
	Headline string       `json:"headline"`
	Children []indexEntry `json:"children"`
}

type indexFile struct {
	Prefaces []indexEntry `json:"prefaces"`
	Chapters []indexEntry `json:"chapters"`
}

// LoadFolder reads a book from its folder representation. Chapter XML files
// are checked for existence but parsed only when the corresponding
// ChapterSource is loaded.
func LoadFolder(dir string, log *zap.Logger) (*Book, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve book folder: %w", err)
	}
	dir = abs

	bk := &Book{}

	if meta, err := loadMeta(filepath.Join(dir, "meta.json")); err != nil {
		return nil, err
	} else if meta != nil {
		bk.Meta = meta
	}

	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		return nil, fmt.Errorf("unable to read book index: %w", err)
	}
	var index indexFile
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("unable to parse book index: %w", err)
	}

	if bk.Prefaces, err = buildEntries(dir, index.Prefaces, log); err != nil {
		return nil, err
	}
	if bk.Chapters, err = buildEntries(dir, index.Chapters, log); err != nil {
		return nil, err
	}

	headPath := filepath.Join(dir, "chapters", "chapter.xml")
	if _, err := os.Stat(headPath); err == nil {
		bk.Head = folderSource(dir, headPath, log)
	}

	coverPath := filepath.Join(dir, "cover.png")
	if _, err := os.Stat(coverPath); err == nil {
		bk.CoverPath = coverPath
	}

	if err := bk.Validate(); err != nil {
		return nil, err
	}
	return bk, nil
}

func loadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read book metadata: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unable to parse book metadata: %w", err)
	}
	return &meta, nil
}

func buildEntries(dir string, items []indexEntry, log *zap.Logger) ([]*TocEntry, error) {
	entries := make([]*TocEntry, 0, len(items))
	for _, item := range items {
		entry, err := buildEntry(dir, item, log)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func buildEntry(dir string, item indexEntry, log *zap.Logger) (*TocEntry, error) {
	entry := &TocEntry{Title: item.Headline}

	if item.ID != nil {
		path := filepath.Join(dir, "chapters", fmt.Sprintf("chapter_%d.xml", *item.ID))
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("chapter %d (%q): %w", *item.ID, item.Headline, err)
		}
		entry.Source = folderSource(dir, path, log)
	}

	for _, child := range item.Children {
		sub, err := buildEntry(dir, child, log)
		if err != nil {
			return nil, err
		}
		entry.Children = append(entry.Children, sub)
	}
	return entry, nil
}

func folderSource(dir, path string, log *zap.Logger) ChapterSource {
	return ChapterSourceFunc(func() (*Chapter, error) {
		return parseChapterFile(dir, path, log)
	})
}

func parseChapterFile(dir, path string, log *zap.Logger) (*Chapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open chapter: %w", err)
	}
	defer f.Close()

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("unable to read chapter %s: %w", filepath.Base(path), err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "chapter" {
		return nil, fmt.Errorf("chapter %s: unexpected root element", filepath.Base(path))
	}

	chapter := &Chapter{}
	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "footnote":
			fn, ok := parseFootnote(dir, child, log)
			if ok {
				chapter.Footnotes = append(chapter.Footnotes, fn)
			}
		default:
			block, ok := parseBlock(dir, child, log)
			if ok {
				chapter.Blocks = append(chapter.Blocks, block)
			}
		}
	}
	markFootnotes(chapter)
	return chapter, nil
}

func parseBlock(dir string, el *etree.Element, log *zap.Logger) (Block, bool) {
	switch el.Tag {
	case "headline":
		return Block{Kind: BlockText, Text: &TextBlock{Role: RoleHeading, Content: parseInline(dir, el, log)}}, true
	case "text":
		return Block{Kind: BlockText, Text: &TextBlock{Role: RoleBody, Content: parseInline(dir, el, log)}}, true
	case "quote":
		return Block{Kind: BlockText, Text: &TextBlock{Role: RoleQuote, Content: parseInline(dir, el, log)}}, true
	case "table":
		return parseTable(dir, el, log)
	case "formula":
		fb := &FormulaBlock{Latex: el.Text()}
		parseTitleCaption(dir, el, &fb.Title, &fb.Caption, log)
		return Block{Kind: BlockFormula, Formula: fb}, true
	case "image":
		return parseImage(dir, el, log)
	default:
		log.Warn("Unexpected tag in chapter, ignoring", zap.String("tag", el.Tag))
		return Block{}, false
	}
}

func parseTable(dir string, el *etree.Element, log *zap.Logger) (Block, bool) {
	tb := &TableBlock{}
	for _, child := range el.ChildElements() {
		if child.Tag != "html" {
			continue
		}
		var buf strings.Builder
		for _, inner := range child.ChildElements() {
			s, err := serializeElement(inner)
			if err != nil {
				log.Warn("Unable to serialize table markup, skipping", zap.Error(err))
				continue
			}
			buf.WriteString(s)
		}
		tb.Opaque = buf.String()
	}
	if tb.Opaque == "" {
		log.Warn("Table without markup, ignoring")
		return Block{}, false
	}
	parseTitleCaption(dir, el, &tb.Title, &tb.Caption, log)
	return Block{Kind: BlockTable, Table: tb}, true
}

func parseImage(dir string, el *etree.Element, log *zap.Logger) (Block, bool) {
	hash := el.SelectAttrValue("hash", "")
	if hash == "" {
		log.Warn("Image without hash, ignoring")
		return Block{}, false
	}
	ib := &ImageBlock{Path: resolveAsset(dir, hash)}
	parseTitleCaption(dir, el, &ib.Title, &ib.Caption, log)
	if desc := strings.TrimSpace(el.Text()); desc != "" && len(ib.Caption) == 0 {
		ib.Caption = []Inline{{Kind: InlineText, Text: desc}}
	}
	return Block{Kind: BlockImage, Image: ib}, true
}

// resolveAsset maps an asset hash to its file under assets/. When several
// extensions exist for the same hash the first in natural order wins.
func resolveAsset(dir, hash string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "assets", hash+".*"))
	if err == nil && len(matches) > 0 {
		sort.Sort(natural.StringSlice(matches))
		return matches[0]
	}
	return filepath.Join(dir, "assets", hash+".png")
}

func parseTitleCaption(dir string, el *etree.Element, title, caption *[]Inline, log *zap.Logger) {
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "title":
			*title = parseInline(dir, child, log)
		case "caption":
			*caption = parseInline(dir, child, log)
		}
	}
}

func parseFootnote(dir string, el *etree.Element, log *zap.Logger) (Footnote, bool) {
	id, err := strconv.Atoi(el.SelectAttrValue("id", ""))
	if err != nil {
		log.Warn("Footnote with invalid id, ignoring", zap.String("id", el.SelectAttrValue("id", "")))
		return Footnote{}, false
	}
	fn := Footnote{ID: id}
	for _, child := range el.ChildElements() {
		if child.Tag == "mark" && child.SelectAttr("id") == nil {
			continue // placement indicator, not content
		}
		block, ok := parseBlock(dir, child, log)
		if ok {
			fn.Blocks = append(fn.Blocks, block)
		}
	}
	return fn, true
}

func parseInline(dir string, el *etree.Element, log *zap.Logger) []Inline {
	var items []Inline
	for _, token := range el.Child {
		switch t := token.(type) {
		case *etree.CharData:
			if t.Data != "" {
				items = append(items, Inline{Kind: InlineText, Text: t.Data})
			}
		case *etree.Element:
			switch t.Tag {
			case "title", "caption":
				// handled by the enclosing block
			case "mark":
				id, err := strconv.Atoi(t.SelectAttrValue("id", ""))
				if err != nil {
					log.Warn("Mark with invalid id, ignoring", zap.String("id", t.SelectAttrValue("id", "")))
					continue
				}
				items = append(items, Inline{Kind: InlineMark, Mark: &Mark{ID: id}})
			case "formula":
				items = append(items, Inline{Kind: InlineFormula, Formula: &FormulaBlock{Latex: t.Text()}})
			default:
				tag := &Tag{Name: t.Tag}
				for _, a := range t.Attr {
					tag.Attrs = append(tag.Attrs, Attr{Name: a.Key, Value: a.Value})
				}
				tag.Content = parseInline(dir, t, log)
				items = append(items, Inline{Kind: InlineTag, Tag: tag})
			}
		}
	}
	return items
}

// markFootnotes sets HasMark on every footnote whose ID is referenced by an
// inline mark anywhere in the chapter's main content.
func markFootnotes(chapter *Chapter) {
	seen := make(map[int]bool)
	for _, block := range chapter.Blocks {
		collectMarks(block, seen)
	}
	for i := range chapter.Footnotes {
		chapter.Footnotes[i].HasMark = seen[chapter.Footnotes[i].ID]
	}
}

func collectMarks(block Block, seen map[int]bool) {
	switch block.Kind {
	case BlockText:
		collectInlineMarks(block.Text.Content, seen)
	case BlockTable:
		collectInlineMarks(block.Table.Title, seen)
		collectInlineMarks(block.Table.Caption, seen)
	case BlockFormula:
		collectInlineMarks(block.Formula.Title, seen)
		collectInlineMarks(block.Formula.Caption, seen)
	case BlockImage:
		collectInlineMarks(block.Image.Title, seen)
		collectInlineMarks(block.Image.Caption, seen)
	}
}

func collectInlineMarks(items []Inline, seen map[int]bool) {
	for _, item := range items {
		switch item.Kind {
		case InlineMark:
			seen[item.Mark.ID] = true
		case InlineTag:
			collectInlineMarks(item.Tag.Content, seen)
		}
	}
}

func serializeElement(el *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return doc.WriteToString()
}

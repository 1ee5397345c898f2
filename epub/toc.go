package epub

import (
	"fmt"

	"epg/book"
)

// NavRef is a resolved, file backed navigation target.
type NavRef struct {
	ID       int    // sequential, assigned depth-first pre-order
	FileName string // partNNN.xhtml, zero padded
	Order    int    // spine/reading order
	Title    string
	Source   book.ChapterSource
}

// NavPoint is one node of the navigation tree. Placeholder nodes (pure
// section headings) have a nil Ref and borrow the file of their first
// resolved descendant for navigation targets.
type NavPoint struct {
	Title    string
	Ref      *NavRef
	Children []*NavPoint
}

// Placeholder reports whether the node has no file of its own.
func (np *NavPoint) Placeholder() bool {
	return np.Ref == nil
}

// Resolve returns the navigation target for the node: its own ref, or the
// ref of the first resolved descendant, children walked in order depth-first.
func (np *NavPoint) Resolve() *NavRef {
	if np.Ref != nil {
		return np.Ref
	}
	for _, child := range np.Children {
		if ref := child.Resolve(); ref != nil {
			return ref
		}
	}
	return nil
}

// BuildNav transforms the TOC forest into the navigation tree and the flat
// ordered list of file backed refs. Prefaces always precede chapters in both
// ID and reading order space. IDs are assigned pre-order, parent before
// children; reading order starts at 2 when the book has a cover page.
//
// File name padding width is computed from the total node count, resolvable
// or not, so names stay lexically sortable when placeholders later gain
// content.
func BuildNav(prefaces, chapters []*book.TocEntry, hasCover bool) ([]*NavPoint, []*NavRef, error) {
	gen := &navGenerator{nextID: 1, nextOrder: 1}
	if hasCover {
		gen.nextOrder = 2
	}
	total := countEntries(prefaces) + countEntries(chapters)
	gen.digits = len(fmt.Sprintf("%d", total))

	var points []*NavPoint
	for _, forest := range [][]*book.TocEntry{prefaces, chapters} {
		for _, entry := range forest {
			np, err := gen.build(entry)
			if err != nil {
				return nil, nil, err
			}
			points = append(points, np)
		}
	}

	var refs []*NavRef
	for _, np := range points {
		refs = flatten(np, refs)
	}
	return points, refs, nil
}

type navGenerator struct {
	nextID    int
	nextOrder int
	digits    int
}

func (g *navGenerator) build(entry *book.TocEntry) (*NavPoint, error) {
	np := &NavPoint{Title: entry.Title}

	// own ref first, then children - keeps IDs pre-order
	if entry.Source != nil {
		np.Ref = &NavRef{
			ID:       g.nextID,
			FileName: fmt.Sprintf("part%0*d.xhtml", g.digits, g.nextID),
			Order:    g.nextOrder,
			Title:    entry.Title,
			Source:   entry.Source,
		}
		g.nextID++
		g.nextOrder++
	}

	for _, child := range entry.Children {
		sub, err := g.build(child)
		if err != nil {
			return nil, err
		}
		np.Children = append(np.Children, sub)
	}

	if np.Resolve() == nil {
		return nil, fmt.Errorf("%q: %w", entry.Title, book.ErrDeadTocEntry)
	}
	return np, nil
}

func flatten(np *NavPoint, refs []*NavRef) []*NavRef {
	if np.Ref != nil {
		refs = append(refs, np.Ref)
	}
	for _, child := range np.Children {
		refs = flatten(child, refs)
	}
	return refs
}

func countEntries(entries []*book.TocEntry) int {
	count := 0
	for _, entry := range entries {
		count += 1 + countEntries(entry.Children)
	}
	return count
}

func maxDepth(points []*NavPoint) int {
	depth := 0
	for _, np := range points {
		if d := maxDepth(np.Children) + 1; d > depth {
			depth = d
		}
	}
	return depth
}

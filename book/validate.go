package book

import (
	"errors"
	"fmt"
)

var (
	// ErrDeadTocEntry marks a TOC entry that has no chapter of its own and no
	// descendant with one - a navigation entry pointing at nothing.
	ErrDeadTocEntry = errors.New("toc entry resolves to no content")

	// ErrEmptyBook marks a book without a single loadable chapter.
	ErrEmptyBook = errors.New("book has no chapters")
)

// Validate checks the structural invariants of the TOC forest before any
// output is written. It does not load chapters.
func (b *Book) Validate() error {
	total := 0
	for _, forest := range [][]*TocEntry{b.Prefaces, b.Chapters} {
		for _, entry := range forest {
			n, err := validateEntry(entry)
			if err != nil {
				return err
			}
			total += n
		}
	}
	if total == 0 && b.Head == nil {
		return ErrEmptyBook
	}
	return nil
}

// validateEntry returns the number of resolvable entries in the subtree.
func validateEntry(entry *TocEntry) (int, error) {
	count := 0
	if entry.Source != nil {
		count++
	}
	for _, child := range entry.Children {
		n, err := validateEntry(child)
		if err != nil {
			return 0, err
		}
		count += n
	}
	if count == 0 {
		return 0, fmt.Errorf("%q: %w", entry.Title, ErrDeadTocEntry)
	}
	return count, nil
}

// Package archive provides safe traversal and extraction of zip archives
// holding packed book folders.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// WalkFunc is called by Walk for every archive file entry whose name starts
// with the requested prefix. Returning an error stops the walk.
type WalkFunc func(archive string, file *zip.File) error

// Walk visits file entries of the archive with names under the given prefix.
// Every entry name is checked before the callback runs - absolute paths and
// ".." components are rejected so a crafted archive cannot reference anything
// outside its own tree (Zip Slip).
func Walk(archive, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// Extract unpacks every file under pathIn inside the archive into destDir,
// keeping the relative directory layout. Book folders travel as archives and
// must be materialized on disk before processing since chapter and asset
// files are read lazily by path.
func Extract(archive, pathIn, destDir string) error {
	return Walk(archive, pathIn, func(_ string, f *zip.File) error {
		rel := strings.TrimPrefix(strings.TrimPrefix(f.FileHeader.Name, pathIn), "/")
		if rel == "" {
			rel = path.Base(f.FileHeader.Name)
		}
		target := filepath.Join(destDir, filepath.FromSlash(rel))

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("unable to create directory for %q: %w", rel, err)
		}

		r, err := f.Open()
		if err != nil {
			return fmt.Errorf("unable to open zip entry %q: %w", f.FileHeader.Name, err)
		}
		defer r.Close()

		out, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("unable to create %q: %w", target, err)
		}
		defer out.Close()

		if _, err := io.Copy(out, r); err != nil {
			return fmt.Errorf("unable to extract %q: %w", f.FileHeader.Name, err)
		}
		return out.Close()
	})
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

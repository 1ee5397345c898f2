package epub

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// AssetRef is one manifest entry produced by the registry.
type AssetRef struct {
	FileName  string
	MediaType string
}

// Registry tracks asset files claimed by the content renderer and
// deduplicates them by content. Names are content addressed so repeated
// registrations of the same image yield the same archive entry.
//
// Synthesized byte assets (Add) are written to the archive immediately;
// source path assets (Use) are copied once during Finalize. The registry is
// not safe for concurrent use - the assembler owns it on a single thread.
type Registry struct {
	zw      *zip.Writer
	used    map[string]string // file name -> media type
	pending map[string]string // file name -> source path, copy deferred
	byPath  map[string]string // source path -> assigned file name
}

func NewRegistry(zw *zip.Writer) *Registry {
	return &Registry{
		zw:      zw,
		used:    make(map[string]string),
		pending: make(map[string]string),
		byPath:  make(map[string]string),
	}
}

// Use registers a source file for inclusion and returns its archive file
// name. The file must exist at registration time - a missing image asset is
// unrecoverable for the block referencing it. The physical copy is deferred
// until Finalize.
func (r *Registry) Use(sourcePath string) (string, error) {
	if name, ok := r.byPath[sourcePath]; ok {
		return name, nil
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("unable to access image asset: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	head = head[:n]

	hasher := sha256.New()
	hasher.Write(head)
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("unable to hash image asset: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(sourcePath))
	if ext == "" {
		ext = ".png"
	}
	name := hex.EncodeToString(hasher.Sum(nil))[:16] + ext

	r.byPath[sourcePath] = name
	if _, ok := r.used[name]; ok {
		// same content already registered under another path
		return name, nil
	}
	r.used[name] = mediaTypeFor(ext, head)
	r.pending[name] = sourcePath
	return name, nil
}

// Add registers synthesized bytes (rendered formula images) and writes them
// to the archive at once. Ext selects the file extension and media type.
func (r *Registry) Add(data []byte, ext string) (string, error) {
	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:])[:16] + ext
	if _, ok := r.used[name]; ok {
		return name, nil
	}
	r.used[name] = mediaTypeFor(ext, data)
	if err := writeDataToZip(r.zw, path.Join(oebpsDir, assetsDir, name), data); err != nil {
		return "", fmt.Errorf("unable to write asset %s: %w", name, err)
	}
	return name, nil
}

// Manifest returns every registered (file name, media type) pair sorted by
// file name.
func (r *Registry) Manifest() []AssetRef {
	refs := make([]AssetRef, 0, len(r.used))
	for name, mt := range r.used {
		refs = append(refs, AssetRef{FileName: name, MediaType: mt})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].FileName < refs[j].FileName })
	return refs
}

// Finalize copies every pending source path asset into the archive exactly
// once, in name order.
func (r *Registry) Finalize() error {
	names := make([]string, 0, len(r.pending))
	for name := range r.pending {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.copyAsset(name, r.pending[name]); err != nil {
			return err
		}
		delete(r.pending, name)
	}
	return nil
}

func (r *Registry) copyAsset(name, sourcePath string) error {
	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("unable to open image asset: %w", err)
	}
	defer f.Close()

	w, err := r.zw.Create(path.Join(oebpsDir, assetsDir, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("unable to copy image asset %s: %w", name, err)
	}
	return nil
}

// mediaTypeFor resolves the media type from the file extension, falling back
// to content sniffing for extensions the type database does not know.
func mediaTypeFor(ext string, data []byte) string {
	if ext == ".svg" {
		return "image/svg+xml"
	}
	if t := filetype.GetType(strings.TrimPrefix(ext, ".")); t != types.Unknown {
		return t.MIME.Value
	}
	if len(data) > 0 {
		if t, err := filetype.Match(data); err == nil && t != types.Unknown {
			return t.MIME.Value
		}
	}
	return "application/octet-stream"
}

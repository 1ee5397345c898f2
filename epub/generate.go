package epub

import (
	"archive/zip"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"

	"epg/book"
	"epg/config"
	"epg/i18n"
	"epg/misc"
)

//go:embed default.css
var defaultStylesheet []byte

// buildState tracks assembly progress through the fixed write order the
// container format requires.
type buildState int

const (
	stateOpened buildState = iota
	stateMimetypeWritten
	stateNavigationWritten
	stateChaptersWritten
	stateManifestWritten
	stateAssetsWritten
	stateClosed
)

func (s buildState) String() string {
	switch s {
	case stateOpened:
		return "opened"
	case stateMimetypeWritten:
		return "mimetype-written"
	case stateNavigationWritten:
		return "navigation-written"
	case stateChaptersWritten:
		return "chapters-written"
	case stateManifestWritten:
		return "manifest-written"
	case stateAssetsWritten:
		return "assets-written"
	case stateClosed:
		return "closed"
	}
	return fmt.Sprintf("buildState(%d)", int(s))
}

// Generate assembles the book into an EPUB archive at outputPath. The book is
// validated first and nothing is written when the navigation structure is
// unsound; a failure mid-write removes the partial output.
func Generate(ctx context.Context, bk *book.Book, outputPath string, cfg *config.DocumentConfig, log *zap.Logger, options ...Option) (rerr error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := &generateOptions{stylesheet: defaultStylesheet}
	for _, o := range options {
		o(opts)
	}

	if err := bk.Validate(); err != nil {
		return err
	}
	points, refs, err := BuildNav(bk.Prefaces, bk.Chapters, bk.HasCover())
	if err != nil {
		return err
	}

	labels := i18n.New(cfg.Language)

	log.Info("Generating EPUB", zap.String("output", outputPath), zap.Int("chapters", len(refs)))

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	f, err := os.CreateTemp("", misc.GetAppName()+"-*.epub")
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	state := stateOpened
	advance := func(next buildState) {
		log.Debug("Assembly state change", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}

	info := &packageInfo{
		identifier: bookIdentifier(bk, log),
		modified:   modifiedTimestamp(bk),
		hasCover:   bk.HasCover(),
		hasHead:    bk.Head != nil,
		mathml:     make(map[string]bool),
	}

	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}
	if err := writeContainer(zw); err != nil {
		return fmt.Errorf("unable to write container: %w", err)
	}
	advance(stateMimetypeWritten)

	if err := writeNav(zw, bk, points, info, labels); err != nil {
		return fmt.Errorf("unable to write navigation document: %w", err)
	}
	if err := writeNCX(zw, bk, points, info, labels); err != nil {
		return fmt.Errorf("unable to write NCX: %w", err)
	}
	advance(stateNavigationWritten)

	assets := NewRegistry(zw)
	r := &renderer{
		assets:      assets,
		math:        opts.math,
		tableMode:   cfg.TableMode,
		formulaMode: cfg.FormulaMode,
		rasterize:   cfg.Images.RasterizeFormulaSVG,
		labels:      labels,
		log:         log,
	}

	if bk.Head != nil {
		if err := writeChapter(ctx, zw, r, bk.Head, headFileName, bk.AsTitleText(labels.Get("untitled")), info); err != nil {
			return err
		}
	}
	for _, ref := range refs {
		if err := writeChapter(ctx, zw, r, ref.Source, ref.FileName, ref.Title, info); err != nil {
			return err
		}
	}
	advance(stateChaptersWritten)

	if err := writeOPF(zw, bk, refs, assets.Manifest(), info, labels); err != nil {
		return fmt.Errorf("unable to write OPF: %w", err)
	}
	if err := writeDataToZip(zw, path.Join(oebpsDir, stylesDir, "style.css"), opts.stylesheet); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}
	advance(stateManifestWritten)

	if bk.HasCover() {
		if err := writeCover(zw, bk, cfg, labels, log); err != nil {
			return err
		}
	}
	if err := assets.Finalize(); err != nil {
		return err
	}
	advance(stateAssetsWritten)

	// make sure buffers are flushed before copying
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	advance(stateClosed)

	defer func() {
		if rerr != nil {
			os.Remove(outputPath)
		}
	}()
	if cfg.FixZip {
		return copyZipWithoutDataDescriptors(tmpName, outputPath)
	}
	return copyFile(tmpName, outputPath)
}

// writeChapter loads the chapter source exactly once, renders it and records
// whether the produced file needs the mathml manifest property.
func writeChapter(ctx context.Context, zw *zip.Writer, r *renderer, src book.ChapterSource, fileName, title string, info *packageInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chapter, err := src.Load()
	if err != nil {
		return fmt.Errorf("unable to load chapter %s: %w", fileName, err)
	}
	doc, hasMathML, err := r.renderChapter(chapter, title)
	if err != nil {
		return fmt.Errorf("unable to render chapter %s: %w", fileName, err)
	}
	if hasMathML {
		info.mathml[fileName] = true
	}
	if err := writeXMLToZip(zw, path.Join(oebpsDir, textDir, fileName), doc); err != nil {
		return fmt.Errorf("unable to write chapter %s: %w", fileName, err)
	}
	return nil
}

// bookIdentifier returns the package unique identifier: the ISBN when
// present, otherwise a generated one.
func bookIdentifier(bk *book.Book, log *zap.Logger) string {
	if bk.Meta != nil && bk.Meta.ISBN != "" {
		return bk.Meta.ISBN
	}
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 fails only when the entropy source does
		log.Warn("Unable to generate time ordered identifier, falling back to random", zap.Error(err))
		id = uuid.New()
	}
	return "urn:uuid:" + id.String()
}

func modifiedTimestamp(bk *book.Book) string {
	ts := time.Now().UTC()
	if bk.Meta != nil && bk.Meta.Modified != nil {
		ts = bk.Meta.Modified.UTC()
	}
	return ts.Format("2006-01-02T15:04:05Z")
}

func copyZipWithoutDataDescriptors(from, to string) error {
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		// copy zip entry
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destinationFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destinationFile.Close()

	if _, err = io.Copy(destinationFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	if err = destinationFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}

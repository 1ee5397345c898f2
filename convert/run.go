// Package convert drives book folder discovery and EPUB generation for the
// generate command.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"epg/archive"
	"epg/book"
	"epg/css"
	"epg/epub"
	"epg/latexmath"
	"epg/state"
)

const indexFileName = "index.json"

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("generate")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.DefaultStyle = nil
	if env.Cfg.Document.StylesheetPath != "" {
		data, err := os.ReadFile(env.Cfg.Document.StylesheetPath)
		if err != nil {
			return fmt.Errorf("unable to read style css from %q: %w", env.Cfg.Document.StylesheetPath, err)
		}
		for _, warning := range css.Lint(data) {
			log.Warn("Suspicious stylesheet", zap.String("file", env.Cfg.Document.StylesheetPath), zap.String("problem", warning))
		}
		env.DefaultStyle = data
	}

	if env.Math == nil {
		env.Math = latexmath.NewBasic()
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process handles the core generation logic independently of CLI framework.
// It determines the input type (book folder, directory tree or zip archive of
// book folders) and processes accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	if fi.Mode().IsDir() {
		if isBookFolder(src) {
			return processBook(ctx, src, filepath.Base(src), dst, log)
		}
		return processDir(ctx, src, dst, log)
	}

	if !fi.Mode().IsRegular() {
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}
	if isZipArchive(src) {
		return processArchive(ctx, src, dst, log)
	}
	return fmt.Errorf("input was not recognized as book folder or archive (%s)", src)
}

// processDir walks the directory tree finding book folders and processes
// them in natural name order. Book folder subtrees are not descended into.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) error {
	var books []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsDir() || path == dir {
			return nil
		}
		if isBookFolder(path) {
			books = append(books, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(books) == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
		return nil
	}
	sort.Sort(natural.StringSlice(books))

	// one broken book does not stop the batch, failures are combined
	var result error
	for _, path := range books {
		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processBook(ctx, path, src, dst, log); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			log.Error("Unable to process book folder", zap.String("folder", path), zap.Error(err))
			result = multierr.Append(result, fmt.Errorf("%s: %w", src, err))
		}
	}
	return result
}

// processArchive extracts book folders packed into a zip archive into a
// temporary directory and processes them from there. Chapter and asset files
// are read lazily by path so the content must exist on disk.
func processArchive(ctx context.Context, path, dst string, log *zap.Logger) error {
	tmpDir, err := os.MkdirTemp("", "epg-archive-")
	if err != nil {
		return fmt.Errorf("unable to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := archive.Extract(path, "", tmpDir); err != nil {
		return fmt.Errorf("unable to unpack archive (%s): %w", path, err)
	}
	log.Debug("Archive unpacked", zap.String("archive", path), zap.String("staging", tmpDir))

	if isBookFolder(tmpDir) {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return processBook(ctx, tmpDir, name, dst, log)
	}
	return processDir(ctx, tmpDir, dst, log)
}

// processBook generates a single EPUB from a book folder. "src" is the source
// path relative to the original input, used to keep directory structure on
// the output and to derive the fallback output name. "dst" is the destination
// directory.
func processBook(ctx context.Context, dir, src, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var outputName string

	log.Info("Generation starting", zap.String("from", src))
	defer func(start time.Time) {
		// NOTE: some of golang graphic processing libraries are not mature
		// enough, if multiple books are being processed we do not want to stop.
		if r := recover(); r != nil {
			log.Error("Generation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("generation panic: %v", r)
		} else {
			log.Info("Generation completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	bk, err := book.LoadFolder(dir, log)
	if err != nil {
		return fmt.Errorf("unable to load book folder (%s): %w", dir, err)
	}

	outputName = buildOutputPath(bk, src, dst, env)

	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	return epub.Generate(ctx, bk, outputName, &env.Cfg.Document, log,
		epub.WithMathRenderer(env.Math),
		epub.WithStylesheet(env.DefaultStyle))
}

// isBookFolder reports whether dir looks like a book folder: the index file
// is the only mandatory part of the layout.
func isBookFolder(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, indexFileName))
	return err == nil && fi.Mode().IsRegular()
}

func isZipArchive(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sig := make([]byte, 4)
	if _, err := f.Read(sig); err != nil {
		return false
	}
	return string(sig) == "PK\x03\x04"
}

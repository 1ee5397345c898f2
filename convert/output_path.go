package convert

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"epg/book"
	"epg/config"
	"epg/state"
)

const outExt = ".epub"

// buildOutputPath constructs the output file path for a book. "src" is the
// book folder path relative to the processing root; its directory part is
// mirrored under "dst" unless NoDirs is set. The file name comes from the
// output name template when one is configured, otherwise from the folder
// name. A template may produce path separators - each produced segment
// becomes an output subdirectory.
func buildOutputPath(bk *book.Book, src, dst string, env *state.LocalEnv) string {
	outDir := dst
	if !env.NoDirs {
		outDir = filepath.Join(dst, filepath.Dir(src))
	}

	segments := expandNameTemplate(bk, env)
	if len(segments) == 0 {
		// no template or expansion failed - name after the book folder
		return filepath.Join(outDir, cleanSegment(filepath.Base(src), env)+outExt)
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, outDir)
	for _, segment := range segments {
		parts = append(parts, cleanSegment(segment, env))
	}
	parts[len(parts)-1] += outExt
	return filepath.Join(parts...)
}

// expandNameTemplate returns the configured output name template expanded
// with book metadata and split into path segments. A nil result means the
// default naming scheme should be used.
func expandNameTemplate(bk *book.Book, env *state.LocalEnv) []string {
	template := env.Cfg.Document.OutputNameTemplate
	if template == "" {
		return nil
	}
	expanded, err := bk.ExpandOutputName(config.OutputNameTemplateFieldName, template, env.Cfg.Document.Language)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return nil
	}
	segments := strings.FieldsFunc(expanded, func(r rune) bool {
		return r == '/' || r == os.PathSeparator
	})
	return segments
}

// cleanSegment makes a template produced path segment safe for the target
// filesystem, transliterating it first when configured.
func cleanSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Document.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}

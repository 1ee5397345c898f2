package convert

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"epg/config"
	"epg/latexmath"
	"epg/state"
)

func fixtureBookFolder(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	files := map[string]string{
		"index.json":             `{"chapters":[{"id":1,"headline":"Chapter 1"}]}`,
		"chapters/chapter_1.xml": `<chapter><headline>Chapter 1</headline><text>content</text></chapter>`,
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return dir
}

func fixtureContext(t *testing.T) (context.Context, *zap.Logger) {
	t.Helper()
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)

	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))
	env.Cfg, env.Log, env.Math = cfg, log, latexmath.NewBasic()
	return ctx, log
}

func TestProcessSingleBookFolder(t *testing.T) {
	ctx, log := fixtureContext(t)
	src := fixtureBookFolder(t, t.TempDir(), "mybook")
	dst := t.TempDir()

	if err := process(ctx, src, dst, log); err != nil {
		t.Fatalf("process: %v", err)
	}
	// default template expands to the book title, title falls back when meta is absent
	if _, err := os.Stat(filepath.Join(dst, "Unnamed.epub")); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestProcessDirectoryOfBooks(t *testing.T) {
	ctx, log := fixtureContext(t)
	root := t.TempDir()
	fixtureBookFolder(t, root, "book1")
	fixtureBookFolder(t, filepath.Join(root, "nested"), "book2")
	dst := t.TempDir()

	if err := process(ctx, root, dst, log); err != nil {
		t.Fatalf("process: %v", err)
	}
	// output mirrors the source directory structure, the book folder name
	// itself is replaced by the templated file name
	if _, err := os.Stat(filepath.Join(dst, "Unnamed.epub")); err != nil {
		t.Fatalf("book1 output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "nested", "Unnamed.epub")); err != nil {
		t.Fatalf("book2 output missing: %v", err)
	}
}

func TestProcessRefusesOverwrite(t *testing.T) {
	ctx, log := fixtureContext(t)
	src := fixtureBookFolder(t, t.TempDir(), "mybook")
	dst := t.TempDir()

	if err := process(ctx, src, dst, log); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := process(ctx, src, dst, log); err == nil {
		t.Fatal("expected error when destination exists")
	}

	state.EnvFromContext(ctx).Overwrite = true
	if err := process(ctx, src, dst, log); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
}

func TestProcessZipArchive(t *testing.T) {
	ctx, log := fixtureContext(t)
	root := t.TempDir()
	bookDir := fixtureBookFolder(t, root, "packed")

	zipPath := filepath.Join(t.TempDir(), "packed.zip")
	zf, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(zf)
	err = filepath.Walk(bookDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	if err != nil {
		t.Fatalf("pack fixture: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	zf.Close()

	dst := t.TempDir()
	if err := process(ctx, zipPath, dst, log); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "Unnamed.epub")); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestProcessUnknownInput(t *testing.T) {
	ctx, log := fixtureContext(t)
	file := filepath.Join(t.TempDir(), "random.txt")
	if err := os.WriteFile(file, []byte("hello"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := process(ctx, file, t.TempDir(), log); err == nil {
		t.Fatal("expected error for unrecognized input")
	}
}

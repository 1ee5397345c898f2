package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if cfg.Document.Language != "en" {
		t.Errorf("Default language = %q, want en", cfg.Document.Language)
	}
	if cfg.Document.TableMode != TableModeHTML {
		t.Errorf("Default table mode = %v, want html", cfg.Document.TableMode)
	}
	if cfg.Document.FormulaMode != FormulaModeMathML {
		t.Errorf("Default formula mode = %v, want mathml", cfg.Document.FormulaMode)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `version: 1
document:
  fix_zip: true
  language: "zh"
  table_mode: "suppress"
  formula_mode: "image"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if !cfg.Document.FixZip {
		t.Error("fix_zip not picked up from file")
	}
	if cfg.Document.Language != "zh" {
		t.Errorf("language = %q, want zh", cfg.Document.Language)
	}
	if cfg.Document.TableMode != TableModeSuppress {
		t.Errorf("table mode = %v, want suppress", cfg.Document.TableMode)
	}
	if cfg.Document.FormulaMode != FormulaModeImage {
		t.Errorf("formula mode = %v, want image", cfg.Document.FormulaMode)
	}
	// values absent from the file keep template defaults
	if cfg.Document.Images.Cover.Width != 600 {
		t.Errorf("cover width = %d, want default 600", cfg.Document.Images.Cover.Width)
	}
}

func TestLoadConfiguration_UnknownField(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("version: 1\nnot_a_field: true\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfiguration(configPath); err == nil {
		t.Fatal("expected error for unknown configuration field")
	}
}

func TestLoadConfiguration_BadEnum(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: 1\ndocument:\n  table_mode: \"fancy\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Fatal("expected error for invalid enum value")
	}
	if !strings.Contains(err.Error(), "table mode") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDumpRoundTrip(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	for _, want := range []string{"table_mode: html", "formula_mode: mathml", "language: en"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("dump missing %q:\n%s", want, data)
		}
	}
}

func TestEnumParsing(t *testing.T) {
	if m, err := ParseTableMode("SUPPRESS"); err != nil || m != TableModeSuppress {
		t.Fatalf("ParseTableMode case insensitivity broken: %v %v", m, err)
	}
	if _, err := ParseFormulaMode("nope"); err == nil {
		t.Fatal("expected error for unknown formula mode")
	}
	if m, err := ParseImageResizeMode("keepar"); err != nil || m != ImageResizeModeKeepAR {
		t.Fatalf("ParseImageResizeMode case insensitivity broken: %v %v", m, err)
	}
}

func TestCleanFileName(t *testing.T) {
	if got := CleanFileName("a" + string(os.PathSeparator) + "b"); strings.ContainsRune(got, os.PathSeparator) {
		t.Fatalf("separator not removed: %q", got)
	}
	if got := CleanFileName(""); got != "_bad_file_name_" {
		t.Fatalf("empty name not replaced: %q", got)
	}
}

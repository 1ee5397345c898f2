// Package config defines program configuration, loaded from YAML on top of
// defaults kept in an embedded template.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	CoverConfig struct {
		Resize ImageResizeMode `yaml:"resize" validate:"gte=0"`
		Width  int             `yaml:"width" validate:"min=600"`
		Height int             `yaml:"height" validate:"min=800"`
	}

	ImagesConfig struct {
		RasterizeFormulaSVG bool        `yaml:"rasterize_formula_svg"`
		Cover               CoverConfig `yaml:"cover"`
	}

	DocumentConfig struct {
		FixZip                bool         `yaml:"fix_zip"`
		Language              string       `yaml:"language" validate:"required,bcp47_language_tag"`
		TableMode             TableMode    `yaml:"table_mode" validate:"gte=0"`
		FormulaMode           FormulaMode  `yaml:"formula_mode" validate:"gte=0"`
		StylesheetPath        string       `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		OutputNameTemplate    string       `yaml:"output_name_template"`
		FileNameTransliterate bool         `yaml:"file_name_transliterate"`
		Images                ImagesConfig `yaml:"images"`
	}

	Config struct {
		Version  int            `yaml:"version" validate:"eq=1"`
		Document DocumentConfig `yaml:"document"`
		Logging  LoggingConfig  `yaml:"logging"`
	}
)

// OutputNameTemplateFieldName must match the yaml tag of the corresponding
// DocumentConfig field - the field holds a go template expanded per book, not
// during configuration processing.
const OutputNameTemplateFieldName TemplateFieldName = "output_name_template"

var requiredOptions = []func(*gencfg.ProcessingOptions){
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
}

// decodeInto overlays YAML data onto cfg, rejecting fields the Config struct
// does not declare. When finalize is set the result is also sanitized and
// validated - done once, on the last decode of the chain.
func decodeInto(data []byte, cfg *Config, finalize bool) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if !finalize {
		return nil
	}
	if err := gencfg.Sanitize(cfg); err != nil {
		return err
	}
	return gencfg.Validate(cfg)
}

// LoadConfiguration expands the embedded configuration template into default
// values, overlays the file at path (when given) on top of them and validates
// the result.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	defaults, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}

	haveFile := len(path) > 0

	cfg := &Config{}
	if err := decodeInto(defaults, cfg, !haveFile); err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := decodeInto(data, cfg, true); err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare expands the embedded configuration template and returns the
// resulting default configuration.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

// Dump serializes active configuration values back to YAML.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

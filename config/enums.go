package config

import (
	"fmt"
	"strings"
)

// TableMode specifies requested table block processing.
type TableMode int

const (
	TableModeHTML TableMode = iota
	TableModeSuppress
)

var tableModeNames = []string{"html", "suppress"}

func (m TableMode) String() string {
	if m < 0 || int(m) >= len(tableModeNames) {
		return fmt.Sprintf("TableMode(%d)", int(m))
	}
	return tableModeNames[m]
}

// TableModeNames returns list of supported table mode names.
func TableModeNames() []string {
	return append([]string{}, tableModeNames...)
}

// ParseTableMode converts name to TableMode.
func ParseTableMode(name string) (TableMode, error) {
	for i, n := range tableModeNames {
		if strings.EqualFold(name, n) {
			return TableMode(i), nil
		}
	}
	return 0, fmt.Errorf("%q is not a valid table mode", name)
}

func (m TableMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *TableMode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseTableMode(string(text))
	return
}

// FormulaMode specifies requested formula block processing.
type FormulaMode int

const (
	FormulaModeMathML FormulaMode = iota
	FormulaModeImage
	FormulaModeSuppress
)

var formulaModeNames = []string{"mathml", "image", "suppress"}

func (m FormulaMode) String() string {
	if m < 0 || int(m) >= len(formulaModeNames) {
		return fmt.Sprintf("FormulaMode(%d)", int(m))
	}
	return formulaModeNames[m]
}

// FormulaModeNames returns list of supported formula mode names.
func FormulaModeNames() []string {
	return append([]string{}, formulaModeNames...)
}

// ParseFormulaMode converts name to FormulaMode.
func ParseFormulaMode(name string) (FormulaMode, error) {
	for i, n := range formulaModeNames {
		if strings.EqualFold(name, n) {
			return FormulaMode(i), nil
		}
	}
	return 0, fmt.Errorf("%q is not a valid formula mode", name)
}

func (m FormulaMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *FormulaMode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseFormulaMode(string(text))
	return
}

// ImageResizeMode specifies cover image resizing.
type ImageResizeMode int

const (
	ImageResizeModeNone ImageResizeMode = iota
	ImageResizeModeKeepAR
	ImageResizeModeStretch
)

var imageResizeModeNames = []string{"none", "keepAR", "stretch"}

func (m ImageResizeMode) String() string {
	if m < 0 || int(m) >= len(imageResizeModeNames) {
		return fmt.Sprintf("ImageResizeMode(%d)", int(m))
	}
	return imageResizeModeNames[m]
}

// ParseImageResizeMode converts name to ImageResizeMode.
func ParseImageResizeMode(name string) (ImageResizeMode, error) {
	for i, n := range imageResizeModeNames {
		if strings.EqualFold(name, n) {
			return ImageResizeMode(i), nil
		}
	}
	return 0, fmt.Errorf("%q is not a valid image resize mode", name)
}

func (m ImageResizeMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ImageResizeMode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseImageResizeMode(string(text))
	return
}

// Package latexmath defines the boundary to external formula conversion
// engines. Implementations must never panic past this boundary - any failure
// is signaled by a nil result and the caller degrades to empty output.
package latexmath

import (
	"strings"

	"github.com/beevik/etree"
)

// Renderer converts LaTeX source to presentation formats.
type Renderer interface {
	// ToMathML returns a MathML element tree for the expression or nil when
	// conversion is not possible.
	ToMathML(latex string, inline bool) *etree.Element

	// ToSVG returns a rendered SVG document for the expression or nil when
	// rendering is not possible.
	ToSVG(latex string) []byte
}

// Normalize prepares a LaTeX expression for conversion: newlines are removed
// and surrounding whitespace is trimmed. An expression empty after
// normalization produces no output.
func Normalize(expression string) string {
	return strings.TrimSpace(strings.ReplaceAll(expression, "\n", ""))
}

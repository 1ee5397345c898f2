package epub

import (
	"epg/latexmath"
)

type generateOptions struct {
	math       latexmath.Renderer
	stylesheet []byte
}

// Option customizes archive generation.
type Option func(*generateOptions)

// WithMathRenderer supplies the backend used to convert LaTeX formulas.
// Without one, formulas degrade to warnings and are omitted from output.
func WithMathRenderer(r latexmath.Renderer) Option {
	return func(o *generateOptions) {
		o.math = r
	}
}

// WithStylesheet replaces the built-in stylesheet.
func WithStylesheet(css []byte) Option {
	return func(o *generateOptions) {
		if len(css) > 0 {
			o.stylesheet = css
		}
	}
}

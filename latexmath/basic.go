package latexmath

import (
	"fmt"

	"github.com/beevik/etree"
)

// basicRenderer embeds the raw LaTeX source into the output instead of
// typesetting it. MathML output carries the expression both as readable text
// and as a TeX annotation so capable reading systems can re-render it; SVG
// output is a single text line. Proper conversion engines replace this
// through the Renderer interface.
type basicRenderer struct{}

// NewBasic returns the built-in fallback renderer.
func NewBasic() Renderer {
	return basicRenderer{}
}

func (basicRenderer) ToMathML(latex string, inline bool) *etree.Element {
	expr := Normalize(latex)
	if expr == "" {
		return nil
	}

	math := etree.NewElement("math")
	math.CreateAttr("xmlns", "http://www.w3.org/1998/Math/MathML")
	if inline {
		math.CreateAttr("display", "inline")
	} else {
		math.CreateAttr("display", "block")
	}

	semantics := math.CreateElement("semantics")
	mrow := semantics.CreateElement("mrow")
	mtext := mrow.CreateElement("mtext")
	mtext.SetText(expr)

	annotation := semantics.CreateElement("annotation")
	annotation.CreateAttr("encoding", "application/x-tex")
	annotation.SetText(expr)
	return math
}

func (basicRenderer) ToSVG(latex string) []byte {
	expr := Normalize(latex)
	if expr == "" {
		return nil
	}

	// rough monospace estimate, enough for a readable fallback
	const chWidth, height = 10, 24
	w := max(chWidth*len(expr), chWidth)

	doc := etree.NewDocument()
	svg := doc.CreateElement("svg")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("width", fmt.Sprintf("%d", w))
	svg.CreateAttr("height", fmt.Sprintf("%d", height))
	svg.CreateAttr("viewBox", fmt.Sprintf("0 0 %d %d", w, height))

	text := svg.CreateElement("text")
	text.CreateAttr("x", "0")
	text.CreateAttr("y", "16")
	text.CreateAttr("font-family", "monospace")
	text.CreateAttr("font-size", "14")
	text.SetText(expr)

	data, err := doc.WriteToBytes()
	if err != nil {
		return nil
	}
	return data
}

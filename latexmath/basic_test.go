package latexmath

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  x^2  ", "x^2"},
		{"a\n+\nb", "a+b"},
		{"\n \n", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestBasicToMathML(t *testing.T) {
	r := NewBasic()

	el := r.ToMathML("x^2", false)
	if el == nil {
		t.Fatal("expected element")
	}
	if got := el.SelectAttrValue("display", ""); got != "block" {
		t.Fatalf("expected display=block, got %q", got)
	}
	if ann := el.FindElement("semantics/annotation"); ann == nil || ann.Text() != "x^2" {
		t.Fatalf("TeX annotation missing or wrong: %v", ann)
	}

	if el := r.ToMathML("y", true); el.SelectAttrValue("display", "") != "inline" {
		t.Fatal("inline formula should use display=inline")
	}

	if el := r.ToMathML("  \n ", false); el != nil {
		t.Fatal("empty expression should yield nil")
	}
}

func TestBasicToSVG(t *testing.T) {
	r := NewBasic()

	data := r.ToSVG("E=mc^2")
	if data == nil {
		t.Fatal("expected SVG data")
	}
	if !strings.Contains(string(data), "E=mc^2") {
		t.Fatalf("expression missing from SVG:\n%s", data)
	}
	if r.ToSVG("   ") != nil {
		t.Fatal("empty expression should yield nil")
	}
}

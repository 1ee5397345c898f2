// Package css checks user supplied stylesheets before they are embedded into
// generated books. The stylesheet itself is passed through verbatim - reading
// systems are the final authority on what they accept.
package css

import (
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Lint walks the stylesheet grammar and returns a warning per problem found.
// A nil result means the sheet parsed cleanly.
func Lint(data []byte) []string {
	var warnings []string

	p := css.NewParser(parse.NewInputBytes(data), false)
	var selector string

	for {
		gt, _, gdata := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil && err != io.EOF {
				warnings = append(warnings, err.Error())
			}
			return warnings

		case css.QualifiedRuleGrammar, css.BeginRulesetGrammar:
			var sel strings.Builder
			sel.Write(gdata)
			for _, t := range p.Values() {
				sel.Write(t.Data)
			}
			selector = strings.TrimSpace(sel.String())

		case css.DeclarationGrammar:
			if len(p.Values()) == 0 {
				warnings = append(warnings, fmt.Sprintf("property %q without value in rule %q", string(gdata), selector))
			}
		}
	}
}

package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// FuzzTokenize feeds random inputs to the lexer to catch panics.
// The lexer should never panic; invalid input yields an error.
func FuzzTokenize(f *testing.F) {
	// Seed corpus with valid tokens and edge cases
	seeds := []string{
		// Keywords
		`let const var function return`,
		`if else for while break continue`,
		`true false null undefined typeof`,
		`switch case try catch class new this`,
		// Literals
		`42 3.14 .5 1e10 0xFF`,
		`"hello" 'single' "with\nescape" "quote\""`,
		"`tmpl ${a} and ${ {b: 1}.b }`",
		// Operators
		`+ - * / % > < >= <= == != === !==`,
		`= += -= *= /= %= ++ -- && || ?? ! ? :`,
		// Delimiters
		`{ } [ ] ( ) ; , . => ...`,
		// Comments
		`// line comment`,
		`/* block */`,
		// Mixed
		`let x = 42;`,
		`const doubled = numbers.map(x => x * 2);`,
		`for (let i = 0; i < 5; i++) { sum += i; }`,
		// Edge cases
		``,
		`   `,
		"\t\n\r",
		`"unterminated`,
		"`unterminated ${",
		"}`",
		`/* unterminated`,
		`@#^&`,
		`\x00`,
		`"\u{110000}"`,
		`"\x4"`,
		`0x`,
		`1e`,
		`..`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		assert.NotPanics(t, func() { _, _ = Tokenize(input, "fuzz.js") }, "Tokenize panicked on input %q", input)
	})
}

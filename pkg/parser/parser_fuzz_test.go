package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thomasrohde/steptrace/pkg/parser"
)

// FuzzParse feeds random inputs to the parser to catch panics.
// The parser should never panic; invalid input yields diagnostics.
func FuzzParse(f *testing.F) {
	// Seed corpus with valid and edge-case programs
	seeds := []string{
		`let x = 5;`,
		"let x = 5;\nlet y = 10;\nlet sum = x + y;",
		`y = 5;`,
		`let sum = 0; for (let i = 1; i <= 5; i++) { sum = sum + i; }`,
		`let i = 0; while (true) { i = i + 1; }`,
		`const numbers = [1, 2, 3, 4]; const doubled = numbers.map(x => x * 2);`,
		`console.log("hi"); console.log("hi");`,
		`function add(a, b) { return a + b; } add(1, 2);`,
		`const fact = n => n <= 1 ? 1 : n * fact(n - 1);`,
		"const msg = `total: ${a + b}`;",
		`const o = { a: 1, b: [1, 2], c: { d: 'x' }, ...rest };`,
		`arr[0] = obj.key;`,
		`if (a) { b(); } else if (c) { d(); } else e();`,
		`switch (x) { case 1: break; }`,
		`try { a(); } catch (e) {}`,
		`for (const k of list) {}`,
		`let [a, b] = pair;`,
		`new Foo();`,
		// Edge cases
		``,
		`;;;`,
		`(`,
		`((((`,
		`=>`,
		`() =>`,
		`{`,
		`}`,
		`let`,
		`for (`,
		`switch`,
		`do`,
		`class`,
		"`${",
		`a.b.c.d(`,
		`x ? y`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		assert.NotPanics(t, func() { parser.Parse(input, "fuzz.js") }, "Parse panicked on input %q", input)
	})
}

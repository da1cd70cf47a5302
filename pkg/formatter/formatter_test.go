package formatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/parser"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, diags := parser.Parse(src, "test.js")
	require.Empty(t, diags, "parse diagnostics")
	return prog
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "declarations",
			src:  "let x=5\nlet a = 1, b",
			want: "let x = 5;\nlet a = 1, b;\n",
		},
		{
			name: "precedence",
			src:  "let y = (1 + 2) * 3 - (4 - 5);",
			want: "let y = (1 + 2) * 3 - (4 - 5);\n",
		},
		{
			name: "logical and ternary",
			src:  "let z = a && (b || c) ? x ?? 0 : !y;",
			want: "let z = a && (b || c) ? x ?? 0 : !y;\n",
		},
		{
			name: "function declaration",
			src:  "let a = 1;\nfunction add(x, y) { return x + y }\nadd(a, 2)",
			want: "let a = 1;\n\nfunction add(x, y) {\n  return x + y;\n}\n\nadd(a, 2);\n",
		},
		{
			name: "loops",
			src:  "for (let i = 0; i < 3; i++) sum += i\nwhile (true) { break }",
			want: "for (let i = 0; i < 3; i++) {\n  sum += i;\n}\nwhile (true) {\n  break;\n}\n",
		},
		{
			name: "else if chain",
			src:  "if (a) { x = 1 } else if (b) { x = 2 } else { x = 3 }",
			want: "if (a) {\n  x = 1;\n} else if (b) {\n  x = 2;\n} else {\n  x = 3;\n}\n",
		},
		{
			name: "collections",
			src:  "let o = {a: 1, 'b-c': [1, 2], name, ...rest};",
			want: "let o = { a: 1, \"b-c\": [1, 2], name, ...rest };\n",
		},
		{
			name: "arrows and members",
			src:  "let d = nums.map(x => x * 2).filter((a, b) => { return a > b })[0].length;",
			want: "let d = nums.map(x => x * 2).filter((a, b) => {\n  return a > b;\n})[0].length;\n",
		},
		{
			name: "template",
			src:  "let s = `hi ${name}!`;",
			want: "let s = `hi ${name}!`;\n",
		},
		{
			name: "unary",
			src:  "let n = - -x + typeof y;",
			want: "let n = -(-x) + typeof y;\n",
		},
		{
			name: "unsupported",
			src:  "switch (x) { case 1: break; }",
			want: "/* unsupported: switch */\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(mustParse(t, tt.src)))
		})
	}
}

func TestFormat_Idempotent(t *testing.T) {
	src := "function f(n) { if (n <= 1) { return 1; } return n * f(n - 1); }\nlet r = f(5);\nconsole.log(`r=${r}`);"
	once := Format(mustParse(t, src))
	twice := Format(mustParse(t, once))
	assert.Equal(t, once, twice)
}

func TestFormat_LongArrayWraps(t *testing.T) {
	src := "let xs = [\"alpha\", \"bravo\", \"charlie\", \"delta\", \"echo\", \"foxtrot\", \"golf\", \"hotel\"];"
	want := "let xs = [\n  \"alpha\",\n  \"bravo\",\n  \"charlie\",\n  \"delta\",\n  \"echo\",\n  \"foxtrot\",\n  \"golf\",\n  \"hotel\"\n];\n"
	assert.Equal(t, want, Format(mustParse(t, src)))
}

func TestFormatExpr(t *testing.T) {
	prog := mustParse(t, "grid[i + 1][2].name = 1;")
	stmt := prog.Body[0].(*ast.ExpressionStatement)
	assign := stmt.Expression.(*ast.AssignmentExpression)
	target := assign.Target.(*ast.MemberExpression)
	assert.Equal(t, "grid[i + 1][2]", FormatExpr(target.Object))
	assert.Equal(t, "grid[i + 1][2].name = 1", FormatExpr(assign))
}

func TestHasComments(t *testing.T) {
	assert.True(t, HasComments("let x = 1; // note"))
	assert.True(t, HasComments("/* block */ let x = 1;"))
	assert.False(t, HasComments(`let url = "http://example.com";`))
	assert.False(t, HasComments("let s = 'a // b';"))
	assert.False(t, HasComments("let x = 4 / 2;"))
}

package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
	"github.com/thomasrohde/steptrace/pkg/parser"
)

// helper: parse source and assert no diagnostics
func mustParse(t *testing.T, source string) *ast.Program {
	t.Helper()
	prog, diags := parser.Parse(source, "test.js")
	require.Empty(t, diags, "unexpected diagnostics")
	require.NotNil(t, prog)
	return prog
}

// helper: parse source and return the first diagnostic, failing if parsing succeeds
func mustFail(t *testing.T, source string) diagnostics.Diagnostic {
	t.Helper()
	prog, diags := parser.Parse(source, "test.js")
	require.NotEmpty(t, diags, "expected parse of %q to fail", source)
	require.Nil(t, prog, "failed parse should not return a program")
	return diags[0]
}

// helper: extract the single statement from a program, assert it is an ExpressionStatement, return its Expr
func singleExpr(t *testing.T, source string) ast.Expr {
	t.Helper()
	prog := mustParse(t, source)
	require.Len(t, prog.Body, 1)
	es, ok := prog.Body[0].(*ast.ExpressionStatement)
	require.True(t, ok, "expected ExpressionStatement, got %T", prog.Body[0])
	return es.Expression
}

func TestVariableDeclarations(t *testing.T) {
	prog := mustParse(t, "let x = 5;\nconst y = 10\nvar a = 1, b;")
	require.Len(t, prog.Body, 3)

	kinds := []ast.DeclKind{ast.DeclLet, ast.DeclConst, ast.DeclVar}
	for i, want := range kinds {
		decl, ok := prog.Body[i].(*ast.VariableDeclaration)
		require.True(t, ok, "statement %d: got %T", i, prog.Body[i])
		assert.Equal(t, want, decl.DeclKind, "statement %d", i)
		assert.Equal(t, i+1, decl.Span.StartLine, "statement %d", i)
	}

	multi := prog.Body[2].(*ast.VariableDeclaration)
	require.Len(t, multi.Declarations, 2)
	assert.Equal(t, "b", multi.Declarations[1].Name)
	assert.Nil(t, multi.Declarations[1].Init)
}

func TestConstRequiresInitializer(t *testing.T) {
	d := mustFail(t, "const x;")
	assert.Contains(t, d.Message, "Missing initializer")
}

func TestPrecedence(t *testing.T) {
	expr := singleExpr(t, "1 + 2 * 3")
	bin, ok := expr.(*ast.BinaryExpression)
	require.True(t, ok, "got %#v", expr)
	require.Equal(t, ast.OpAdd, bin.Op)
	right, ok := bin.Right.(*ast.BinaryExpression)
	require.True(t, ok, "got %#v", bin.Right)
	assert.Equal(t, ast.OpMul, right.Op)
}

func TestLogicalPrecedence(t *testing.T) {
	expr := singleExpr(t, "a || b && c === d")
	or, ok := expr.(*ast.LogicalExpression)
	require.True(t, ok, "got %#v", expr)
	require.Equal(t, ast.OpOr, or.Op)
	and, ok := or.Right.(*ast.LogicalExpression)
	require.True(t, ok, "got %#v", or.Right)
	require.Equal(t, ast.OpAnd, and.Op)
	eq, ok := and.Right.(*ast.BinaryExpression)
	require.True(t, ok, "got %#v", and.Right)
	assert.Equal(t, ast.OpStrictEq, eq.Op)
}

func TestConditional(t *testing.T) {
	expr := singleExpr(t, "x > 0 ? 'pos' : x < 0 ? 'neg' : 'zero'")
	cond, ok := expr.(*ast.ConditionalExpression)
	require.True(t, ok, "got %T", expr)
	assert.IsType(t, &ast.ConditionalExpression{}, cond.Alternate)
}

func TestAssignmentOperators(t *testing.T) {
	tests := []struct {
		src string
		op  ast.AssignOp
	}{
		{"x = 1", ast.OpAssign},
		{"x += 1", ast.OpAddAssign},
		{"x -= 1", ast.OpSubAssign},
		{"x *= 2", ast.OpMulAssign},
		{"x /= 2", ast.OpDivAssign},
		{"x %= 2", ast.OpModAssign},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expr := singleExpr(t, tt.src)
			assign, ok := expr.(*ast.AssignmentExpression)
			require.True(t, ok, "got %T", expr)
			assert.Equal(t, tt.op, assign.Op)
		})
	}
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	outer := singleExpr(t, "a = b = 3").(*ast.AssignmentExpression)
	assert.IsType(t, &ast.AssignmentExpression{}, outer.Value)
}

func TestMemberAssignment(t *testing.T) {
	assign := singleExpr(t, "arr[0] = obj.count").(*ast.AssignmentExpression)
	target, ok := assign.Target.(*ast.MemberExpression)
	require.True(t, ok, "got %#v", assign.Target)
	assert.True(t, target.Computed)
	value, ok := assign.Value.(*ast.MemberExpression)
	require.True(t, ok, "got %#v", assign.Value)
	assert.Equal(t, "count", value.PropertyName())
}

func TestInvalidAssignmentTarget(t *testing.T) {
	d := mustFail(t, "1 = x")
	assert.Contains(t, d.Message, "Assigning to rvalue")
	mustFail(t, "f()++")
}

func TestUpdateExpressions(t *testing.T) {
	post := singleExpr(t, "i++").(*ast.UpdateExpression)
	assert.False(t, post.Prefix)
	assert.Equal(t, "++", post.Op)

	pre := singleExpr(t, "--i").(*ast.UpdateExpression)
	assert.True(t, pre.Prefix)
	assert.Equal(t, "--", pre.Op)
}

func TestUnaryOperators(t *testing.T) {
	for src, op := range map[string]ast.UnaryOp{
		"-x":       ast.OpNeg,
		"+x":       ast.OpPlus,
		"!x":       ast.OpNot,
		"typeof x": ast.OpTypeof,
	} {
		u, ok := singleExpr(t, src).(*ast.UnaryExpression)
		if assert.True(t, ok, src) {
			assert.Equal(t, op, u.Op, src)
		}
	}
}

func TestArrowFunctions(t *testing.T) {
	tests := []struct {
		src        string
		params     []string
		expression bool
	}{
		{"x => x * 2", []string{"x"}, true},
		{"(a, b) => a + b", []string{"a", "b"}, true},
		{"() => 42", []string{}, true},
		{"(acc, n) => { return acc + n; }", []string{"acc", "n"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			fn, ok := singleExpr(t, tt.src).(*ast.ArrowFunctionExpression)
			require.True(t, ok, "expected arrow function")
			assert.ElementsMatch(t, tt.params, fn.Params)
			assert.Equal(t, tt.expression, fn.Expression != nil, "expression body")
			if !tt.expression {
				assert.NotNil(t, fn.Body, "block body")
			}
		})
	}
}

func TestParenthesizedIsNotArrow(t *testing.T) {
	expr := singleExpr(t, "(a + b) * c")
	bin, ok := expr.(*ast.BinaryExpression)
	require.True(t, ok, "got %#v", expr)
	assert.Equal(t, ast.OpMul, bin.Op)
}

func TestCallWithCallback(t *testing.T) {
	call, ok := singleExpr(t, "numbers.map(x => x * 2)").(*ast.CallExpression)
	require.True(t, ok, "expected CallExpression")
	callee, ok := call.Callee.(*ast.MemberExpression)
	require.True(t, ok, "got %#v", call.Callee)
	assert.Equal(t, "map", callee.PropertyName())
	require.Len(t, call.Arguments, 1)
	assert.IsType(t, &ast.ArrowFunctionExpression{}, call.Arguments[0])
}

func TestChainedCalls(t *testing.T) {
	call := singleExpr(t, "arr.filter(x => x > 1).map(x => x + 1).join(', ')").(*ast.CallExpression)
	member := call.Callee.(*ast.MemberExpression)
	assert.Equal(t, "join", member.PropertyName(), "outermost call")
}

func TestSpreadElements(t *testing.T) {
	arr := singleExpr(t, "[...a, 1]").(*ast.ArrayExpression)
	assert.IsType(t, &ast.SpreadElement{}, arr.Elements[0])
	call := singleExpr(t, "f(...args)").(*ast.CallExpression)
	assert.IsType(t, &ast.SpreadElement{}, call.Arguments[0])
}

func TestArrayElision(t *testing.T) {
	arr := singleExpr(t, "[1, , 3]").(*ast.ArrayExpression)
	require.Len(t, arr.Elements, 3)
	assert.IsType(t, &ast.UndefinedLiteral{}, arr.Elements[1], "hole reads as undefined")
}

func TestObjectLiteral(t *testing.T) {
	prog := mustParse(t, "let o = { a: 1, 'b c': 2, name, [k]: 3, ...rest, greet() { return 1; }, 7: 'x', };")
	decl := prog.Body[0].(*ast.VariableDeclaration)
	obj, ok := decl.Declarations[0].Init.(*ast.ObjectExpression)
	require.True(t, ok, "got %T", decl.Declarations[0].Init)
	require.Len(t, obj.Properties, 7)

	assert.Equal(t, "a", obj.Properties[0].(*ast.Property).Key)
	assert.Equal(t, "b c", obj.Properties[1].(*ast.Property).Key)

	short := obj.Properties[2].(*ast.Property)
	assert.True(t, short.Shorthand)
	assert.Equal(t, "name", short.Key)

	comp := obj.Properties[3].(*ast.Property)
	assert.True(t, comp.Computed)
	assert.NotNil(t, comp.KeyExpr)

	assert.IsType(t, &ast.SpreadElement{}, obj.Properties[4])

	m := obj.Properties[5].(*ast.Property)
	assert.Equal(t, "greet", m.Key)
	assert.IsType(t, &ast.FunctionExpression{}, m.Value)

	assert.Equal(t, "7", obj.Properties[6].(*ast.Property).Key)
}

func TestTemplateLiteral(t *testing.T) {
	tmpl, ok := singleExpr(t, "`Hello, ${name}! You have ${count + 1} items`").(*ast.TemplateLiteral)
	require.True(t, ok, "expected TemplateLiteral")
	require.Len(t, tmpl.Quasis, 3)
	require.Len(t, tmpl.Expressions, 2)
	assert.Equal(t, "Hello, ", tmpl.Quasis[0])
	assert.Equal(t, " items", tmpl.Quasis[2])
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		src  string
		kind string
	}{
		{"42", "NumberLiteral"},
		{"0x1F", "NumberLiteral"},
		{"'s'", "StringLiteral"},
		{"true", "BooleanLiteral"},
		{"null", "NullLiteral"},
		{"undefined", "UndefinedLiteral"},
		{"`t`", "TemplateLiteral"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, singleExpr(t, tt.src).Kind(), tt.src)
	}
	hex := singleExpr(t, "0x1F").(*ast.NumberLiteral)
	assert.Equal(t, 31.0, hex.Value)
}

func TestFunctionDeclaration(t *testing.T) {
	prog := mustParse(t, "function add(a, b) {\n  return a + b;\n}")
	fn, ok := prog.Body[0].(*ast.FunctionDeclaration)
	require.True(t, ok, "got %T", prog.Body[0])
	assert.Equal(t, "add", fn.Name)
	assert.Len(t, fn.Params, 2)

	ret, ok := fn.Body.Body[0].(*ast.ReturnStatement)
	require.True(t, ok, "got %#v", fn.Body.Body[0])
	require.NotNil(t, ret.Argument)
	assert.Equal(t, 2, ret.Span.StartLine)
}

func TestFunctionExpression(t *testing.T) {
	fn, ok := singleExpr(t, "(function (x) { return x; })").(*ast.FunctionExpression)
	require.True(t, ok, "expected FunctionExpression")
	assert.Empty(t, fn.Name)
	assert.Len(t, fn.Params, 1)
}

func TestControlFlow(t *testing.T) {
	src := `let sum = 0;
for (let i = 1; i <= 5; i++) {
  if (i % 2 === 0) {
    continue;
  } else if (i > 4) {
    break;
  }
  sum += i;
}
while (sum > 0) sum--;`
	prog := mustParse(t, src)
	require.Len(t, prog.Body, 3)

	loop, ok := prog.Body[1].(*ast.ForStatement)
	require.True(t, ok, "got %T", prog.Body[1])
	assert.IsType(t, &ast.VariableDeclaration{}, loop.Init)
	assert.NotNil(t, loop.Test)
	assert.NotNil(t, loop.Update)

	body := loop.Body.(*ast.BlockStatement)
	ifStmt := body.Body[0].(*ast.IfStatement)
	assert.IsType(t, &ast.IfStatement{}, ifStmt.Alternate, "else-if chain")

	while := prog.Body[2].(*ast.WhileStatement)
	assert.IsType(t, &ast.ExpressionStatement{}, while.Body)
}

func TestEmptyForClauses(t *testing.T) {
	loop := mustParse(t, "for (;;) { break; }").Body[0].(*ast.ForStatement)
	assert.Nil(t, loop.Init)
	assert.Nil(t, loop.Test)
	assert.Nil(t, loop.Update)
}

func TestForInitExpression(t *testing.T) {
	loop := mustParse(t, "let i; for (i = 0; i < 3; i++) {}").Body[1].(*ast.ForStatement)
	assert.IsType(t, &ast.ExpressionStatement{}, loop.Init)
}

func TestAutomaticSemicolons(t *testing.T) {
	prog := mustParse(t, "let a = 1\nlet b = a\nb++\nconsole.log(b)")
	assert.Len(t, prog.Body, 4)
}

func TestReturnOnOwnLine(t *testing.T) {
	prog := mustParse(t, "function f() {\n  return\n  42\n}")
	fn := prog.Body[0].(*ast.FunctionDeclaration)
	ret := fn.Body.Body[0].(*ast.ReturnStatement)
	assert.Nil(t, ret.Argument, "a line break after return ends the statement")
}

func TestMissingSemicolonOnSameLine(t *testing.T) {
	d := mustFail(t, "let a = 1 let b = 2")
	assert.Equal(t, diagnostics.EParse, d.Code)
	assert.Equal(t, "Unexpected token (1:10)", d.Message)
}

func TestUnsupportedStatements(t *testing.T) {
	tests := []struct {
		src       string
		construct string
	}{
		{"switch (x) { case 1: y = 2; break; default: y = 3; }", "switch"},
		{"try { risky(); } catch (e) { log(e); } finally { done(); }", "try"},
		{"do { i++; } while (i < 3);", "do"},
		{"class Foo extends Bar { method() {} }", "class"},
		{"throw new Error('boom');", "throw"},
		{"for (const x of items) { total += x; }", "for...of"},
		{"for (let k in obj) total++;", "for...in"},
		{"const [a, b] = pair;", "destructuring"},
		{"let { x, y } = point", "destructuring"},
	}
	for _, tt := range tests {
		t.Run(tt.construct, func(t *testing.T) {
			prog := mustParse(t, tt.src+"\nlet after = 1;")
			require.Len(t, prog.Body, 2, "placeholder plus declaration")
			u, ok := prog.Body[0].(*ast.UnsupportedStatement)
			require.True(t, ok, "got %T", prog.Body[0])
			assert.Equal(t, tt.construct, u.Construct)
			assert.IsType(t, &ast.VariableDeclaration{}, prog.Body[1], "parsing resumes after the skipped construct")
		})
	}
}

func TestUnsupportedExpressions(t *testing.T) {
	for src, construct := range map[string]string{
		"new Date(2024, 1)": "new",
		"this":              "this",
	} {
		u, ok := singleExpr(t, src).(*ast.UnsupportedExpression)
		if assert.True(t, ok, src) {
			assert.Equal(t, construct, u.Construct)
		}
	}
}

func TestSyntaxErrors(t *testing.T) {
	sources := []string{
		"let = 5;",
		"let x = ;",
		"if (x {",
		"function (a) {}",
		"foo(1, 2",
		"[1, 2",
		"{ a: 1",
		"x.",
		"`${a`",
		"let x = 'open",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			d := mustFail(t, src)
			assert.NotNil(t, d.Span, "diagnostic carries a span")
		})
	}
}

func TestLexErrorSurfacesAsDiagnostic(t *testing.T) {
	d := mustFail(t, "let x = #;")
	assert.Equal(t, diagnostics.ELex, d.Code)
}

func TestEmptyStatementsAreDropped(t *testing.T) {
	prog := mustParse(t, ";;let x = 1;;")
	assert.Len(t, prog.Body, 1)
}

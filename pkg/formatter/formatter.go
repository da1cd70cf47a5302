// Package formatter pretty-prints programs of the traced subset.
package formatter

import (
	"math"
	"strconv"
	"strings"

	"github.com/thomasrohde/steptrace/pkg/ast"
)

const indent = "  "

// maxInline is the widest array or object literal kept on one line.
const maxInline = 72

// Precedence levels (higher = tighter binding).
const (
	precAssign = iota + 1
	precConditional
	precNullish
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
	precMember
	precPrimary
)

var binaryPrecedence = map[ast.BinaryOp]int{
	ast.OpEqEq: precEquality, ast.OpNeq: precEquality,
	ast.OpStrictEq: precEquality, ast.OpStrictNeq: precEquality,
	ast.OpGt: precRelational, ast.OpLt: precRelational,
	ast.OpGtEq: precRelational, ast.OpLtEq: precRelational,
	ast.OpAdd: precAdditive, ast.OpSub: precAdditive,
	ast.OpMul: precMultiplicative, ast.OpDiv: precMultiplicative, ast.OpMod: precMultiplicative,
}

var logicalPrecedence = map[ast.LogicalOp]int{
	ast.OpNullish: precNullish,
	ast.OpOr:      precOr,
	ast.OpAnd:     precAnd,
}

func precedence(e ast.Expr) int {
	switch expr := e.(type) {
	case *ast.AssignmentExpression, *ast.ArrowFunctionExpression:
		return precAssign
	case *ast.ConditionalExpression:
		return precConditional
	case *ast.LogicalExpression:
		return logicalPrecedence[expr.Op]
	case *ast.BinaryExpression:
		return binaryPrecedence[expr.Op]
	case *ast.UnaryExpression:
		return precUnary
	case *ast.UpdateExpression:
		if expr.Prefix {
			return precUnary
		}
		return precPostfix
	case *ast.CallExpression, *ast.MemberExpression:
		return precMember
	}
	return precPrimary
}

// Format pretty-prints a program back to source code.
func Format(program *ast.Program) string {
	if len(program.Body) == 0 {
		return ""
	}
	lines := make([]string, 0, len(program.Body))
	prevFn := false
	for i, s := range program.Body {
		_, isFn := s.(*ast.FunctionDeclaration)
		// Function declarations are set off by blank lines.
		if i > 0 && (isFn || prevFn) {
			lines = append(lines, "")
		}
		lines = append(lines, formatStmt(s, 0))
		prevFn = isFn
	}
	return strings.Join(lines, "\n") + "\n"
}

// HasComments reports whether source contains // or /* comments, which
// Format does not preserve.
func HasComments(source string) bool {
	var quote byte
	for i := 0; i < len(source); i++ {
		c := source[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '/':
			if i+1 < len(source) && (source[i+1] == '/' || source[i+1] == '*') {
				return true
			}
		}
	}
	return false
}

func formatStmt(s ast.Stmt, depth int) string {
	prefix := strings.Repeat(indent, depth)
	switch stmt := s.(type) {
	case *ast.VariableDeclaration:
		return prefix + formatVarDecl(stmt, depth) + ";"
	case *ast.ExpressionStatement:
		return prefix + formatExpr(stmt.Expression, depth) + ";"
	case *ast.FunctionDeclaration:
		return prefix + "function " + stmt.Name + "(" + strings.Join(stmt.Params, ", ") + ") " +
			formatBlock(stmt.Body, depth)
	case *ast.BlockStatement:
		return prefix + formatBlock(stmt, depth)
	case *ast.IfStatement:
		return prefix + formatIf(stmt, depth)
	case *ast.ForStatement:
		var init string
		switch in := stmt.Init.(type) {
		case *ast.VariableDeclaration:
			init = formatVarDecl(in, depth)
		case *ast.ExpressionStatement:
			init = formatExpr(in.Expression, depth)
		}
		test, update := "", ""
		if stmt.Test != nil {
			test = " " + formatExpr(stmt.Test, depth)
		}
		if stmt.Update != nil {
			update = " " + formatExpr(stmt.Update, depth)
		}
		return prefix + "for (" + init + ";" + test + ";" + update + ") " + formatBody(stmt.Body, depth)
	case *ast.WhileStatement:
		return prefix + "while (" + formatExpr(stmt.Test, depth) + ") " + formatBody(stmt.Body, depth)
	case *ast.ReturnStatement:
		if stmt.Argument == nil {
			return prefix + "return;"
		}
		return prefix + "return " + formatExpr(stmt.Argument, depth) + ";"
	case *ast.BreakStatement:
		return prefix + "break;"
	case *ast.ContinueStatement:
		return prefix + "continue;"
	case *ast.UnsupportedStatement:
		return prefix + "/* unsupported: " + stmt.Construct + " */"
	}
	return ""
}

func formatVarDecl(d *ast.VariableDeclaration, depth int) string {
	parts := make([]string, len(d.Declarations))
	for i, decl := range d.Declarations {
		parts[i] = decl.Name
		if decl.Init != nil {
			parts[i] += " = " + formatExpr(decl.Init, depth)
		}
	}
	return string(d.DeclKind) + " " + strings.Join(parts, ", ")
}

func formatIf(stmt *ast.IfStatement, depth int) string {
	out := "if (" + formatExpr(stmt.Test, depth) + ") " + formatBody(stmt.Consequent, depth)
	switch alt := stmt.Alternate.(type) {
	case nil:
	case *ast.IfStatement:
		out += " else " + formatIf(alt, depth)
	default:
		out += " else " + formatBody(alt, depth)
	}
	return out
}

// formatBody renders a loop or branch body, always braced.
func formatBody(s ast.Stmt, depth int) string {
	if block, ok := s.(*ast.BlockStatement); ok {
		return formatBlock(block, depth)
	}
	return "{\n" + formatStmt(s, depth+1) + "\n" + strings.Repeat(indent, depth) + "}"
}

func formatBlock(block *ast.BlockStatement, depth int) string {
	if block == nil || len(block.Body) == 0 {
		return "{}"
	}
	lines := make([]string, len(block.Body))
	for i, s := range block.Body {
		lines[i] = formatStmt(s, depth+1)
	}
	return "{\n" + strings.Join(lines, "\n") + "\n" + strings.Repeat(indent, depth) + "}"
}

// FormatExpr renders a single expression on one line where possible.
func FormatExpr(e ast.Expr) string {
	return formatExpr(e, 0)
}

func formatExpr(e ast.Expr, depth int) string {
	switch expr := e.(type) {
	case *ast.NumberLiteral:
		if expr.Raw != "" {
			return expr.Raw
		}
		return formatNumber(expr.Value)
	case *ast.StringLiteral:
		return strconv.Quote(expr.Value)
	case *ast.BooleanLiteral:
		return strconv.FormatBool(expr.Value)
	case *ast.NullLiteral:
		return "null"
	case *ast.UndefinedLiteral:
		return "undefined"
	case *ast.TemplateLiteral:
		return formatTemplate(expr, depth)
	case *ast.Identifier:
		return expr.Name
	case *ast.SpreadElement:
		return "..." + wrap(expr.Argument, precAssign, depth)
	case *ast.ArrayExpression:
		return formatArray(expr, depth)
	case *ast.ObjectExpression:
		return formatObject(expr, depth)
	case *ast.FunctionExpression:
		out := "function"
		if expr.Name != "" {
			out += " " + expr.Name
		}
		return out + "(" + strings.Join(expr.Params, ", ") + ") " + formatBlock(expr.Body, depth)
	case *ast.ArrowFunctionExpression:
		params := "(" + strings.Join(expr.Params, ", ") + ")"
		if len(expr.Params) == 1 {
			params = expr.Params[0]
		}
		if expr.Expression != nil {
			body := formatExpr(expr.Expression, depth)
			if _, isObj := expr.Expression.(*ast.ObjectExpression); isObj {
				body = "(" + body + ")"
			}
			return params + " => " + body
		}
		return params + " => " + formatBlock(expr.Body, depth)
	case *ast.CallExpression:
		args := make([]string, len(expr.Arguments))
		for i, a := range expr.Arguments {
			args[i] = formatExpr(a, depth)
		}
		return wrap(expr.Callee, precMember, depth) + "(" + strings.Join(args, ", ") + ")"
	case *ast.MemberExpression:
		obj := wrap(expr.Object, precMember, depth)
		if expr.Computed {
			return obj + "[" + formatExpr(expr.Property, depth) + "]"
		}
		return obj + "." + expr.PropertyName()
	case *ast.AssignmentExpression:
		return formatExpr(expr.Target, depth) + " " + string(expr.Op) + " " + wrap(expr.Value, precAssign, depth)
	case *ast.UpdateExpression:
		if expr.Prefix {
			return expr.Op + wrap(expr.Argument, precUnary, depth)
		}
		return wrap(expr.Argument, precPostfix, depth) + expr.Op
	case *ast.BinaryExpression:
		p := binaryPrecedence[expr.Op]
		// Operators are left-associative: the right side needs parens at equal precedence.
		return wrap(expr.Left, p, depth) + " " + string(expr.Op) + " " + wrap(expr.Right, p+1, depth)
	case *ast.LogicalExpression:
		p := logicalPrecedence[expr.Op]
		return wrap(expr.Left, p, depth) + " " + string(expr.Op) + " " + wrap(expr.Right, p+1, depth)
	case *ast.UnaryExpression:
		operand := wrap(expr.Operand, precUnary, depth)
		if expr.Op == ast.OpTypeof {
			return "typeof " + operand
		}
		// Keep "- -x" from collapsing into "--x".
		if (expr.Op == ast.OpNeg || expr.Op == ast.OpPlus) && strings.HasPrefix(operand, string(expr.Op)) {
			return string(expr.Op) + "(" + operand + ")"
		}
		return string(expr.Op) + operand
	case *ast.ConditionalExpression:
		return wrap(expr.Test, precNullish, depth) + " ? " +
			wrap(expr.Consequent, precAssign, depth) + " : " +
			wrap(expr.Alternate, precAssign, depth)
	case *ast.UnsupportedExpression:
		return "/* unsupported: " + expr.Construct + " */ undefined"
	}
	return ""
}

// wrap formats e, parenthesised when it binds looser than minPrec.
func wrap(e ast.Expr, minPrec, depth int) string {
	out := formatExpr(e, depth)
	if precedence(e) < minPrec {
		return "(" + out + ")"
	}
	return out
}

func formatTemplate(t *ast.TemplateLiteral, depth int) string {
	var b strings.Builder
	b.WriteByte('`')
	for i, quasi := range t.Quasis {
		quasi = strings.ReplaceAll(quasi, "\\", "\\\\")
		quasi = strings.ReplaceAll(quasi, "`", "\\`")
		quasi = strings.ReplaceAll(quasi, "${", "\\${")
		b.WriteString(quasi)
		if i < len(t.Expressions) {
			b.WriteString("${")
			b.WriteString(formatExpr(t.Expressions[i], depth))
			b.WriteString("}")
		}
	}
	b.WriteByte('`')
	return b.String()
}

func formatNumber(value float64) string {
	switch {
	case math.IsNaN(value):
		return "NaN"
	case math.IsInf(value, 1):
		return "Infinity"
	case math.IsInf(value, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(value, 'g', -1, 64)
}

func formatProperty(m ast.ObjectMember, depth int) string {
	switch p := m.(type) {
	case *ast.SpreadElement:
		return "..." + wrap(p.Argument, precAssign, depth)
	case *ast.Property:
		if p.Shorthand {
			return p.Key
		}
		key := p.Key
		if p.Computed {
			key = "[" + formatExpr(p.KeyExpr, depth) + "]"
		} else if !isIdentifier(key) {
			key = strconv.Quote(key)
		}
		return key + ": " + wrap(p.Value, precAssign, depth)
	}
	return ""
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func formatObject(obj *ast.ObjectExpression, depth int) string {
	if len(obj.Properties) == 0 {
		return "{}"
	}

	// Try inline first
	inlineParts := make([]string, len(obj.Properties))
	for i, p := range obj.Properties {
		inlineParts[i] = formatProperty(p, depth+1)
	}
	inline := "{ " + strings.Join(inlineParts, ", ") + " }"
	if len(inline) <= maxInline && !strings.Contains(inline, "\n") {
		return inline
	}

	// Multi-line
	inner := strings.Repeat(indent, depth+1)
	outer := strings.Repeat(indent, depth)
	parts := make([]string, len(obj.Properties))
	for i, p := range obj.Properties {
		parts[i] = inner + formatProperty(p, depth+1)
	}
	return "{\n" + strings.Join(parts, ",\n") + "\n" + outer + "}"
}

func formatArray(list *ast.ArrayExpression, depth int) string {
	if len(list.Elements) == 0 {
		return "[]"
	}

	// Try inline first
	inlineParts := make([]string, len(list.Elements))
	for i, e := range list.Elements {
		inlineParts[i] = wrap(e, precAssign, depth+1)
	}
	inline := "[" + strings.Join(inlineParts, ", ") + "]"
	if len(inline) <= maxInline && !strings.Contains(inline, "\n") {
		return inline
	}

	// Multi-line
	inner := strings.Repeat(indent, depth+1)
	outer := strings.Repeat(indent, depth)
	parts := make([]string, len(list.Elements))
	for i, e := range list.Elements {
		parts[i] = inner + wrap(e, precAssign, depth+1)
	}
	return "[\n" + strings.Join(parts, ",\n") + "\n" + outer + "]"
}

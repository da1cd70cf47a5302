// Package validator implements static checks over parsed programs. It
// reports misplaced control flow as errors and constructs the interpreter
// will skip as warnings.
package validator

import (
	"fmt"

	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
)

// scope tracks the names declared in one function body. Bindings are
// function-scoped, so blocks do not open a new scope.
type scope struct {
	bindings map[string]bool // name -> declared const
	parent   *scope
}

func newScope(parent *scope) *scope {
	return &scope{bindings: make(map[string]bool), parent: parent}
}

// isConst reports whether the nearest declaration of name is const.
func (s *scope) isConst(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if c, ok := sc.bindings[name]; ok {
			return c
		}
	}
	return false
}

func (s *scope) add(name string, constant bool) {
	s.bindings[name] = constant
}

// context is where a statement sits relative to loops and functions.
type context struct {
	inFunction bool
	inLoop     bool
}

type validator struct {
	diags []diagnostics.Diagnostic
}

// Validate performs static analysis on a program and returns diagnostics.
// Warnings do not prevent execution.
func Validate(program *ast.Program) []diagnostics.Diagnostic {
	v := &validator{}
	v.validateStatements(program.Body, newScope(nil), context{})
	return v.diags
}

func (v *validator) addDiag(code, msg string, span ast.Span, hint string) {
	v.diags = append(v.diags, diagnostics.MakeDiag(code, msg, &span, hint))
}

func (v *validator) validateStatements(stmts []ast.Stmt, sc *scope, ctx context) {
	// First pass: function declarations are visible to the whole body.
	for _, stmt := range stmts {
		if fn, ok := stmt.(*ast.FunctionDeclaration); ok {
			sc.add(fn.Name, false)
		}
	}
	for _, stmt := range stmts {
		v.validateStmt(stmt, sc, ctx)
	}
}

func (v *validator) validateStmt(stmt ast.Stmt, sc *scope, ctx context) {
	switch s := stmt.(type) {
	case *ast.VariableDeclaration:
		for _, d := range s.Declarations {
			v.validateExpr(d.Init, sc)
			sc.add(d.Name, s.DeclKind == ast.DeclConst)
		}

	case *ast.ExpressionStatement:
		v.validateExpr(s.Expression, sc)

	case *ast.FunctionDeclaration:
		v.validateFunction(s.Params, s.Body, nil, s.Span, sc)

	case *ast.BlockStatement:
		for _, inner := range s.Body {
			v.validateStmt(inner, sc, ctx)
		}

	case *ast.IfStatement:
		v.validateExpr(s.Test, sc)
		v.validateStmt(s.Consequent, sc, ctx)
		if s.Alternate != nil {
			v.validateStmt(s.Alternate, sc, ctx)
		}

	case *ast.ForStatement:
		if s.Init != nil {
			v.validateStmt(s.Init, sc, ctx)
		}
		v.validateExpr(s.Test, sc)
		v.validateExpr(s.Update, sc)
		v.validateStmt(s.Body, sc, context{inFunction: ctx.inFunction, inLoop: true})

	case *ast.WhileStatement:
		v.validateExpr(s.Test, sc)
		v.validateStmt(s.Body, sc, context{inFunction: ctx.inFunction, inLoop: true})

	case *ast.ReturnStatement:
		if !ctx.inFunction {
			v.addDiag(diagnostics.EReturnOutsideFunction, "return statement outside of a function", s.Span,
				"a top-level return ends the program when executed")
		}
		v.validateExpr(s.Argument, sc)

	case *ast.BreakStatement:
		if !ctx.inLoop {
			v.addDiag(diagnostics.EBreakOutsideLoop, "break statement outside of a loop", s.Span, "")
		}

	case *ast.ContinueStatement:
		if !ctx.inLoop {
			v.addDiag(diagnostics.EBreakOutsideLoop, "continue statement outside of a loop", s.Span, "")
		}

	case *ast.UnsupportedStatement:
		v.addDiag(diagnostics.WUnsupported,
			fmt.Sprintf("'%s' statements are not supported and will be skipped", s.Construct), s.Span, "")
	}
}

// validateFunction checks a function body in a fresh scope. Loops do not
// reach into nested functions, so break there is checked anew.
func (v *validator) validateFunction(params []string, body *ast.BlockStatement, expr ast.Expr, span ast.Span, sc *scope) {
	child := newScope(sc)
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p] {
			v.addDiag(diagnostics.EDupParam, fmt.Sprintf("duplicate parameter '%s'", p), span, "")
		}
		seen[p] = true
		child.add(p, false)
	}
	if expr != nil {
		v.validateExpr(expr, child)
	}
	if body != nil {
		v.validateStatements(body.Body, child, context{inFunction: true})
	}
}

func (v *validator) checkConstTarget(target ast.Expr, sc *scope) {
	id, ok := target.(*ast.Identifier)
	if !ok || !sc.isConst(id.Name) {
		return
	}
	v.addDiag(diagnostics.WConstAssign, fmt.Sprintf("assignment to constant variable '%s'", id.Name), id.Span,
		"the assignment fails at runtime")
}

func (v *validator) validateExpr(expr ast.Expr, sc *scope) {
	if expr == nil {
		return
	}

	switch e := expr.(type) {
	case *ast.NumberLiteral, *ast.StringLiteral, *ast.BooleanLiteral, *ast.NullLiteral,
		*ast.UndefinedLiteral, *ast.Identifier:
		// leaves

	case *ast.TemplateLiteral:
		for _, inner := range e.Expressions {
			v.validateExpr(inner, sc)
		}

	case *ast.SpreadElement:
		v.validateExpr(e.Argument, sc)

	case *ast.ArrayExpression:
		for _, elem := range e.Elements {
			v.validateExpr(elem, sc)
		}

	case *ast.ObjectExpression:
		for _, member := range e.Properties {
			switch p := member.(type) {
			case *ast.Property:
				if p.Computed {
					v.validateExpr(p.KeyExpr, sc)
				}
				v.validateExpr(p.Value, sc)
			case *ast.SpreadElement:
				v.validateExpr(p.Argument, sc)
			}
		}

	case *ast.FunctionExpression:
		v.validateFunction(e.Params, e.Body, nil, e.Span, sc)

	case *ast.ArrowFunctionExpression:
		v.validateFunction(e.Params, e.Body, e.Expression, e.Span, sc)

	case *ast.CallExpression:
		v.validateExpr(e.Callee, sc)
		for _, arg := range e.Arguments {
			v.validateExpr(arg, sc)
		}

	case *ast.MemberExpression:
		v.validateExpr(e.Object, sc)
		if e.Computed {
			v.validateExpr(e.Property, sc)
		}

	case *ast.AssignmentExpression:
		v.checkConstTarget(e.Target, sc)
		v.validateExpr(e.Target, sc)
		v.validateExpr(e.Value, sc)

	case *ast.UpdateExpression:
		v.checkConstTarget(e.Argument, sc)
		v.validateExpr(e.Argument, sc)

	case *ast.BinaryExpression:
		v.validateExpr(e.Left, sc)
		v.validateExpr(e.Right, sc)

	case *ast.LogicalExpression:
		v.validateExpr(e.Left, sc)
		v.validateExpr(e.Right, sc)

	case *ast.UnaryExpression:
		v.validateExpr(e.Operand, sc)

	case *ast.ConditionalExpression:
		v.validateExpr(e.Test, sc)
		v.validateExpr(e.Consequent, sc)
		v.validateExpr(e.Alternate, sc)

	case *ast.UnsupportedExpression:
		v.addDiag(diagnostics.WUnsupported,
			fmt.Sprintf("'%s' expressions are not supported and evaluate to undefined", e.Construct), e.Span, "")
	}
}

// Package parser implements the recursive-descent parser for the traced subset.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
	"github.com/thomasrohde/steptrace/pkg/lexer"
)

type parser struct {
	tokens []lexer.Token
	pos    int
	diags  []diagnostics.Diagnostic
}

// Parse tokenizes source and parses it into an AST.
// Parsing stops at the first error.
func Parse(source, filename string) (*ast.Program, []diagnostics.Diagnostic) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		var le *lexer.LexError
		if errors.As(err, &le) {
			return nil, []diagnostics.Diagnostic{le.Diag}
		}
		return nil, []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.ELex, err.Error(), nil, "")}
	}

	p := &parser{tokens: tokens, pos: 0}
	prog := p.parseProgram()
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return prog, nil
}

func (p *parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *parser) peek() lexer.TokenType {
	return p.current().Type
}

func (p *parser) peekAt(offset int) lexer.TokenType {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return lexer.TokEOF
	}
	return p.tokens[idx].Type
}

func (p *parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ lexer.TokenType) (lexer.Token, bool) {
	tok := p.current()
	if tok.Type != typ {
		p.unexpected()
		return tok, false
	}
	return p.advance(), true
}

// unexpected reports the current token as a syntax error.
func (p *parser) unexpected() {
	tok := p.current()
	p.addError("Unexpected token", &tok.Span)
}

func (p *parser) addError(msg string, span *ast.Span) {
	if span != nil {
		msg = fmt.Sprintf("%s (%d:%d)", msg, span.StartLine, span.StartCol-1)
	}
	p.diags = append(p.diags, diagnostics.MakeDiag(diagnostics.EParse, msg, span, ""))
}

func (p *parser) spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

// prevSpan is the span of the most recently consumed token.
func (p *parser) prevSpan() ast.Span {
	if p.pos == 0 {
		return p.current().Span
	}
	return p.tokens[p.pos-1].Span
}

// isPropertyName returns true if the token can name a property after '.'
// or in an object literal key position.
func isPropertyName(t lexer.TokenType) bool {
	return t == lexer.TokIdent || lexer.IsKeyword(t)
}

// consumeSemicolon accepts an explicit ';' or an automatically inserted one
// before '}', end of input, or a line break.
func (p *parser) consumeSemicolon() bool {
	switch {
	case p.peek() == lexer.TokSemicolon:
		p.advance()
		return true
	case p.peek() == lexer.TokRBrace, p.peek() == lexer.TokEOF, p.current().NewlineBefore:
		return true
	}
	p.unexpected()
	return false
}

// --- Program ---

func (p *parser) parseProgram() *ast.Program {
	startSpan := p.current().Span

	var stmts []ast.Stmt
	for p.peek() != lexer.TokEOF {
		if p.peek() == lexer.TokSemicolon {
			p.advance()
			continue
		}
		stmt := p.parseStmt()
		if stmt == nil {
			return nil
		}
		stmts = append(stmts, stmt)
	}

	return &ast.Program{
		Span: p.spanFromTo(startSpan, p.current().Span),
		Body: stmts,
	}
}

// --- Statements ---

func (p *parser) parseStmt() ast.Stmt {
	switch p.peek() {
	case lexer.TokLet, lexer.TokConst, lexer.TokVar:
		if p.peekAt(1) == lexer.TokLBracket || p.peekAt(1) == lexer.TokLBrace {
			return p.skipUnsupported("destructuring")
		}
		decl := p.parseVarDecl()
		if decl == nil {
			return nil
		}
		if !p.consumeSemicolon() {
			return nil
		}
		return decl
	case lexer.TokFunction:
		return p.parseFunctionDecl()
	case lexer.TokIf:
		return p.parseIfStmt()
	case lexer.TokFor:
		return p.parseForStmt()
	case lexer.TokWhile:
		return p.parseWhileStmt()
	case lexer.TokReturn:
		return p.parseReturnStmt()
	case lexer.TokBreak:
		tok := p.advance()
		if !p.consumeSemicolon() {
			return nil
		}
		return &ast.BreakStatement{Span: tok.Span}
	case lexer.TokContinue:
		tok := p.advance()
		if !p.consumeSemicolon() {
			return nil
		}
		return &ast.ContinueStatement{Span: tok.Span}
	case lexer.TokLBrace:
		block := p.parseBlock()
		if block == nil {
			return nil
		}
		return block
	case lexer.TokSemicolon:
		tok := p.advance()
		return &ast.BlockStatement{Span: tok.Span}
	case lexer.TokSwitch, lexer.TokTry, lexer.TokDo, lexer.TokClass, lexer.TokThrow:
		return p.skipUnsupported(p.current().Value)
	default:
		return p.parseExprStmt()
	}
}

func (p *parser) parseVarDecl() *ast.VariableDeclaration {
	start := p.advance() // consume let/const/var
	decl := &ast.VariableDeclaration{DeclKind: ast.DeclKind(start.Value)}

	for {
		nameTok, ok := p.expect(lexer.TokIdent)
		if !ok {
			return nil
		}
		d := &ast.VariableDeclarator{Span: nameTok.Span, Name: nameTok.Value}
		if p.peek() == lexer.TokAssign {
			p.advance()
			init := p.parseAssignment()
			if init == nil {
				return nil
			}
			d.Init = init
			d.Span = p.spanFromTo(nameTok.Span, init.NodeSpan())
		} else if decl.DeclKind == ast.DeclConst && !p.atForInOf() {
			p.addError("Missing initializer in const declaration", &nameTok.Span)
			return nil
		}
		decl.Declarations = append(decl.Declarations, d)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}

	decl.Span = p.spanFromTo(start.Span, p.prevSpan())
	return decl
}

func (p *parser) atForInOf() bool {
	return p.peek() == lexer.TokIn || (p.peek() == lexer.TokIdent && p.current().Value == "of")
}

func (p *parser) parseFunctionDecl() ast.Stmt {
	start := p.advance() // consume 'function'
	nameTok, ok := p.expect(lexer.TokIdent)
	if !ok {
		return nil
	}
	params, ok := p.parseParams()
	if !ok {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.FunctionDeclaration{
		Span:   p.spanFromTo(start.Span, body.Span),
		Name:   nameTok.Value,
		Params: params,
		Body:   body,
	}
}

// parseParams parses `(a, b, c)`.
func (p *parser) parseParams() ([]string, bool) {
	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil, false
	}
	params := []string{}
	for p.peek() != lexer.TokRParen {
		paramTok, ok := p.expect(lexer.TokIdent)
		if !ok {
			return nil, false
		}
		params = append(params, paramTok.Value)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}
	if _, ok := p.expect(lexer.TokRParen); !ok {
		return nil, false
	}
	return params, true
}

func (p *parser) parseBlock() *ast.BlockStatement {
	start, ok := p.expect(lexer.TokLBrace)
	if !ok {
		return nil
	}
	var stmts []ast.Stmt
	for p.peek() != lexer.TokRBrace {
		if p.peek() == lexer.TokEOF {
			p.unexpected()
			return nil
		}
		if p.peek() == lexer.TokSemicolon {
			p.advance()
			continue
		}
		stmt := p.parseStmt()
		if stmt == nil {
			return nil
		}
		stmts = append(stmts, stmt)
	}
	end := p.advance() // consume '}'
	return &ast.BlockStatement{
		Span: p.spanFromTo(start.Span, end.Span),
		Body: stmts,
	}
}

func (p *parser) parseParenExpr() ast.Expr {
	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil
	}
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokRParen); !ok {
		return nil
	}
	return expr
}

func (p *parser) parseIfStmt() ast.Stmt {
	start := p.advance() // consume 'if'
	test := p.parseParenExpr()
	if test == nil {
		return nil
	}
	cons := p.parseStmt()
	if cons == nil {
		return nil
	}
	stmt := &ast.IfStatement{Test: test, Consequent: cons}
	end := cons.NodeSpan()
	if p.peek() == lexer.TokElse {
		p.advance()
		alt := p.parseStmt()
		if alt == nil {
			return nil
		}
		stmt.Alternate = alt
		end = alt.NodeSpan()
	}
	stmt.Span = p.spanFromTo(start.Span, end)
	return stmt
}

func (p *parser) parseWhileStmt() ast.Stmt {
	start := p.advance() // consume 'while'
	test := p.parseParenExpr()
	if test == nil {
		return nil
	}
	body := p.parseStmt()
	if body == nil {
		return nil
	}
	return &ast.WhileStatement{
		Span: p.spanFromTo(start.Span, body.NodeSpan()),
		Test: test,
		Body: body,
	}
}

// forInOfConstruct looks past `for (` for the `x of` / `let x in` shapes and
// names the construct when it finds one.
func (p *parser) forInOfConstruct() string {
	if p.peekAt(1) != lexer.TokLParen {
		return ""
	}
	off := 2
	switch p.peekAt(off) {
	case lexer.TokLet, lexer.TokConst, lexer.TokVar:
		off++
	}
	if p.peekAt(off) != lexer.TokIdent {
		return ""
	}
	next := p.pos + off + 1
	if next >= len(p.tokens) {
		return ""
	}
	tok := p.tokens[next]
	switch {
	case tok.Type == lexer.TokIn:
		return "for...in"
	case tok.Type == lexer.TokIdent && tok.Value == "of":
		return "for...of"
	}
	return ""
}

func (p *parser) parseForStmt() ast.Stmt {
	if construct := p.forInOfConstruct(); construct != "" {
		return p.skipUnsupported(construct)
	}

	start := p.advance() // consume 'for'
	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil
	}

	stmt := &ast.ForStatement{}
	switch p.peek() {
	case lexer.TokSemicolon:
	case lexer.TokLet, lexer.TokConst, lexer.TokVar:
		decl := p.parseVarDecl()
		if decl == nil {
			return nil
		}
		stmt.Init = decl
	default:
		expr := p.parseExpr()
		if expr == nil {
			return nil
		}
		stmt.Init = &ast.ExpressionStatement{Span: expr.NodeSpan(), Expression: expr}
	}
	if _, ok := p.expect(lexer.TokSemicolon); !ok {
		return nil
	}

	if p.peek() != lexer.TokSemicolon {
		stmt.Test = p.parseExpr()
		if stmt.Test == nil {
			return nil
		}
	}
	if _, ok := p.expect(lexer.TokSemicolon); !ok {
		return nil
	}

	if p.peek() != lexer.TokRParen {
		stmt.Update = p.parseExpr()
		if stmt.Update == nil {
			return nil
		}
	}
	if _, ok := p.expect(lexer.TokRParen); !ok {
		return nil
	}

	body := p.parseStmt()
	if body == nil {
		return nil
	}
	stmt.Body = body
	stmt.Span = p.spanFromTo(start.Span, body.NodeSpan())
	return stmt
}

func (p *parser) parseReturnStmt() ast.Stmt {
	start := p.advance() // consume 'return'
	stmt := &ast.ReturnStatement{Span: start.Span}
	tok := p.current()
	if tok.Type != lexer.TokSemicolon && tok.Type != lexer.TokRBrace && tok.Type != lexer.TokEOF && !tok.NewlineBefore {
		arg := p.parseExpr()
		if arg == nil {
			return nil
		}
		stmt.Argument = arg
		stmt.Span = p.spanFromTo(start.Span, arg.NodeSpan())
	}
	if !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

func (p *parser) parseExprStmt() ast.Stmt {
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	if !p.consumeSemicolon() {
		return nil
	}
	return &ast.ExpressionStatement{
		Span:       expr.NodeSpan(),
		Expression: expr,
	}
}

// --- Unsupported constructs ---

func isOpener(t lexer.TokenType) bool {
	return t == lexer.TokLParen || t == lexer.TokLBracket || t == lexer.TokLBrace || t == lexer.TokTemplateHead
}

func isCloser(t lexer.TokenType) bool {
	return t == lexer.TokRParen || t == lexer.TokRBracket || t == lexer.TokRBrace || t == lexer.TokTemplateTail
}

// skipGroup consumes a balanced bracket group starting at the current opener.
func (p *parser) skipGroup() bool {
	if !isOpener(p.peek()) {
		p.unexpected()
		return false
	}
	depth := 0
	for {
		tok := p.current()
		switch {
		case tok.Type == lexer.TokEOF:
			p.unexpected()
			return false
		case isOpener(tok.Type):
			depth++
		case isCloser(tok.Type):
			depth--
		}
		p.advance()
		if depth == 0 {
			return true
		}
	}
}

// skipSimple consumes tokens up to the end of a simple statement.
func (p *parser) skipSimple() bool {
	first := true
	for {
		tok := p.current()
		switch {
		case tok.Type == lexer.TokEOF, tok.Type == lexer.TokRBrace:
			return true
		case tok.Type == lexer.TokSemicolon:
			p.advance()
			return true
		case tok.NewlineBefore && !first:
			return true
		case isOpener(tok.Type):
			if !p.skipGroup() {
				return false
			}
		case isCloser(tok.Type):
			p.unexpected()
			return false
		default:
			p.advance()
		}
		first = false
	}
}

// skipBody consumes a loop or block body: a braced group or a simple statement.
func (p *parser) skipBody() bool {
	if p.peek() == lexer.TokLBrace {
		return p.skipGroup()
	}
	return p.skipSimple()
}

// skipUnsupported consumes a statement the interpreter does not execute and
// returns a placeholder carrying its span.
func (p *parser) skipUnsupported(construct string) ast.Stmt {
	start := p.current()
	ok := true
	switch start.Type {
	case lexer.TokSwitch:
		p.advance()
		ok = p.skipGroup() && p.skipGroup()
	case lexer.TokTry:
		p.advance()
		ok = p.skipGroup()
		for ok && (p.peek() == lexer.TokCatch || p.peek() == lexer.TokFinally) {
			p.advance()
			if p.peek() == lexer.TokLParen {
				ok = p.skipGroup()
			}
			ok = ok && p.skipGroup()
		}
	case lexer.TokDo:
		p.advance()
		ok = p.skipBody()
		if ok {
			if _, ok = p.expect(lexer.TokWhile); ok {
				ok = p.skipGroup()
				if ok && p.peek() == lexer.TokSemicolon {
					p.advance()
				}
			}
		}
	case lexer.TokClass:
		p.advance()
		for ok && p.peek() != lexer.TokLBrace {
			if p.peek() == lexer.TokEOF {
				p.unexpected()
				ok = false
				break
			}
			p.advance()
		}
		ok = ok && p.skipGroup()
	case lexer.TokFor:
		p.advance()
		ok = p.skipGroup() && p.skipBody()
	default:
		p.advance()
		ok = p.skipSimple()
	}
	if !ok {
		return nil
	}
	return &ast.UnsupportedStatement{
		Span:      p.spanFromTo(start.Span, p.prevSpan()),
		Construct: construct,
	}
}

// --- Expressions ---

func (p *parser) parseExpr() ast.Expr {
	return p.parseAssignment()
}

func assignOpFor(t lexer.TokenType) (ast.AssignOp, bool) {
	switch t {
	case lexer.TokAssign:
		return ast.OpAssign, true
	case lexer.TokPlusAssign:
		return ast.OpAddAssign, true
	case lexer.TokMinusAssign:
		return ast.OpSubAssign, true
	case lexer.TokStarAssign:
		return ast.OpMulAssign, true
	case lexer.TokSlashAssign:
		return ast.OpDivAssign, true
	case lexer.TokPercentAssign:
		return ast.OpModAssign, true
	}
	return "", false
}

func isAssignable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Identifier, *ast.MemberExpression:
		return true
	}
	return false
}

func (p *parser) parseAssignment() ast.Expr {
	if p.isArrowAhead() {
		return p.parseArrow()
	}

	left := p.parseConditional()
	if left == nil {
		return nil
	}

	op, ok := assignOpFor(p.peek())
	if !ok {
		return left
	}
	if !isAssignable(left) {
		span := left.NodeSpan()
		p.addError("Assigning to rvalue", &span)
		return nil
	}
	p.advance()
	value := p.parseAssignment()
	if value == nil {
		return nil
	}
	return &ast.AssignmentExpression{
		Span:   p.spanFromTo(left.NodeSpan(), value.NodeSpan()),
		Op:     op,
		Target: left,
		Value:  value,
	}
}

// isArrowAhead reports whether the tokens at the cursor start an arrow
// function: `x =>` or a parenthesised list followed by `=>`.
func (p *parser) isArrowAhead() bool {
	switch p.peek() {
	case lexer.TokIdent:
		return p.peekAt(1) == lexer.TokArrow
	case lexer.TokLParen:
		depth := 0
		for i := p.pos; i < len(p.tokens); i++ {
			switch p.tokens[i].Type {
			case lexer.TokLParen:
				depth++
			case lexer.TokRParen:
				depth--
				if depth == 0 {
					return i+1 < len(p.tokens) && p.tokens[i+1].Type == lexer.TokArrow
				}
			case lexer.TokEOF:
				return false
			}
		}
	}
	return false
}

func (p *parser) parseArrow() ast.Expr {
	start := p.current()
	var params []string
	if start.Type == lexer.TokIdent {
		p.advance()
		params = []string{start.Value}
	} else {
		var ok bool
		params, ok = p.parseParams()
		if !ok {
			return nil
		}
	}
	if _, ok := p.expect(lexer.TokArrow); !ok {
		return nil
	}

	fn := &ast.ArrowFunctionExpression{Params: params}
	if p.peek() == lexer.TokLBrace {
		body := p.parseBlock()
		if body == nil {
			return nil
		}
		fn.Body = body
		fn.Span = p.spanFromTo(start.Span, body.Span)
		return fn
	}
	expr := p.parseAssignment()
	if expr == nil {
		return nil
	}
	fn.Expression = expr
	fn.Span = p.spanFromTo(start.Span, expr.NodeSpan())
	return fn
}

func (p *parser) parseConditional() ast.Expr {
	test := p.parseLogicalOr()
	if test == nil {
		return nil
	}
	if p.peek() != lexer.TokQuestion {
		return test
	}
	p.advance()
	cons := p.parseAssignment()
	if cons == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokColon); !ok {
		return nil
	}
	alt := p.parseAssignment()
	if alt == nil {
		return nil
	}
	return &ast.ConditionalExpression{
		Span:       p.spanFromTo(test.NodeSpan(), alt.NodeSpan()),
		Test:       test,
		Consequent: cons,
		Alternate:  alt,
	}
}

// --- Precedence climbing ---

func (p *parser) parseLogicalOr() ast.Expr {
	left := p.parseLogicalAnd()
	if left == nil {
		return nil
	}

	for {
		var op ast.LogicalOp
		switch p.peek() {
		case lexer.TokOrOr:
			op = ast.OpOr
		case lexer.TokQuestionQ:
			op = ast.OpNullish
		default:
			return left
		}
		p.advance()
		right := p.parseLogicalAnd()
		if right == nil {
			return nil
		}
		left = &ast.LogicalExpression{
			Span:  p.spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (p *parser) parseLogicalAnd() ast.Expr {
	left := p.parseEquality()
	if left == nil {
		return nil
	}

	for p.peek() == lexer.TokAndAnd {
		p.advance()
		right := p.parseEquality()
		if right == nil {
			return nil
		}
		left = &ast.LogicalExpression{
			Span:  p.spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    ast.OpAnd,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *parser) parseEquality() ast.Expr {
	left := p.parseRelational()
	if left == nil {
		return nil
	}

	for {
		var op ast.BinaryOp
		switch p.peek() {
		case lexer.TokEqEq:
			op = ast.OpEqEq
		case lexer.TokBangEq:
			op = ast.OpNeq
		case lexer.TokEqEqEq:
			op = ast.OpStrictEq
		case lexer.TokBangEqEq:
			op = ast.OpStrictNeq
		default:
			return left
		}
		p.advance()
		right := p.parseRelational()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpression{
			Span:  p.spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (p *parser) parseRelational() ast.Expr {
	left := p.parseAdditive()
	if left == nil {
		return nil
	}

	for {
		var op ast.BinaryOp
		switch p.peek() {
		case lexer.TokGt:
			op = ast.OpGt
		case lexer.TokLt:
			op = ast.OpLt
		case lexer.TokGtEq:
			op = ast.OpGtEq
		case lexer.TokLtEq:
			op = ast.OpLtEq
		default:
			return left
		}
		p.advance()
		right := p.parseAdditive()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpression{
			Span:  p.spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (p *parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	if left == nil {
		return nil
	}

	for {
		var op ast.BinaryOp
		switch p.peek() {
		case lexer.TokPlus:
			op = ast.OpAdd
		case lexer.TokMinus:
			op = ast.OpSub
		default:
			return left
		}
		p.advance()
		right := p.parseMultiplicative()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpression{
			Span:  p.spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (p *parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}

	for {
		var op ast.BinaryOp
		switch p.peek() {
		case lexer.TokStar:
			op = ast.OpMul
		case lexer.TokSlash:
			op = ast.OpDiv
		case lexer.TokPercent:
			op = ast.OpMod
		default:
			return left
		}
		p.advance()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpression{
			Span:  p.spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (p *parser) parseUnary() ast.Expr {
	var op ast.UnaryOp
	switch p.peek() {
	case lexer.TokMinus:
		op = ast.OpNeg
	case lexer.TokPlus:
		op = ast.OpPlus
	case lexer.TokBang:
		op = ast.OpNot
	case lexer.TokTypeof:
		op = ast.OpTypeof
	case lexer.TokPlusPlus, lexer.TokMinusMinus:
		start := p.advance()
		arg := p.parseUnary()
		if arg == nil {
			return nil
		}
		if !isAssignable(arg) {
			span := arg.NodeSpan()
			p.addError("Assigning to rvalue", &span)
			return nil
		}
		return &ast.UpdateExpression{
			Span:     p.spanFromTo(start.Span, arg.NodeSpan()),
			Op:       start.Value,
			Prefix:   true,
			Argument: arg,
		}
	case lexer.TokNew:
		start := p.advance()
		callee := p.parseCallMember()
		if callee == nil {
			return nil
		}
		return &ast.UnsupportedExpression{
			Span:      p.spanFromTo(start.Span, callee.NodeSpan()),
			Construct: "new",
		}
	default:
		return p.parsePostfix()
	}

	start := p.advance()
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &ast.UnaryExpression{
		Span:    p.spanFromTo(start.Span, operand.NodeSpan()),
		Op:      op,
		Operand: operand,
	}
}

func (p *parser) parsePostfix() ast.Expr {
	expr := p.parseCallMember()
	if expr == nil {
		return nil
	}
	tok := p.current()
	if (tok.Type == lexer.TokPlusPlus || tok.Type == lexer.TokMinusMinus) && !tok.NewlineBefore {
		if !isAssignable(expr) {
			span := expr.NodeSpan()
			p.addError("Assigning to rvalue", &span)
			return nil
		}
		p.advance()
		return &ast.UpdateExpression{
			Span:     p.spanFromTo(expr.NodeSpan(), tok.Span),
			Op:       tok.Value,
			Prefix:   false,
			Argument: expr,
		}
	}
	return expr
}

func (p *parser) parseCallMember() ast.Expr {
	expr := p.parsePrimary()
	if expr == nil {
		return nil
	}

	for {
		switch p.peek() {
		case lexer.TokDot:
			p.advance() // consume '.'
			next := p.current()
			if !isPropertyName(next.Type) {
				p.unexpected()
				return nil
			}
			p.advance()
			expr = &ast.MemberExpression{
				Span:     p.spanFromTo(expr.NodeSpan(), next.Span),
				Object:   expr,
				Property: &ast.Identifier{Span: next.Span, Name: next.Value},
			}
		case lexer.TokLBracket:
			p.advance()
			prop := p.parseExpr()
			if prop == nil {
				return nil
			}
			end, ok := p.expect(lexer.TokRBracket)
			if !ok {
				return nil
			}
			expr = &ast.MemberExpression{
				Span:     p.spanFromTo(expr.NodeSpan(), end.Span),
				Object:   expr,
				Property: prop,
				Computed: true,
			}
		case lexer.TokLParen:
			args, end, ok := p.parseArguments()
			if !ok {
				return nil
			}
			expr = &ast.CallExpression{
				Span:      p.spanFromTo(expr.NodeSpan(), end),
				Callee:    expr,
				Arguments: args,
			}
		default:
			return expr
		}
	}
}

func (p *parser) parseArguments() ([]ast.Expr, ast.Span, bool) {
	p.advance() // consume '('
	args := []ast.Expr{}
	for p.peek() != lexer.TokRParen {
		arg := p.parseElement()
		if arg == nil {
			return nil, ast.Span{}, false
		}
		args = append(args, arg)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}
	end, ok := p.expect(lexer.TokRParen)
	if !ok {
		return nil, ast.Span{}, false
	}
	return args, end.Span, true
}

// parseElement parses an assignment expression or a `...spread`.
func (p *parser) parseElement() ast.Expr {
	if p.peek() != lexer.TokDotDotDot {
		return p.parseAssignment()
	}
	start := p.advance()
	arg := p.parseAssignment()
	if arg == nil {
		return nil
	}
	return &ast.SpreadElement{
		Span:     p.spanFromTo(start.Span, arg.NodeSpan()),
		Argument: arg,
	}
}

func parseNumber(raw string) (float64, error) {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseUint(lower[2:], 16, 64)
		return float64(n), err
	}
	return strconv.ParseFloat(raw, 64)
}

func (p *parser) parsePrimary() ast.Expr {
	switch p.peek() {
	case lexer.TokLParen:
		// Grouped expression
		p.advance()
		expr := p.parseExpr()
		if expr == nil {
			return nil
		}
		if _, ok := p.expect(lexer.TokRParen); !ok {
			return nil
		}
		return expr

	case lexer.TokLBrace:
		return p.parseObject()

	case lexer.TokLBracket:
		return p.parseArray()

	case lexer.TokNumber:
		tok := p.advance()
		val, err := parseNumber(tok.Value)
		if err != nil {
			p.addError("Invalid number", &tok.Span)
			return nil
		}
		return &ast.NumberLiteral{Span: tok.Span, Value: val, Raw: tok.Value}

	case lexer.TokString:
		tok := p.advance()
		return &ast.StringLiteral{Span: tok.Span, Value: tok.Value}

	case lexer.TokTemplateNoSub:
		tok := p.advance()
		return &ast.TemplateLiteral{Span: tok.Span, Quasis: []string{tok.Value}}

	case lexer.TokTemplateHead:
		return p.parseTemplate()

	case lexer.TokTrue:
		tok := p.advance()
		return &ast.BooleanLiteral{Span: tok.Span, Value: true}

	case lexer.TokFalse:
		tok := p.advance()
		return &ast.BooleanLiteral{Span: tok.Span, Value: false}

	case lexer.TokNull:
		tok := p.advance()
		return &ast.NullLiteral{Span: tok.Span}

	case lexer.TokUndefined:
		tok := p.advance()
		return &ast.UndefinedLiteral{Span: tok.Span}

	case lexer.TokIdent:
		tok := p.advance()
		return &ast.Identifier{Span: tok.Span, Name: tok.Value}

	case lexer.TokFunction:
		return p.parseFunctionExpr()

	case lexer.TokThis:
		tok := p.advance()
		return &ast.UnsupportedExpression{Span: tok.Span, Construct: "this"}

	default:
		p.unexpected()
		return nil
	}
}

func (p *parser) parseTemplate() ast.Expr {
	head := p.advance()
	tmpl := &ast.TemplateLiteral{Quasis: []string{head.Value}}
	for {
		expr := p.parseExpr()
		if expr == nil {
			return nil
		}
		tmpl.Expressions = append(tmpl.Expressions, expr)
		tok := p.current()
		switch tok.Type {
		case lexer.TokTemplateMiddle:
			p.advance()
			tmpl.Quasis = append(tmpl.Quasis, tok.Value)
		case lexer.TokTemplateTail:
			p.advance()
			tmpl.Quasis = append(tmpl.Quasis, tok.Value)
			tmpl.Span = p.spanFromTo(head.Span, tok.Span)
			return tmpl
		default:
			p.unexpected()
			return nil
		}
	}
}

func (p *parser) parseFunctionExpr() ast.Expr {
	start := p.advance() // consume 'function'
	name := ""
	if p.peek() == lexer.TokIdent {
		name = p.advance().Value
	}
	params, ok := p.parseParams()
	if !ok {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.FunctionExpression{
		Span:   p.spanFromTo(start.Span, body.Span),
		Name:   name,
		Params: params,
		Body:   body,
	}
}

func (p *parser) parseArray() ast.Expr {
	start := p.advance() // consume '['

	elements := []ast.Expr{}
	for p.peek() != lexer.TokRBracket {
		if p.peek() == lexer.TokComma {
			// elision
			tok := p.advance()
			elements = append(elements, &ast.UndefinedLiteral{Span: tok.Span})
			continue
		}
		elem := p.parseElement()
		if elem == nil {
			return nil
		}
		elements = append(elements, elem)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}

	end, ok := p.expect(lexer.TokRBracket)
	if !ok {
		return nil
	}

	return &ast.ArrayExpression{
		Span:     p.spanFromTo(start.Span, end.Span),
		Elements: elements,
	}
}

func (p *parser) parseObject() ast.Expr {
	start := p.advance() // consume '{'

	var members []ast.ObjectMember

	for p.peek() != lexer.TokRBrace {
		member := p.parseObjectMember()
		if member == nil {
			return nil
		}
		members = append(members, member)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}

	end, ok := p.expect(lexer.TokRBrace)
	if !ok {
		return nil
	}

	return &ast.ObjectExpression{
		Span:       p.spanFromTo(start.Span, end.Span),
		Properties: members,
	}
}

func (p *parser) parseObjectMember() ast.ObjectMember {
	keyTok := p.current()
	prop := &ast.Property{}

	switch {
	case keyTok.Type == lexer.TokDotDotDot:
		p.advance()
		arg := p.parseAssignment()
		if arg == nil {
			return nil
		}
		return &ast.SpreadElement{
			Span:     p.spanFromTo(keyTok.Span, arg.NodeSpan()),
			Argument: arg,
		}
	case keyTok.Type == lexer.TokLBracket:
		p.advance()
		keyExpr := p.parseAssignment()
		if keyExpr == nil {
			return nil
		}
		if _, ok := p.expect(lexer.TokRBracket); !ok {
			return nil
		}
		prop.KeyExpr = keyExpr
		prop.Computed = true
	case isPropertyName(keyTok.Type), keyTok.Type == lexer.TokString:
		p.advance()
		prop.Key = keyTok.Value
	case keyTok.Type == lexer.TokNumber:
		p.advance()
		n, err := parseNumber(keyTok.Value)
		if err != nil {
			p.addError("Invalid number", &keyTok.Span)
			return nil
		}
		prop.Key = formatKey(n)
	default:
		p.unexpected()
		return nil
	}

	switch p.peek() {
	case lexer.TokColon:
		p.advance()
		value := p.parseAssignment()
		if value == nil {
			return nil
		}
		prop.Value = value
	case lexer.TokLParen:
		// method shorthand
		params, ok := p.parseParams()
		if !ok {
			return nil
		}
		body := p.parseBlock()
		if body == nil {
			return nil
		}
		prop.Value = &ast.FunctionExpression{
			Span:   p.spanFromTo(keyTok.Span, body.Span),
			Name:   prop.Key,
			Params: params,
			Body:   body,
		}
	default:
		if keyTok.Type != lexer.TokIdent {
			p.unexpected()
			return nil
		}
		prop.Value = &ast.Identifier{Span: keyTok.Span, Name: keyTok.Value}
		prop.Shorthand = true
	}

	prop.Span = p.spanFromTo(keyTok.Span, prop.Value.NodeSpan())
	return prop
}

func formatKey(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

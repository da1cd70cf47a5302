// Package lexer implements the tokenizer for the traced scripting subset.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	// Keywords
	TokLet TokenType = iota
	TokConst
	TokVar
	TokFunction
	TokReturn
	TokIf
	TokElse
	TokFor
	TokWhile
	TokDo
	TokBreak
	TokContinue
	TokTrue
	TokFalse
	TokNull
	TokUndefined
	TokTypeof
	TokNew
	TokThis
	TokSwitch
	TokCase
	TokDefault
	TokTry
	TokCatch
	TokFinally
	TokThrow
	TokClass
	TokIn

	// Literals
	TokNumber
	TokString
	TokTemplateNoSub  // `text`
	TokTemplateHead   // `text${
	TokTemplateMiddle // }text${
	TokTemplateTail   // }text`

	// Identifiers
	TokIdent

	// Punctuation
	TokLBrace    // {
	TokRBrace    // }
	TokLBracket  // [
	TokRBracket  // ]
	TokLParen    // (
	TokRParen    // )
	TokSemicolon // ;
	TokComma     // ,
	TokColon     // :
	TokQuestion  // ?
	TokDot       // .
	TokDotDotDot // ...
	TokArrow     // =>

	// Assignment operators
	TokAssign        // =
	TokPlusAssign    // +=
	TokMinusAssign   // -=
	TokStarAssign    // *=
	TokSlashAssign   // /=
	TokPercentAssign // %=

	// Comparison operators
	TokEqEq       // ==
	TokBangEq     // !=
	TokEqEqEq     // ===
	TokBangEqEq   // !==
	TokGt         // >
	TokLt         // <
	TokGtEq       // >=
	TokLtEq       // <=
	TokAndAnd     // &&
	TokOrOr       // ||
	TokQuestionQ  // ??
	TokBang       // !
	TokPlusPlus   // ++
	TokMinusMinus // --

	// Arithmetic operators
	TokPlus    // +
	TokMinus   // -
	TokStar    // *
	TokSlash   // /
	TokPercent // %

	// Special
	TokEOF
)

// Token represents a single lexer token. NewlineBefore is set when at least
// one line break separates the token from the previous one.
type Token struct {
	Type          TokenType
	Value         string
	Span          ast.Span
	NewlineBefore bool
}

var keywords = map[string]TokenType{
	"let":       TokLet,
	"const":     TokConst,
	"var":       TokVar,
	"function":  TokFunction,
	"return":    TokReturn,
	"if":        TokIf,
	"else":      TokElse,
	"for":       TokFor,
	"while":     TokWhile,
	"do":        TokDo,
	"break":     TokBreak,
	"continue":  TokContinue,
	"true":      TokTrue,
	"false":     TokFalse,
	"null":      TokNull,
	"undefined": TokUndefined,
	"typeof":    TokTypeof,
	"new":       TokNew,
	"this":      TokThis,
	"switch":    TokSwitch,
	"case":      TokCase,
	"default":   TokDefault,
	"try":       TokTry,
	"catch":     TokCatch,
	"finally":   TokFinally,
	"throw":     TokThrow,
	"class":     TokClass,
	"in":        TokIn,
}

// IsKeyword returns true if the token type is a reserved word.
func IsKeyword(t TokenType) bool {
	return t >= TokLet && t <= TokIn
}

type scanner struct {
	source   string
	filename string
	pos      int
	line     int
	col      int

	// braces counts open '{' tokens; templates holds the brace depth at
	// which each enclosing template substitution resumes.
	braces    int
	templates []int
}

func newScanner(source, filename string) *scanner {
	return &scanner{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.source)
}

func (s *scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.pos]
}

func (s *scanner) peekAt(offset int) byte {
	p := s.pos + offset
	if p >= len(s.source) {
		return 0
	}
	return s.source[p]
}

func (s *scanner) advance() byte {
	ch := s.source[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *scanner) span(startLine, startCol int) ast.Span {
	return ast.Span{
		File:      s.filename,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   s.line,
		EndCol:    s.col,
	}
}

// skipWhitespaceAndComments reports whether a line break was skipped.
func (s *scanner) skipWhitespaceAndComments() (bool, error) {
	newline := false
	for !s.atEnd() {
		ch := s.peek()
		switch {
		case ch == '\n':
			newline = true
			s.advance()
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f' || ch == '\v':
			s.advance()
		case ch == '/' && s.peekAt(1) == '/':
			for !s.atEnd() && s.peek() != '\n' {
				s.advance()
			}
		case ch == '/' && s.peekAt(1) == '*':
			startLine, startCol := s.line, s.col
			s.advance()
			s.advance()
			closed := false
			for !s.atEnd() {
				if s.peek() == '*' && s.peekAt(1) == '/' {
					s.advance()
					s.advance()
					closed = true
					break
				}
				if s.advance() == '\n' {
					newline = true
				}
			}
			if !closed {
				return newline, s.lexError(startLine, startCol, "Unterminated comment")
			}
		default:
			if ch >= utf8.RuneSelf {
				r, size := utf8.DecodeRuneInString(s.source[s.pos:])
				if unicode.IsSpace(r) || r == '\uFEFF' {
					for i := 0; i < size; i++ {
						s.advance()
					}
					continue
				}
			}
			return newline, nil
		}
	}
	return newline, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= utf8.RuneSelf && unicode.IsLetter(r))
}

func isIdentPart(r rune) bool {
	if r < utf8.RuneSelf {
		return isIdentStart(r) || isDigit(byte(r))
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// readEscape consumes the character after a backslash and writes its cooked
// form into buf.
func (s *scanner) readEscape(buf *strings.Builder, startLine, startCol int) error {
	if s.atEnd() {
		return s.lexError(startLine, startCol, "Unterminated string constant")
	}
	esc := s.advance()
	switch esc {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case 'v':
		buf.WriteByte('\v')
	case '0':
		buf.WriteByte(0)
	case '\r':
		if s.peek() == '\n' {
			s.advance()
		}
	case '\n':
		// line continuation
	case 'x':
		if !isHexDigit(s.peekAt(0)) || !isHexDigit(s.peekAt(1)) {
			return s.lexError(s.line, s.col, "Bad character escape sequence")
		}
		code, _ := strconv.ParseUint(s.source[s.pos:s.pos+2], 16, 32)
		buf.WriteRune(rune(code))
		s.advance()
		s.advance()
	case 'u':
		var hexStr string
		if s.peek() == '{' {
			s.advance()
			start := s.pos
			for !s.atEnd() && s.peek() != '}' {
				s.advance()
			}
			if s.atEnd() {
				return s.lexError(startLine, startCol, "Bad character escape sequence")
			}
			hexStr = s.source[start:s.pos]
			s.advance()
		} else {
			if s.pos+4 > len(s.source) {
				return s.lexError(s.line, s.col, "Bad character escape sequence")
			}
			hexStr = s.source[s.pos : s.pos+4]
			for i := 0; i < 4; i++ {
				s.advance()
			}
		}
		codepoint, err := strconv.ParseUint(hexStr, 16, 32)
		if err != nil || codepoint > unicode.MaxRune {
			return s.lexError(startLine, startCol, "Bad character escape sequence")
		}
		buf.WriteRune(rune(codepoint))
	default:
		// Unknown escapes stand for the character itself.
		s.pos--
		s.col--
		r, size := utf8.DecodeRuneInString(s.source[s.pos:])
		buf.WriteRune(r)
		for i := 0; i < size; i++ {
			s.advance()
		}
	}
	return nil
}

func (s *scanner) scanString() (Token, error) {
	startLine, startCol := s.line, s.col
	quote := s.advance() // consume opening quote

	var buf strings.Builder
	for !s.atEnd() {
		ch := s.peek()
		if ch == quote {
			s.advance() // consume closing quote
			return Token{
				Type:  TokString,
				Value: buf.String(),
				Span:  s.span(startLine, startCol),
			}, nil
		}
		if ch == '\\' {
			s.advance() // consume backslash
			if err := s.readEscape(&buf, startLine, startCol); err != nil {
				return Token{}, err
			}
		} else if ch == '\n' {
			return Token{}, s.lexError(startLine, startCol, "Unterminated string constant")
		} else {
			// Handle multi-byte UTF-8 characters
			r, size := utf8.DecodeRuneInString(s.source[s.pos:])
			buf.WriteRune(r)
			for i := 0; i < size; i++ {
				s.advance()
			}
		}
	}
	return Token{}, s.lexError(startLine, startCol, "Unterminated string constant")
}

// scanTemplatePart scans template text after an opening '`' or a closing '}'
// of a substitution. head selects between the Head/NoSub and Middle/Tail pairs.
func (s *scanner) scanTemplatePart(startLine, startCol int, head bool) (Token, error) {
	var buf strings.Builder
	for !s.atEnd() {
		ch := s.peek()
		switch {
		case ch == '`':
			s.advance()
			typ := TokTemplateTail
			if head {
				typ = TokTemplateNoSub
			}
			return Token{Type: typ, Value: buf.String(), Span: s.span(startLine, startCol)}, nil
		case ch == '$' && s.peekAt(1) == '{':
			s.advance()
			s.advance()
			s.templates = append(s.templates, s.braces)
			typ := TokTemplateMiddle
			if head {
				typ = TokTemplateHead
			}
			return Token{Type: typ, Value: buf.String(), Span: s.span(startLine, startCol)}, nil
		case ch == '\\':
			s.advance()
			if err := s.readEscape(&buf, startLine, startCol); err != nil {
				return Token{}, err
			}
		case ch == '\r':
			s.advance()
			if s.peek() == '\n' {
				s.advance()
			}
			buf.WriteByte('\n')
		default:
			r, size := utf8.DecodeRuneInString(s.source[s.pos:])
			buf.WriteRune(r)
			for i := 0; i < size; i++ {
				s.advance()
			}
		}
	}
	return Token{}, s.lexError(startLine, startCol, "Unterminated template")
}

func (s *scanner) scanNumber() (Token, error) {
	startLine, startCol := s.line, s.col
	startPos := s.pos

	if s.peek() == '0' && (s.peekAt(1) == 'x' || s.peekAt(1) == 'X') {
		s.advance()
		s.advance()
		if !isHexDigit(s.peek()) {
			return Token{}, s.lexError(startLine, startCol, "Expected number in radix 16")
		}
		for !s.atEnd() && isHexDigit(s.peek()) {
			s.advance()
		}
	} else {
		// Scan integer part
		for !s.atEnd() && isDigit(s.peek()) {
			s.advance()
		}

		// Optional fractional part
		if !s.atEnd() && s.peek() == '.' && s.peekAt(1) != '.' {
			s.advance() // consume '.'
			for !s.atEnd() && isDigit(s.peek()) {
				s.advance()
			}
		}

		// Optional exponent
		if !s.atEnd() && (s.peek() == 'e' || s.peek() == 'E') {
			next := s.peekAt(1)
			if isDigit(next) || ((next == '+' || next == '-') && isDigit(s.peekAt(2))) {
				s.advance() // consume e/E
				if s.peek() == '+' || s.peek() == '-' {
					s.advance()
				}
				for !s.atEnd() && isDigit(s.peek()) {
					s.advance()
				}
			}
		}
	}

	if !s.atEnd() {
		r, _ := utf8.DecodeRuneInString(s.source[s.pos:])
		if isIdentStart(r) {
			return Token{}, s.lexError(s.line, s.col, "Identifier directly after number")
		}
	}

	return Token{
		Type:  TokNumber,
		Value: s.source[startPos:s.pos],
		Span:  s.span(startLine, startCol),
	}, nil
}

func (s *scanner) scanIdentOrKeyword() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos

	for !s.atEnd() {
		r, size := utf8.DecodeRuneInString(s.source[s.pos:])
		if !isIdentPart(r) {
			break
		}
		for i := 0; i < size; i++ {
			s.advance()
		}
	}

	text := s.source[startPos:s.pos]

	if tokType, ok := keywords[text]; ok {
		return Token{
			Type:  tokType,
			Value: text,
			Span:  s.span(startLine, startCol),
		}
	}

	return Token{
		Type:  TokIdent,
		Value: text,
		Span:  s.span(startLine, startCol),
	}
}

func (s *scanner) lexError(line, col int, msg string) error {
	diag := diagnostics.MakeDiag(
		diagnostics.ELex,
		fmt.Sprintf("%s (%d:%d)", msg, line, col-1),
		&ast.Span{File: s.filename, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1},
		"",
	)
	return &LexError{Diag: diag}
}

// LexError wraps a diagnostic for lex errors.
type LexError struct {
	Diag diagnostics.Diagnostic
}

func (e *LexError) Error() string {
	return e.Diag.Message
}

// operators lists multi-character punctuators longest first so that the
// first prefix match wins.
var operators = []struct {
	text string
	typ  TokenType
}{
	{"===", TokEqEqEq},
	{"!==", TokBangEqEq},
	{"...", TokDotDotDot},
	{"=>", TokArrow},
	{"==", TokEqEq},
	{"!=", TokBangEq},
	{">=", TokGtEq},
	{"<=", TokLtEq},
	{"&&", TokAndAnd},
	{"||", TokOrOr},
	{"??", TokQuestionQ},
	{"++", TokPlusPlus},
	{"--", TokMinusMinus},
	{"+=", TokPlusAssign},
	{"-=", TokMinusAssign},
	{"*=", TokStarAssign},
	{"/=", TokSlashAssign},
	{"%=", TokPercentAssign},
	{"{", TokLBrace},
	{"}", TokRBrace},
	{"[", TokLBracket},
	{"]", TokRBracket},
	{"(", TokLParen},
	{")", TokRParen},
	{";", TokSemicolon},
	{",", TokComma},
	{":", TokColon},
	{"?", TokQuestion},
	{".", TokDot},
	{"=", TokAssign},
	{">", TokGt},
	{"<", TokLt},
	{"!", TokBang},
	{"+", TokPlus},
	{"-", TokMinus},
	{"*", TokStar},
	{"/", TokSlash},
	{"%", TokPercent},
}

func (s *scanner) nextToken() (Token, error) {
	newline, err := s.skipWhitespaceAndComments()
	if err != nil {
		return Token{}, err
	}
	tok, err := s.scanToken()
	tok.NewlineBefore = newline
	return tok, err
}

func (s *scanner) scanToken() (Token, error) {
	if s.atEnd() {
		return Token{
			Type:  TokEOF,
			Value: "",
			Span:  s.span(s.line, s.col),
		}, nil
	}

	ch := s.peek()
	startLine, startCol := s.line, s.col

	switch {
	case isDigit(ch), ch == '.' && isDigit(s.peekAt(1)):
		return s.scanNumber()
	case ch == '"' || ch == '\'':
		return s.scanString()
	case ch == '`':
		s.advance()
		return s.scanTemplatePart(startLine, startCol, true)
	case ch == '}' && len(s.templates) > 0 && s.templates[len(s.templates)-1] == s.braces:
		s.templates = s.templates[:len(s.templates)-1]
		s.advance()
		return s.scanTemplatePart(startLine, startCol, false)
	}

	r, _ := utf8.DecodeRuneInString(s.source[s.pos:])
	if isIdentStart(r) {
		return s.scanIdentOrKeyword(), nil
	}

	rest := s.source[s.pos:]
	for _, op := range operators {
		if !strings.HasPrefix(rest, op.text) {
			continue
		}
		for i := 0; i < len(op.text); i++ {
			s.advance()
		}
		switch op.typ {
		case TokLBrace:
			s.braces++
		case TokRBrace:
			s.braces--
		}
		return Token{Type: op.typ, Value: op.text, Span: s.span(startLine, startCol)}, nil
	}

	return Token{}, s.lexError(startLine, startCol, fmt.Sprintf("Unexpected character '%c'", r))
}

// Tokenize breaks source code into a slice of tokens.
func Tokenize(source, filename string) ([]Token, error) {
	s := newScanner(source, filename)
	var tokens []Token

	for {
		tok, err := s.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokEOF {
			break
		}
	}

	return tokens, nil
}

// Package ast defines the syntax tree for the traced scripting subset.
package ast

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() string
	NodeSpan() Span
}

// BinaryOp represents a binary operator.
type BinaryOp string

const (
	OpAdd       BinaryOp = "+"
	OpSub       BinaryOp = "-"
	OpMul       BinaryOp = "*"
	OpDiv       BinaryOp = "/"
	OpMod       BinaryOp = "%"
	OpGt        BinaryOp = ">"
	OpLt        BinaryOp = "<"
	OpGtEq      BinaryOp = ">="
	OpLtEq      BinaryOp = "<="
	OpEqEq      BinaryOp = "=="
	OpNeq       BinaryOp = "!="
	OpStrictEq  BinaryOp = "==="
	OpStrictNeq BinaryOp = "!=="
)

// LogicalOp represents a short-circuiting operator.
type LogicalOp string

const (
	OpAnd     LogicalOp = "&&"
	OpOr      LogicalOp = "||"
	OpNullish LogicalOp = "??"
)

// UnaryOp represents a unary operator.
type UnaryOp string

const (
	OpNeg    UnaryOp = "-"
	OpPlus   UnaryOp = "+"
	OpNot    UnaryOp = "!"
	OpTypeof UnaryOp = "typeof"
)

// AssignOp represents an assignment operator.
type AssignOp string

const (
	OpAssign    AssignOp = "="
	OpAddAssign AssignOp = "+="
	OpSubAssign AssignOp = "-="
	OpMulAssign AssignOp = "*="
	OpDivAssign AssignOp = "/="
	OpModAssign AssignOp = "%="
)

// Binary returns the arithmetic operator a compound assignment applies.
func (op AssignOp) Binary() (BinaryOp, bool) {
	switch op {
	case OpAddAssign:
		return OpAdd, true
	case OpSubAssign:
		return OpSub, true
	case OpMulAssign:
		return OpMul, true
	case OpDivAssign:
		return OpDiv, true
	case OpModAssign:
		return OpMod, true
	}
	return "", false
}

// DeclKind is the keyword that introduced a variable declaration.
type DeclKind string

const (
	DeclLet   DeclKind = "let"
	DeclConst DeclKind = "const"
	DeclVar   DeclKind = "var"
)

// --- Expr is the interface for all expression nodes ---

type Expr interface {
	Node
	exprNode() // sealed marker
}

// --- Stmt is the interface for all statement nodes ---

type Stmt interface {
	Node
	stmtNode() // sealed marker
}

// --- Program ---

type Program struct {
	Span Span
	Body []Stmt
}

func (n *Program) Kind() string   { return "Program" }
func (n *Program) NodeSpan() Span { return n.Span }

// --- Literal Expressions ---

type NumberLiteral struct {
	Span  Span
	Value float64
	Raw   string
}

func (n *NumberLiteral) Kind() string   { return "NumberLiteral" }
func (n *NumberLiteral) NodeSpan() Span { return n.Span }
func (n *NumberLiteral) exprNode()      {}

type StringLiteral struct {
	Span  Span
	Value string
}

func (n *StringLiteral) Kind() string   { return "StringLiteral" }
func (n *StringLiteral) NodeSpan() Span { return n.Span }
func (n *StringLiteral) exprNode()      {}

type BooleanLiteral struct {
	Span  Span
	Value bool
}

func (n *BooleanLiteral) Kind() string   { return "BooleanLiteral" }
func (n *BooleanLiteral) NodeSpan() Span { return n.Span }
func (n *BooleanLiteral) exprNode()      {}

type NullLiteral struct {
	Span Span
}

func (n *NullLiteral) Kind() string   { return "NullLiteral" }
func (n *NullLiteral) NodeSpan() Span { return n.Span }
func (n *NullLiteral) exprNode()      {}

type UndefinedLiteral struct {
	Span Span
}

func (n *UndefinedLiteral) Kind() string   { return "UndefinedLiteral" }
func (n *UndefinedLiteral) NodeSpan() Span { return n.Span }
func (n *UndefinedLiteral) exprNode()      {}

// TemplateLiteral holds len(Expressions)+1 cooked string parts.
type TemplateLiteral struct {
	Span        Span
	Quasis      []string
	Expressions []Expr
}

func (n *TemplateLiteral) Kind() string   { return "TemplateLiteral" }
func (n *TemplateLiteral) NodeSpan() Span { return n.Span }
func (n *TemplateLiteral) exprNode()      {}

// --- Identifiers ---

type Identifier struct {
	Span Span
	Name string
}

func (n *Identifier) Kind() string   { return "Identifier" }
func (n *Identifier) NodeSpan() Span { return n.Span }
func (n *Identifier) exprNode()      {}

// --- Collections ---

// SpreadElement is `...expr` inside an array literal, argument list, or object literal.
type SpreadElement struct {
	Span     Span
	Argument Expr
}

func (n *SpreadElement) Kind() string      { return "SpreadElement" }
func (n *SpreadElement) NodeSpan() Span    { return n.Span }
func (n *SpreadElement) exprNode()         {}
func (n *SpreadElement) objectMemberNode() {}

type ArrayExpression struct {
	Span     Span
	Elements []Expr
}

func (n *ArrayExpression) Kind() string   { return "ArrayExpression" }
func (n *ArrayExpression) NodeSpan() Span { return n.Span }
func (n *ArrayExpression) exprNode()      {}

// ObjectMember is a union of Property and SpreadElement in object literals.
type ObjectMember interface {
	Node
	objectMemberNode() // sealed marker
}

// Property is a single `key: value` entry. Computed keys keep the key
// expression in KeyExpr and leave Key empty.
type Property struct {
	Span      Span
	Key       string
	KeyExpr   Expr
	Value     Expr
	Computed  bool
	Shorthand bool
}

func (n *Property) Kind() string      { return "Property" }
func (n *Property) NodeSpan() Span    { return n.Span }
func (n *Property) objectMemberNode() {}

type ObjectExpression struct {
	Span       Span
	Properties []ObjectMember
}

func (n *ObjectExpression) Kind() string   { return "ObjectExpression" }
func (n *ObjectExpression) NodeSpan() Span { return n.Span }
func (n *ObjectExpression) exprNode()      {}

// --- Functions ---

type FunctionExpression struct {
	Span   Span
	Name   string
	Params []string
	Body   *BlockStatement
}

func (n *FunctionExpression) Kind() string   { return "FunctionExpression" }
func (n *FunctionExpression) NodeSpan() Span { return n.Span }
func (n *FunctionExpression) exprNode()      {}

// ArrowFunctionExpression has either a block Body or a single Expression body.
type ArrowFunctionExpression struct {
	Span       Span
	Params     []string
	Body       *BlockStatement
	Expression Expr
}

func (n *ArrowFunctionExpression) Kind() string   { return "ArrowFunctionExpression" }
func (n *ArrowFunctionExpression) NodeSpan() Span { return n.Span }
func (n *ArrowFunctionExpression) exprNode()      {}

type CallExpression struct {
	Span      Span
	Callee    Expr
	Arguments []Expr
}

func (n *CallExpression) Kind() string   { return "CallExpression" }
func (n *CallExpression) NodeSpan() Span { return n.Span }
func (n *CallExpression) exprNode()      {}

// MemberExpression is `obj.name` (Property is an *Identifier) or `obj[expr]`.
type MemberExpression struct {
	Span     Span
	Object   Expr
	Property Expr
	Computed bool
}

func (n *MemberExpression) Kind() string   { return "MemberExpression" }
func (n *MemberExpression) NodeSpan() Span { return n.Span }
func (n *MemberExpression) exprNode()      {}

// PropertyName returns the static property name of a non-computed member access.
func (n *MemberExpression) PropertyName() string {
	if id, ok := n.Property.(*Identifier); ok && !n.Computed {
		return id.Name
	}
	return ""
}

// --- Operators ---

type AssignmentExpression struct {
	Span   Span
	Op     AssignOp
	Target Expr
	Value  Expr
}

func (n *AssignmentExpression) Kind() string   { return "AssignmentExpression" }
func (n *AssignmentExpression) NodeSpan() Span { return n.Span }
func (n *AssignmentExpression) exprNode()      {}

type UpdateExpression struct {
	Span     Span
	Op       string // "++" or "--"
	Prefix   bool
	Argument Expr
}

func (n *UpdateExpression) Kind() string   { return "UpdateExpression" }
func (n *UpdateExpression) NodeSpan() Span { return n.Span }
func (n *UpdateExpression) exprNode()      {}

type BinaryExpression struct {
	Span  Span
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (n *BinaryExpression) Kind() string   { return "BinaryExpression" }
func (n *BinaryExpression) NodeSpan() Span { return n.Span }
func (n *BinaryExpression) exprNode()      {}

type LogicalExpression struct {
	Span  Span
	Op    LogicalOp
	Left  Expr
	Right Expr
}

func (n *LogicalExpression) Kind() string   { return "LogicalExpression" }
func (n *LogicalExpression) NodeSpan() Span { return n.Span }
func (n *LogicalExpression) exprNode()      {}

type UnaryExpression struct {
	Span    Span
	Op      UnaryOp
	Operand Expr
}

func (n *UnaryExpression) Kind() string   { return "UnaryExpression" }
func (n *UnaryExpression) NodeSpan() Span { return n.Span }
func (n *UnaryExpression) exprNode()      {}

type ConditionalExpression struct {
	Span       Span
	Test       Expr
	Consequent Expr
	Alternate  Expr
}

func (n *ConditionalExpression) Kind() string   { return "ConditionalExpression" }
func (n *ConditionalExpression) NodeSpan() Span { return n.Span }
func (n *ConditionalExpression) exprNode()      {}

// UnsupportedExpression stands in for syntax outside the traced subset
// (`new`, `this`, regular expressions). It evaluates to undefined.
type UnsupportedExpression struct {
	Span      Span
	Construct string
}

func (n *UnsupportedExpression) Kind() string   { return "UnsupportedExpression" }
func (n *UnsupportedExpression) NodeSpan() Span { return n.Span }
func (n *UnsupportedExpression) exprNode()      {}

// --- Statements ---

type VariableDeclarator struct {
	Span Span
	Name string
	Init Expr
}

func (n *VariableDeclarator) Kind() string   { return "VariableDeclarator" }
func (n *VariableDeclarator) NodeSpan() Span { return n.Span }

type VariableDeclaration struct {
	Span         Span
	DeclKind     DeclKind
	Declarations []*VariableDeclarator
}

func (n *VariableDeclaration) Kind() string   { return "VariableDeclaration" }
func (n *VariableDeclaration) NodeSpan() Span { return n.Span }
func (n *VariableDeclaration) stmtNode()      {}

type FunctionDeclaration struct {
	Span   Span
	Name   string
	Params []string
	Body   *BlockStatement
}

func (n *FunctionDeclaration) Kind() string   { return "FunctionDeclaration" }
func (n *FunctionDeclaration) NodeSpan() Span { return n.Span }
func (n *FunctionDeclaration) stmtNode()      {}

type ExpressionStatement struct {
	Span       Span
	Expression Expr
}

func (n *ExpressionStatement) Kind() string   { return "ExpressionStatement" }
func (n *ExpressionStatement) NodeSpan() Span { return n.Span }
func (n *ExpressionStatement) stmtNode()      {}

type BlockStatement struct {
	Span Span
	Body []Stmt
}

func (n *BlockStatement) Kind() string   { return "BlockStatement" }
func (n *BlockStatement) NodeSpan() Span { return n.Span }
func (n *BlockStatement) stmtNode()      {}

type IfStatement struct {
	Span       Span
	Test       Expr
	Consequent Stmt
	Alternate  Stmt // nil when there is no else branch
}

func (n *IfStatement) Kind() string   { return "IfStatement" }
func (n *IfStatement) NodeSpan() Span { return n.Span }
func (n *IfStatement) stmtNode()      {}

// ForStatement is a C-style loop. Init is a *VariableDeclaration or an
// *ExpressionStatement; any of Init, Test, Update may be nil.
type ForStatement struct {
	Span   Span
	Init   Stmt
	Test   Expr
	Update Expr
	Body   Stmt
}

func (n *ForStatement) Kind() string   { return "ForStatement" }
func (n *ForStatement) NodeSpan() Span { return n.Span }
func (n *ForStatement) stmtNode()      {}

type WhileStatement struct {
	Span Span
	Test Expr
	Body Stmt
}

func (n *WhileStatement) Kind() string   { return "WhileStatement" }
func (n *WhileStatement) NodeSpan() Span { return n.Span }
func (n *WhileStatement) stmtNode()      {}

type ReturnStatement struct {
	Span     Span
	Argument Expr // nil for a bare return
}

func (n *ReturnStatement) Kind() string   { return "ReturnStatement" }
func (n *ReturnStatement) NodeSpan() Span { return n.Span }
func (n *ReturnStatement) stmtNode()      {}

type BreakStatement struct {
	Span Span
}

func (n *BreakStatement) Kind() string   { return "BreakStatement" }
func (n *BreakStatement) NodeSpan() Span { return n.Span }
func (n *BreakStatement) stmtNode()      {}

type ContinueStatement struct {
	Span Span
}

func (n *ContinueStatement) Kind() string   { return "ContinueStatement" }
func (n *ContinueStatement) NodeSpan() Span { return n.Span }
func (n *ContinueStatement) stmtNode()      {}

// UnsupportedStatement records a statement form the interpreter does not
// execute, such as `switch` or `try`. Construct names the keyword.
type UnsupportedStatement struct {
	Span      Span
	Construct string
}

func (n *UnsupportedStatement) Kind() string   { return "UnsupportedStatement" }
func (n *UnsupportedStatement) NodeSpan() Span { return n.Span }
func (n *UnsupportedStatement) stmtNode()      {}

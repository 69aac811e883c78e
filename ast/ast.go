// Package ast defines the syntax tree produced by the compiler front end
// and consumed by the vm evaluator. Nodes arrive already validated: the
// evaluator checks semantics only, never syntax.
package ast

// Position is a 1-based source location.
type Position struct {
	Line int
	Col  int
}

// Node is implemented by every statement and expression.
type Node interface {
	Pos() Position
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// UnitLit is the unit literal `()`.
type UnitLit struct {
	Position Position
}

// BoolLit is `true` or `false`.
type BoolLit struct {
	Position Position
	Value    bool
}

// IntLit is an integer literal.
type IntLit struct {
	Position Position
	Value    int64
}

// FloatLit is a float literal.
type FloatLit struct {
	Position Position
	Value    float64
}

// CharLit is a character literal, e.g. 'a'.
type CharLit struct {
	Position Position
	Value    rune
}

// StringLit is a string literal.
type StringLit struct {
	Position Position
	Value    string
}

// Ident is a variable reference.
type Ident struct {
	Position Position
	Name     string
}

// ArrayLit is `[a, b, c]`.
type ArrayLit struct {
	Position Position
	Elems    []Expr
}

// MapLit is `#{ key: value, ... }`. Keys are fixed strings.
type MapLit struct {
	Position Position
	Keys     []string
	Values   []Expr
}

// Unary is a prefix operator application.
type Unary struct {
	Position Position
	Op       string
	X        Expr
}

// Binary is an infix operator application. Short-circuit operators
// (&&, ||) are Binary nodes; the evaluator special-cases them.
type Binary struct {
	Position Position
	Op       string
	X        Expr
	Y        Expr
}

// Range is `from..to`, half-open.
type Range struct {
	Position Position
	From     Expr
	To       Expr
}

// Call is a plain function call by name: `name(args...)`.
type Call struct {
	Position Position
	Name     string
	Args     []Expr
}

// MethodCall is `target.name(args...)`.
type MethodCall struct {
	Position Position
	Target   Expr
	Name     string
	Args     []Expr
}

// Prop is a property access: `target.name`.
type Prop struct {
	Position Position
	Target   Expr
	Name     string
}

// Index is `target[idx]`.
type Index struct {
	Position Position
	Target   Expr
	Idx      Expr
}

func (e *UnitLit) Pos() Position    { return e.Position }
func (e *BoolLit) Pos() Position    { return e.Position }
func (e *IntLit) Pos() Position     { return e.Position }
func (e *FloatLit) Pos() Position   { return e.Position }
func (e *CharLit) Pos() Position    { return e.Position }
func (e *StringLit) Pos() Position  { return e.Position }
func (e *Ident) Pos() Position      { return e.Position }
func (e *ArrayLit) Pos() Position   { return e.Position }
func (e *MapLit) Pos() Position     { return e.Position }
func (e *Unary) Pos() Position      { return e.Position }
func (e *Binary) Pos() Position     { return e.Position }
func (e *Range) Pos() Position      { return e.Position }
func (e *Call) Pos() Position       { return e.Position }
func (e *MethodCall) Pos() Position { return e.Position }
func (e *Prop) Pos() Position       { return e.Position }
func (e *Index) Pos() Position      { return e.Position }

func (e *UnitLit) exprNode()    {}
func (e *BoolLit) exprNode()    {}
func (e *IntLit) exprNode()     {}
func (e *FloatLit) exprNode()   {}
func (e *CharLit) exprNode()    {}
func (e *StringLit) exprNode()  {}
func (e *Ident) exprNode()      {}
func (e *ArrayLit) exprNode()   {}
func (e *MapLit) exprNode()     {}
func (e *Unary) exprNode()      {}
func (e *Binary) exprNode()     {}
func (e *Range) exprNode()      {}
func (e *Call) exprNode()       {}
func (e *MethodCall) exprNode() {}
func (e *Prop) exprNode()       {}
func (e *Index) exprNode()      {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Let declares a variable. Const declarations set Const.
type Let struct {
	Position Position
	Name     string
	Init     Expr // nil means unit
	Const    bool
}

// Assign writes through an lvalue (Ident, Index or Prop). Op is "=" for
// plain assignment or a compound form like "+=".
type Assign struct {
	Position Position
	LHS      Expr
	Op       string
	RHS      Expr
}

// ExprStmt evaluates an expression for its value. The value of the last
// ExprStmt in a block is the block's value.
type ExprStmt struct {
	X Expr
}

// Block is `{ ... }`. Locals declared inside are dropped on exit.
type Block struct {
	Position Position
	Stmts    []Stmt
}

// If is `if cond { } else ...`. Else is nil, a *Block, or another *If.
type If struct {
	Position Position
	Cond     Expr
	Then     *Block
	Else     Stmt
}

// While is `while cond { }`. A nil Cond is the infinite `loop { }` form.
type While struct {
	Position Position
	Cond     Expr
	Body     *Block
}

// For is `for name in iterable { }`.
type For struct {
	Position Position
	Name     string
	Iter     Expr
	Body     *Block
}

// Break exits the nearest enclosing loop.
type Break struct {
	Position Position
}

// Continue skips to the next iteration of the nearest enclosing loop.
type Continue struct {
	Position Position
}

// Return exits the current function. X is nil for a bare `return`.
type Return struct {
	Position Position
	X        Expr
}

// FnDef declares a script function: `fn name(params) { }`.
type FnDef struct {
	Position Position
	Name     string
	Params   []string
	Body     *Block
}

// TryCatch is `try { } catch (err) { }`. ErrVar may be empty.
type TryCatch struct {
	Position Position
	Body     *Block
	ErrVar   string
	Catch    *Block
}

func (s *Let) Pos() Position      { return s.Position }
func (s *Assign) Pos() Position   { return s.Position }
func (s *ExprStmt) Pos() Position { return s.X.Pos() }
func (s *Block) Pos() Position    { return s.Position }
func (s *If) Pos() Position       { return s.Position }
func (s *While) Pos() Position    { return s.Position }
func (s *For) Pos() Position      { return s.Position }
func (s *Break) Pos() Position    { return s.Position }
func (s *Continue) Pos() Position { return s.Position }
func (s *Return) Pos() Position   { return s.Position }
func (s *FnDef) Pos() Position    { return s.Position }
func (s *TryCatch) Pos() Position { return s.Position }

func (s *Let) stmtNode()      {}
func (s *Assign) stmtNode()   {}
func (s *ExprStmt) stmtNode() {}
func (s *Block) stmtNode()    {}
func (s *If) stmtNode()       {}
func (s *While) stmtNode()    {}
func (s *For) stmtNode()      {}
func (s *Break) stmtNode()    {}
func (s *Continue) stmtNode() {}
func (s *Return) stmtNode()   {}
func (s *FnDef) stmtNode()    {}
func (s *TryCatch) stmtNode() {}

// Program is a parsed script: a statement sequence.
type Program struct {
	Stmts []Stmt
}

// IsPure reports whether evaluating e can have no side effect and cannot
// fail. Used by the optimizer to decide what is safe to drop or fold.
func IsPure(e Expr) bool {
	switch x := e.(type) {
	case *UnitLit, *BoolLit, *IntLit, *FloatLit, *CharLit, *StringLit:
		return true
	case *ArrayLit:
		for _, el := range x.Elems {
			if !IsPure(el) {
				return false
			}
		}
		return true
	case *MapLit:
		for _, v := range x.Values {
			if !IsPure(v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ir.go - typed intermediate representation consumed by the lowerer
package main

// NodeKind tags the expression and statement nodes of the IR tree.
type NodeKind int

const (
	NdNullExpr NodeKind = iota // no-op expression
	NdAdd
	NdSub
	NdMul
	NdDiv
	NdMod
	NdBitand
	NdBitor
	NdBitxor
	NdShl
	NdShr
	NdEq
	NdNe
	NdLt
	NdLe
	NdNeg
	NdNot
	NdBitnot
	NdLogand
	NdLogor
	NdNum
	NdVar
	NdVLAPtr
	NdMember
	NdDeref
	NdAddr
	NdAssign
	NdCond
	NdComma
	NdCast
	NdMemzero
	NdFuncall
	NdStmtExpr
	NdLabelVal
	NdCas
	NdExch
	NdIf
	NdFor
	NdDo
	NdSwitch
	NdCase
	NdBlock
	NdGoto
	NdGotoExpr
	NdLabel
	NdReturn
	NdExprStmt
	NdAsm
)

// Label is a branch target identity shared between the statement that places
// it and the statements that jump to it. The machine-code pc-label is
// allocated lazily on first use.
type Label struct {
	Name string
	pc   PCLabel
}

func NewLabel(name string) *Label {
	return &Label{Name: name}
}

// Node is one IR tree node. Which fields are meaningful depends on Kind; the
// frontend fills Ty and Tok on every node.
type Node struct {
	Kind NodeKind
	Ty   *Type
	Tok  *Token

	Lhs *Node
	Rhs *Node

	// if / for / do / ternary
	Cond *Node
	Then *Node
	Els  *Node
	Init *Node
	Inc  *Node

	// Loop and switch branch targets.
	BrkLabel  *Label
	ContLabel *Label

	// block / stmt-expr
	Body []*Node

	// Function calls.
	Args        []*Node
	RetBuffer   *Obj
	passByStack bool

	// switch
	Cases       []*Node
	DefaultCase *Node

	// case: matches values in [Begin, End]
	Begin int64
	End   int64

	// goto / label / label-value
	Lbl *Label

	Var    *Obj
	Member *Member

	Val  int64
	FVal float64

	// __asm__ statement text
	AsmStr string

	// Atomic compare-and-swap operands.
	CasAddr *Node
	CasOld  *Node
	CasNew  *Node
}

// Relocation is one pointer-sized initializer inside a global's init data.
// Exactly one of DataLabel and CodeLbl is set.
type Relocation struct {
	Offset    int
	DataLabel string
	CodeLbl   *Label
	Addend    int64
}

// Obj is a named storage definition: a global, a local, a parameter or a
// function.
type Obj struct {
	Name    string
	Ty      *Type
	Tok     *Token
	IsLocal bool
	Align   int

	// RBP-relative offset, assigned by the frame planner for locals and
	// register-passed parameters (negative) and stack-passed parameters
	// (positive, from RBP+16).
	Offset int

	IsFunction   bool
	IsDefinition bool
	IsStatic     bool
	IsTentative  bool
	IsLive       bool
	IsTLS        bool

	InitData []byte
	Rel      []*Relocation

	// Function bodies.
	Params       []*Obj
	Locals       []*Obj
	Body         *Node
	VaArea       *Obj
	AllocaBottom *Obj
	StackSize    int

	entryLabel  PCLabel
	returnLabel PCLabel
}

package model

// ItemProvider is the tagged union over the five item-block kinds plus
// Single/Expanded, implemented as a small sealed Go interface rather
// than a virtual hierarchy (spec §9's design note).
type ItemProvider interface {
	itemProvider()
}

// ViewFilter carries the optional <Condition>, <IncludeView>,
// <ExcludeView> attributes shared by most node kinds.
type ViewFilter struct {
	Condition   string
	IncludeView string
	ExcludeView string
}

// SingleProvider is a fixed one-child window returning the evaluated
// expression under a configured name.
type SingleProvider struct {
	Name            string
	Expression      string
	Optional        bool
	SyntheticGetter *SyntheticMethod
}

func (*SingleProvider) itemProvider() {}

// ExpandedProvider inlines the target's own children, skipping any
// nested Raw View.
type ExpandedProvider struct {
	Expression      string
	Optional        bool
	SyntheticGetter *SyntheticMethod
}

func (*ExpandedProvider) itemProvider() {}

// SizeNode is one <Size> candidate: the first whose Condition holds (and
// whose view matches) is used.
type SizeNode struct {
	ViewFilter
	Expression string
}

// ValuePointerNode is one <ValuePointer> candidate.
type ValuePointerNode struct {
	ViewFilter
	Expression      string
	SyntheticGetter *SyntheticMethod
}

// ArrayItemsProvider evaluates Size then the first matching
// ValuePointer, synthesising children at offset i*sizeof(elem).
type ArrayItemsProvider struct {
	Sizes           []*SizeNode
	ValuePointers   []*ValuePointerNode
	SyntheticGetter *SyntheticMethod
}

func (*ArrayItemsProvider) itemProvider() {}

// IndexNode is one <ValueNode> candidate inside <IndexListItems>,
// evaluated with `$i` bound to the requested index.
type IndexNode struct {
	ViewFilter
	Expression      string
	SyntheticGetter *SyntheticMethod
}

// IndexListItemsProvider is the IndexListItems family.
type IndexListItemsProvider struct {
	Sizes           []*SizeNode
	ValueNodes      []*IndexNode
	SyntheticGetter *SyntheticMethod
}

func (*IndexListItemsProvider) itemProvider() {}

// LinkedListItemsProvider maintains a cursor, a next expression and an
// optional explicit size, with custom per-node name interpolation.
type LinkedListItemsProvider struct {
	HeadPointer     string
	Size            *SizeNode // nil => discover by walking until the next expression yields no node
	NextExpression  string
	ValueExpression string
	ValueNodeName   string // optional custom display name, may reference $i
	SyntheticGetter *SyntheticMethod
}

func (*LinkedListItemsProvider) itemProvider() {}

// TreeItemsProvider is the iterative in-order traversal family.
type TreeItemsProvider struct {
	HeadPointer      string
	Size             *SizeNode // nil => discovered, capped at g_max_num_children
	LeftExpression   string
	RightExpression  string
	ValueExpression  string
	ValueCondition   string // optional per-node prune, $i available
	ValueNodeName    string
	SyntheticGetter  *SyntheticMethod
}

func (*TreeItemsProvider) itemProvider() {}

// --- CustomListItems instruction stream ---

// Instruction is one compiled step of a CustomListItems item block.
type Instruction interface {
	instruction()
}

// ExecInstruction runs Expression if Condition passes (or always, if
// Condition is empty).
type ExecInstruction struct {
	Condition  string
	Expression string
}

func (*ExecInstruction) instruction() {}

// ItemInstruction evaluates Expression, formats it, and appends it to the
// children collector under an optional interpolated Name.
type ItemInstruction struct {
	Condition  string
	Name       string
	Expression string
}

func (*ItemInstruction) instruction() {}

// BranchInstruction models a chained If/Elseif/Else: when Condition
// holds (or is empty, for the trailing Else), control jumps to Target;
// otherwise execution falls through to the next instruction.
type BranchInstruction struct {
	Condition string
	Target    int
}

func (*BranchInstruction) instruction() {}

// LoopInstruction is a conditional back-edge: while Condition holds,
// jump to Target (the loop body's first instruction); BreakTarget is
// pushed onto the break-target stack for the duration of the loop body.
type LoopInstruction struct {
	Condition    string
	Target       int
	BreakTarget  int
}

func (*LoopInstruction) instruction() {}

// BreakInstruction jumps to the top-of-stack break target if Condition
// holds (or unconditionally, if Condition is empty).
type BreakInstruction struct {
	Condition string
}

func (*BreakInstruction) instruction() {}

// JumpInstruction is an unconditional jump, used to close out If/Elseif
// chains (skip the remaining branches after a taken one) and Loop bodies
// (jump back to the loop's condition check).
type JumpInstruction struct {
	Target int
}

func (*JumpInstruction) instruction() {}

// VariableDecl is a <Variable>, bound once per (provider, wildcards).
type VariableDecl struct {
	Name         string
	InitialValue string
}

// CustomListItemsProvider is the compiled instruction stream plus the
// variables bound for the lifetime of one expansion.
type CustomListItemsProvider struct {
	Variables    []*VariableDecl
	Instructions []Instruction
}

func (*CustomListItemsProvider) itemProvider() {}

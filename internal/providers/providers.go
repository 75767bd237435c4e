// Package providers implements the lazy synthetic-children state
// machines the dispatch engine drives once it has matched a value
// against an expand block: array/pointer indexing, IndexListItems `$i`
// substitution over ValueNode candidates (with no fallback to reading a
// member's own synthetic children), linked-list cursor walking,
// iterative in-order tree traversal, and the CustomListItems bytecode
// interpreter. Ported from jb_lldb_natvis_formatters.py's
// AbstractChildrenProvider family.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/standardbeagle/natvis-engine/internal/cppsyntax"
	"github.com/standardbeagle/natvis-engine/internal/hostapi"
	"github.com/standardbeagle/natvis-engine/internal/itemexpr"
	"github.com/standardbeagle/natvis-engine/internal/model"
)

// MaxDiscoveredChildren bounds how far a size-less LinkedListItems or
// TreeItems walk is allowed to go before it is treated as malformed.
const MaxDiscoveredChildren = 10000

// MaxTreeStackDepth caps the explicit stack used by the iterative
// in-order tree walk: a tree deeper than this is assumed corrupt rather
// than walked to exhaustion.
const MaxTreeStackDepth = 100

// Provider is the common surface every item-block state machine
// exposes to the dispatch engine: lazily produce child N on demand and
// report how many children currently exist.
type Provider interface {
	NumChildren() int
	ChildAtIndex(ctx context.Context, index int) (hostapi.Value, string, error)
}

func resolveIndex(expr string, idx int) string {
	return strings.ReplaceAll(expr, "$i", strconv.Itoa(idx))
}

func evalBool(ctx context.Context, ev hostapi.ExpressionEvaluator, ctxVal hostapi.Value, expr string, wildcards []string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	resolved, _ := cppsyntax.ResolveWildcards(expr, wildcards)
	val, err := ev.Evaluate(ctx, ctxVal, resolved)
	if err != nil {
		return false, err
	}
	raw := val.Raw()
	return raw != "" && raw != "0" && raw != "false", nil
}

// --- ArrayItemsProvider ---

// ArrayProvider walks a single resolved ValuePointer at offset
// index*sizeof(elem); the debugger side is responsible for computing
// the element's address, this layer only tracks size and item naming.
type ArrayProvider struct {
	tracker      *itemexpr.Tracker
	size         int
	valuePointer hostapi.Value
	getter       *model.SyntheticMethod
}

func NewArrayProvider(tracker *itemexpr.Tracker, size int, valuePointer hostapi.Value, getter *model.SyntheticMethod) *ArrayProvider {
	return &ArrayProvider{tracker: tracker, size: size, valuePointer: valuePointer, getter: getter}
}

func (p *ArrayProvider) NumChildren() int { return p.size }

func (p *ArrayProvider) ChildAtIndex(ctx context.Context, index int) (hostapi.Value, string, error) {
	if index < 0 || index >= p.size {
		return nil, "", fmt.Errorf("providers: array index %d out of range [0,%d)", index, p.size)
	}
	name := fmt.Sprintf("[%d]", index)
	child, ok := p.valuePointer.ChildAtIndex(index)
	if !ok {
		return nil, "", fmt.Errorf("providers: could not materialise array element %d", index)
	}
	p.tracker.UpdateItemExpression(child, p.valuePointer, name, p.getter)
	return child, name, nil
}

// --- IndexListItemsProvider ---

// IndexListProvider tries each configured ValueNode, in order, against
// the requested index, substituting `$i` and returning the first one
// whose Condition holds (or that has none).
type IndexListProvider struct {
	tracker   *itemexpr.Tracker
	evaluator hostapi.ExpressionEvaluator
	ctxVal    hostapi.Value
	nodes     []*model.IndexNode
	wildcards []string
	size      int
}

func NewIndexListProvider(tracker *itemexpr.Tracker, ev hostapi.ExpressionEvaluator, ctxVal hostapi.Value, nodes []*model.IndexNode, wildcards []string, size int) *IndexListProvider {
	return &IndexListProvider{tracker: tracker, evaluator: ev, ctxVal: ctxVal, nodes: nodes, wildcards: wildcards, size: size}
}

func (p *IndexListProvider) NumChildren() int { return p.size }

func (p *IndexListProvider) ChildAtIndex(ctx context.Context, index int) (hostapi.Value, string, error) {
	name := fmt.Sprintf("[%d]", index)
	for _, node := range p.nodes {
		ok, err := evalBool(ctx, p.evaluator, p.ctxVal, resolveIndex(node.Condition, index), p.wildcards)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		expr, _ := cppsyntax.ResolveWildcards(node.Expression, p.wildcards)
		expr = resolveIndex(expr, index)
		val, err := p.evaluator.Evaluate(ctx, p.ctxVal, expr)
		if err != nil {
			continue
		}
		p.tracker.UpdateItemExpression(val, p.ctxVal, name, node.SyntheticGetter)
		return val, name, nil
	}
	return nil, "", fmt.Errorf("providers: no ValueNode produced index %d", index)
}

// --- LinkedListItemsProvider ---

// LinkedListProvider maintains a forward-only cursor: re-requesting an
// index ahead of the last one resumes the walk instead of restarting
// from the head, since the host expression evaluator call is the
// expensive part of this state machine.
type LinkedListProvider struct {
	tracker     *itemexpr.Tracker
	evaluator   hostapi.ExpressionEvaluator
	head        hostapi.Value
	nextExpr    string
	valueExpr   string
	nameTemplate string
	size        int // -1 means discover by walking, capped at MaxDiscoveredChildren
	getter      *model.SyntheticMethod

	cursorIndex int
	cursorNode  hostapi.Value
}

func NewLinkedListProvider(tracker *itemexpr.Tracker, ev hostapi.ExpressionEvaluator, head hostapi.Value, nextExpr, valueExpr, nameTemplate string, size int, getter *model.SyntheticMethod) *LinkedListProvider {
	return &LinkedListProvider{
		tracker: tracker, evaluator: ev, head: head,
		nextExpr: nextExpr, valueExpr: valueExpr, nameTemplate: nameTemplate,
		size: size, cursorNode: head, getter: getter,
	}
}

// NumChildren reports size if a <Size> node pinned one; otherwise the
// list has no known length and the caller walks up to MaxDiscoveredChildren,
// stopping early once walkTo hits a nil next-pointer.
func (p *LinkedListProvider) NumChildren() int {
	if p.size < 0 {
		return MaxDiscoveredChildren
	}
	return p.size
}

func (p *LinkedListProvider) walkTo(ctx context.Context, index int) (hostapi.Value, error) {
	if index < p.cursorIndex {
		p.cursorIndex = 0
		p.cursorNode = p.head
	}
	for p.cursorIndex < index {
		if p.cursorNode == nil {
			return nil, fmt.Errorf("providers: linked list exhausted before index %d", index)
		}
		next, err := p.evaluator.Evaluate(ctx, p.cursorNode, p.nextExpr)
		if err != nil {
			return nil, err
		}
		p.cursorNode = next
		p.cursorIndex++
		if p.cursorIndex > MaxDiscoveredChildren {
			return nil, fmt.Errorf("providers: linked list exceeded %d elements", MaxDiscoveredChildren)
		}
	}
	if p.cursorNode == nil {
		return nil, fmt.Errorf("providers: linked list exhausted before index %d", index)
	}
	return p.cursorNode, nil
}

func (p *LinkedListProvider) ChildAtIndex(ctx context.Context, index int) (hostapi.Value, string, error) {
	node, err := p.walkTo(ctx, index)
	if err != nil {
		return nil, "", err
	}
	val, err := p.evaluator.Evaluate(ctx, node, p.valueExpr)
	if err != nil {
		return nil, "", err
	}
	name := fmt.Sprintf("[%d]", index)
	if p.nameTemplate != "" {
		name = resolveIndex(p.nameTemplate, index)
	}
	p.tracker.UpdateItemExpression(val, node, name, p.getter)
	return val, name, nil
}

// --- TreeItemsProvider ---

// TreeProvider re-walks the tree in order from the root for every
// request, using an explicit stack rather than recursion so a depth
// cap can be enforced deterministically (a corrupt or cyclic tree must
// fail fast, not blow the host's call stack).
type TreeProvider struct {
	tracker      *itemexpr.Tracker
	evaluator    hostapi.ExpressionEvaluator
	head         hostapi.Value
	leftExpr     string
	rightExpr    string
	valueExpr    string
	condition    string
	nameTemplate string
	size         int
	getter       *model.SyntheticMethod
}

func NewTreeProvider(tracker *itemexpr.Tracker, ev hostapi.ExpressionEvaluator, head hostapi.Value, leftExpr, rightExpr, valueExpr, condition, nameTemplate string, size int, getter *model.SyntheticMethod) *TreeProvider {
	return &TreeProvider{
		tracker: tracker, evaluator: ev, head: head,
		leftExpr: leftExpr, rightExpr: rightExpr, valueExpr: valueExpr,
		condition: condition, nameTemplate: nameTemplate, size: size, getter: getter,
	}
}

// NumChildren reports size if a <Size> node pinned one; otherwise the
// tree has no known node count and the caller walks up to
// MaxDiscoveredChildren, bounded along any single path by MaxTreeStackDepth.
func (p *TreeProvider) NumChildren() int {
	if p.size < 0 {
		return MaxDiscoveredChildren
	}
	return p.size
}

func (p *TreeProvider) ChildAtIndex(ctx context.Context, index int) (hostapi.Value, string, error) {
	var stack []hostapi.Value
	node := p.head
	counter := 0

	for {
		for node != nil {
			if len(stack) >= MaxTreeStackDepth {
				return nil, "", fmt.Errorf("providers: tree traversal stack exceeded depth %d", MaxTreeStackDepth)
			}
			stack = append(stack, node)
			left, err := p.evaluator.Evaluate(ctx, node, p.leftExpr)
			if err != nil {
				return nil, "", err
			}
			node = left
		}
		if len(stack) == 0 {
			return nil, "", fmt.Errorf("providers: tree exhausted before index %d", index)
		}
		node, stack = stack[len(stack)-1], stack[:len(stack)-1]

		if p.condition != "" {
			ok, err := evalBool(ctx, p.evaluator, node, p.condition, nil)
			if err != nil {
				return nil, "", err
			}
			if !ok {
				right, err := p.evaluator.Evaluate(ctx, node, p.rightExpr)
				if err != nil {
					return nil, "", err
				}
				node = right
				continue
			}
		}

		if counter == index {
			val, err := p.evaluator.Evaluate(ctx, node, p.valueExpr)
			if err != nil {
				return nil, "", err
			}
			name := fmt.Sprintf("[%d]", index)
			if p.nameTemplate != "" {
				name = resolveIndex(p.nameTemplate, index)
			}
			p.tracker.UpdateItemExpression(val, node, name, p.getter)
			return val, name, nil
		}
		counter++

		right, err := p.evaluator.Evaluate(ctx, node, p.rightExpr)
		if err != nil {
			return nil, "", err
		}
		node = right
	}
}

// --- CustomListItemsProvider ---

// maxCustomListIterations bounds the bytecode interpreter's step count:
// a malformed jump graph (e.g. a Loop whose Condition never turns
// false) must fail instead of spinning forever.
const maxCustomListIterations = 1_000_000

// CustomListProvider interprets the compiled CustomListItems
// instruction stream, producing one more child at a time and caching
// everything it has produced so repeated ChildAtIndex calls for
// earlier indices don't re-run the program.
type CustomListProvider struct {
	tracker   *itemexpr.Tracker
	evaluator hostapi.ExpressionEvaluator
	ctxVal    hostapi.Value
	program   *model.CustomListItemsProvider
	wildcards []string

	vars      map[string]hostapi.Value
	pc        int
	breaks    []int
	produced  []hostapi.Value
	names     []string
	exhausted bool
	started   bool
}

func NewCustomListProvider(tracker *itemexpr.Tracker, ev hostapi.ExpressionEvaluator, ctxVal hostapi.Value, program *model.CustomListItemsProvider, wildcards []string) *CustomListProvider {
	return &CustomListProvider{
		tracker: tracker, evaluator: ev, ctxVal: ctxVal, program: program, wildcards: wildcards,
		vars: make(map[string]hostapi.Value),
	}
}

// NumChildren is unknown ahead of time for CustomListItems (the
// program decides when it is done); callers should drive ChildAtIndex
// until it reports io.EOF-style exhaustion instead of relying on this.
func (p *CustomListProvider) NumChildren() int { return len(p.produced) }

func (p *CustomListProvider) init(ctx context.Context) error {
	if p.started {
		return nil
	}
	p.started = true
	for _, v := range p.program.Variables {
		expr, _ := cppsyntax.ResolveWildcards(v.InitialValue, p.wildcards)
		val, err := p.evaluator.Evaluate(ctx, p.ctxVal, expr)
		if err != nil {
			return fmt.Errorf("providers: custom list variable %q failed: %w", v.Name, err)
		}
		p.vars[v.Name] = val
	}
	return nil
}

func (p *CustomListProvider) ChildAtIndex(ctx context.Context, index int) (hostapi.Value, string, error) {
	if err := p.ensure(ctx, index+1); err != nil {
		return nil, "", err
	}
	if index < 0 || index >= len(p.produced) {
		return nil, "", fmt.Errorf("providers: custom list index %d out of range", index)
	}
	return p.produced[index], p.names[index], nil
}

func (p *CustomListProvider) ensure(ctx context.Context, upTo int) error {
	if err := p.init(ctx); err != nil {
		return err
	}
	iterations := 0
	for len(p.produced) < upTo && !p.exhausted {
		iterations++
		if iterations > maxCustomListIterations {
			return fmt.Errorf("providers: custom list items exceeded %d interpreter steps", maxCustomListIterations)
		}
		if p.pc >= len(p.program.Instructions) {
			p.exhausted = true
			break
		}
		if err := p.step(ctx); err != nil {
			return err
		}
	}
	if len(p.produced) < upTo {
		return fmt.Errorf("providers: custom list items exhausted before producing %d elements", upTo)
	}
	return nil
}

func (p *CustomListProvider) step(ctx context.Context) error {
	instr := p.program.Instructions[p.pc]
	switch ins := instr.(type) {
	case *model.ExecInstruction:
		ok, err := evalBool(ctx, p.evaluator, p.ctxVal, ins.Condition, p.wildcards)
		if err != nil {
			return err
		}
		if ok {
			expr, _ := cppsyntax.ResolveWildcards(ins.Expression, p.wildcards)
			if _, err := p.evaluator.Evaluate(ctx, p.ctxVal, expr); err != nil {
				return err
			}
		}
		p.pc++
	case *model.ItemInstruction:
		ok, err := evalBool(ctx, p.evaluator, p.ctxVal, ins.Condition, p.wildcards)
		if err != nil {
			return err
		}
		if ok {
			expr, _ := cppsyntax.ResolveWildcards(ins.Expression, p.wildcards)
			val, err := p.evaluator.Evaluate(ctx, p.ctxVal, expr)
			if err != nil {
				return err
			}
			name := ins.Name
			if name == "" {
				name = fmt.Sprintf("[%d]", len(p.produced))
			}
			p.tracker.UpdateItemExpression(val, p.ctxVal, name, nil)
			p.produced = append(p.produced, val)
			p.names = append(p.names, name)
		}
		p.pc++
	case *model.BranchInstruction:
		ok, err := evalBool(ctx, p.evaluator, p.ctxVal, ins.Condition, p.wildcards)
		if err != nil {
			return err
		}
		if ok {
			p.pc = ins.Target
		} else {
			p.pc++
		}
	case *model.LoopInstruction:
		ok, err := evalBool(ctx, p.evaluator, p.ctxVal, ins.Condition, p.wildcards)
		if err != nil {
			return err
		}
		n := len(p.breaks)
		if ok {
			if n == 0 || p.breaks[n-1] != ins.BreakTarget {
				p.breaks = append(p.breaks, ins.BreakTarget)
			}
			p.pc = ins.Target
		} else {
			if n > 0 && p.breaks[n-1] == ins.BreakTarget {
				p.breaks = p.breaks[:n-1]
			}
			p.pc++
		}
	case *model.BreakInstruction:
		ok, err := evalBool(ctx, p.evaluator, p.ctxVal, ins.Condition, p.wildcards)
		if err != nil {
			return err
		}
		if !ok {
			p.pc++
			break
		}
		if len(p.breaks) == 0 {
			return fmt.Errorf("providers: custom list items break with no enclosing loop")
		}
		p.pc = p.breaks[len(p.breaks)-1]
		p.breaks = p.breaks[:len(p.breaks)-1]
	case *model.JumpInstruction:
		p.pc = ins.Target
	default:
		return fmt.Errorf("providers: unknown instruction %T", ins)
	}
	return nil
}

// --- SingleProvider ---

// SingleValueProvider is a fixed one-child window: the evaluated
// Expression under a configured display Name. Dispatch resolves
// Expanded separately (it needs to recurse into the target's own
// matched visualiser, which this package has no business knowing
// about), so only the non-recursive Single variant lives here.
type SingleValueProvider struct {
	tracker   *itemexpr.Tracker
	evaluator hostapi.ExpressionEvaluator
	ctxVal    hostapi.Value
	expr      string
	name      string
	wildcards []string
	getter    *model.SyntheticMethod
}

func NewSingleValueProvider(tracker *itemexpr.Tracker, ev hostapi.ExpressionEvaluator, ctxVal hostapi.Value, expr, name string, wildcards []string, getter *model.SyntheticMethod) *SingleValueProvider {
	return &SingleValueProvider{tracker: tracker, evaluator: ev, ctxVal: ctxVal, expr: expr, name: name, wildcards: wildcards, getter: getter}
}

func (p *SingleValueProvider) NumChildren() int { return 1 }

func (p *SingleValueProvider) ChildAtIndex(ctx context.Context, index int) (hostapi.Value, string, error) {
	if index != 0 {
		return nil, "", fmt.Errorf("providers: single-value provider has no child %d", index)
	}
	expr, _ := cppsyntax.ResolveWildcards(p.expr, p.wildcards)
	val, err := p.evaluator.Evaluate(ctx, p.ctxVal, expr)
	if err != nil {
		return nil, "", err
	}
	name := p.name
	if name == "" {
		name = p.expr
	}
	p.tracker.UpdateItemExpression(val, p.ctxVal, p.expr, p.getter)
	return val, name, nil
}

// --- CompositeProvider ---

// ErrRawView is returned by CompositeProvider.ChildAtIndex when the
// requested index lands on the trailing Raw View entry: materialising
// it means re-running the host's own built-in struct enumeration, which
// is this engine's one explicit non-goal, so dispatch hands the caller
// this sentinel instead of a value.
var ErrRawView = errors.New("providers: raw view entry requires the host's built-in struct enumeration")

// CompositeProvider concatenates the Providers built from one TypeViz's
// ordered item-blocks into a single numbered child list, with an
// optional trailing Raw View marker (spec 4.H step 3).
type CompositeProvider struct {
	blocks      []Provider
	hasRawView  bool
	rawViewName string
}

func NewCompositeProvider(blocks []Provider, hasRawView bool, rawViewName string) *CompositeProvider {
	if rawViewName == "" {
		rawViewName = "[Raw View]"
	}
	return &CompositeProvider{blocks: blocks, hasRawView: hasRawView, rawViewName: rawViewName}
}

func (c *CompositeProvider) NumChildren() int {
	n := 0
	for _, b := range c.blocks {
		n += b.NumChildren()
	}
	if c.hasRawView {
		n++
	}
	return n
}

func (c *CompositeProvider) ChildAtIndex(ctx context.Context, index int) (hostapi.Value, string, error) {
	if index < 0 {
		return nil, "", fmt.Errorf("providers: negative child index %d", index)
	}
	for _, b := range c.blocks {
		n := b.NumChildren()
		if index < n {
			return b.ChildAtIndex(ctx, index)
		}
		index -= n
	}
	if c.hasRawView && index == 0 {
		return nil, c.rawViewName, ErrRawView
	}
	return nil, "", fmt.Errorf("providers: composite child index out of range")
}

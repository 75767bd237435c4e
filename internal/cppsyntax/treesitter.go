package cppsyntax

import (
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

// Classifier wraps a tree-sitter C++ grammar parser and offers a
// grammar-backed syntax check for expressions such as deeply nested
// template argument lists (`Foo<Bar<Baz<int>>>`) or lambdas. It is a
// standalone helper: the regex-based checks in this package
// (IsTrivialExpression, IsArrayAccessExpr, HasLambdaInTypeExpr) do not
// call it. Grounded on internal/parser's TreeSitterParser setup for
// the ".cpp" extension in the teacher project, generalised from a
// multi-language source indexer into a single-purpose syntax validator.
type Classifier struct {
	mu     sync.Mutex
	parser *tree_sitter.Parser
}

// NewClassifier constructs a Classifier with the C++ grammar loaded. It
// returns an error if the grammar fails to attach, which callers should
// treat as "fall back to the regex-only checks", never as fatal.
func NewClassifier() (*Classifier, error) {
	parser := tree_sitter.NewParser()
	language := tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	if err := parser.SetLanguage(language); err != nil {
		return nil, err
	}
	return &Classifier{parser: parser}, nil
}

// Close releases the underlying tree-sitter parser.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parser != nil {
		c.parser.Close()
		c.parser = nil
	}
}

// ParsesCleanly reports whether expr parses as a C++ expression with no
// ERROR or MISSING nodes. It wraps expr in a throwaway function body
// (`void _jb$$(){<expr>;}`) since tree-sitter-cpp's top-level rule expects a
// translation unit, not a bare expression.
func (c *Classifier) ParsesCleanly(expr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parser == nil {
		return false
	}
	src := []byte("void _jb$$(){" + expr + ";}")
	tree := c.parser.Parse(src, nil)
	if tree == nil {
		return false
	}
	defer tree.Close()
	root := tree.RootNode()
	if root == nil {
		return false
	}
	return !hasErrorNode(root)
}

func hasErrorNode(n *tree_sitter.Node) bool {
	if n.IsError() || n.IsMissing() {
		return true
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(uint(i))
		if child == nil {
			continue
		}
		if hasErrorNode(child) {
			return true
		}
	}
	return false
}

// BalancedByGrammar is a stricter, grammar-backed alternative to
// IsOuterParenthesesBalanced for expressions the regex path flags as
// ambiguous (nested angle brackets that could be `>>` shift or two close
// brackets). It requires a live Classifier; callers fall back to
// IsOuterParenthesesBalanced when c is nil.
func (c *Classifier) BalancedByGrammar(expr string) bool {
	if !IsOuterParenthesesBalanced(expr) {
		return false
	}
	return c.ParsesCleanly(expr)
}

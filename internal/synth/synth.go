// Package synth walks a registered visualiser and emits the auxiliary
// C++ top-level declarations natvis expressions need to compile
// efficiently: subscript operators, private getters for list/tree
// pointers, smart-pointer operators, and string-comparison operators.
// Ported from jb_declarative_formatters/type_viz_top_level_methods.py.
package synth

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/standardbeagle/natvis-engine/internal/cppsyntax"
	"github.com/standardbeagle/natvis-engine/internal/model"
	"github.com/standardbeagle/natvis-engine/internal/typetraits"
)

// internalIntrinsicPrefix replaces model.IntrinsicNamePrefix in every
// prepared expression so synthesised declarations never collide with
// the user-visible intrinsic name.
const internalIntrinsicPrefix = "jb$intrinsic$internal$"

var invalidCharRe = regexp.MustCompile(`[^\w$]`)

// subscriptStatus tracks whether a type's subscript operator still
// needs declaring, already exists with the same body, or conflicts.
type subscriptStatus int

const (
	subscriptRequired subscriptStatus = iota
	subscriptAlreadyExists
	subscriptForbidden
)

type typeName struct {
	name         string
	hasWildcards bool
}

func (t typeName) String() string { return t.name }

// Synthesizer accumulates SyntheticMethodDefinitions across every
// TypeViz registered in one Formatter, deduplicating by (type,
// method-name, expression) the same way the Python original does.
type Synthesizer struct {
	knownMethodNames   map[string]map[string]map[string]int
	knownIntrinsics    map[string]bool
	privateGetters     map[string]string
	subscriptOperators map[string]string
	definitions        []*model.SyntheticMethodDefinition
}

func New() *Synthesizer {
	return &Synthesizer{
		knownMethodNames:   make(map[string]map[string]map[string]int),
		knownIntrinsics:    make(map[string]bool),
		privateGetters:     make(map[string]string),
		subscriptOperators: make(map[string]string),
	}
}

// Definitions returns every SyntheticMethodDefinition collected so far.
func (s *Synthesizer) Definitions() []*model.SyntheticMethodDefinition {
	return s.definitions
}

func fixTypeRegex(r string) string {
	r = strings.TrimPrefix(r, "^")
	r = strings.TrimSuffix(r, "$")
	for {
		fixed := strings.ReplaceAll(r, ">>", "> >")
		if fixed == r {
			return fixed
		}
		r = fixed
	}
}

func makeInternalName(name string) string {
	return fmt.Sprintf("jb$internal$name$$%s$$", name)
}

func mangleName(name string) string {
	return invalidCharRe.ReplaceAllString(name, "$")
}

// prepareExpr replaces the public intrinsic prefix with the internal
// one and turns every `$Tn` wildcard into the `%i` positional parameter
// the host's regex-based declaration API expects.
func prepareExpr(expr string) string {
	expr = strings.ReplaceAll(expr, model.IntrinsicNamePrefix, internalIntrinsicPrefix)
	substituted, _ := cppsyntax.SubstituteWildcards(expr, func(i int) (string, bool) {
		return fmt.Sprintf("%%%d", i+2), true
	})
	return substituted
}

// CollectTopLevelMethods walks one TypeViz's item providers, smart
// pointer, and string views, appending every derived declaration to s.
func (s *Synthesizer) CollectTopLevelMethods(typeRegex string, tv *model.TypeViz, tvName *model.TypeVizName) {
	tn := typeName{name: fixTypeRegex(typeRegex), hasWildcards: tvName.HasWildcard}

	if tv.GlobalIntrinsics != nil {
		s.addGlobalIntrinsics(tv.GlobalIntrinsics)
	}
	if tv.TypeIntrinsics != nil {
		s.addTypeIntrinsics(tn, tv.TypeIntrinsics)
	}

	var stringMethods []*model.SyntheticMethodDefinition
	for _, provider := range tv.ItemProviders {
		switch p := provider.(type) {
		case *model.SingleProvider:
			s.addSingleItemGetter(tn, p.Expression, p.Name, &p.SyntheticGetter)
		case *model.ExpandedProvider:
			s.addSingleItemGetter(tn, p.Expression, "", &p.SyntheticGetter)
		case *model.ArrayItemsProvider:
			s.addArrayMethods(tn, p)
			if len(stringMethods) == 0 {
				stringMethods = s.stringMethodsFromArrayItems(tn, p)
				s.definitions = append(s.definitions, stringMethods...)
			}
		case *model.IndexListItemsProvider:
			s.addIndexListMethods(tn, p)
		case *model.LinkedListItemsProvider:
			s.addLinkedListMethod(tn, p)
		case *model.TreeItemsProvider:
			s.addTreeMethod(tn, p)
		}
	}

	if tv.SmartPointer != nil {
		s.definitions = append(s.definitions, s.smartPointerMethods(tn, tv.SmartPointer)...)
	}
	if len(stringMethods) == 0 {
		s.definitions = append(s.definitions, s.stringMethodsFromStringViews(tn, tv.StringViews)...)
	}
}

func (s *Synthesizer) addGetterWithUniqueName(tn typeName, getter **model.SyntheticMethod, methodName, methodExpr string) bool {
	byMethod, ok := s.knownMethodNames[tn.name]
	if !ok {
		byMethod = make(map[string]map[string]int)
		s.knownMethodNames[tn.name] = byMethod
	}
	byExpr, ok := byMethod[methodName]
	if !ok {
		byExpr = make(map[string]int)
		byMethod[methodName] = byExpr
	}
	newID := len(byExpr)
	id, existed := byExpr[methodExpr]
	if !existed {
		byExpr[methodExpr] = newID
		id = newID
	}
	name := methodName
	if id != 0 {
		name = fmt.Sprintf("%s%d", methodName, id)
	}
	if *getter == nil {
		*getter = model.NamedMethod(name)
	}
	return !existed
}

func (s *Synthesizer) tryDeclareSubscriptOperator(tn typeName, methodExpr string) subscriptStatus {
	declared, ok := s.subscriptOperators[tn.name]
	if !ok {
		s.subscriptOperators[tn.name] = methodExpr
		return subscriptRequired
	}
	if declared == methodExpr {
		return subscriptAlreadyExists
	}
	return subscriptForbidden
}

func joinOperatorRegexAndDeclarations(tn typeName, operators [][2]string) []*model.SyntheticMethodDefinition {
	if tn.hasWildcards {
		var names []string
		var decls []string
		for _, op := range operators {
			names = append(names, regexp.QuoteMeta(op[0]))
			decls = append(decls, op[1])
		}
		regex := fmt.Sprintf("^(%s)::operator(?:%s)$", tn.name, strings.Join(names, "|"))
		return []*model.SyntheticMethodDefinition{{
			FullName: regex, Body: strings.Join(decls, "\n"), NameUsesRegex: true,
		}}
	}
	var defs []*model.SyntheticMethodDefinition
	for _, op := range operators {
		name := fmt.Sprintf("%s::operator%s", tn.name, op[0])
		body := strings.ReplaceAll(op[1], "%1", tn.name)
		defs = append(defs, &model.SyntheticMethodDefinition{FullName: name, Body: body})
	}
	return defs
}

func (s *Synthesizer) smartPointerMethods(tn typeName, sp *model.SmartPointer) []*model.SyntheticMethodDefinition {
	expr := prepareExpr(sp.Expression)
	methods := joinOperatorRegexAndDeclarations(tn, minimalOperators(expr))
	if sp.EffectiveUsage() == model.SmartPointerIndexable {
		if indexable := s.indexableOperators(tn, expr); len(indexable) > 0 {
			methods = append(methods, joinOperatorRegexAndDeclarations(tn, indexable)...)
		}
	}
	return methods
}

func minimalOperators(expr string) [][2]string {
	other := makeInternalName("other")
	return [][2]string{
		{"->", fmt.Sprintf("auto %%1::operator->() const -> decltype(%s) { return %s; }", expr, expr)},
		{"*", fmt.Sprintf("auto %%1::operator*() const -> decltype((*(%s))) { return (*(%s)); }", expr, expr)},
		{"!", fmt.Sprintf("bool %%1::operator!() const { return !(%s); }", expr)},
		{"==", fmt.Sprintf("bool %%1::operator==(const ::%%1 &%s) const { return (%s) == %s.operator->(); }", other, expr, other)},
		{"!=", fmt.Sprintf("bool %%1::operator!=(const ::%%1 &%s) const { return (%s) != %s.operator->(); }", other, expr, other)},
	}
}

func (s *Synthesizer) indexableOperators(tn typeName, expr string) [][2]string {
	indexParam := makeInternalName("index")
	var operators [][2]string

	subscriptBody := fmt.Sprintf("return ((%s)[%s]);", expr, indexParam)
	if s.tryDeclareSubscriptOperator(tn, subscriptBody) != subscriptAlreadyExists {
		operators = append(operators, [2]string{
			"[]", fmt.Sprintf("decltype(auto) %%1::operator[](long long %s) const { %s }", indexParam, subscriptBody),
		})
	}

	if cppsyntax.IsTrivialExpression(expr) {
		offsetParam := makeInternalName("offset")
		result := makeInternalName("result")
		operators = append(operators,
			[2]string{"+", fmt.Sprintf("::%%1 %%1::operator+(long long %s) const { %%1 %s = *this; %s.%s += %s; return %s; }",
				offsetParam, result, result, expr, offsetParam, result)},
			[2]string{"-", fmt.Sprintf("::%%1 %%1::operator-(long long %s) const { %%1 %s = *this; %s.%s -= %s; return %s; }",
				offsetParam, result, result, expr, offsetParam, result)},
		)
	}
	return operators
}

func indexableNodeExpression(isIndexNode bool, expr, indexParam string) string {
	expr = prepareExpr(expr)
	if isIndexNode {
		return strings.ReplaceAll(expr, "$i", indexParam)
	}
	return fmt.Sprintf("(%s)[%s]", expr, indexParam)
}

type indexableNode struct {
	expr        string
	condition   string
	isIndexNode bool
}

func subscriptOperatorBody(nodes []indexableNode, indexParam string) string {
	var b strings.Builder
	for i, node := range nodes {
		expr := indexableNodeExpression(node.isIndexNode, node.expr, indexParam)
		isLast := i+1 == len(nodes)
		if !isLast && node.condition != "" {
			cond := prepareExpr(node.condition)
			if node.isIndexNode {
				cond = strings.ReplaceAll(cond, "$i", indexParam)
			}
			fmt.Fprintf(&b, "if (%s) return (%s);\n", cond, expr)
		} else {
			fmt.Fprintf(&b, "return (%s);\n", expr)
			return b.String()
		}
	}
	return b.String()
}

func makeMutableConstMethod(tn typeName, methodName, body string, params [][2]string, mutableMethodPrefix string) *model.SyntheticMethodDefinition {
	var paramList, argList []string
	for _, p := range params {
		paramList = append(paramList, p[0]+" "+p[1])
		argList = append(argList, p[1])
	}
	prefix := mutableMethodPrefix
	if prefix == "" {
		prefix = methodName
	}
	mutableMethod := makeInternalName(prefix + "$mutable")

	if tn.hasWildcards {
		return &model.SyntheticMethodDefinition{
			FullName: fmt.Sprintf("^(%s)::%s$", tn.name, regexp.QuoteMeta(methodName)),
			Body: fmt.Sprintf(
				"decltype(auto) %%1::%s(%s) { %s }\n"+
					"decltype(auto) %%1::%s(%s) const { return const_cast<::%%1 *>(this)->%s(%s); }",
				mutableMethod, strings.Join(paramList, ", "), body,
				methodName, strings.Join(paramList, ", "), mutableMethod, strings.Join(argList, ", ")),
			NameUsesRegex: true,
		}
	}
	return &model.SyntheticMethodDefinition{
		FullName: fmt.Sprintf("%s::%s", tn.name, methodName),
		Body: fmt.Sprintf(
			"decltype(auto) %s::%s(%s) { %s }\n"+
				"decltype(auto) %s::%s(%s) const { return const_cast<::%s *>(this)->%s(%s); }",
			tn.name, mutableMethod, strings.Join(paramList, ", "), body,
			tn.name, methodName, strings.Join(paramList, ", "), tn.name, mutableMethod, strings.Join(argList, ", ")),
	}
}

func containerMethodDefinition(tn typeName, getter *model.SyntheticMethod, body, indexParam, mutableMethodPrefix string) *model.SyntheticMethodDefinition {
	params := [][2]string{{"long long", indexParam}}
	return makeMutableConstMethod(tn, getter.Name, body, params, mutableMethodPrefix)
}

func (s *Synthesizer) addIndexedMethods(tn typeName, getter **model.SyntheticMethod, nodes []indexableNode) {
	indexParam := makeInternalName("index")
	if len(nodes) == 1 || typetraits.IsSubscriptOperatorRequired(tn.name) {
		body := subscriptOperatorBody(nodes, indexParam)
		status := s.tryDeclareSubscriptOperator(tn, body)
		if status != subscriptForbidden {
			if *getter == nil {
				*getter = model.SubscriptOperatorMethod()
			}
			if status == subscriptRequired {
				s.definitions = append(s.definitions, containerMethodDefinition(tn, *getter, body, indexParam, "op$subscript"))
			}
			return
		}
	}

	for _, node := range nodes {
		expr := indexableNodeExpression(node.isIndexNode, node.expr, indexParam)
		if s.addGetterWithUniqueName(tn, getter, "_get$", expr) {
			body := fmt.Sprintf("return (%s);", expr)
			s.definitions = append(s.definitions, containerMethodDefinition(tn, *getter, body, indexParam, ""))
		}
	}
}

func (s *Synthesizer) addArrayMethods(tn typeName, p *model.ArrayItemsProvider) {
	nodes := make([]indexableNode, len(p.ValuePointers))
	for i, vp := range p.ValuePointers {
		nodes[i] = indexableNode{expr: vp.Expression, condition: vp.Condition}
	}
	s.addIndexedMethods(tn, &p.SyntheticGetter, nodes)
}

func (s *Synthesizer) addIndexListMethods(tn typeName, p *model.IndexListItemsProvider) {
	nodes := make([]indexableNode, len(p.ValueNodes))
	for i, vn := range p.ValueNodes {
		nodes[i] = indexableNode{expr: vn.Expression, condition: vn.Condition, isIndexNode: true}
	}
	s.addIndexedMethods(tn, &p.SyntheticGetter, nodes)
}

// tryAsInternalGetter either inlines a trivial expression directly or
// registers (once, deduplicated by a content hash) a private getter
// method and returns a call to it. The getter name ends in the hex
// sha256 digest of the prepared expression.
func (s *Synthesizer) tryAsInternalGetter(name, expr string) string {
	expr = cppsyntax.SimplifyCppExpression(expr)
	expr = prepareExpr(expr)
	if cppsyntax.IsTrivialExpression(expr) {
		return expr
	}
	digest := fmt.Sprintf("%x", sha256.Sum256([]byte(expr)))
	getter := makeInternalName(fmt.Sprintf("private$get$%s$%s", name, digest))
	if _, ok := s.privateGetters[getter]; !ok {
		wildcardType := typeName{name: "(.*)", hasWildcards: true}
		s.definitions = append(s.definitions, makeMutableConstMethod(wildcardType, getter, fmt.Sprintf("return (%s);", expr), nil, ""))
		s.privateGetters[getter] = expr
	}
	return getter + "()"
}

func (s *Synthesizer) addLinkedListMethod(tn typeName, p *model.LinkedListItemsProvider) {
	indexParam := makeInternalName("index")
	nextPtr := s.tryAsInternalGetter("list$next", p.NextExpression)
	getValue := s.tryAsInternalGetter("list$value", p.ValueExpression)
	body := fmt.Sprintf(
		"auto it = %s;\nwhile (%s-- > 0) it = it->%s;\nreturn (it->%s);\n",
		prepareExpr(p.HeadPointer), indexParam, nextPtr, getValue)
	if s.addGetterWithUniqueName(tn, &p.SyntheticGetter, "_get$", body) {
		s.definitions = append(s.definitions, containerMethodDefinition(tn, p.SyntheticGetter, body, indexParam, ""))
	}
}

func (s *Synthesizer) addTreeMethod(tn typeName, p *model.TreeItemsProvider) {
	indexParam := makeInternalName("index")
	counter := makeInternalName("element_counter")
	node := makeInternalName("node")
	found := makeInternalName("found")
	inorderMethod := makeInternalName("get_inorder_element")
	nodePtrType := makeInternalName("NodePtr")
	inorderHelperType := makeInternalName("InorderHelper")

	headPtr := prepareExpr(p.HeadPointer)
	leftPtr := s.tryAsInternalGetter("tree$left", p.LeftExpression)
	rightPtr := s.tryAsInternalGetter("tree$right", p.RightExpression)
	getValue := s.tryAsInternalGetter("tree$value", p.ValueExpression)
	stopCondition := fmt.Sprintf("(!%s)", node)
	if p.ValueCondition != "" {
		condExpr := s.tryAsInternalGetter("tree$condition", p.ValueCondition)
		stopCondition += fmt.Sprintf(" || !(%s->%s)", node, condExpr)
	}

	body := fmt.Sprintf(
		"using %s = decltype(%s);\n"+
			"struct %s {\n"+
			"static %s %s(%s %s, long long &%s) {\n"+
			"if (%s) return nullptr;\n"+
			"if (auto %s = %s(%s->%s, %s)) return %s;\n"+
			"if (%s-- <= 0) return %s;\n"+
			"return %s(%s->%s, %s);"+
			"}\n"+
			"};\n"+
			"return (%s::%s(%s, %s)->%s);\n",
		nodePtrType, headPtr,
		inorderHelperType,
		nodePtrType, inorderMethod, nodePtrType, node, counter,
		stopCondition,
		found, inorderMethod, node, leftPtr, counter, found,
		counter, node,
		inorderMethod, node, rightPtr, counter,
		inorderHelperType, inorderMethod, headPtr, indexParam, getValue,
	)

	if s.addGetterWithUniqueName(tn, &p.SyntheticGetter, "_get$", body) {
		s.definitions = append(s.definitions, containerMethodDefinition(tn, p.SyntheticGetter, body, indexParam, ""))
	}
}

func (s *Synthesizer) addSingleItemGetter(tn typeName, rawExpr, itemName string, getter **model.SyntheticMethod) {
	expr := cppsyntax.SimplifyCppExpression(rawExpr)
	if cppsyntax.IsTrivialExpression(expr) {
		return
	}
	if specifier, sub := cppsyntax.CutDerefOrAddressOfFromTrivialExpression(expr); specifier != "" && sub != "" {
		return
	}
	expr = prepareExpr(expr)
	methodName := "_expanded$"
	if itemName != "" {
		methodName = fmt.Sprintf("_item$%s$", mangleName(itemName))
	}
	if s.addGetterWithUniqueName(tn, getter, methodName, expr) {
		s.definitions = append(s.definitions, makeMutableConstMethod(tn, (*getter).Name, fmt.Sprintf("return (%s);", expr), nil, ""))
	}
}

func (s *Synthesizer) addGlobalIntrinsics(scope *model.IntrinsicsScope) {
	for i := len(scope.SortedList) - 1; i >= 0; i-- {
		intrinsic := scope.SortedList[i]
		if !intrinsic.IsUsed || !intrinsic.IsLazy {
			continue
		}
		key := "|" + intrinsic.Name + "|" + intrinsic.Expression
		if s.knownIntrinsics[key] {
			continue
		}
		s.knownIntrinsics[key] = true
		name := internalIntrinsicPrefix + intrinsic.Name
		expr := prepareExpr(intrinsic.Expression)
		params := strings.Join(intrinsic.Parameters, ", ")
		s.definitions = append(s.definitions, &model.SyntheticMethodDefinition{
			FullName: name,
			Body:     fmt.Sprintf("decltype(auto) %s(%s) { return %s; }", name, params, expr),
		})
	}
}

func (s *Synthesizer) addTypeIntrinsics(tn typeName, scope *model.IntrinsicsScope) {
	for i := len(scope.SortedList) - 1; i >= 0; i-- {
		intrinsic := scope.SortedList[i]
		if !intrinsic.IsUsed || !intrinsic.IsLazy {
			continue
		}
		key := tn.name + "|" + intrinsic.Name + "|" + intrinsic.Expression
		if s.knownIntrinsics[key] {
			continue
		}
		s.knownIntrinsics[key] = true
		expr := prepareExpr(intrinsic.Expression)
		name := internalIntrinsicPrefix + intrinsic.Name
		var params [][2]string
		for _, p := range intrinsic.Parameters {
			params = append(params, [2]string{p, ""})
		}
		s.definitions = append(s.definitions, makeMutableConstMethod(tn, name, fmt.Sprintf("return %s;", expr), params, ""))
	}
}

func stringMethods(tn typeName, initBlockBuilder func(traits typetraits.StringTraits, selfData, selfSize string) string) []*model.SyntheticMethodDefinition {
	matches := typetraits.GetStringTypeTraits(tn.name)
	if len(matches) == 0 {
		return nil
	}

	selfSize := makeInternalName("self$size")
	selfData := makeInternalName("self$data")
	otherData := makeInternalName("other$data")
	otherSize := makeInternalName("other$size")

	var methods []*model.SyntheticMethodDefinition
	for _, match := range matches {
		initPart := initBlockBuilder(match.Traits, selfData, selfSize)
		makeComparePart := func(isEqual bool) string {
			op := "=="
			notEqualResult := "false"
			if !isEqual {
				op = "!="
				notEqualResult = "true"
			}
			return fmt.Sprintf(
				"if (%s == 1 && %s && !*%s) %s = 0;\n"+
					"if (!%s) return %s %s 0;\n"+
					"const unsigned long long %s = %s(%s);\n"+
					"if (!%s) return %s %s 0;\n"+
					"if (%s != %s) return %s;\n"+
					"return %s(%s, %s, %s) %s 0;",
				selfSize, selfData, selfData, selfSize,
				otherData, selfSize, op,
				otherSize, match.Traits.Strlen, otherData,
				selfData, otherSize, op,
				otherSize, selfSize, notEqualResult,
				match.Traits.Strncmp, selfData, otherData, selfSize, op,
			)
		}

		specTypeName := typeName{name: match.TypeName, hasWildcards: tn.hasWildcards}
		methods = append(methods, joinOperatorRegexAndDeclarations(specTypeName, [][2]string{
			{"==", fmt.Sprintf("bool %%1::operator==(const %s *%s) const {\n%s\n%s\n}", match.Traits.CharType, otherData, initPart, makeComparePart(true))},
		})...)
		methods = append(methods, joinOperatorRegexAndDeclarations(specTypeName, [][2]string{
			{"!=", fmt.Sprintf("bool %%1::operator!=(const %s *%s) const {\n%s\n%s\n}", match.Traits.CharType, otherData, initPart, makeComparePart(false))},
		})...)
	}
	return methods
}

func (s *Synthesizer) stringMethodsFromArrayItems(tn typeName, p *model.ArrayItemsProvider) []*model.SyntheticMethodDefinition {
	return stringMethods(tn, func(traits typetraits.StringTraits, selfData, selfSize string) string {
		var b strings.Builder
		fmt.Fprintf(&b, "unsigned long long %s = 0;\nconst %s *%s = nullptr;\n", selfSize, traits.CharType, selfData)
		for _, size := range p.Sizes {
			if size.Condition != "" {
				fmt.Fprintf(&b, "if (%s) ", prepareExpr(size.Condition))
			}
			fmt.Fprintf(&b, "%s = (unsigned long long)(%s);\n", selfSize, prepareExpr(size.Expression))
		}
		for _, vp := range p.ValuePointers {
			if vp.Condition != "" {
				fmt.Fprintf(&b, "if (%s) ", prepareExpr(vp.Condition))
			}
			fmt.Fprintf(&b, "%s = (const %s *)(%s);\n", selfData, traits.CharType, prepareExpr(vp.Expression))
		}
		return b.String()
	})
}

func (s *Synthesizer) stringMethodsFromStringViews(tn typeName, views []*model.StringView) []*model.SyntheticMethodDefinition {
	if len(views) == 0 {
		return nil
	}
	return stringMethods(tn, func(traits typetraits.StringTraits, selfData, selfSize string) string {
		var b strings.Builder
		fmt.Fprintf(&b, "unsigned long long %s = (unsigned long long)(-1);\nconst %s *%s = nullptr;\n", selfSize, traits.CharType, selfData)
		for _, view := range views {
			if view.Condition != "" {
				fmt.Fprintf(&b, "if (%s)\n", prepareExpr(view.Condition))
			}
			b.WriteString("{\n")
			fmt.Fprintf(&b, "%s = (const %s *)(%s);\n", selfData, traits.CharType, prepareExpr(view.Expression))
			b.WriteString("}\n")
		}
		fmt.Fprintf(&b, "if (%s == (unsigned long long)(-1)) %s = %s ? %s(%s) : 0;\n", selfSize, selfSize, selfData, traits.Strlen, selfData)
		return b.String()
	})
}

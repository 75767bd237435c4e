// Package cppsyntax provides the C++ fragment utilities that back the
// template-expression engine: comment stripping, paren balancing,
// trivial-expression classification, type-class-specifier insertion, and
// $Tn wildcard substitution. Every function here is pure and
// deterministic, ported from JetBrains' CppParser (jb_declarative_formatters
// /parsers/cpp_parser.py) line for line where the spec is silent on an
// exact edge case.
package cppsyntax

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	identRe          = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	trivialExprRe     = regexp.MustCompile(`^[A-Za-z_$][\w$]*(?:\[\d+])*(?:(?:\.|->)[A-Za-z_$][\w$]*(?:\[\d+])*)*$`)
	arrayAccessRe     = regexp.MustCompile(`^\[\d+]$`)
	lambdaRe          = regexp.MustCompile(`^.*<lambda_[0-9a-f]{32}>.*$`)
	templateWildcardRe = regexp.MustCompile(`\$T([1-9][0-9]*)`)
)

var typeClassSpecifiers = map[string]bool{"class": true, "struct": true, "union": true, "enum": true}
var cvSpecifiers = map[string]bool{"const": true, "volatile": true}

// IsIdentifier reports whether expr is a bare C++ identifier.
func IsIdentifier(expr string) bool {
	return identRe.MatchString(expr)
}

// IsTrivialExpression reports whether expr is an identifier with a chain
// of `.`/`->` member access and `[N]` subscripts, e.g. "foo->bar[1][0].baz".
func IsTrivialExpression(expr string) bool {
	return trivialExprRe.MatchString(expr)
}

// IsArrayAccessExpr reports whether expr is exactly a `[N]` subscript.
func IsArrayAccessExpr(expr string) bool {
	return arrayAccessRe.MatchString(expr)
}

// IsLiteralExpr reports whether expr is a trivial boolean or integer
// literal (`true`, `false`, or an optionally-signed digit sequence).
func IsLiteralExpr(expr string) bool {
	if expr == "" {
		return false
	}
	if expr == "true" || expr == "false" {
		return true
	}
	rest := expr
	if expr[0] == '-' || expr[0] == '+' {
		rest = expr[1:]
	}
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// HasLambdaInTypeExpr reports whether a (compiler-generated) type name
// contains a lambda closure marker.
func HasLambdaInTypeExpr(typeExpr string) bool {
	return lambdaRe.MatchString(typeExpr)
}

// RemoveCppComments strips `//...` and `/*...*/` comments while respecting
// string literals, and keeps any `#pragma` line isolated on its own line.
func RemoveCppComments(code string) string {
	type span struct{ start, end int }
	var spans []span
	inString := false
	i := 0
	n := len(code)
	for i < n {
		ch := code[i]
		if !inString && ch == '/' && i+1 < n {
			var endSeq string
			next := code[i+1]
			if next == '/' {
				endSeq = "\n"
			} else if next == '*' {
				endSeq = "*/"
			}
			if endSeq != "" {
				end := strings.Index(code[i+2:], endSeq)
				var commentEnd int
				if end < 0 {
					commentEnd = n
				} else {
					commentEnd = i + 2 + end + len(endSeq)
				}
				spans = append(spans, span{i, commentEnd})
				i = commentEnd
				continue
			}
		}
		if ch == '"' {
			inString = !inString
		}
		i++
	}

	if len(spans) == 0 {
		return code
	}

	var parts []string
	pos := 0
	for _, s := range spans {
		if pos < s.start {
			parts = append(parts, strings.TrimSpace(code[pos:s.start]))
		}
		pos = s.end
	}
	if pos < n {
		parts = append(parts, strings.TrimSpace(code[pos:]))
	}

	var b strings.Builder
	for _, p := range parts {
		if strings.HasPrefix(p, "#pragma") {
			b.WriteString("\n")
			b.WriteString(p)
			b.WriteString("\n")
		} else {
			b.WriteString(p)
		}
	}
	return b.String()
}

// IsOuterParenthesesBalanced reports whether s begins with `(`, ends with
// `)`, and the intervening parens (outside string literals) never dip
// below zero and end balanced.
func IsOuterParenthesesBalanced(s string) bool {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return false
	}
	counter := 0
	inString := false
	for i := 1; i < len(s)-1; i++ {
		ch := s[i]
		if ch == '"' {
			inString = !inString
		} else if !inString {
			switch ch {
			case '(':
				counter++
			case ')':
				counter--
			}
			if counter < 0 {
				return false
			}
		}
	}
	return counter == 0 && !inString
}

// TryRemoveOuterParentheses repeatedly strips balanced outer parens.
func TryRemoveOuterParentheses(s string) string {
	s = strings.TrimSpace(s)
	for IsOuterParenthesesBalanced(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return strings.TrimSpace(s)
}

// TryMergeDerefAndAddressOf collapses `(*(&(X)))` into `(X)` when each
// layer is balanced.
func TryMergeDerefAndAddressOf(s string) string {
	if !strings.HasPrefix(s, "(*(&(") || !strings.HasSuffix(s, ")))") {
		return s
	}
	if !IsOuterParenthesesBalanced(s) {
		return s
	}
	noDeref := s[2 : len(s)-1]
	if !IsOuterParenthesesBalanced(noDeref) {
		return s
	}
	noAddressOf := noDeref[2 : len(noDeref)-1]
	if !IsOuterParenthesesBalanced(noAddressOf) {
		return s
	}
	return noAddressOf
}

// CutDerefOrAddressOfFromTrivialExpression splits a leading `*`/`&` off a
// trivial sub-expression, returning the specifier and the bare
// sub-expression, or ("", "") if expr doesn't have that shape.
func CutDerefOrAddressOfFromTrivialExpression(expr string) (specifier, subExpr string) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "*") || strings.HasPrefix(expr, "&") {
		spec := expr[0:1]
		sub := TryRemoveOuterParentheses(expr[1:])
		if IsTrivialExpression(sub) {
			return spec, sub
		}
	}
	return "", ""
}

// SimplifyCppExpression strips comments then outer parens.
func SimplifyCppExpression(expr string) string {
	expr = RemoveCppComments(strings.TrimSpace(expr))
	return TryRemoveOuterParentheses(expr)
}

// InsertTypeClassSpecifier inserts "class"/"struct"/"union"/"enum" before
// a type name, preserving any leading const/volatile, and is a no-op if
// the type already begins with a class-kind specifier.
func InsertTypeClassSpecifier(typeExpr, typeClassSpecifier string) string {
	if !typeClassSpecifiers[typeClassSpecifier] {
		return typeExpr
	}
	typeExpr = strings.TrimLeft(typeExpr, " \t\n")

	startIndex := 0
	var prefix []string
	for index := 0; index < len(typeExpr); index++ {
		ch := typeExpr[index]
		if ch == ' ' || ch == '\t' || ch == '\n' {
			specifier := typeExpr[startIndex:index]
			if specifier == "" {
				startIndex = index + 1
				continue
			}
			if typeClassSpecifiers[specifier] {
				return typeExpr
			}
			if cvSpecifiers[specifier] {
				prefix = append(prefix, specifier)
				startIndex = index + 1
				continue
			}
			break
		}
	}
	tail := typeExpr[startIndex:]
	if typeClassSpecifiers[tail] {
		return typeExpr
	}
	var out []string
	out = append(out, prefix...)
	if cvSpecifiers[tail] {
		out = append(out, tail, typeClassSpecifier)
	} else {
		out = append(out, typeClassSpecifier, tail)
	}
	return strings.Join(out, " ")
}

// RemoveTypeClassSpecifier strips a leading class/struct/union/enum
// keyword from a type name, if present.
func RemoveTypeClassSpecifier(typeExpr string) string {
	typeExpr = strings.TrimLeft(typeExpr, " \t\n")
	for specifier := range typeClassSpecifiers {
		if len(typeExpr) > len(specifier) &&
			strings.HasPrefix(typeExpr, specifier) &&
			isSpace(typeExpr[len(specifier)]) {
			return strings.TrimLeft(typeExpr[len(specifier)+1:], " \t\n")
		}
	}
	return typeExpr
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n'
}

// SubstituteWildcards replaces every `$T(n>=1)` occurrence in expr with
// repl(n-1). When the replacement's last byte is '>' and the following
// byte in expr is also '>', a space is inserted to avoid `>>` becoming a
// shift-operator token. Returns the new string and whether every
// wildcard found a replacement.
func SubstituteWildcards(expr string, repl func(index int) (string, bool)) (string, bool) {
	var b strings.Builder
	allSubstituted := true
	i := 0
	n := len(expr)
	for i < n {
		loc := templateWildcardRe.FindStringSubmatchIndex(expr[i:])
		if loc == nil {
			b.WriteString(expr[i:])
			break
		}
		matchStart, matchEnd := i+loc[0], i+loc[1]
		numStart, numEnd := i+loc[2], i+loc[3]
		b.WriteString(expr[i:matchStart])

		idx, _ := strconv.Atoi(expr[numStart:numEnd])
		wildcardIdx := idx - 1

		replacement, ok := repl(wildcardIdx)
		if !ok {
			allSubstituted = false
			replacement = expr[matchStart:matchEnd]
		}
		b.WriteString(replacement)

		i = matchEnd
		if i < n && len(replacement) > 0 && replacement[len(replacement)-1] == '>' && expr[i] == '>' {
			b.WriteString(" ")
		}
	}
	return b.String(), allSubstituted
}

// ResolveWildcards substitutes $Tn with the n-th captured wildcard string
// (1-indexed in the expression, 0-indexed in wildcards).
func ResolveWildcards(expr string, wildcards []string) (string, bool) {
	return SubstituteWildcards(expr, func(index int) (string, bool) {
		if index < 0 || index >= len(wildcards) {
			return "", false
		}
		return wildcards[index], true
	})
}

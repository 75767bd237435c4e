// Package typetraits recognises the handful of well-known string
// container shapes and subscript-required container shapes the
// top-level-method synthesiser treats specially. Ported from
// jb_declarative_formatters/type_viz_type_traits.py.
package typetraits

import (
	"regexp"
	"strings"
)

// StringTraits is one recognised string-like container's char type and
// the builtin comparison/length functions to use against it.
type StringTraits struct {
	TypePrefixes []string
	CharType     string
	Strncmp      string
	Strlen       string
}

var supportedStringTypes = []StringTraits{
	{
		TypePrefixes: []string{"std::basic_string<char,", "std::basic_string_view<(char),"},
		CharType:     "char", Strncmp: "::__builtin_strncmp", Strlen: "::__builtin_strlen",
	},
	{
		TypePrefixes: []string{"std::basic_string<wchar_t,", "std::basic_string_view<(wchar_t),"},
		CharType:     "wchar_t", Strncmp: "::__builtin_wcsncmp", Strlen: "::__builtin_wcslen",
	},
	{
		TypePrefixes: []string{"TStringView<ANSICHAR>", "TStringView<(char)>"},
		CharType:     "char", Strncmp: "::_strnicmp", Strlen: "::__builtin_strlen",
	},
	{
		TypePrefixes: []string{"TStringView<WIDECHAR>", "TStringView<(wchar_t)>", "FString"},
		CharType:     "wchar_t", Strncmp: "::_wcsnicmp", Strlen: "::__builtin_wcslen",
	},
}

type specialization struct {
	prefix  string
	targets []string
}

var stringTypeSpecializations = []specialization{
	{prefix: "std::basic_string_view<(.*),", targets: []string{"std::basic_string_view<(char),", "std::basic_string_view<(wchar_t),"}},
	{prefix: "TStringView<(.*)>", targets: []string{"TStringView<(char)>", "TStringView<(wchar_t)>"}},
}

// TypeTraitsMatch pairs the (possibly specialization-expanded) type name
// with the traits recognised for it.
type TypeTraitsMatch struct {
	TypeName string
	Traits   StringTraits
}

// GetStringTypeTraits returns every StringTraits matching typeName,
// expanding the two generic-template specializations (basic_string_view,
// TStringView) into their concrete char/wchar_t instantiations first.
func GetStringTypeTraits(typeName string) []TypeTraitsMatch {
	for _, spec := range stringTypeSpecializations {
		if strings.HasPrefix(typeName, spec.prefix) {
			var result []TypeTraitsMatch
			for _, target := range spec.targets {
				result = append(result, GetStringTypeTraits(strings.Replace(typeName, spec.prefix, target, 1))...)
			}
			return result
		}
	}

	var matched []TypeTraitsMatch
	for _, traits := range supportedStringTypes {
		for _, prefix := range traits.TypePrefixes {
			if strings.HasPrefix(typeName, prefix) {
				matched = append(matched, TypeTraitsMatch{TypeName: typeName, Traits: traits})
			}
		}
	}
	return matched
}

var requiredSubscriptOperatorTypes = []string{"std::basic_string", "TArray", "TBitArray", "TMulticastDelegate"}

var requiredSubscriptPattern = regexp.MustCompile(
	"^(?:" + strings.Join(requiredSubscriptOperatorTypes, "|") + ")",
)

// IsSubscriptOperatorRequired reports whether typeName is one of the
// hard-coded container families that always get a synthesised subscript
// operator regardless of item-node count.
func IsSubscriptOperatorRequired(typeName string) bool {
	return requiredSubscriptPattern.MatchString(typeName)
}

package typetraits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStringTypeTraits_NarrowStdString(t *testing.T) {
	matches := GetStringTypeTraits("std::basic_string<char,std::char_traits<char>,std::allocator<char>>")
	require.Len(t, matches, 1)
	assert.Equal(t, "char", matches[0].Traits.CharType)
	assert.Equal(t, "::__builtin_strncmp", matches[0].Traits.Strncmp)
}

func TestGetStringTypeTraits_WideStdString(t *testing.T) {
	matches := GetStringTypeTraits("std::basic_string<wchar_t,std::char_traits<wchar_t>,std::allocator<wchar_t>>")
	require.Len(t, matches, 1)
	assert.Equal(t, "wchar_t", matches[0].Traits.CharType)
	assert.Equal(t, "::__builtin_wcsncmp", matches[0].Traits.Strncmp)
}

func TestGetStringTypeTraits_ExpandsStringViewSpecialization(t *testing.T) {
	matches := GetStringTypeTraits("std::basic_string_view<(.*),std::char_traits<...>>")

	var charTypes []string
	for _, m := range matches {
		charTypes = append(charTypes, m.Traits.CharType)
	}
	assert.Contains(t, charTypes, "char")
	assert.Contains(t, charTypes, "wchar_t")
}

func TestGetStringTypeTraits_ExpandsUnrealStringViewSpecialization(t *testing.T) {
	matches := GetStringTypeTraits("TStringView<(.*)>")
	require.Len(t, matches, 2)
	assert.Equal(t, "TStringView<(char)>", matches[0].TypeName)
	assert.Equal(t, "TStringView<(wchar_t)>", matches[1].TypeName)
}

func TestGetStringTypeTraits_FString(t *testing.T) {
	matches := GetStringTypeTraits("FString")
	require.Len(t, matches, 1)
	assert.Equal(t, "wchar_t", matches[0].Traits.CharType)
}

func TestGetStringTypeTraits_NoMatch(t *testing.T) {
	matches := GetStringTypeTraits("std::vector<int>")
	assert.Empty(t, matches)
}

func TestIsSubscriptOperatorRequired(t *testing.T) {
	assert.True(t, IsSubscriptOperatorRequired("std::basic_string<char,std::char_traits<char>,std::allocator<char>>"))
	assert.True(t, IsSubscriptOperatorRequired("TArray<int>"))
	assert.True(t, IsSubscriptOperatorRequired("TBitArray<>"))
	assert.True(t, IsSubscriptOperatorRequired("TMulticastDelegate<void()>"))
	assert.False(t, IsSubscriptOperatorRequired("std::vector<int>"))
	assert.False(t, IsSubscriptOperatorRequired("MyCustomType"))
}

package cppsyntax

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifier_ParsesCleanly(t *testing.T) {
	c, err := NewClassifier()
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.ParsesCleanly("m_data[i].value"))
	require.True(t, c.ParsesCleanly("((Base &) *this).member"))
	require.False(t, c.ParsesCleanly("m_data[i]."))
}

func TestClassifier_BalancedByGrammar(t *testing.T) {
	c, err := NewClassifier()
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.BalancedByGrammar("(foo + bar)"))
	require.False(t, c.BalancedByGrammar("(foo + bar"))
}

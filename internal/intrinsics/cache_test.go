package intrinsics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := NewCache()
	c.Set(1, "/bin/app", "Foo", "auto size() { return m_size; }")

	got, ok := c.Get(1, "/bin/app", "Foo")
	assert.True(t, ok)
	assert.Equal(t, "auto size() { return m_size; }", got)
}

func TestCache_MissForDifferentKey(t *testing.T) {
	c := NewCache()
	c.Set(1, "/bin/app", "Foo", "prolog")

	_, ok := c.Get(1, "/bin/app", "Bar")
	assert.False(t, ok)

	_, ok = c.Get(2, "/bin/app", "Foo")
	assert.False(t, ok)
}

func TestCache_InvalidateClearsProcess(t *testing.T) {
	c := NewCache()
	c.Set(1, "/bin/app", "Foo", "prolog")
	c.Set(2, "/bin/app", "Foo", "other-prolog")

	c.Invalidate(1, EventModulesLoaded)

	_, ok := c.Get(1, "/bin/app", "Foo")
	assert.False(t, ok)

	got, ok := c.Get(2, "/bin/app", "Foo")
	assert.True(t, ok)
	assert.Equal(t, "other-prolog", got)
}

func TestCache_Forget(t *testing.T) {
	c := NewCache()
	c.Set(1, "/bin/app", "Foo", "prolog")
	c.Forget(1)

	_, ok := c.Get(1, "/bin/app", "Foo")
	assert.False(t, ok)
}

package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPath(t *testing.T) {
	t.Run("normalizes leading slash", func(t *testing.T) {
		p, err := NewPath("/notes/todo.md")
		require.NoError(t, err)
		assert.Equal(t, "notes/todo.md", p.String())
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := NewPath("")
		assert.Error(t, err)
	})

	t.Run("rejects dot components", func(t *testing.T) {
		_, err := NewPath("notes/../secrets.md")
		assert.Error(t, err)
	})

	t.Run("rejects backslash", func(t *testing.T) {
		_, err := NewPath(`notes\todo.md`)
		assert.Error(t, err)
	})

	t.Run("rejects repeated separators", func(t *testing.T) {
		_, err := NewPath("notes//todo.md")
		assert.Error(t, err)
	})
}

func TestPathDirBaseDepth(t *testing.T) {
	p := MustPath("a/b/c.md")
	assert.Equal(t, "a/b", p.Dir().String())
	assert.Equal(t, "c.md", p.Base())
	assert.Equal(t, 3, p.Depth())

	top := MustPath("root.md")
	assert.True(t, top.Dir().IsZero())
	assert.Equal(t, 1, top.Depth())
}

func TestPathHasPrefix(t *testing.T) {
	dir := MustPath("a/b")
	assert.True(t, MustPath("a/b").HasPrefix(dir))
	assert.True(t, MustPath("a/b/c.md").HasPrefix(dir))
	assert.False(t, MustPath("a/bc.md").HasPrefix(dir))
	assert.True(t, MustPath("anything").HasPrefix(Path{}))
}

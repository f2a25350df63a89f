package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyleSheetInsertRule(t *testing.T) {
	t.Parallel()
	s, err := NewStyleSheet(".a { color: red; }")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	idx, err := s.InsertRule(".b { background: url(/b.png); }", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 2, s.Len())

	first, err := s.Rule(0)
	require.NoError(t, err)
	assert.Contains(t, first, ".b")
	assert.Contains(t, first, "url(/b.png)")

	_, err = s.InsertRule(".c { color: blue; }", 5)
	require.ErrorIs(t, err, ErrIndexSize)

	_, err = s.InsertRule(".c { color: blue; } .d { color: green; }", 0)
	require.ErrorIs(t, err, ErrSyntax)

	_, err = s.Rule(9)
	require.ErrorIs(t, err, ErrIndexSize)
	assert.Contains(t, s.String(), ".a")
}

package retrigger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	p, err := Compile(`\bspam\b`, 0)
	require.NoError(t, err)
	assert.Equal(t, `\bspam\b`, p.String())

	ok, found, err := p.Find("free spam here")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "spam", found)

	ok, _, err = p.Find("spammer")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileInvalid(t *testing.T) {
	_, err := Compile(`(unclosed`, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestFindTimeout(t *testing.T) {
	// classic catastrophic backtracking with no possible match
	p, err := Compile(`(x+x+)+y`, 10*time.Millisecond)
	require.NoError(t, err)

	_, _, err = p.Find(strings.Repeat("x", 64))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPatternTimeout)
}

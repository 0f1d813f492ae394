package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("P@ss1")
	require.NoError(t, err)

	assert.NotEqual(t, "P@ss1", hash)
	assert.True(t, Verify("P@ss1", hash))
	assert.False(t, Verify("p@ss1", hash))
	assert.False(t, Verify("", hash))
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("P@ss1")
	require.NoError(t, err)
	second, err := Hash("P@ss1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

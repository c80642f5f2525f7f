package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	h, err := Hash("longpassword1")
	require.NoError(t, err)
	require.NotEqual(t, "longpassword1", h)

	assert.True(t, Verify("longpassword1", h))
	assert.False(t, Verify("wrongpassword", h))
}

func TestHashIsSaltedPerCall(t *testing.T) {
	h1, err := Hash("longpassword1")
	require.NoError(t, err)
	h2, err := Hash("longpassword1")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.True(t, Verify("longpassword1", h1))
	assert.True(t, Verify("longpassword1", h2))
}

func TestVerifyMalformedHash(t *testing.T) {
	assert.False(t, Verify("longpassword1", "not-a-bcrypt-hash"))
	assert.False(t, Verify("longpassword1", ""))
}

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_CheckPassword(t *testing.T) {
	h, err := HashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", h)

	assert.True(t, CheckPassword(h, "password123"))
	assert.False(t, CheckPassword(h, "wrongPassword"))
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	assert.False(t, CheckPassword("not-a-bcrypt-hash", "password123"))
	assert.False(t, CheckPassword("", ""))
}

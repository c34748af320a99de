package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pw", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pw", hash)

	assert.True(t, CheckPassword(hash, "s3cret-pw"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret-pw"))
}

func TestHashPasswordDefaultCost(t *testing.T) {
	hash, err := HashPassword("another-pw", 0)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "corkboard/pkg/domain-errors"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("Correct1horse")
	require.NoError(t, err)
	assert.NotEqual(t, "Correct1horse", hash)

	assert.NoError(t, h.Verify("Correct1horse", hash))
	assert.ErrorIs(t, h.Verify("Correct1hors", hash), ErrMismatch)

	_, err = h.Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = h.Hash(strings.Repeat("a", 73))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
}

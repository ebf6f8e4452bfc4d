package csrf

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	_, err = hex.DecodeString(a)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, wellFormed(a))
}

func TestEqual(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)

	flipped := []byte(token)
	if flipped[10] == 'a' {
		flipped[10] = 'b'
	} else {
		flipped[10] = 'a'
	}

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", token, token, true},
		{"one byte differs", token, string(flipped), false},
		{"prefix", token, token[:63], false},
		{"longer", token, token + "0", false},
		{"both empty", "", "", true},
		{"one empty", token, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestWellFormed(t *testing.T) {
	assert.False(t, wellFormed(""))
	assert.False(t, wellFormed("not-hex"))
	assert.False(t, wellFormed(string(make([]byte, 64))))
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateToken(t *testing.T) {
	t.Run("generates 64 hex characters", func(t *testing.T) {
		token, err := GenerateToken()
		assert.NoError(t, err)
		assert.Len(t, token, 64)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			token, err := GenerateToken()
			assert.NoError(t, err)
			assert.False(t, seen[token], "duplicate token generated")
			seen[token] = true
		}
	})
}

func TestHashToken(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, HashToken("abc"), HashToken("abc"))
	})

	t.Run("differs for different input", func(t *testing.T) {
		assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	})
}

func TestGenerateDigitCode(t *testing.T) {
	t.Run("produces requested length", func(t *testing.T) {
		assert.Len(t, GenerateDigitCode(6), 6)
	})

	t.Run("contains only digits", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			code := GenerateDigitCode(6)
			assert.Equal(t, code, NormalizeDigits(code))
		}
	})
}

func TestNormalizeDigits(t *testing.T) {
	assert.Equal(t, "123456", NormalizeDigits("123 456"))
	assert.Equal(t, "123456", NormalizeDigits("123-456"))
	assert.Equal(t, "123456", NormalizeDigits(" 1 2 3 4 5 6 "))
	assert.Equal(t, "", NormalizeDigits("abc"))
}

func TestMaskCode(t *testing.T) {
	assert.Equal(t, "12****", MaskCode("123456"))
	assert.Equal(t, "****", MaskCode("12"))
}

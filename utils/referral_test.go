package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferralCodeFormat(t *testing.T) {
	code, err := GenerateReferralCode()
	require.NoError(t, err)

	assert.Len(t, code, 11)
	assert.True(t, strings.HasPrefix(code, "ST-"))
	for _, ch := range code[3:] {
		assert.Contains(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567", string(ch))
	}
}

func TestGenerateReferralCodeUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := GenerateReferralCode()
		require.NoError(t, err)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

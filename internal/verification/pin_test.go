package verification

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePIN_FormatAndRange(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 2000; i++ {
		p := GeneratePIN()
		require.True(t, ValidPINFormat(p), p)
		n, err := strconv.Atoi(p)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
		seen[p] = true
	}
	// 2000 muestras sobre 900000 valores: colisiones muy raras
	assert.Greater(t, len(seen), 1900)
}

func TestValidPINFormat(t *testing.T) {
	cases := map[string]bool{
		"123456":   true,
		"000000":   true,
		"12a456":   false,
		"12345":    false,
		"1234567":  false,
		" 23456":   false,
		" 123456":  false,
		"123456\n": false,
		"":         false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidPINFormat(in), "%q", in)
	}
}

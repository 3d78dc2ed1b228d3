package logger

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"ab":                 "***",
		"abcdef":             "a…f",
		"Ana@Mail.com":       "a…@m….com",
		"a@b.io":             "a@b.io",
		" lucia@uni.edu.ar ": "l…@u….edu.ar",
		"élodie@ñandú.es":    "é…@ñ….es",
		"ñoño":               "ñ…o",
	}
	for in, want := range cases {
		assert.True(t, utf8.ValidString(MaskEmail(in)), "input %q", in)
		assert.Equal(t, want, MaskEmail(in), "input %q", in)
	}
}

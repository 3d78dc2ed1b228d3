package logger

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// MaskEmail deja la primera letra del usuario y del dominio: "ana@mail.com" -> "a…@m….com".
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		if s == "" {
			return ""
		}
		r := []rune(s)
		if len(r) <= 3 {
			return "***"
		}
		return string(r[0]) + "…" + string(r[len(r)-1])
	}
	user, dom := s[:i], s[i+1:]
	user = firstRune(user)
	parts := strings.Split(dom, ".")
	parts[0] = firstRune(parts[0])
	return user + "@" + strings.Join(parts, ".")
}

// firstRune deja el primer carácter seguido de "…" si hay más de uno.
func firstRune(s string) string {
	if utf8.RuneCountInString(s) <= 1 {
		return s
	}
	_, n := utf8.DecodeRuneInString(s)
	return s[:n] + "…"
}

// MaskedEmail es el campo "email" enmascarado; usar fuera del fallback de envío.
func MaskedEmail(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

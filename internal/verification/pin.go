package verification

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	pinLength = 6
	pinMin    = 100000
	pinMax    = 999999
)

var pinSpan = big.NewInt(pinMax - pinMin + 1)

// GeneratePIN devuelve un PIN de 6 dígitos uniforme en [100000, 999999].
func GeneratePIN() string {
	n, err := rand.Int(rand.Reader, pinSpan)
	if err != nil {
		// crypto/rand no falla en plataformas soportadas
		panic("verification: crypto/rand unavailable: " + err.Error())
	}
	return strconv.FormatInt(n.Int64()+pinMin, 10)
}

// ValidPINFormat indica si s son exactamente 6 dígitos ASCII.
func ValidPINFormat(s string) bool {
	if len(s) != pinLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

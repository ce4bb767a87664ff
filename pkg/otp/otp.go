package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
)

const DefaultLength = 6

const digits = "0123456789"

// Generate returns a numeric one-time code of the given length.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}

// Equal compares codes in constant time.
func Equal(expected, given string) bool {
	if len(expected) != len(given) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

package pkg

import (
	"crypto/rand"
	"math/big"
)

// Codes avoid characters that are easy to misread on a printed coupon (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomCode returns n characters drawn from a crypto random source.
func RandomCode(n int) (string, error) {
	return randomFrom(codeAlphabet, n)
}

func randomFrom(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

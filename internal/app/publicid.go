package app

import (
	"crypto/rand"
	"math/big"
)

const (
	publicIDLength   = 8
	publicIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var publicIDMax = big.NewInt(int64(len(publicIDAlphabet)))

// NewPublicID returns a short URL-safe token for a published quiz.
func NewPublicID() (string, error) {
	b := make([]byte, publicIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, publicIDMax)
		if err != nil {
			return "", err
		}
		b[i] = publicIDAlphabet[n.Int64()]
	}
	return string(b), nil
}

package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	secretLength   = 20
)

// GenerateSecret returns a random alphanumeric RPC token.
func GenerateSecret() (string, error) {
	max := big.NewInt(int64(len(secretAlphabet)))
	buf := make([]byte, secretLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate rpc secret: %w", err)
		}
		buf[i] = secretAlphabet[n.Int64()]
	}
	return string(buf), nil
}

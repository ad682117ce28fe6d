package service

import (
	"crypto/rand"
	"math/big"
)

// Letters and digits that survive being read aloud or handwritten: no 0/O, 1/I/L.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	codePrefix = "TB-"
	codeLength = 6
)

// NewBookingCode returns a short human readable reference such as TB-7K3QX9.
func NewBookingCode() (string, error) {
	buf := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return codePrefix + string(buf), nil
}

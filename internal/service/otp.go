package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// OTPLength длина кода подтверждения.
const OTPLength = 6

// GenerateOTP возвращает числовой код фиксированной длины из crypto/rand.
func GenerateOTP() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(OTPLength), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n), nil
}

// codesEqual сравнивает коды за постоянное время.
func codesEqual(stored *string, submitted string) bool {
	if stored == nil || *stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(submitted)) == 1
}

package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign возвращает HMAC-SHA256 (hex) объекта data вебхука.
func Sign(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись за постоянное время.
// Пустой секрет или пустая подпись всегда отклоняются.
func VerifySignature(secret string, data []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hmac.Equal(mac.Sum(nil), got)
}

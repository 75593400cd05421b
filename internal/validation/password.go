package validation

import (
	"fmt"
	"unicode"
)

// MaxPasswordLength bcrypt учитывает только первые 72 байта.
const MaxPasswordLength = 72

// ValidatePassword проверяет пароль на соответствие требованиям безопасности.
// Требования:
// - от 8 до 72 байт
// - заглавные и строчные буквы
// - цифры
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("пароль должен быть не менее 8 символов")
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("пароль должен быть не длиннее %d байт", MaxPasswordLength)
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	switch {
	case !hasUpper:
		return fmt.Errorf("пароль должен содержать хотя бы одну заглавную букву")
	case !hasLower:
		return fmt.Errorf("пароль должен содержать хотя бы одну строчную букву")
	case !hasNumber:
		return fmt.Errorf("пароль должен содержать хотя бы одну цифру")
	}

	return nil
}

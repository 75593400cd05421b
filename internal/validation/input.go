package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Константы валидации
const (
	MinFullNameLength    = 2
	MaxFullNameLength    = 100
	MinProductNameLength = 2
	MaxProductNameLength = 200
	MinAge               = 13
	MaxAge               = 120
)

// MaxPrice верхняя граница цены товара (100 миллионов).
var MaxPrice = decimal.NewFromInt(100_000_000)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	phoneRegex       = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	otpRegex         = regexp.MustCompile(`^[0-9]{4,8}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// NormalizeEmail приводит email к виду, в котором он хранится.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart, domainPart := parts[0], parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateFullName проверяет имя покупателя.
func ValidateFullName(name string) error {
	if err := ValidateNonEmpty("имя", name); err != nil {
		return err
	}
	return ValidateLength("имя", strings.TrimSpace(name), MinFullNameLength, MaxFullNameLength)
}

// ValidatePhone проверяет номер телефона, если он указан.
func ValidatePhone(phone *string) error {
	if phone == nil || *phone == "" {
		return nil
	}
	if !phoneRegex.MatchString(strings.TrimSpace(*phone)) {
		return fmt.Errorf("номер телефона должен содержать от 7 до 15 цифр")
	}
	return nil
}

// ValidateAge проверяет возраст, если он указан.
func ValidateAge(age *int) error {
	if age == nil {
		return nil
	}
	if *age < MinAge || *age > MaxAge {
		return fmt.Errorf("возраст должен быть от %d до %d", MinAge, MaxAge)
	}
	return nil
}

// ValidateOTP проверяет формат кода подтверждения.
func ValidateOTP(code string) error {
	if !otpRegex.MatchString(strings.TrimSpace(code)) {
		return fmt.Errorf("код подтверждения должен состоять из цифр")
	}
	return nil
}

// ValidateProductName проверяет название товара.
func ValidateProductName(name string) error {
	if err := ValidateNonEmpty("название товара", name); err != nil {
		return err
	}
	return ValidateLength("название товара", strings.TrimSpace(name), MinProductNameLength, MaxProductNameLength)
}

// ValidatePrice проверяет цену товара.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("цена не может быть отрицательной")
	}
	if price.GreaterThan(MaxPrice) {
		return fmt.Errorf("цена не может превышать %s", MaxPrice.String())
	}
	if price.Exponent() < -2 && !price.Equal(price.Round(2)) {
		return fmt.Errorf("цена может содержать не более двух знаков после запятой")
	}
	return nil
}

package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeInvalidCode      ErrorCode = "INVALID_CODE"
	ErrCodeExpired          ErrorCode = "EXPIRED"
	ErrCodeAlreadyVerified  ErrorCode = "ALREADY_VERIFIED"
	ErrCodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"
	ErrCodeGateway          ErrorCode = "GATEWAY_ERROR"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeValidation       ErrorCode = "VALIDATION_ERROR"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с общими значениями ниже.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeAlreadyVerified:
		return http.StatusConflict
	case ErrCodeInvalidCode, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeExpired:
		return http.StatusGone
	case ErrCodeInvalidSignature, ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is проверяет, что в цепочке есть AppError с указанным кодом.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return Is(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return Is(err, ErrCodeValidation)
}

var (
	ErrAccountNotFound    = New(ErrCodeNotFound, "аккаунт не найден")
	ErrProductNotFound    = New(ErrCodeNotFound, "товар не найден")
	ErrPaymentNotFound    = New(ErrCodeNotFound, "платёж не найден")
	ErrEmailTaken         = New(ErrCodeConflict, "email уже зарегистрирован")
	ErrPhoneTaken         = New(ErrCodeConflict, "номер телефона уже зарегистрирован")
	ErrProductExists      = New(ErrCodeConflict, "товар с таким названием уже существует")
	ErrInvalidCode        = New(ErrCodeInvalidCode, "неверный код подтверждения")
	ErrExpired            = New(ErrCodeExpired, "срок действия кода истёк, запросите новый")
	ErrAlreadyVerified    = New(ErrCodeAlreadyVerified, "аккаунт уже подтверждён")
	ErrInvalidSignature   = New(ErrCodeInvalidSignature, "неверная подпись вебхука")
	ErrUnauthorized       = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden          = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials = New(ErrCodeUnauthorized, "неверный email или пароль")
	ErrNotVerified        = New(ErrCodeForbidden, "аккаунт не подтверждён")
	ErrSuspended          = New(ErrCodeForbidden, "аккаунт заблокирован")
	ErrInvalidState       = New(ErrCodeUnauthorized, "сессия входа истекла или неизвестна")
)

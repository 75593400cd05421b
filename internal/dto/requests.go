package dto

import (
	"github.com/shopspring/decimal"
)

// RegisterRequest represents the registration form (JSON or multipart)
type RegisterRequest struct {
	FullName        string  `json:"fullName" form:"fullName" binding:"required"`
	Email           string  `json:"email" form:"email" binding:"required"`
	PhoneNumber     *string `json:"phoneNumber" form:"phoneNumber"`
	Age             *int    `json:"age" form:"age"`
	Password        string  `json:"password" form:"password" binding:"required"`
	ConfirmPassword string  `json:"confirmPassword" form:"confirmPassword" binding:"required"`
}

// VerifyRequest represents the OTP verification request
type VerifyRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// ResendOTPRequest represents the request to resend an OTP
type ResendOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateProductRequest represents the request to create a product
type CreateProductRequest struct {
	Name  string           `json:"name" binding:"required"`
	Price *decimal.Decimal `json:"price" binding:"required"`
}

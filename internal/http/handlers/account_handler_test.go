package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/pkg/apperror"
	"github.com/ignatzorin/shop-backend/internal/service"
	"github.com/ignatzorin/shop-backend/internal/storage"
)

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) Register(ctx context.Context, in service.RegisterInput) (*models.Account, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockAccountService) Verify(ctx context.Context, email, code string) (*models.Account, error) {
	args := m.Called(ctx, email, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockAccountService) ResendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAccountService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *mockAccountService) Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TokenPair), args.Error(1)
}

func (m *mockAccountService) Me(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockAccountService) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Account), args.Error(1)
}

type fakeImageStore struct {
	saved   []string
	deleted []string
	err     error
}

func (s *fakeImageStore) SaveProfileImage(_ context.Context, r io.Reader) (string, string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", "", err
	}
	if s.err != nil {
		return "", "", s.err
	}
	ref := "profiles/" + uuid.NewString() + ".png"
	s.saved = append(s.saved, ref)
	return ref, "image/png", nil
}

func (s *fakeImageStore) Delete(_ context.Context, rel string) error {
	s.deleted = append(s.deleted, rel)
	return nil
}

func accountRouter(svc *mockAccountService, images ProfileImageStore) *gin.Engine {
	h := NewAccountHandler(svc, images)
	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/verify", h.Verify)
	r.POST("/resend-otp", h.ResendOTP)
	r.POST("/login", h.Login)
	return r
}

func registerForm(t *testing.T, fields map[string]string, picture []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		assert.NoError(t, mw.WriteField(k, v))
	}
	if picture != nil {
		fw, err := mw.CreateFormFile(profilePictureField, "me.png")
		assert.NoError(t, err)
		_, _ = fw.Write(picture)
	}
	assert.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestAccountHandler_RegisterJSON(t *testing.T) {
	svc := new(mockAccountService)
	account := &models.Account{ID: uuid.New(), Email: "ann@shop.test", Status: models.AccountStatusPending}
	svc.On("Register", mock.Anything, mock.MatchedBy(func(in service.RegisterInput) bool {
		return in.Email == "ann@shop.test" && in.FullName == "Ann" && in.ProfileImage == nil && in.Age != nil && *in.Age == 30
	})).Return(account, nil)

	w := doJSON(accountRouter(svc, nil), http.MethodPost, "/register", map[string]interface{}{
		"fullName":        "Ann",
		"email":           "ann@shop.test",
		"age":             30,
		"password":        "secret123",
		"confirmPassword": "secret123",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	svc.AssertExpectations(t)
}

func TestAccountHandler_RegisterPasswordMismatch(t *testing.T) {
	svc := new(mockAccountService)

	w := doJSON(accountRouter(svc, nil), http.MethodPost, "/register", map[string]interface{}{
		"fullName":        "Ann",
		"email":           "ann@shop.test",
		"password":        "secret123",
		"confirmPassword": "secret124",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestAccountHandler_RegisterMultipartStoresPicture(t *testing.T) {
	svc := new(mockAccountService)
	images := &fakeImageStore{}
	svc.On("Register", mock.Anything, mock.MatchedBy(func(in service.RegisterInput) bool {
		return in.ProfileImage != nil && len(images.saved) == 1 && *in.ProfileImage == images.saved[0]
	})).Return(&models.Account{ID: uuid.New()}, nil)

	body, contentType := registerForm(t, map[string]string{
		"fullName":        "Ann",
		"email":           "ann@shop.test",
		"password":        "secret123",
		"confirmPassword": "secret123",
	}, []byte("png bytes"))

	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	accountRouter(svc, images).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, images.deleted)
	svc.AssertExpectations(t)
}

func TestAccountHandler_RegisterFailureRemovesPicture(t *testing.T) {
	svc := new(mockAccountService)
	images := &fakeImageStore{}
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, apperror.ErrEmailTaken)

	body, contentType := registerForm(t, map[string]string{
		"fullName":        "Ann",
		"email":           "ann@shop.test",
		"password":        "secret123",
		"confirmPassword": "secret123",
	}, []byte("png bytes"))

	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	accountRouter(svc, images).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, images.saved, images.deleted)
}

func TestAccountHandler_RegisterRejectsNonImage(t *testing.T) {
	svc := new(mockAccountService)
	images := &fakeImageStore{err: storage.ErrUnsupportedType}

	body, contentType := registerForm(t, map[string]string{
		"fullName":        "Ann",
		"email":           "ann@shop.test",
		"password":        "secret123",
		"confirmPassword": "secret123",
	}, []byte("#!/bin/sh"))

	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	accountRouter(svc, images).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestAccountHandler_VerifyMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{apperror.ErrInvalidCode, http.StatusBadRequest, "INVALID_CODE"},
		{apperror.ErrExpired, http.StatusGone, "EXPIRED"},
		{apperror.ErrAlreadyVerified, http.StatusConflict, "ALREADY_VERIFIED"},
		{apperror.ErrAccountNotFound, http.StatusNotFound, "NOT_FOUND"},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		svc := new(mockAccountService)
		svc.On("Verify", mock.Anything, "ann@shop.test", "123456").Return(nil, tc.err)

		w := doJSON(accountRouter(svc, nil), http.MethodPost, "/verify", map[string]string{
			"email": "ann@shop.test",
			"otp":   "123456",
		})

		assert.Equal(t, tc.want, w.Code, tc.code)
		assert.Equal(t, tc.code, decodeBody(t, w)["code"])
	}
}

func TestAccountHandler_VerifyRequiresFields(t *testing.T) {
	svc := new(mockAccountService)

	w := doJSON(accountRouter(svc, nil), http.MethodPost, "/verify", map[string]string{"email": "ann@shop.test"})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(accountRouter(svc, nil), http.MethodPost, "/verify", map[string]string{"email": "ann@shop.test", "otp": "12ab56"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountHandler_Login(t *testing.T) {
	svc := new(mockAccountService)
	account := &models.Account{ID: uuid.New(), Email: "ann@shop.test"}
	svc.On("Login", mock.Anything, "ann@shop.test", "secret123").Return(&service.AuthResult{
		Account: account,
		Tokens:  &service.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900},
	}, nil)
	svc.On("Login", mock.Anything, "ann@shop.test", "wrong").Return(nil, apperror.ErrInvalidCredentials)

	r := accountRouter(svc, nil)

	w := doJSON(r, http.MethodPost, "/login", map[string]string{"email": "ann@shop.test", "password": "secret123"})
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "a", data["access_token"])
	assert.Equal(t, float64(900), data["expires_in"])

	w = doJSON(r, http.MethodPost, "/login", map[string]string{"email": "ann@shop.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccountHandler_ResendOTP(t *testing.T) {
	svc := new(mockAccountService)
	svc.On("ResendOTP", mock.Anything, "ann@shop.test").Return(nil)

	w := doJSON(accountRouter(svc, nil), http.MethodPost, "/resend-otp", map[string]string{"email": "ann@shop.test"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestAccountHandler_MeUnauthorized(t *testing.T) {
	h := NewAccountHandler(new(mockAccountService), nil)
	r := gin.New()
	r.GET("/me", h.Me)

	w := doJSON(r, http.MethodGet, "/me", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

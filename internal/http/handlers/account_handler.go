package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/shop-backend/internal/dto"
	"github.com/ignatzorin/shop-backend/internal/http/handlers/common"
	"github.com/ignatzorin/shop-backend/internal/logger"
	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/service"
	"github.com/ignatzorin/shop-backend/internal/storage"
	"github.com/ignatzorin/shop-backend/internal/validation"
)

// profilePictureField имя поля файла в multipart форме регистрации.
const profilePictureField = "profilePicture"

// AccountService операции с аккаунтами, нужные HTTP слою.
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.Account, error)
	Verify(ctx context.Context, email, code string) (*models.Account, error)
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Me(ctx context.Context, id uuid.UUID) (*models.Account, error)
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
}

// ProfileImageStore сохраняет фотографии профиля.
type ProfileImageStore interface {
	SaveProfileImage(ctx context.Context, r io.Reader) (string, string, error)
	Delete(ctx context.Context, relativePath string) error
}

// AccountHandler предоставляет HTTP слой для регистрации, подтверждения и входа.
type AccountHandler struct {
	accounts AccountService
	images   ProfileImageStore
}

// NewAccountHandler создаёт хэндлер. images может быть nil, тогда загрузка фото отключена.
func NewAccountHandler(accounts AccountService, images ProfileImageStore) *AccountHandler {
	return &AccountHandler{accounts: accounts, images: images}
}

// Register обрабатывает POST /register (JSON или multipart с полем profilePicture).
func (h *AccountHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		common.RespondBadRequest(c, "ошибка валидации запроса: "+err.Error())
		return
	}

	if req.Password != req.ConfirmPassword {
		common.RespondBadRequest(c, "пароли не совпадают")
		return
	}

	ctx := c.Request.Context()

	imageRef, err := h.saveProfilePicture(c)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrEmpty) {
			common.RespondBadRequest(c, err.Error())
			return
		}
		common.RespondAppError(c, err)
		return
	}

	account, err := h.accounts.Register(ctx, service.RegisterInput{
		FullName:     req.FullName,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		Age:          req.Age,
		Password:     req.Password,
		ProfileImage: imageRef,
	})
	if err != nil {
		if imageRef != nil {
			if derr := h.images.Delete(context.Background(), *imageRef); derr != nil {
				logger.Log.WithField("error", derr.Error()).Warn("account handler: не удалось удалить фото")
			}
		}
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "аккаунт создан, код подтверждения отправлен на email", account)
}

// saveProfilePicture сохраняет необязательное фото из multipart формы.
func (h *AccountHandler) saveProfilePicture(c *gin.Context) (*string, error) {
	if h.images == nil || !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}

	file, err := c.FormFile(profilePictureField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	ref, _, err := h.images.SaveProfileImage(c.Request.Context(), src)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// Verify обрабатывает POST /verify.
func (h *AccountHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateOTP(req.OTP); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	account, err := h.accounts.Verify(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "аккаунт подтверждён", account)
}

// ResendOTP обрабатывает POST /resend-otp.
func (h *AccountHandler) ResendOTP(c *gin.Context) {
	var req dto.ResendOTPRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.accounts.ResendOTP(c.Request.Context(), req.Email); err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "новый код отправлен на email", nil)
}

// Login обрабатывает POST /login.
func (h *AccountHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "вход выполнен", authResponse(result))
}

// Refresh обрабатывает POST /refresh.
func (h *AccountHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	pair, err := h.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "токены обновлены", pair)
}

// Me обрабатывает GET /me.
func (h *AccountHandler) Me(c *gin.Context) {
	accountID, err := common.CurrentAccountID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	account, err := h.accounts.Me(c.Request.Context(), accountID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "профиль", account)
}

// List обрабатывает GET /users (только администратор).
func (h *AccountHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	accounts, err := h.accounts.List(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "список аккаунтов", dto.ListResponse{
		Items:  accounts,
		Limit:  limit,
		Offset: offset,
	})
}

func authResponse(result *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Account:      result.Account,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		ExpiresIn:    result.Tokens.ExpiresIn,
	}
}

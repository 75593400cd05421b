package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/shop-backend/internal/logger"
	"github.com/ignatzorin/shop-backend/internal/metrics"
	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/pkg/apperror"
	"github.com/ignatzorin/shop-backend/internal/repository"
	"github.com/ignatzorin/shop-backend/internal/validation"
)

// AccountRepository описывает зависимости AccountService от слоя хранилища.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	CreateIfAbsent(ctx context.Context, account *models.Account) (bool, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Activate(ctx context.Context, id uuid.UUID, code string, now time.Time) (bool, error)
	ActivateExternal(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ReplaceOTP(ctx context.Context, id uuid.UUID, code string, generatedAt, expiresAt time.Time) (bool, error)
	UpdateLastLoginAt(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
}

// OTPNotifier доставляет код подтверждения пользователю. Вызов не блокирует.
type OTPNotifier interface {
	DispatchOTP(email, fullName, code string)
}

// AccountService инкапсулирует регистрацию, подтверждение и вход.
type AccountService struct {
	repo     AccountRepository
	tokens   *TokenManager
	notifier OTPNotifier
	otpTTL   time.Duration

	now     func() time.Time
	newCode func() (string, error)
}

// RegisterInput содержит данные при регистрации.
type RegisterInput struct {
	FullName     string
	Email        string
	PhoneNumber  *string
	Age          *int
	Password     string
	ProfileImage *string
}

// ExternalIdentity личность, подтверждённая внешним провайдером.
type ExternalIdentity struct {
	Email    string
	FullName string
	Provider string
}

// AuthResult возвращает итог входа.
type AuthResult struct {
	Account *models.Account `json:"account"`
	Tokens  *TokenPair      `json:"tokens"`
}

// NewAccountService создаёт сервис аккаунтов.
func NewAccountService(repo AccountRepository, tokens *TokenManager, notifier OTPNotifier, otpTTL time.Duration) *AccountService {
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	return &AccountService{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		otpTTL:   otpTTL,
		now:      time.Now,
		newCode:  GenerateOTP,
	}
}

// Register создаёт аккаунт в статусе pending и отправляет код подтверждения.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	if err := validateRegister(in); err != nil {
		return nil, err
	}

	email := validation.NormalizeEmail(in.Email)

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, apperror.ErrEmailTaken
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("account service: %w", err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("account service: не удалось захешировать пароль: %w", err)
	}

	code, err := s.newCode()
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.otpTTL)

	account := &models.Account{
		FullName:       strings.TrimSpace(in.FullName),
		Email:          email,
		PhoneNumber:    trimmedOrNil(in.PhoneNumber),
		Age:            in.Age,
		PasswordHash:   string(passHash),
		ProfileImage:   in.ProfileImage,
		Status:         models.AccountStatusPending,
		Role:           models.RoleUser,
		AuthProvider:   models.AuthProviderLocal,
		OTPCode:        &code,
		OTPGeneratedAt: &now,
		OTPExpiresAt:   &expiresAt,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, apperror.ErrEmailTaken
		case errors.Is(err, repository.ErrPhoneExists):
			return nil, apperror.ErrPhoneTaken
		}
		return nil, fmt.Errorf("account service: %w", err)
	}

	s.notifier.DispatchOTP(account.Email, account.FullName, code)

	logger.Log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"email":      account.Email,
	}).Info("account service: зарегистрирован новый аккаунт")

	return account, nil
}

// Verify активирует аккаунт, если код совпадает и не истёк.
// Из нескольких одновременных вызовов с верным кодом успешен только один.
func (s *AccountService) Verify(ctx context.Context, email, code string) (*models.Account, error) {
	// Проверка и условный UPDATE сравнивают одну и ту же строку.
	code = strings.TrimSpace(code)

	account, err := s.getByEmail(ctx, email)
	if err != nil {
		recordOTP(err)
		return nil, err
	}

	now := s.now()
	if err := checkVerifiable(account, code, now); err != nil {
		recordOTP(err)
		return nil, err
	}

	ok, err := s.repo.Activate(ctx, account.ID, code, now)
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}

	if !ok {
		// Между чтением и обновлением аккаунт изменился: активирован параллельным
		// запросом либо код перевыпущен.
		current, err := s.repo.GetByID(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("account service: %w", err)
		}
		verr := checkVerifiable(current, code, now)
		if verr == nil {
			verr = apperror.ErrInvalidCode
		}
		recordOTP(verr)
		return nil, verr
	}

	account.Status = models.AccountStatusActive
	account.OTPCode = nil
	account.OTPGeneratedAt = nil
	account.OTPExpiresAt = nil
	account.VerifiedAt = &now

	recordOTP(nil)
	logger.Log.WithField("account_id", account.ID).Info("account service: аккаунт подтверждён")

	return account, nil
}

// ResendOTP выпускает новый код. Предыдущий код перестаёт действовать.
func (s *AccountService) ResendOTP(ctx context.Context, email string) error {
	account, err := s.getByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := checkPending(account); err != nil {
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("account service: %w", err)
	}

	now := s.now()
	ok, err := s.repo.ReplaceOTP(ctx, account.ID, code, now, now.Add(s.otpTTL))
	if err != nil {
		return fmt.Errorf("account service: %w", err)
	}
	if !ok {
		current, err := s.repo.GetByID(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("account service: %w", err)
		}
		if err := checkPending(current); err != nil {
			return err
		}
		return fmt.Errorf("account service: не удалось обновить код для %s", account.ID)
	}

	s.notifier.DispatchOTP(account.Email, account.FullName, code)

	return nil
}

// Login проверяет учётные данные и выпускает токены.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	account, err := s.repo.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("account service: %w", err)
	}

	// У аккаунтов, созданных через OAuth, пароля нет.
	if account.PasswordHash == "" {
		return nil, apperror.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	switch account.Status {
	case models.AccountStatusPending:
		return nil, apperror.ErrNotVerified
	case models.AccountStatusSuspended:
		return nil, apperror.ErrSuspended
	}

	if err := s.repo.UpdateLastLoginAt(ctx, account.ID); err != nil {
		// Логируем ошибку, но не прерываем процесс логина
		logger.Log.WithFields(logrus.Fields{
			"account_id": account.ID,
			"error":      err.Error(),
		}).Warn("account service: не удалось обновить last_login_at")
	}

	return s.IssueTokens(account)
}

// IssueTokens выпускает пару токенов для активного аккаунта.
func (s *AccountService) IssueTokens(account *models.Account) (*AuthResult, error) {
	pair, err := s.tokens.GeneratePair(account)
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	return &AuthResult{Account: account, Tokens: pair}, nil
}

// Refresh выпускает новую пару токенов по refresh токену.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	accountID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, fmt.Errorf("account service: %w", err)
	}

	if account.Status != models.AccountStatusActive {
		return nil, apperror.ErrForbidden
	}

	pair, err := s.tokens.GeneratePair(account)
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	return pair, nil
}

// Me возвращает аккаунт по идентификатору.
func (s *AccountService) Me(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperror.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account service: %w", err)
	}
	return account, nil
}

// List возвращает список аккаунтов.
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	accounts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	return accounts, nil
}

// FindOrCreateExternal сопоставляет подтверждённый провайдером email с аккаунтом.
// Аккаунт создаётся сразу активным, код подтверждения не нужен.
func (s *AccountService) FindOrCreateExternal(ctx context.Context, identity ExternalIdentity) (*models.Account, error) {
	if err := validation.ValidateEmail(identity.Email); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	email := validation.NormalizeEmail(identity.Email)

	account, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return s.activateExternal(ctx, account)
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("account service: %w", err)
	}

	now := s.now()
	fullName := strings.TrimSpace(identity.FullName)
	if fullName == "" {
		fullName = strings.SplitN(email, "@", 2)[0]
	}

	account = &models.Account{
		FullName:     fullName,
		Email:        email,
		Status:       models.AccountStatusActive,
		Role:         models.RoleUser,
		AuthProvider: identity.Provider,
		VerifiedAt:   &now,
	}

	created, err := s.repo.CreateIfAbsent(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	if !created {
		// Параллельный вход уже создал запись.
		existing, err := s.repo.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("account service: %w", err)
		}
		return s.activateExternal(ctx, existing)
	}

	logger.Log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"provider":   identity.Provider,
	}).Info("account service: создан аккаунт через внешнего провайдера")

	return account, nil
}

func (s *AccountService) activateExternal(ctx context.Context, account *models.Account) (*models.Account, error) {
	switch account.Status {
	case models.AccountStatusActive:
		return account, nil
	case models.AccountStatusSuspended:
		return nil, apperror.ErrSuspended
	}

	if _, err := s.repo.ActivateExternal(ctx, account.ID, s.now()); err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}

	current, err := s.repo.GetByID(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	if current.Status == models.AccountStatusSuspended {
		return nil, apperror.ErrSuspended
	}
	return current, nil
}

func (s *AccountService) getByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.repo.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperror.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account service: %w", err)
	}
	return account, nil
}

// checkPending проверяет, что аккаунт ещё ждёт подтверждения.
func checkPending(account *models.Account) error {
	switch account.Status {
	case models.AccountStatusActive:
		return apperror.ErrAlreadyVerified
	case models.AccountStatusSuspended:
		return apperror.ErrSuspended
	}
	return nil
}

// checkVerifiable проверяет статус, совпадение кода и срок действия, именно в таком порядке.
func checkVerifiable(account *models.Account, code string, now time.Time) error {
	if err := checkPending(account); err != nil {
		return err
	}
	if !codesEqual(account.OTPCode, code) {
		return apperror.ErrInvalidCode
	}
	if account.OTPExpiresAt == nil || now.After(*account.OTPExpiresAt) {
		return apperror.ErrExpired
	}
	return nil
}

func validateRegister(in RegisterInput) error {
	checks := []error{
		validation.ValidateFullName(in.FullName),
		validation.ValidateEmail(in.Email),
		validation.ValidatePassword(in.Password),
		validation.ValidatePhone(in.PhoneNumber),
		validation.ValidateAge(in.Age),
	}
	for _, err := range checks {
		if err != nil {
			return apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}
	return nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func recordOTP(err error) {
	result := "success"
	if err != nil {
		result = strings.ToLower(string(apperror.CodeOf(err)))
	}
	metrics.OTPVerifications.WithLabelValues(result).Inc()
}

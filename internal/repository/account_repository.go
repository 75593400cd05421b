package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/repository/common"
)

var (
	// ErrAccountNotFound возвращается, когда аккаунт не найден.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailExists возвращается при нарушении уникальности email.
	ErrEmailExists = errors.New("account email already exists")
	// ErrPhoneExists возвращается при нарушении уникальности телефона.
	ErrPhoneExists = errors.New("account phone already exists")
)

const accountColumns = `id, full_name, email, phone_number, age, password_hash, profile_image,
	status, role, auth_provider, otp_code, otp_generated_at, otp_expires_at,
	verified_at, last_login_at, created_at, updated_at`

// AccountRepository отвечает за работу с таблицей accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository создаёт экземпляр репозитория.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create сохраняет новый аккаунт.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (full_name, email, phone_number, age, password_hash, profile_image,
			status, role, auth_provider, otp_code, otp_generated_at, otp_expires_at, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		account.FullName, account.Email, account.PhoneNumber, account.Age, account.PasswordHash,
		account.ProfileImage, account.Status, account.Role, account.AuthProvider,
		account.OTPCode, account.OTPGeneratedAt, account.OTPExpiresAt, account.VerifiedAt,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return mapAccountWriteErr("create", err)
	}

	return nil
}

// CreateIfAbsent создаёт аккаунт, если email ещё не занят.
// Возвращает false, если запись уже существовала (гонка двух входов через OAuth).
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, account *models.Account) (bool, error) {
	query := `
		INSERT INTO accounts (full_name, email, password_hash, status, role, auth_provider, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(
		ctx, query,
		account.FullName, account.Email, account.PasswordHash, account.Status,
		account.Role, account.AuthProvider, account.VerifiedAt,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapAccountWriteErr("create if absent", err)
	}

	return true, nil
}

// GetByEmail возвращает аккаунт по email без учёта регистра.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("account repository: get by email %w", err)
	}

	return &account, nil
}

// GetByID возвращает аккаунт по идентификатору.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := common.GetByID[models.Account](ctx, r.db, "accounts", id, ErrAccountNotFound)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("account repository: %w", err)
	}
	return account, err
}

// Activate переводит pending аккаунт в active, если код совпадает и не истёк.
// Условие проверяется в одном UPDATE, поэтому из параллельных вызовов побеждает один.
func (r *AccountRepository) Activate(ctx context.Context, id uuid.UUID, code string, now time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET status = 'active',
			otp_code = NULL,
			otp_generated_at = NULL,
			otp_expires_at = NULL,
			verified_at = $3,
			updated_at = NOW()
		WHERE id = $1
			AND status = 'pending'
			AND otp_code = $2
			AND otp_expires_at >= $3
	`

	return r.execAffected(ctx, "activate", query, id, code, now)
}

// ActivateExternal активирует pending аккаунт без кода (вход через внешнего провайдера).
func (r *AccountRepository) ActivateExternal(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET status = 'active',
			otp_code = NULL,
			otp_generated_at = NULL,
			otp_expires_at = NULL,
			verified_at = $2,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	return r.execAffected(ctx, "activate external", query, id, now)
}

// ReplaceOTP записывает новый код для pending аккаунта. Старый код перестаёт действовать.
func (r *AccountRepository) ReplaceOTP(ctx context.Context, id uuid.UUID, code string, generatedAt, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET otp_code = $2,
			otp_generated_at = $3,
			otp_expires_at = $4,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	return r.execAffected(ctx, "replace otp", query, id, code, generatedAt, expiresAt)
}

// UpdateLastLoginAt обновляет время последнего входа.
func (r *AccountRepository) UpdateLastLoginAt(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE accounts SET last_login_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("account repository: update last login %w", err)
	}
	return nil
}

// List возвращает аккаунты по дате создания.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	limit, offset = common.Paginate(limit, offset)

	accounts := []models.Account{}
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &accounts, query, limit, offset); err != nil {
		return nil, fmt.Errorf("account repository: list %w", err)
	}

	return accounts, nil
}

func (r *AccountRepository) execAffected(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("account repository: %s %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("account repository: %s rows affected %w", op, err)
	}

	return rows == 1, nil
}

func mapAccountWriteErr(op string, err error) error {
	if constraint, ok := common.UniqueViolation(err); ok {
		if constraint == "accounts_phone_key" {
			return ErrPhoneExists
		}
		return ErrEmailExists
	}
	return fmt.Errorf("account repository: %s %w", op, err)
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/repository/common"
)

var (
	// ErrProductNotFound возвращается, когда товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductExists возвращается при повторе названия товара.
	ErrProductExists = errors.New("product name already exists")
)

// ProductRepository отвечает за работу с таблицей products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository создаёт экземпляр репозитория.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create сохраняет товар. Уникальность названия обеспечивает индекс products_name_key.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, price, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(ctx, query, product.Name, product.Price, product.CreatedBy).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt); err != nil {
		if _, ok := common.UniqueViolation(err); ok {
			return ErrProductExists
		}
		return fmt.Errorf("product repository: create %w", err)
	}

	return nil
}

// GetByID возвращает товар по идентификатору.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := common.GetByID[models.Product](ctx, r.db, "products", id, ErrProductNotFound)
	if err != nil && !errors.Is(err, ErrProductNotFound) {
		return nil, fmt.Errorf("product repository: %w", err)
	}
	return product, err
}

// ExistsByName проверяет, занято ли название (без учёта регистра).
func (r *ProductRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM products WHERE LOWER(name) = LOWER($1))`, name); err != nil {
		return false, fmt.Errorf("product repository: exists by name %w", err)
	}
	return exists, nil
}

// List возвращает все товары, новые первыми.
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	if err := r.db.SelectContext(ctx, &products, `SELECT * FROM products ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("product repository: list %w", err)
	}
	return products, nil
}

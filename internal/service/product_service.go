package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/shop-backend/internal/logger"
	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/pkg/apperror"
	"github.com/ignatzorin/shop-backend/internal/repository"
	"github.com/ignatzorin/shop-backend/internal/validation"
)

// ProductRepository описывает зависимости каталога.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]models.Product, error)
}

// ProductService управляет каталогом товаров.
type ProductService struct {
	repo ProductRepository
}

// NewProductService создаёт сервис каталога.
func NewProductService(repo ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// Create добавляет товар. Доступно только администратору.
func (s *ProductService) Create(ctx context.Context, actorID uuid.UUID, actorRole, name string, price decimal.Decimal) (*models.Product, error) {
	if actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	name = strings.TrimSpace(name)
	if err := validation.ValidateProductName(name); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePrice(price); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("product service: %w", err)
	}
	if exists {
		return nil, apperror.ErrProductExists
	}

	product := &models.Product{
		Name:      name,
		Price:     price.Round(2),
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductExists) {
			return nil, apperror.ErrProductExists
		}
		return nil, fmt.Errorf("product service: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"product_id": product.ID,
		"price":      product.Price.StringFixed(2),
		"created_by": actorID,
	}).Info("product service: товар создан")

	return product, nil
}

// List возвращает каталог.
func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("product service: %w", err)
	}
	return products, nil
}

// Get возвращает товар по ID.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperror.ErrProductNotFound
		}
		return nil, fmt.Errorf("product service: %w", err)
	}
	return product, nil
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/shop-backend/internal/dto"
	"github.com/ignatzorin/shop-backend/internal/http/handlers/common"
	"github.com/ignatzorin/shop-backend/internal/models"
)

// ProductService операции каталога.
type ProductService interface {
	Create(ctx context.Context, actorID uuid.UUID, actorRole, name string, price decimal.Decimal) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// ProductHandler обслуживает маршруты каталога.
type ProductHandler struct {
	products ProductService
}

// NewProductHandler создаёт хэндлер.
func NewProductHandler(products ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// Create обрабатывает POST /create-product.
func (h *ProductHandler) Create(c *gin.Context) {
	accountID, err := common.CurrentAccountID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentRole(c)

	var req dto.CreateProductRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	product, err := h.products.Create(c.Request.Context(), accountID, role, req.Name, *req.Price)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "товар создан", product)
}

// List обрабатывает GET /products.
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "все товары", products)
}

// Get обрабатывает GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор товара")
		return
	}

	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "товар", product)
}

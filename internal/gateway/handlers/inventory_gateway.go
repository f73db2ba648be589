package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"caisse-system/internal/database/models"
	inventory "caisse-system/internal/services/inventory/handler"
)

type InventoryHTTPHandler struct {
	inventory *inventory.InventoryHandler
}

func NewInventoryHTTPHandler(inventoryHandler *inventory.InventoryHandler) *InventoryHTTPHandler {
	return &InventoryHTTPHandler{
		inventory: inventoryHandler,
	}
}

func (s *InventoryHTTPHandler) success(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, successResponse(message, data))
}

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type ProductRequest struct {
	CategoryID    *int64          `json:"category_id,omitempty"`
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	StockMin      int             `json:"stock_min"`
	InitialStock  int             `json:"initial_stock"`
}

func (r ProductRequest) input() inventory.ProductInput {
	return inventory.ProductInput{
		CategoryID:    r.CategoryID,
		Name:          r.Name,
		Description:   r.Description,
		PurchasePrice: r.PurchasePrice,
		SalePrice:     r.SalePrice,
		StockMin:      r.StockMin,
		InitialStock:  r.InitialStock,
	}
}

type AdjustStockRequest struct {
	Delta       int                 `json:"delta" binding:"required"`
	Kind        models.MovementKind `json:"kind" binding:"required"`
	Description string              `json:"description"`
}

type ProductView struct {
	*models.Product
	Margin decimal.Decimal `json:"margin_percent"`
}

// --- Categories ---

func (s *InventoryHTTPHandler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	category, err := s.inventory.CreateCategory(ctx, req.Name, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	s.success(c, http.StatusCreated, "Category created successfully", category)
}

func (s *InventoryHTTPHandler) ListCategories(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	s.success(c, http.StatusOK, "Categories retrieved successfully", s.inventory.ListCategories(ctx))
}

func (s *InventoryHTTPHandler) GetCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	category, err := s.inventory.GetCategory(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	s.success(c, http.StatusOK, "Category retrieved successfully", category)
}

// --- Products ---

func (s *InventoryHTTPHandler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	product, err := s.inventory.CreateProduct(ctx, callerOf(c), req.input())
	if err != nil {
		handleError(c, err)
		return
	}
	s.success(c, http.StatusCreated, "Product created successfully", product)
}

func (s *InventoryHTTPHandler) UpdateProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	product, err := s.inventory.UpdateProduct(ctx, id, req.input())
	if err != nil {
		handleError(c, err)
		return
	}
	s.success(c, http.StatusOK, "Product updated successfully", product)
}

func (s *InventoryHTTPHandler) DeleteProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := s.inventory.DeleteProduct(ctx, id); err != nil {
		handleError(c, err)
		return
	}
	s.success(c, http.StatusOK, "Product deleted successfully", nil)
}

func (s *InventoryHTTPHandler) GetProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	product, err := s.inventory.GetProduct(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	s.success(c, http.StatusOK, "Product retrieved successfully", ProductView{
		Product: product,
		Margin:  inventory.Margin(product.PurchasePrice, product.SalePrice),
	})
}

func (s *InventoryHTTPHandler) ListProducts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if term := c.Query("search"); term != "" {
		s.success(c, http.StatusOK, "Products retrieved successfully", s.inventory.SearchProducts(ctx, term))
		return
	}
	if raw := c.Query("category_id"); raw != "" {
		categoryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid category_id"))
			return
		}
		s.success(c, http.StatusOK, "Products retrieved successfully", s.inventory.ListProductsByCategory(ctx, categoryID))
		return
	}
	s.success(c, http.StatusOK, "Products retrieved successfully", s.inventory.ListProducts(ctx))
}

// --- Stock ---

func (s *InventoryHTTPHandler) AdjustStock(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	stock, err := s.inventory.AdjustStock(ctx, callerOf(c), inventory.AdjustStockRequest{
		ProductID:   id,
		Delta:       req.Delta,
		Kind:        req.Kind,
		Description: req.Description,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	s.success(c, http.StatusOK, "Stock updated", gin.H{"product_id": id, "current_stock": stock})
}

func (s *InventoryHTTPHandler) ListStockMovements(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	movements, err := s.inventory.GetMovements(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	s.success(c, http.StatusOK, "Stock movements retrieved successfully", movements)
}

func (s *InventoryHTTPHandler) ListLowStock(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	products, err := s.inventory.GetLowStock(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	s.success(c, http.StatusOK, "Low stock products retrieved successfully", products)
}

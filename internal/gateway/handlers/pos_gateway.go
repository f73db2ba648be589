package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"caisse-system/internal/database/models"
	inventory "caisse-system/internal/services/inventory/handler"
	pos "caisse-system/internal/services/pos/handler"
)

type POSHTTPHandler struct {
	pos       *pos.POSHandler
	inventory *inventory.InventoryHandler
}

func NewPOSHTTPHandler(posHandler *pos.POSHandler, inventoryHandler *inventory.InventoryHandler) *POSHTTPHandler {
	return &POSHTTPHandler{
		pos:       posHandler,
		inventory: inventoryHandler,
	}
}

type SaleLineRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
	// UnitPrice defaults to the product's current sale price.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type CreateSaleRequest struct {
	ClientID     int64               `json:"client_id" binding:"required"`
	Items        []SaleLineRequest   `json:"items" binding:"required"`
	DiscountKind models.DiscountKind `json:"discount_kind,omitempty"`
	Discount     decimal.Decimal     `json:"discount"`
	TaxPercent   *decimal.Decimal    `json:"tax_percent,omitempty"`
	Notes        string              `json:"notes,omitempty"`
}

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type ListSalesQuery struct {
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
	Search   string `form:"search"`
	By       string `form:"by,default=number"`
	Unpaid   bool   `form:"unpaid"`
}

func (h *POSHTTPHandler) CreateSale(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	items := make([]pos.LineItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		line := pos.LineItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
		if it.UnitPrice != nil {
			line.UnitPrice = *it.UnitPrice
		} else {
			product, err := h.inventory.GetProduct(ctx, it.ProductID)
			if err != nil {
				handleError(c, err)
				return
			}
			line.UnitPrice = product.SalePrice
		}
		items = append(items, line)
	}

	sale, err := h.pos.CreateSale(ctx, callerOf(c), pos.CreateSaleRequest{
		ClientID:     req.ClientID,
		LineItems:    items,
		DiscountKind: req.DiscountKind,
		Discount:     req.Discount,
		TaxPercent:   req.TaxPercent,
		Notes:        req.Notes,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Sale created successfully", sale))
}

func (h *POSHTTPHandler) GetSale(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.pos.GetSale(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Sale retrieved successfully", sale))
}

func (h *POSHTTPHandler) GetSaleByInvoiceNumber(c *gin.Context) {
	number := c.Query("number")
	if number == "" {
		c.JSON(http.StatusBadRequest, errorResponse("Invoice number required"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.pos.GetSaleByInvoiceNumber(ctx, number)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Sale retrieved successfully", sale))
}

func (h *POSHTTPHandler) ListSales(c *gin.Context) {
	var query ListSalesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	switch {
	case query.Unpaid:
		c.JSON(http.StatusOK, successResponse("Unpaid sales retrieved successfully", h.pos.ListUnpaidSales(ctx)))
	case strings.TrimSpace(query.Search) != "":
		sales := h.pos.SearchSales(ctx, query.Search, pos.SearchBy(query.By))
		c.JSON(http.StatusOK, successResponse("Sales retrieved successfully", sales))
	default:
		if query.Page < 1 {
			query.Page = 1
		}
		if query.PageSize < 1 || query.PageSize > 200 {
			query.PageSize = 20
		}
		sales, total := h.pos.ListSales(ctx, query.PageSize, (query.Page-1)*query.PageSize)
		c.JSON(http.StatusOK, successWithMetaResponse("Sales retrieved successfully", sales, PageMeta{
			Page:     query.Page,
			PageSize: query.PageSize,
			Total:    total,
		}))
	}
}

func (h *POSHTTPHandler) CancelSale(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.pos.CancelSale(ctx, callerOf(c), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Sale cancelled", sale))
}

func (h *POSHTTPHandler) DeleteSale(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.pos.DeleteSale(ctx, callerOf(c), id); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Sale deleted", nil))
}

func (h *POSHTTPHandler) RecordPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.pos.RecordPayment(ctx, callerOf(c), id, req.Amount)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Payment recorded", result))
}

func (h *POSHTTPHandler) GetPaymentHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	payments, err := h.pos.GetPaymentHistory(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Payments retrieved successfully", payments))
}

func (h *POSHTTPHandler) GetStatistics(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.pos.GetSaleStatistics(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Statistics retrieved successfully", stats))
}

// NextInvoiceNumber previews the number the next sale would receive. It is
// not reserved.
func (h *POSHTTPHandler) NextInvoiceNumber(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	number, err := h.pos.GenerateInvoiceNumber(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Invoice number generated", gin.H{"invoice_number": number}))
}

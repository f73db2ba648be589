package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	customer "caisse-system/internal/services/customer/handler"
)

type CustomerHTTPHandler struct {
	customers *customer.CustomerHandler
}

func NewCustomerHTTPHandler(customerHandler *customer.CustomerHandler) *CustomerHTTPHandler {
	return &CustomerHTTPHandler{customers: customerHandler}
}

func (h *CustomerHTTPHandler) CreateClient(c *gin.Context) {
	var req customer.ClientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	client, err := h.customers.CreateClient(ctx, req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Client created successfully", client))
}

func (h *CustomerHTTPHandler) ListClients(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if term := c.Query("search"); term != "" {
		c.JSON(http.StatusOK, successResponse("Clients retrieved successfully", h.customers.SearchClients(ctx, term)))
		return
	}
	c.JSON(http.StatusOK, successResponse("Clients retrieved successfully", h.customers.ListClients(ctx)))
}

func (h *CustomerHTTPHandler) GetClient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	client, err := h.customers.GetClient(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Client retrieved successfully", client))
}

func (h *CustomerHTTPHandler) UpdateClient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req customer.ClientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	client, err := h.customers.UpdateClient(ctx, id, req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Client updated successfully", client))
}

func (h *CustomerHTTPHandler) DeleteClient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.customers.DeleteClient(ctx, id); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Client deleted successfully", nil))
}

func (h *CustomerHTTPHandler) PurchaseHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sales, err := h.customers.PurchaseHistory(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Purchase history retrieved successfully", sales))
}

func (h *CustomerHTTPHandler) ClientStatistics(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.customers.ClientStatistics(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Client statistics retrieved successfully", stats))
}

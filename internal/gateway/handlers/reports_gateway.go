package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	reports "caisse-system/internal/services/reports/handler"
)

type ReportsHTTPHandler struct {
	reports *reports.ReportsHandler
}

func NewReportsHTTPHandler(reportsHandler *reports.ReportsHandler) *ReportsHTTPHandler {
	return &ReportsHTTPHandler{reports: reportsHandler}
}

func periodQuery(c *gin.Context) (reports.Period, bool) {
	p := reports.Period(c.DefaultQuery("period", string(reports.PeriodMonth)))
	if !p.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse("period must be today, week or month"))
		return "", false
	}
	return p, true
}

func (h *ReportsHTTPHandler) Dashboard(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	c.JSON(http.StatusOK, successResponse("Dashboard retrieved successfully", h.reports.DashboardSummary(ctx)))
}

func (h *ReportsHTTPHandler) Revenue(c *gin.Context) {
	period, ok := periodQuery(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	c.JSON(http.StatusOK, successResponse("Revenue retrieved successfully", gin.H{
		"period":  period,
		"revenue": h.reports.RevenueByPeriod(ctx, period),
		"sales":   h.reports.SalesCount(ctx, period),
	}))
}

func (h *ReportsHTTPHandler) TopProducts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	c.JSON(http.StatusOK, successResponse("Top products retrieved successfully", h.reports.TopProducts(ctx, parseIntQuery(c, "limit", 5))))
}

func (h *ReportsHTTPHandler) TopClients(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	c.JSON(http.StatusOK, successResponse("Top clients retrieved successfully", h.reports.TopClients(ctx, parseIntQuery(c, "limit", 5))))
}

func (h *ReportsHTTPHandler) CriticalStock(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	c.JSON(http.StatusOK, successResponse("Critical stock retrieved successfully", h.reports.CriticalStock(ctx, parseIntQuery(c, "limit", 10))))
}

func (h *ReportsHTTPHandler) RevenueByCategory(c *gin.Context) {
	period, ok := periodQuery(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	c.JSON(http.StatusOK, successResponse("Revenue by category retrieved successfully", h.reports.RevenueByCategory(ctx, period)))
}

func (h *ReportsHTTPHandler) RevenueEvolution(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	c.JSON(http.StatusOK, successResponse("Revenue evolution retrieved successfully", h.reports.RevenueEvolution(ctx, parseIntQuery(c, "days", 30))))
}

func (h *ReportsHTTPHandler) PaymentStatus(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	c.JSON(http.StatusOK, successResponse("Payment status retrieved successfully", h.reports.PaymentStatus(ctx)))
}

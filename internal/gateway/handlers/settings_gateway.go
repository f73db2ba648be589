package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	settings "caisse-system/internal/services/settings/handler"
)

type SettingsHTTPHandler struct {
	settings *settings.SettingsHandler
}

func NewSettingsHTTPHandler(settingsHandler *settings.SettingsHandler) *SettingsHTTPHandler {
	return &SettingsHTTPHandler{settings: settingsHandler}
}

func (h *SettingsHTTPHandler) GetCompanyInfo(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	info, err := h.settings.GetCompanyInfo(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Company info retrieved successfully", info))
}

func (h *SettingsHTTPHandler) UpdateCompanyInfo(c *gin.Context) {
	var req settings.CompanyInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.settings.UpdateCompanyInfo(ctx, req); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Company info updated", nil))
}

func (h *SettingsHTTPHandler) GetGeneralSettings(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	s, err := h.settings.GetGeneralSettings(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Settings retrieved successfully", s))
}

func (h *SettingsHTTPHandler) UpdateGeneralSettings(c *gin.Context) {
	var req settings.GeneralSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.settings.UpdateGeneralSettings(ctx, req); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Settings updated", nil))
}

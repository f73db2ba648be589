package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"caisse-system/internal/apperr"
	"caisse-system/internal/permissions"
	user "caisse-system/internal/services/user/handler"
	"caisse-system/internal/utils"
)

type UserHTTPHandler struct {
	users  *user.UserHandler
	tokens *utils.TokenIssuer
}

func NewUserHTTPHandler(userHandler *user.UserHandler, tokens *utils.TokenIssuer) *UserHTTPHandler {
	return &UserHTTPHandler{
		users:  userHandler,
		tokens: tokens,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token        string                   `json:"token"`
	ExpiresAt    time.Time                `json:"expires_at"`
	User         permissions.Caller       `json:"user"`
	Capabilities []permissions.Capability `json:"capabilities"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// --- Authentication ---

func (h *UserHTTPHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	caller, err := h.users.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, apperr.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, errorResponse("Invalid username or password"))
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}

	token, exp, err := h.tokens.GenerateToken(caller)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Login successful", LoginResponse{
		Token:        token,
		ExpiresAt:    exp,
		User:         caller,
		Capabilities: permissions.Capabilities(caller.Role),
	}))
}

func (h *UserHTTPHandler) Me(c *gin.Context) {
	caller := callerOf(c)
	c.JSON(http.StatusOK, successResponse("Current user", gin.H{
		"user":         caller,
		"capabilities": permissions.Capabilities(caller.Role),
	}))
}

// --- Users ---

func (h *UserHTTPHandler) CreateUser(c *gin.Context) {
	var req user.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.users.CreateUser(ctx, req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("User created successfully", u))
}

func (h *UserHTTPHandler) ListUsers(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if role := c.Query("role"); role != "" {
		c.JSON(http.StatusOK, successResponse("Users retrieved successfully", h.users.ListUsersByRole(ctx, permissions.Role(role))))
		return
	}
	activeOnly := c.Query("active") == "true"
	c.JSON(http.StatusOK, successResponse("Users retrieved successfully", h.users.ListUsers(ctx, activeOnly)))
}

func (h *UserHTTPHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.users.GetUser(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("User retrieved successfully", u))
}

func (h *UserHTTPHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req user.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.users.UpdateUser(ctx, id, req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("User updated successfully", u))
}

func (h *UserHTTPHandler) ResetPassword(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.users.ResetPassword(ctx, id, req.Password); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Password reset", nil))
}

func (h *UserHTTPHandler) DeactivateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.users.DeactivateUser(ctx, id); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("User deactivated", nil))
}

func (h *UserHTTPHandler) DeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if id == callerOf(c).UserID {
		c.JSON(http.StatusBadRequest, errorResponse("Cannot delete your own account"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.users.DeleteUser(ctx, id); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("User deleted successfully", nil))
}

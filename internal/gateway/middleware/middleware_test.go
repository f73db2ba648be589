package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caisse-system/internal/permissions"
	"caisse-system/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(issuer *utils.TokenIssuer) *gin.Engine {
	r := gin.New()
	r.GET("/sales", JWTAuth(issuer), RequireCapability(permissions.ViewSales), func(c *gin.Context) {
		caller, _ := CallerFrom(c)
		c.String(http.StatusOK, caller.Username)
	})
	r.DELETE("/sales", JWTAuth(issuer), RequireCapability(permissions.DeleteSale), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, method, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/sales", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthAndCapabilities(t *testing.T) {
	issuer := utils.NewTokenIssuer("secret", time.Hour)
	r := newRouter(issuer)

	token, _, err := issuer.GenerateToken(permissions.Caller{UserID: 3, Username: "moussa", Role: permissions.RoleSeller})
	require.NoError(t, err)

	w := do(r, http.MethodGet, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "moussa", w.Body.String())

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodDelete, token).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "garbage").Code)

	admin, _, err := issuer.GenerateToken(permissions.Caller{UserID: 1, Username: "admin", Role: permissions.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, admin).Code)
}

func TestRequireCapabilityWithoutCaller(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireCapability(permissions.ViewSales), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	_, err := RateLimit("lots")
	assert.Error(t, err)

	mw, err := RateLimit("2-M")
	require.NoError(t, err)
	r := gin.New()
	r.Use(mw)
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORS(t *testing.T) {
	preflight := func(r http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/sales", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	build := func(origins []string) *gin.Engine {
		r := gin.New()
		r.Use(CORS(origins))
		r.POST("/sales", func(c *gin.Context) { c.Status(http.StatusCreated) })
		return r
	}

	w := preflight(build(nil), "http://anywhere.test")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	restricted := build([]string{"http://localhost:3000"})
	w = preflight(restricted, "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight(restricted, "http://evil.test")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"caisse-system/internal/gateway/clients"
	"caisse-system/internal/grpcserver"
)

// HealthChecker pings every backing dependency. Redis and the gRPC client are
// optional.
type HealthChecker struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Ledger *clients.HealthClient
}

func (h *HealthChecker) pingDB(ctx context.Context) error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func serviceStatus(err error) map[string]interface{} {
	if err != nil {
		return map[string]interface{}{
			"status":  "unavailable",
			"message": err.Error(),
		}
	}
	return map[string]interface{}{
		"status":  "healthy",
		"message": "Service is responding",
	}
}

func (h *HealthChecker) healthCheckHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	if err := h.pingDB(ctx); err != nil {
		status = "unavailable"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"message":   "Server is running",
		"timestamp": time.Now(),
	})
}

func (h *HealthChecker) detailedHealthCheckHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := map[string]interface{}{
		"database": serviceStatus(h.pingDB(ctx)),
	}
	if h.Redis != nil {
		services["redis"] = serviceStatus(h.Redis.Ping(ctx).Err())
	} else {
		services["redis"] = map[string]interface{}{"status": "disabled"}
	}
	if h.Ledger != nil {
		grpcStatus := h.Ledger.Status(ctx, grpcserver.ServiceName)
		entry := map[string]interface{}{"status": "healthy", "message": grpcStatus}
		if grpcStatus != "SERVING" {
			entry["status"] = "unavailable"
		}
		services["grpc"] = entry
	}

	overallStatus := "healthy"
	for name, service := range services {
		if serviceMap, ok := service.(map[string]interface{}); ok {
			switch {
			case serviceMap["status"] == "healthy", serviceMap["status"] == "disabled":
			case name == "database":
				overallStatus = "unavailable"
			case overallStatus == "healthy":
				overallStatus = "degraded"
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"overall_status": overallStatus,
		"services":       services,
		"timestamp":      time.Now(),
	})
}

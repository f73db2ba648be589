package gateway

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caisse-system/internal/gateway/handlers"
	"caisse-system/internal/gateway/middleware"
	p "caisse-system/internal/permissions"
	customer "caisse-system/internal/services/customer/handler"
	inventory "caisse-system/internal/services/inventory/handler"
	pos "caisse-system/internal/services/pos/handler"
	reports "caisse-system/internal/services/reports/handler"
	settings "caisse-system/internal/services/settings/handler"
	user "caisse-system/internal/services/user/handler"
	"caisse-system/internal/utils"
)

type Services struct {
	POS         *pos.POSHandler
	Inventory   *inventory.InventoryHandler
	Customers   *customer.CustomerHandler
	Users       *user.UserHandler
	Settings    *settings.SettingsHandler
	Reports     *reports.ReportsHandler
	Tokens      *utils.TokenIssuer
	Health      *HealthChecker
	Log         *zap.Logger
	// RateLimit uses the limiter format; empty disables limiting.
	RateLimit   string
	CORSOrigins []string
}

func NewRouter(svc Services) (*gin.Engine, error) {
	if svc.Log == nil {
		svc.Log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(svc.CORSOrigins))
	r.Use(middleware.RequestLogger(svc.Log))
	if svc.RateLimit != "" {
		limit, err := middleware.RateLimit(svc.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(limit)
	}

	posHandler := handlers.NewPOSHTTPHandler(svc.POS, svc.Inventory)
	inventoryHandler := handlers.NewInventoryHTTPHandler(svc.Inventory)
	customerHandler := handlers.NewCustomerHTTPHandler(svc.Customers)
	userHandler := handlers.NewUserHTTPHandler(svc.Users, svc.Tokens)
	settingsHandler := handlers.NewSettingsHTTPHandler(svc.Settings)
	reportsHandler := handlers.NewReportsHTTPHandler(svc.Reports)
	can := middleware.RequireCapability

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		public.POST("/auth/login", userHandler.Login)
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(svc.Tokens))
	{
		protected.GET("/auth/me", userHandler.Me)

		clientsGroup := protected.Group("/clients")
		{
			clientsGroup.GET("", can(p.ViewClients), customerHandler.ListClients)
			clientsGroup.POST("", can(p.CreateClient), customerHandler.CreateClient)
			clientsGroup.GET("/:id", can(p.ViewClients), customerHandler.GetClient)
			clientsGroup.PUT("/:id", can(p.EditClient), customerHandler.UpdateClient)
			clientsGroup.DELETE("/:id", can(p.DeleteClient), customerHandler.DeleteClient)
			clientsGroup.GET("/:id/sales", can(p.ViewClients), customerHandler.PurchaseHistory)
			clientsGroup.GET("/:id/statistics", can(p.ViewClients), customerHandler.ClientStatistics)
		}

		categories := protected.Group("/categories")
		{
			categories.GET("", can(p.ViewProducts), inventoryHandler.ListCategories)
			categories.POST("", can(p.CreateProduct), inventoryHandler.CreateCategory)
			categories.GET("/:id", can(p.ViewProducts), inventoryHandler.GetCategory)
		}

		products := protected.Group("/products")
		{
			products.GET("", can(p.ViewProducts), inventoryHandler.ListProducts)
			products.POST("", can(p.CreateProduct), inventoryHandler.CreateProduct)
			products.GET("/low-stock", can(p.ViewProducts), inventoryHandler.ListLowStock)
			products.GET("/:id", can(p.ViewProducts), inventoryHandler.GetProduct)
			products.PUT("/:id", can(p.EditProduct), inventoryHandler.UpdateProduct)
			products.DELETE("/:id", can(p.DeleteProduct), inventoryHandler.DeleteProduct)
			products.POST("/:id/stock", can(p.EditProduct), inventoryHandler.AdjustStock)
			products.GET("/:id/movements", can(p.ViewProducts), inventoryHandler.ListStockMovements)
		}

		sales := protected.Group("/sales")
		{
			sales.GET("", can(p.ViewSales), posHandler.ListSales)
			sales.POST("", can(p.CreateSale), posHandler.CreateSale)
			sales.GET("/statistics", can(p.ViewDashboard, p.ViewStatistics), posHandler.GetStatistics)
			sales.GET("/invoice-number", can(p.CreateSale), posHandler.NextInvoiceNumber)
			sales.GET("/by-number", can(p.ViewSales), posHandler.GetSaleByInvoiceNumber)
			sales.GET("/:id", can(p.ViewSales), posHandler.GetSale)
			sales.DELETE("/:id", can(p.DeleteSale), posHandler.DeleteSale)
			sales.POST("/:id/cancel", can(p.EditSale, p.ValidateSale), posHandler.CancelSale)
			sales.GET("/:id/payments", can(p.ViewSales), posHandler.GetPaymentHistory)
			sales.POST("/:id/payments", can(p.CreateSale, p.ValidateSale), posHandler.RecordPayment)
		}

		users := protected.Group("/users")
		{
			users.GET("", can(p.ViewUsers), userHandler.ListUsers)
			users.POST("", can(p.CreateUser), userHandler.CreateUser)
			users.GET("/:id", can(p.ViewUsers), userHandler.GetUser)
			users.PUT("/:id", can(p.EditUser), userHandler.UpdateUser)
			users.POST("/:id/password", can(p.EditUser), userHandler.ResetPassword)
			users.POST("/:id/deactivate", can(p.EditUser), userHandler.DeactivateUser)
			users.DELETE("/:id", can(p.DeleteUser), userHandler.DeleteUser)
		}

		settingsGroup := protected.Group("/settings")
		{
			settingsGroup.GET("/company", can(p.ViewSettings), settingsHandler.GetCompanyInfo)
			settingsGroup.PUT("/company", can(p.EditSettings), settingsHandler.UpdateCompanyInfo)
			settingsGroup.GET("/general", can(p.ViewSettings), settingsHandler.GetGeneralSettings)
			settingsGroup.PUT("/general", can(p.EditSettings), settingsHandler.UpdateGeneralSettings)
		}

		reportsGroup := protected.Group("/reports")
		{
			reportsGroup.GET("/dashboard", can(p.ViewDashboard), reportsHandler.Dashboard)
			reportsGroup.GET("/revenue", can(p.ViewStatistics), reportsHandler.Revenue)
			reportsGroup.GET("/top-products", can(p.ViewStatistics), reportsHandler.TopProducts)
			reportsGroup.GET("/top-clients", can(p.ViewStatistics), reportsHandler.TopClients)
			reportsGroup.GET("/critical-stock", can(p.ViewStatistics), reportsHandler.CriticalStock)
			reportsGroup.GET("/categories", can(p.ViewStatistics), reportsHandler.RevenueByCategory)
			reportsGroup.GET("/evolution", can(p.ViewStatistics), reportsHandler.RevenueEvolution)
			reportsGroup.GET("/payment-status", can(p.ViewStatistics), reportsHandler.PaymentStatus)
		}
	}

	if svc.Health != nil {
		r.GET("/health", svc.Health.healthCheckHandler)
		r.GET("/health/detailed", svc.Health.detailedHealthCheckHandler)
	}

	return r, nil
}

package router

import (
	"meter-billing/internal/config"
	"meter-billing/internal/handler"
	"meter-billing/internal/ledger"
	"meter-billing/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin engine and wires every ledger service.
func SetupRouter(cfg *config.Config, db *gorm.DB, log *zap.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(log), gin.Recovery(), middleware.Metrics())

	r.GET("/metrics", middleware.MetricsHandler())

	// ledger services
	tenants := ledger.NewTenants(db)
	meters := ledger.NewMeters(db)
	prices := ledger.NewPrices(db)
	settings := ledger.NewSettings(db)
	readings := ledger.NewReadingLedger(db, settings, log)
	engine := ledger.NewBillingEngine(db, prices, log)
	payments := ledger.NewPaymentLedger(db)
	settlements := ledger.NewSettlementLedger(db)
	summaries := ledger.NewSummaries(db)
	rows := ledger.NewRows(db)
	importer := ledger.NewImporter(meters, readings, log)

	// ====== API ======
	api := r.Group("/api")

	jwtSecret := cfg.JWT.Secret
	// 登录/注册接口（不需要鉴权）
	authHandler := handler.NewAuthHandler(db, jwtSecret, cfg.JWT.ExpireHours)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	// 需要登录才能访问的接口
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(jwtSecret, db))

	protected.GET("/me", handler.GetMe)

	tenantHandler := handler.NewTenantHandler(tenants)
	protected.POST("/tenants", tenantHandler.Create)
	protected.GET("/tenants", tenantHandler.List)
	protected.GET("/tenants/:id", tenantHandler.Get)
	protected.PUT("/tenants/:id", tenantHandler.Update)
	protected.POST("/tenants/:id/deactivate", tenantHandler.Deactivate)
	protected.DELETE("/tenants/:id", tenantHandler.Delete)

	meterHandler := handler.NewMeterHandler(meters)
	protected.POST("/meters", meterHandler.Create)
	protected.GET("/meters", meterHandler.List)
	protected.GET("/meters/:id", meterHandler.Get)
	protected.GET("/meters/:id/last-reading", meterHandler.LastReading)
	protected.PUT("/meters/:id", meterHandler.Update)
	protected.DELETE("/meters/:id", meterHandler.Delete)

	priceHandler := handler.NewPriceHandler(prices)
	protected.POST("/prices", priceHandler.Put)
	protected.GET("/prices", priceHandler.List)
	protected.GET("/prices/current", priceHandler.Current)

	readingHandler := handler.NewReadingHandler(readings)
	protected.POST("/readings", readingHandler.Record)
	protected.GET("/readings", readingHandler.List)
	protected.DELETE("/readings/:id", readingHandler.Delete)

	billingHandler := handler.NewBillingHandler(engine)
	protected.POST("/billing/compute", billingHandler.Compute)
	protected.GET("/billing/charge", billingHandler.GetCharge)

	paymentHandler := handler.NewPaymentHandler(payments)
	protected.POST("/payments", paymentHandler.Record)
	protected.DELETE("/payments/:id", paymentHandler.Delete)
	protected.GET("/charges/:id/payments", paymentHandler.ListByCharge)
	protected.DELETE("/charges/:id", paymentHandler.DeleteCharge)

	settlementHandler := handler.NewSettlementHandler(settlements)
	protected.POST("/settlements", settlementHandler.Upsert)
	protected.GET("/settlements", settlementHandler.List)
	protected.GET("/settlements/locked", settlementHandler.IsLocked)
	protected.DELETE("/settlements/:id", settlementHandler.Delete)

	summaryHandler := handler.NewSummaryHandler(summaries)
	protected.GET("/summary/arrears", summaryHandler.Arrears)
	protected.GET("/summary/received", summaryHandler.MonthlyReceived)
	protected.GET("/summary/dashboard", summaryHandler.Dashboard)

	settingHandler := handler.NewSettingHandler(settings)
	protected.GET("/settings", settingHandler.List)
	protected.POST("/settings", settingHandler.Put)

	ieHandler := handler.NewImportExportHandler(rows, importer)
	protected.GET("/export/charges/csv", ieHandler.ExportChargesCSV)
	protected.GET("/export/charges/xlsx", ieHandler.ExportChargesXLSX)
	protected.GET("/export/payments/xlsx", ieHandler.ExportPaymentsXLSX)
	protected.GET("/export/settlements/xlsx", ieHandler.ExportSettlementsXLSX)
	protected.GET("/export/readings/xlsx", ieHandler.ExportReadingsXLSX)
	protected.POST("/import/readings/xlsx", ieHandler.ImportReadingsXLSX)

	// 用户管理（仅管理员）
	userHandler := handler.NewUserHandler(db)
	admin := protected.Group("/users")
	admin.Use(middleware.RequireAdmin())
	admin.GET("", userHandler.List)
	admin.PUT("/:id/role", userHandler.SetRole)
	admin.DELETE("/:id", userHandler.Delete)

	return r
}

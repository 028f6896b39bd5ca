package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wildrock/crm-api/internal/handler"
	"github.com/wildrock/crm-api/internal/middleware"
	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/repository"
	"github.com/wildrock/crm-api/internal/service"
	"github.com/wildrock/crm-api/pkg/cache"
	"github.com/wildrock/crm-api/pkg/config"
	"github.com/wildrock/crm-api/pkg/database"
	"github.com/wildrock/crm-api/pkg/logger"
	corsmiddleware "github.com/wildrock/crm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/wildrock/crm-api/pkg/middleware/requestid"
	"github.com/wildrock/crm-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional; the dashboard cache degrades to pass-through.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	documents, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("document storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	contactRepo := repository.NewContactRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	entityRepo := repository.NewEntityRepository(db)
	programRepo := repository.NewProgramRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "wildrock-crm",
		Audience:           []string{"wildrock-crm"},
	})
	contactSvc := service.NewContactService(contactRepo, userRepo, nil, logr)
	bookingSvc := service.NewBookingService(bookingRepo, contactSvc, userRepo, nil, logr)
	membershipSvc := service.NewMembershipService(membershipRepo, nil, nil, userRepo, nil, logr)
	documentSvc := service.NewDocumentService(documentRepo, documents, signer, nil, userRepo, service.DocumentLimits{
		MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
	}, nil, logr)
	entitySvc := service.NewEntityService(entityRepo, userRepo, nil, logr)
	reportSvc := service.NewReportService(programRepo, bookingRepo, userRepo, nil, logr)
	dashboardSvc := service.NewDashboardService(contactRepo, membershipRepo, bookingRepo, programRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)

	authH := handler.NewAuthHandler(authSvc)
	contactH := handler.NewContactHandler(contactSvc)
	bookingH := handler.NewBookingHandler(bookingSvc)
	membershipH := handler.NewMembershipHandler(membershipSvc)
	documentH := handler.NewDocumentHandler(documentSvc)
	entityH := handler.NewEntityHandler(entitySvc)
	reportH := handler.NewReportHandler(reportSvc, metricsSvc)
	dashboardH := handler.NewDashboardHandler(dashboardSvc)
	webhookH := handler.NewWebhookHandler(bookingSvc, metricsSvc, cfg.Webhook.CalSecret, logr)
	metricsH := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsH.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(503, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsH.Prometheus)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authH.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authH.Me)

	// Cal.com pushes here; the shared secret replaces session auth.
	api.POST("/webhooks/cal", webhookH.Cal)

	// Signed token downloads carry their own credential.
	api.GET("/documents/download/:token", documentH.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/contacts", contactH.List)
	protected.POST("/contacts", contactH.Create)
	protected.GET("/contacts/tags", contactH.Tags)
	protected.POST("/contacts/import", contactH.Import)
	protected.GET("/contacts/:id", contactH.Get)
	protected.PUT("/contacts/:id", contactH.Update)
	protected.DELETE("/contacts/:id", contactH.Delete)
	protected.POST("/contacts/:id/waiver", documentH.SignWaiver)

	protected.GET("/bookings", bookingH.List)
	protected.GET("/bookings/:id", bookingH.Get)
	protected.PUT("/bookings/:id/annotation", reportH.UpdateAnnotation)

	protected.GET("/memberships", membershipH.List)
	protected.POST("/memberships", membershipH.Create)
	protected.POST("/memberships/export", membershipH.Export)
	protected.GET("/memberships/:id", membershipH.Get)
	protected.PUT("/memberships/:id", membershipH.Update)
	protected.DELETE("/memberships/:id", membershipH.Delete)

	protected.GET("/documents", documentH.List)
	protected.POST("/documents", documentH.Upload)
	protected.GET("/documents/:id/link", documentH.DownloadLink)
	protected.DELETE("/documents/:id", documentH.Delete)

	protected.GET("/entities", entityH.List)
	protected.POST("/entities", entityH.Create)
	protected.GET("/entities/:id", entityH.Get)
	protected.PUT("/entities/:id", entityH.Update)
	protected.DELETE("/entities/:id", entityH.Delete)
	protected.GET("/entities/:id/members", entityH.Members)
	protected.POST("/entities/:id/members", entityH.AddMember)
	protected.DELETE("/entities/:id/members/:memberId", entityH.RemoveMember)
	protected.GET("/relationship-types", entityH.RelationshipTypes)
	protected.POST("/relationship-types", middleware.RequireRoles(models.RoleAdmin), entityH.CreateRelationshipType)

	protected.GET("/program-types", reportH.ProgramTypes)
	protected.GET("/program-types/:id", reportH.ProgramType)
	protected.GET("/reports", reportH.Render)
	protected.POST("/report-entries", reportH.CreateEntry)
	protected.PUT("/report-entries/:id", reportH.UpdateEntry)
	protected.DELETE("/report-entries/:id", reportH.DeleteEntry)

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard", dashboardH.Summary)
	}
	protected.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), metricsH.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

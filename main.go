package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"recessims/server/internal/api"
	"recessims/server/internal/config"
	"recessims/server/internal/database"
	"recessims/server/internal/models"
	"recessims/server/internal/services"
	"recessims/server/internal/utils"
)

func main() {
	// Загружаем переменные окружения из .env файла (если существует)
	// Игнорируем ошибку, если файл не найден (для production окружений)
	if err := godotenv.Load(); err != nil {
		log.Printf("ℹ️ .env файл не найден, используем переменные окружения системы")
	} else {
		log.Printf("✅ Переменные окружения загружены из .env файла")
	}

	cfg := config.Load()

	// Логируем наличие DATABASE_URL (без пароля)
	if cfg.DatabaseURL != "" {
		safeURL := cfg.DatabaseURL
		if idx := strings.Index(safeURL, "@"); idx > 0 {
			if schemeIdx := strings.Index(safeURL, "://"); schemeIdx > 0 {
				safeURL = safeURL[:schemeIdx+3] + "***@" + safeURL[idx+1:]
			}
		}
		log.Printf("📋 DATABASE_URL установлен: %s", safeURL)
	}

	// Подключение к PostgreSQL
	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ PostgreSQL connection failed: %v", err)
	}
	defer database.ClosePostgres(db)

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// Подключение к Redis (с поддержкой Sentinel).
	// Redis опционален: без него сводки считаются напрямую из БД
	redisClient, err := database.ConnectRedis(
		cfg.RedisURL,
		cfg.RedisSentinelAddrs,
		cfg.RedisMasterName,
	)
	var redisUtil *utils.RedisClient
	if err != nil {
		log.Printf("⚠️ Redis connection failed: %v (continuing without Redis)", err)
		redisClient = nil
	} else {
		redisUtil = utils.NewRedisClient(redisClient)
	}
	defer database.CloseRedis(redisClient)

	// Kafka publisher (nil, если брокеры не настроены)
	events := services.NewEventPublisher(
		cfg.KafkaBrokers,
		cfg.KafkaTopic,
		cfg.KafkaUsername,
		cfg.KafkaPassword,
		cfg.KafkaCACert,
	)
	if events != nil {
		defer events.Close()
		log.Printf("📡 Kafka publisher enabled: %s -> %s", cfg.KafkaBrokers, cfg.KafkaTopic)
	} else {
		log.Println("⚠️ KAFKA_BROKERS не установлен, события документов не публикуются")
	}

	// Сервисы
	sequenceService := services.NewSequenceService(db)
	orderService := services.NewPurchaseOrderService(db, sequenceService, events)
	settlementService := services.NewSettlementService(db, sequenceService, redisUtil, events)
	orgService := services.NewOrganizationService(db)
	vendorService := services.NewVendorService(db)
	projectService := services.NewProjectService(db, sequenceService)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Health check endpoint (должен быть до CORS для Railway)
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "RECESS IMS Server",
			"version": "1.0.0",
		})
	}
	r.GET("/health", healthHandler)
	r.GET("/api/v1/health", healthHandler)

	// Логирование всех запросов
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		log.Printf("🌐 %s %s - Status: %d - Latency: %v", method, path, status, latency)
	})

	r.Use(api.CORSMiddleware())

	// Контроллеры
	accessTTL := time.Duration(cfg.AccessTokenTTLMin) * time.Minute
	refreshTTL := time.Duration(cfg.RefreshTokenTTLDay) * 24 * time.Hour
	authController := api.NewAuthController(db, cfg.JWTSecret, accessTTL, refreshTTL)
	orderController := api.NewPurchaseOrderController(orderService)
	settlementController := api.NewSettlementController(settlementService)
	orgController := api.NewOrganizationController(orgService)
	vendorController := api.NewVendorController(vendorService)
	projectController := api.NewProjectController(projectService)

	apiGroup := r.Group("/api/v1")

	// Публичные маршруты авторизации
	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/register", authController.Register)
		authGroup.POST("/login", authController.Login)
	}

	// Защищенные маршруты: все остальное требует Bearer токен
	protected := apiGroup.Group("")
	protected.Use(api.AuthRequired(db, cfg.JWTSecret))
	{
		protected.GET("/auth/me", authController.Me)
		protected.POST("/auth/logout", authController.Logout)

		orgGroup := protected.Group("/organizations")
		{
			orgGroup.GET("", orgController.GetOrganizations)
			orgGroup.GET("/:id", orgController.GetOrganization)
			orgGroup.POST("", orgController.CreateOrganization)
			orgGroup.PUT("/:id", orgController.UpdateOrganization)
		}

		vendorGroup := protected.Group("/vendors")
		{
			vendorGroup.GET("", vendorController.GetVendors)
			vendorGroup.GET("/:id", vendorController.GetVendor)
			vendorGroup.POST("", vendorController.CreateVendor)
			vendorGroup.PUT("/:id", vendorController.UpdateVendor)
		}

		projectGroup := protected.Group("/projects")
		{
			projectGroup.GET("", projectController.GetProjects)
			projectGroup.GET("/:id", projectController.GetProject)
			projectGroup.POST("", projectController.CreateProject)
			projectGroup.PUT("/:id", projectController.UpdateProject)
			projectGroup.GET("/:id/episodes", projectController.GetEpisodes)
			projectGroup.POST("/:id/episodes", projectController.CreateEpisode)
		}

		episodeGroup := protected.Group("/episodes")
		{
			episodeGroup.GET("/:id/cuts", projectController.GetCuts)
			episodeGroup.POST("/:id/cuts", projectController.CreateCut)
		}

		orderGroup := protected.Group("/purchase-orders")
		{
			orderGroup.GET("", orderController.GetPurchaseOrders)
			orderGroup.GET("/:id", orderController.GetPurchaseOrder)
			orderGroup.POST("", orderController.CreatePurchaseOrder)
			orderGroup.PUT("/:id", orderController.UpdatePurchaseOrder)
			orderGroup.POST("/:id/approve", orderController.ApprovePurchaseOrder)
			orderGroup.POST("/:id/start", orderController.StartPurchaseOrder)
			orderGroup.POST("/:id/cancel", orderController.CancelPurchaseOrder)
			orderGroup.POST("/calculate", orderController.CalculatePurchaseOrder)
		}

		settlementGroup := protected.Group("/settlements")
		{
			// summary и export раньше :id, иначе gin сочтет их параметром
			settlementGroup.GET("/summary", settlementController.GetSummary)
			settlementGroup.GET("/export", settlementController.ExportSettlements)
			settlementGroup.GET("", settlementController.GetSettlements)
			settlementGroup.GET("/:id", settlementController.GetSettlement)
			settlementGroup.POST("", settlementController.CreateSettlement)
			settlementGroup.PUT("/:id", settlementController.UpdateSettlement)
			settlementGroup.POST("/:id/complete", settlementController.CompleteSettlement)
			settlementGroup.POST("/:id/dispute", settlementController.DisputeSettlement)
		}
	}

	// WebSocket для дашбордов production desk
	r.GET("/ws/dashboard", api.ServeDashboardWS)
	go api.DashboardHub.Run()

	port := cfg.ServerPort
	log.Printf("🚀 Server starting on port %s", port)
	if err := r.Run("0.0.0.0:" + port); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}

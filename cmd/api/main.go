package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/luminahost/backend/internal/config"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/handlers"
	"github.com/luminahost/backend/internal/logger"
	"github.com/luminahost/backend/internal/middleware"
	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/panel"
	"github.com/luminahost/backend/internal/services"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	defer logger.Sync()

	// Run migrations
	if err := models.AutoMigrate(database.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed admin user and default plans if the tables are empty
	seedAdminUser()
	seedDefaultPlans()

	// Panel client and core services
	panelClient := panel.NewClient(cfg.PanelURL, cfg.PanelKey)

	emailService := services.NewEmailService(cfg)
	outbox := services.NewOutbox(emailService)
	outbox.Start()

	ledger := services.NewLedger(database.DB)
	provisionService := services.NewProvisionService(database.DB, panelClient, outbox)
	tariffService := services.NewTariffService(database.DB, panelClient, ledger)
	paymentService := services.NewPaymentService(database.DB, ledger, cfg.PaymentSecret)

	// Background jobs
	expiryService := services.NewExpiryService(database.DB, panelClient, tariffService, outbox)
	expiryService.Start()

	backupService := services.NewBackupService(cfg)
	backupService.Start()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "LuminaHost API v1.0",
		ServerHeader: "LuminaHost",
		BodyLimit:    10 * 1024 * 1024, // 10MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "luminahost-api",
		})
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg, outbox)
	twoFAHandler := handlers.NewTwoFAHandler()
	oauthHandler := handlers.NewOAuthHandler(cfg)
	planHandler := handlers.NewPlanHandler()
	serverHandler := handlers.NewServerHandler(panelClient, provisionService, tariffService, ledger)
	ticketHandler := handlers.NewTicketHandler()
	reviewHandler := handlers.NewReviewHandler()
	userHandler := handlers.NewUserHandler(ledger)
	transactionHandler := handlers.NewTransactionHandler(ledger)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	statusHandler := handlers.NewStatusHandler(panelClient)
	panelAdminHandler := handlers.NewPanelAdminHandler(panelClient)

	// API routes
	api := app.Group("/api")

	// Apply rate limiting to API routes (100 requests per minute)
	api.Use(middleware.RateLimiter(100, 1*time.Minute))

	// Stricter limiter for credential endpoints
	authLimiter := middleware.RateLimiter(10, 15*time.Minute)

	// Public routes
	api.Post("/auth/register", authLimiter, authHandler.Register)
	api.Post("/auth/verify-email", authLimiter, authHandler.VerifyEmail)
	api.Post("/auth/login", authLimiter, authHandler.Login)
	api.Post("/auth/login/2fa", authLimiter, authHandler.Login2FA)
	api.Post("/auth/forgot-password", authLimiter, authHandler.ForgotPassword)
	api.Post("/auth/reset-password", authLimiter, authHandler.ResetPassword)
	api.Get("/auth/discord", oauthHandler.DiscordRedirect)
	api.Get("/auth/discord/callback", oauthHandler.DiscordCallback)

	api.Get("/plans", planHandler.List)
	api.Get("/reviews", reviewHandler.List)
	api.Get("/status", statusHandler.Get)
	api.Post("/payments/callback", paymentHandler.Callback)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(cfg))

	// Auth routes
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/auth/me", authHandler.Me)
	protected.Put("/auth/profile", authHandler.UpdateProfile)
	protected.Put("/auth/password", authHandler.ChangePassword)

	// 2FA routes
	protected.Post("/auth/2fa/setup", twoFAHandler.Setup)
	protected.Post("/auth/2fa/verify", twoFAHandler.Verify)
	protected.Post("/auth/2fa/disable", twoFAHandler.Disable)

	// Server routes
	protected.Get("/servers", serverHandler.List)
	protected.Post("/servers", serverHandler.Order)
	protected.Get("/servers/:id", serverHandler.Get)
	protected.Delete("/servers/:id", serverHandler.Delete)
	protected.Post("/servers/:id/renew", serverHandler.Renew)
	protected.Post("/servers/:id/change-tariff", serverHandler.ChangeTariff)
	protected.Put("/servers/:id/auto-renew", serverHandler.SetAutoRenew)

	// Ticket routes
	protected.Get("/tickets", ticketHandler.List)
	protected.Post("/tickets", ticketHandler.Create)
	protected.Get("/tickets/:id", ticketHandler.Get)
	protected.Post("/tickets/:id/reply", ticketHandler.Reply)
	protected.Post("/tickets/:id/close", ticketHandler.Close)

	// Review routes
	protected.Post("/reviews", reviewHandler.Create)
	protected.Get("/reviews/mine", reviewHandler.ListOwn)
	protected.Delete("/reviews/mine", reviewHandler.DeleteOwn)

	// Billing routes
	protected.Get("/transactions", transactionHandler.List)
	protected.Post("/topup", transactionHandler.Topup)

	// Staff routes
	staff := protected.Group("/admin", middleware.StaffOnly())
	staff.Get("/users", userHandler.AdminList)
	staff.Get("/servers", serverHandler.AdminList)
	staff.Get("/tickets", ticketHandler.AdminList)
	staff.Get("/transactions", transactionHandler.AdminList)
	staff.Get("/reviews", reviewHandler.AdminList)

	// Admin-only routes
	admin := protected.Group("/admin", middleware.AdminOnly())
	admin.Put("/users/:id", userHandler.AdminUpdate)
	admin.Delete("/users/:id", userHandler.AdminDelete)
	admin.Put("/servers/:id", serverHandler.AdminUpdate)
	admin.Delete("/tickets/all", ticketHandler.AdminDeleteAll)
	admin.Delete("/tickets/:id", ticketHandler.AdminDelete)
	admin.Delete("/reviews/:id", reviewHandler.AdminDelete)
	admin.Post("/plans", planHandler.Create)
	admin.Put("/plans/:id", planHandler.Update)
	admin.Delete("/plans/:id", planHandler.Delete)

	// Panel proxy (admin)
	admin.Get("/panel/servers", panelAdminHandler.ListServers)
	admin.Get("/panel/users", panelAdminHandler.ListUsers)
	admin.Post("/panel/servers/:id/suspend", panelAdminHandler.Suspend)
	admin.Post("/panel/servers/:id/unsuspend", panelAdminHandler.Unsuspend)
	admin.Delete("/panel/servers/:id", panelAdminHandler.Delete)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		expiryService.Stop()
		backupService.Stop()
		outbox.Stop()
		app.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting LuminaHost API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func seedAdminUser() {
	var count int64
	database.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)

	if count == 0 {
		log.Println("Creating default admin user...")

		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)

		admin := models.User{
			Username: "admin",
			Password: string(hashedPassword),
			Email:    "admin@luminahost.local",
			Role:     models.RoleAdmin,
			Verified: true,
		}

		if err := database.DB.Create(&admin).Error; err != nil {
			log.Printf("Failed to create admin user: %v", err)
		} else {
			log.Println("Admin user created successfully (username: admin, password: admin123)")
		}
	}
}

func seedDefaultPlans() {
	var count int64
	database.DB.Model(&models.Plan{}).Count(&count)
	if count > 0 {
		return
	}

	log.Println("Seeding default plans...")

	plans := []models.Plan{
		{Name: "Starter", Tier: "starter", Price: 100, RAM: 2048, Cores: 1, Disk: 10240, Icon: "fa-seedling", Description: "Small survival worlds and testing", SortOrder: 1},
		{Name: "Standard", Tier: "standard", Price: 160, RAM: 4096, Cores: 2, Disk: 20480, Popular: true, Icon: "fa-cube", Description: "Most popular choice for communities", SortOrder: 2},
		{Name: "Premium", Tier: "premium", Price: 300, RAM: 8192, Cores: 4, Disk: 40960, Icon: "fa-rocket", Description: "Modpacks and large player counts", SortOrder: 3},
	}
	for i := range plans {
		database.DB.Create(&plans[i])
	}
}

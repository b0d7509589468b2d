package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/minhhoang-dev/estate_crm_be/internal/config"
	"github.com/minhhoang-dev/estate_crm_be/internal/db"
	"github.com/minhhoang-dev/estate_crm_be/internal/handlers"
	"github.com/minhhoang-dev/estate_crm_be/internal/middleware"
	"github.com/minhhoang-dev/estate_crm_be/internal/models"
	"github.com/minhhoang-dev/estate_crm_be/internal/realtime"
	"github.com/minhhoang-dev/estate_crm_be/internal/services/booking"
	"github.com/minhhoang-dev/estate_crm_be/internal/services/chat"
	"github.com/minhhoang-dev/estate_crm_be/internal/services/notify"
	"github.com/minhhoang-dev/estate_crm_be/internal/tasks"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	hub := realtime.NewHub()
	go hub.Run()

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.Project{},
		&models.Property{},
		&models.Booking{},
		&models.Transaction{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.Task{},
		&models.Event{},
		&models.Notification{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatal(err)
	}

	notifier := notify.NewService(gdb, rdb)
	bookingSvc := booking.NewService(gdb)
	chatSvc := chat.NewService(gdb)

	taskClient := tasks.NewClient(rdb)
	defer taskClient.Close()

	processor := tasks.NewTaskProcessor(gdb, notifier)
	asynqSrv := tasks.SetupServer(rdb, processor)
	go func() {
		if err := asynqSrv.Run(tasks.NewMux(processor)); err != nil {
			log.Fatal("asynq server:", err)
		}
	}()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}

	customerH := handlers.NewCustomerHandler(gdb)
	propertyH := handlers.NewPropertyHandler(gdb)
	bookingH := handlers.NewBookingHandler(bookingSvc, notifier, taskClient)
	chatH := handlers.NewChatHandler(chatSvc, hub, notifier)
	taskH := handlers.NewTaskHandler(gdb, taskClient)
	notificationH := handlers.NewNotificationHandler(notifier)
	reportH := handlers.NewReportHandler(gdb)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)

	// protected (JWT)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", func(c *fiber.Ctx) error {
		uid := c.Locals("userId")

		var user models.User
		if err := gdb.First(&user, "id = ?", uid).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
		})
	})

	// customers
	protected.Post("/customers", customerH.Create)
	protected.Get("/customers", customerH.List)
	protected.Get("/customers/:id", customerH.Get)
	protected.Patch("/customers/:id", customerH.Update)
	protected.Delete("/customers/:id", middleware.RequireRoles("admin", "manager"), customerH.Delete)

	// inventory
	protected.Post("/projects", middleware.RequireRoles("admin", "manager"), propertyH.CreateProject)
	protected.Get("/projects", propertyH.ListProjects)
	protected.Post("/properties", middleware.RequireRoles("admin", "manager"), propertyH.Create)
	protected.Get("/properties", propertyH.List)
	protected.Get("/properties/:id", propertyH.Get)
	protected.Patch("/properties/:id", middleware.RequireRoles("admin", "manager"), propertyH.Update)
	protected.Patch("/properties/:id/status", middleware.RequireCapability("property.correct"), propertyH.CorrectStatus)

	// bookings
	protected.Post("/bookings", bookingH.Create)
	protected.Get("/bookings", bookingH.List)
	protected.Get("/bookings/:id", bookingH.Get)
	protected.Patch("/bookings/:id", bookingH.Update)
	protected.Post("/bookings/:id/approve", middleware.RequireCapability("booking.approve"), bookingH.Approve)
	protected.Patch("/bookings/:id/status", middleware.RequireCapability("booking.approve"), bookingH.UpdateStatus)
	protected.Post("/bookings/:id/cancel", bookingH.Cancel)
	protected.Post("/bookings/:id/deposit", bookingH.AddDeposit)
	protected.Post("/bookings/:id/payment", bookingH.AddPayment)
	protected.Get("/bookings/:id/transactions", bookingH.Transactions)
	protected.Delete("/bookings/:id", middleware.RequireCapability("booking.delete"), bookingH.Delete)

	// chat
	chatGroup := protected.Group("/chat")
	chatGroup.Post("/conversations", chatH.CreateOrGetConversation)
	chatGroup.Get("/conversations", chatH.GetConversations)
	chatGroup.Get("/conversations/:id/messages", chatH.GetMessages)
	chatGroup.Post("/conversations/:id/messages", chatH.SendMessage)
	chatGroup.Patch("/conversations/:id/read", chatH.MarkAsRead)
	chatGroup.Get("/unread", chatH.GetUnreadTotal)

	// tasks & events
	protected.Post("/tasks", taskH.Create)
	protected.Get("/tasks", taskH.List)
	protected.Patch("/tasks/:id/done", taskH.Complete)
	protected.Post("/events", taskH.CreateEvent)
	protected.Get("/events", taskH.ListEvents)

	// notifications
	protected.Get("/notifications", notificationH.List)
	protected.Patch("/notifications/read", notificationH.MarkRead)

	// reports
	protected.Get("/reports/dashboard", middleware.RequireCapability("report.view"), reportH.Dashboard)
	protected.Get("/reports/revenue/monthly", middleware.RequireCapability("report.view"), reportH.MonthlyRevenue)
	protected.Get("/reports/activity", middleware.RequireCapability("activity.view"), reportH.Activity)

	// WebSocket endpoint (auth via query param)
	app.Get("/ws/chat", websocket.New(chatH.WebSocketHandler))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}

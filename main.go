package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/hilla1/server/handlers/auth"
	"github.com/hilla1/server/handlers/consultations"
	"github.com/hilla1/server/handlers/exchange"
	"github.com/hilla1/server/handlers/files"
	"github.com/hilla1/server/handlers/payments"
	"github.com/hilla1/server/handlers/projects"
	"github.com/hilla1/server/handlers/users"
	"github.com/hilla1/server/models"
	"github.com/hilla1/server/mpesa"
	"github.com/hilla1/server/notify"
	"github.com/hilla1/server/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env file:", err)
	}
}

func allowedOrigins() []string {
	if origin := os.Getenv("CLIENT_URL"); origin != "" {
		return []string{origin, "http://localhost:5173"}
	}
	return []string{"https://techwithbrands.com", "http://localhost:5173"}
}

func main() {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	utils.ConnectDatabase()

	utils.DB.AutoMigrate(&models.User{})
	utils.DB.AutoMigrate(&models.Consultation{})
	utils.DB.AutoMigrate(&models.RescheduleEntry{})
	utils.DB.AutoMigrate(&models.Project{})
	utils.DB.AutoMigrate(&models.ProjectPhase{})
	utils.DB.AutoMigrate(&models.ProjectFile{})
	utils.DB.AutoMigrate(&models.ProjectMember{})
	utils.DB.AutoMigrate(&models.MpesaTransaction{})

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	store := payments.NewTransactionStore(utils.DB, logger)
	hub := notify.NewHub()
	mpesaHandler := payments.NewMpesaHandler(store, mpesa.NewClient(), hub, logger)
	paypalHandler := payments.NewPayPalHandler()

	auth.RegisterAuthRoutes(r)
	exchange.RegisterExchangeRoutes(r)
	payments.RegisterPaymentRoutes(r, mpesaHandler, paypalHandler, hub)

	protected := r.Group("/")
	protected.Use(auth.AuthMiddleware())
	{
		users.RegisterUserRoutes(protected)
		files.RegisterFileRoutes(protected)
		projects.RegisterProjectRoutes(protected)
	}

	consultations.RegisterConsultationRoutes(r, protected)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

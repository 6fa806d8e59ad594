package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/track-room-system/internal/auth"
	"github.com/track-room-system/internal/broadcast"
	"github.com/track-room-system/internal/room"
	"github.com/track-room-system/internal/track"
	"github.com/track-room-system/internal/wire"
	"github.com/track-room-system/internal/youtube"
	"github.com/track-room-system/pkg/database"
	"github.com/track-room-system/pkg/events"
	"github.com/track-room-system/pkg/redis"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found")
	}

	// Set Gin mode based on environment
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize MySQL store
	store, err := database.NewMySQLStore(
		os.Getenv("MYSQL_HOST"),
		os.Getenv("MYSQL_PORT"),
		os.Getenv("MYSQL_USER"),
		os.Getenv("MYSQL_PASSWORD"),
		os.Getenv("MYSQL_DATABASE"),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Room cache is optional; skip it when Redis is not configured.
	var roomCache *redis.RoomCache
	if host := os.Getenv("REDIS_HOST"); host != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     host + ":" + os.Getenv("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		})
		roomCache = redis.NewRoomCache(redisClient)
	}

	// Audit event publisher is optional as well.
	var publisher *events.Publisher
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher = events.NewPublisher(strings.Split(brokers, ","), "room-events")
		defer publisher.Close()
	}

	tokens := auth.NewTokenIssuer(os.Getenv("JWT_SECRET"))
	ytClient := youtube.NewClient(os.Getenv("YOUTUBE_API_KEY"))

	hub := broadcast.NewRegistry()
	defer hub.Close()

	roomService := room.NewService(store, roomCache, publisher, tokens)
	trackService := track.NewService(store, hub, publisher, ytClient)

	roomHandler := room.NewHandler(roomService)
	trackHandler := track.NewHandler(trackService)

	// Initialize Gin router
	router := gin.Default()

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", wire.HeaderXAccept, "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// API routes
	v1 := router.Group("/api/v1")

	// Public routes: room creation and joining issue the session token.
	roomHandler.RegisterPublicRoutes(v1)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(auth.Middleware(tokens))
	{
		roomHandler.RegisterRoutes(protected)
		trackHandler.RegisterRoutes(protected)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arena-platform/backend/internal/betting"
	"arena-platform/backend/internal/db"
	"arena-platform/backend/internal/locks"
	"arena-platform/backend/internal/middleware"
	"arena-platform/backend/internal/models"
	"arena-platform/backend/internal/narrative"
	"arena-platform/backend/internal/redis"
	"arena-platform/backend/internal/scheduler"
	"arena-platform/backend/internal/state"
	"arena-platform/backend/internal/tournament"

	"github.com/gin-gonic/gin"
)

func main() {
	config := LoadConfig()

	database, err := db.New(config.DBConfig)
	if err != nil {
		log.Fatal("Database connection failed:", err)
	}

	redisClient, err := redis.New(config.RedisConfig)
	if err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	defer redisClient.Close()

	states := state.New(database.DB)
	bets := betting.New(database.DB)
	events := narrative.New(database.DB)
	engine := tournament.New(database.DB, states, bets, events)
	mutex := locks.NewWithClient(redisClient.Client)

	driver := scheduler.New(database.DB, mutex, engine, config.TickInterval)
	if err := driver.Start(); err != nil {
		log.Fatal("Scheduler start failed:", err)
	}

	statusServer := startStatusServer(config, database, redisClient)

	// Block until asked to stop, then drain the running tick.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down scheduler...")

	if err := driver.Stop(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := statusServer.Shutdown(ctx); err != nil {
		log.Printf("Status server shutdown error: %v", err)
	}
	log.Println("Scheduler stopped")
}

// startStatusServer exposes the daemon's operational surface: liveness and a
// read-only view of the sessions the driver is advancing.
func startStatusServer(config Config, database *db.DB, redisClient *redis.Client) *http.Server {
	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig)
	router.Use(limiter.Handler())

	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := redisClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/api/sessions", func(c *gin.Context) {
		var sessions []models.GameSession
		if err := database.Where("active = ?", true).Find(&sessions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		c.JSON(http.StatusOK, sessions)
	})

	server := &http.Server{
		Addr:    ":" + config.StatusPort,
		Handler: router,
	}
	go func() {
		log.Printf("Status server listening on port %s", config.StatusPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Status server error: %v", err)
		}
	}()
	return server
}

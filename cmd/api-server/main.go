package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"taskhub/database"
	"taskhub/internal/config"
	"taskhub/internal/microservices/http-api/handler"
	"taskhub/internal/microservices/http-api/middleware"
	"taskhub/internal/microservices/http-api/repository"
	"taskhub/internal/microservices/http-api/service"
	"taskhub/internal/microservices/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// api-server issue-token <user-id> [username] prints a bearer token for local use
	if len(os.Args) > 1 && os.Args[1] == "issue-token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if err := run(cfg, logger); err != nil {
		logger.Error("server_error", "error", err)
		os.Exit(1)
	}
}

func issueToken(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: api-server issue-token <user-id> [username]")
	}
	username := ""
	if len(args) > 1 {
		username = args[1]
	}
	token, err := service.NewAuthService(cfg.JWTSecret).IssueToken(args[0], username, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// Repositories
	notificationRepo := repository.NewNotificationRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	// Services
	authService := service.NewAuthService(cfg.JWTSecret)
	notificationService := service.NewNotificationService(notificationRepo, taskRepo, userRepo, logger)

	// Live channel
	registry := websocket.NewRegistry(logger)
	dispatcher := websocket.NewDispatcher(registry, notificationService, logger)
	if cfg.RelayEnabled() {
		redisClient, err := websocket.NewRedisClient(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return err
		}
		relay := websocket.NewRedisRelay(redisClient, cfg.RelayChannel, logger)
		defer relay.Close()
		dispatcher.UseRelay(relay)
		go func() {
			if err := relay.Run(ctx, dispatcher.DeliverLocal); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("relay_stopped", "error", err)
			}
		}()
		logger.Info("relay_enabled", "channel", cfg.RelayChannel)
	}

	fanoutService := service.NewFanoutService(notificationService, taskRepo, userRepo, dispatcher, cfg.FanoutWorkers, cfg.StoreTimeout, logger)
	commentService := service.NewCommentService(commentRepo, taskRepo, fanoutService, logger)

	// Handlers
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)
	commentHandler := handler.NewCommentHandler(commentService, logger)
	wsHandler := websocket.NewWSHandler(authService, dispatcher, cfg.WSAllowQueryIdentity, cfg.StoreTimeout, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": registry.Count(),
		})
	})

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(authService))
	notificationHandler.RegisterRoutes(api)
	commentHandler.RegisterRoutes(api)
	wsHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http_server_listening", "addr", srv.Addr, "env", cfg.GoEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown
	registry.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server_stopped_gracefully")
	return nil
}

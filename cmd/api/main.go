package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mermaid-studio/engine/internal/access"
	"github.com/mermaid-studio/engine/internal/api"
	"github.com/mermaid-studio/engine/internal/api/handlers"
	"github.com/mermaid-studio/engine/internal/realtime"
	"github.com/mermaid-studio/engine/internal/repository"
	"github.com/mermaid-studio/engine/internal/services"
	"github.com/mermaid-studio/engine/pkg/config"
	"github.com/mermaid-studio/engine/pkg/database"
	"github.com/mermaid-studio/engine/pkg/logger"

	_ "github.com/mermaid-studio/engine/docs"
)

// @title           Mermaid Studio API
// @version         1.0
// @description     Store, share, search and export Mermaid diagrams.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting mermaid studio api",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("notify_mode", cfg.NotifyMode),
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, log, cfg.IsDevelopment())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	log.Info("database connected")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Diagrams stay usable without Redis; only live events degrade.
		log.Warn("redis unreachable at startup", zap.Error(err))
	}

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		if !cfg.IsDevelopment() {
			log.Fatal("JWT_SECRET must be set outside development")
		}
		log.Warn("JWT_SECRET not set, using development default")
		jwtSecret = []byte("change-me-in-production-please")
	}

	notifier, closeNotifier := newNotifier(cfg, rdb)
	defer closeNotifier()

	userRepo := repository.NewUserRepository(db)
	diagramRepo := repository.NewDiagramRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	checker := access.DefaultChecker{}

	authSvc := services.NewAuthService(userRepo, jwtSecret, cfg.BootstrapAdminMail)
	diagramSvc := services.NewDiagramService(diagramRepo, categoryRepo, tagRepo, checker, notifier)
	sharingSvc := services.NewSharingService(diagramRepo, checker, notifier)
	labelSvc := services.NewLabelService(categoryRepo, tagRepo)

	router := api.NewRouter(api.Dependencies{
		Tokens:          authSvc,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		AuthHandler:     handlers.NewAuthHandler(authSvc),
		DiagramsHandler: handlers.NewDiagramsHandler(diagramSvc),
		SharingHandler:  handlers.NewSharingHandler(sharingSvc),
		LabelsHandler:   handlers.NewLabelsHandler(labelSvc),
		StreamHandler:   handlers.NewStreamHandler(diagramSvc, realtime.NewSubscriber(rdb)),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Probe{
			"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Event streams are long lived; handlers bound their own work.
		WriteTimeout: 0,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
	closeDB(db)
}

// newNotifier picks the change-event delivery path. The returned func drains
// in-flight deliveries and releases any client it opened.
func newNotifier(cfg *config.Config, rdb *redis.Client) (realtime.Notifier, func()) {
	switch cfg.NotifyMode {
	case "queue":
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		n := realtime.NewQueueNotifier(client, cfg.NotifyTimeout)
		return n, func() {
			n.Wait()
			_ = client.Close()
		}
	case "off":
		return realtime.NopNotifier{}, func() {}
	default:
		n := realtime.NewPublishNotifier(realtime.NewRedisPublisher(rdb), cfg.NotifyTimeout)
		return n, n.Wait
	}
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.L().Warn("database close error", zap.Error(err))
	}
}

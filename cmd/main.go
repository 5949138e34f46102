package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/suteetoe/procurement-service/internal/catalog"
	"github.com/suteetoe/procurement-service/internal/handler"
	"github.com/suteetoe/procurement-service/internal/ledger"
	mid "github.com/suteetoe/procurement-service/internal/middleware"
	"github.com/suteetoe/procurement-service/internal/notifier"
	"github.com/suteetoe/procurement-service/internal/rfq"
	"github.com/suteetoe/procurement-service/internal/tools"
	"github.com/suteetoe/procurement-service/pkg/config"
	"github.com/suteetoe/procurement-service/pkg/database"
	"github.com/suteetoe/procurement-service/pkg/jwtutil"
	"github.com/suteetoe/procurement-service/pkg/logger"
	"github.com/suteetoe/procurement-service/prometheus"
)

func main() {
	// Load configuration
	appConfig, err := config.Load("procurement-service")
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting procurement-service", appConfig.LogConfig()...)

	metrics := prometheus.NewMetrics(appConfig.Metrics.Prefix, promclient.DefaultRegisterer)
	log.Info("Prometheus metrics initialized", zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	db, err := database.Open(&appConfig.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connection established", zap.String("driver", appConfig.DB.Driver))

	n, err := newNotifier(appConfig, metrics, log)
	if err != nil {
		log.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	store := catalog.NewStore(db, metrics)
	workflow := rfq.New(db, store, n, metrics)
	svc := tools.NewService(store, ledger.New(db, metrics), workflow)
	registry := tools.NewRegistry(svc, metrics)

	jwtUtil := jwtutil.NewJWTUtil(&appConfig.JWT)
	if appConfig.Server.Env == "development" {
		if token, err := jwtUtil.GenerateToken("dev@localhost", 0, "buyer"); err == nil {
			log.Info("Development bearer token", zap.String("token", token))
		}
	}
	auth := mid.JWTAuthMiddleware(jwtUtil, metrics)

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = mid.NewValidator()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware(metrics))

	// Routes
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	handler.New(svc, registry, store).Register(e.Group("/api", auth))

	if appConfig.MCP.Enabled {
		server := registry.MCPServer(appConfig.MCP)
		mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
		e.Any("/mcp", echo.WrapHandler(mcpHandler), auth)
		log.Info("MCP endpoint enabled", zap.String("name", appConfig.MCP.Name), zap.Int("tools", len(registry.List())))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}

func newNotifier(cfg *config.Config, metrics *prometheus.Metrics, log *zap.Logger) (*notifier.Notifier, error) {
	var (
		renderer *notifier.Renderer
		err      error
	)
	if cfg.Notify.TemplateDir != "" {
		renderer, err = notifier.NewRenderer(os.DirFS(cfg.Notify.TemplateDir))
	} else {
		renderer, err = notifier.DefaultRenderer()
	}
	if err != nil {
		return nil, err
	}

	var sender notifier.Sender = notifier.LogSender{}
	if cfg.SMTP.Host != "" {
		sender, err = notifier.NewSMTPSender(cfg.SMTP, cfg.Notify.FromAddress, cfg.Notify.SendTimeout)
		if err != nil {
			return nil, err
		}
		log.Info("SMTP sender configured", zap.String("host", cfg.SMTP.Host), zap.Int("port", cfg.SMTP.Port))
	} else {
		log.Warn("SMTP_HOST not set, RFQ emails will only be logged")
	}

	return notifier.New(renderer, sender, cfg.Notify, metrics)
}

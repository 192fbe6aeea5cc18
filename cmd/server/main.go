package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"craftcrm/internal/config"
	"craftcrm/internal/database"
	"craftcrm/internal/handlers"
	"craftcrm/internal/middleware"
	"craftcrm/internal/observability"
	"craftcrm/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	loadConfig()
	cfg := config.Load()

	if err := config.InitLogger(cfg); err != nil {
		logrus.Fatalf("Failed to init logger: %v", err)
	}
	logger := logrus.StandardLogger()

	ctx := context.Background()
	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to setup tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warnf("Tracing shutdown: %v", err)
		}
	}()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// services
	engine := services.NewAutomationEngine(db, logger, services.NewLogNotifier(logger), cfg.Automation)
	workspaceSvc := services.NewWorkspaceService(db, logger)
	entitySvc := services.NewEntityService(db, logger)
	automationSvc := services.NewAutomationService(db, logger, engine)
	recordSvc := services.NewRecordService(db, logger)
	recordSvc.SetAutomationEngine(engine)
	hub := services.NewEventsHub(logger)
	recordSvc.SetEventsHub(hub)
	engine.SetEventsHub(hub)
	aiSvc := services.NewAIConfigService(cfg.AI.OpenAI, logger, workspaceSvc, entitySvc, automationSvc)

	h := &handlers.Handlers{
		Workspace:  handlers.NewWorkspaceHandler(workspaceSvc),
		Entity:     handlers.NewEntityHandler(entitySvc),
		Record:     handlers.NewRecordHandler(recordSvc),
		Automation: handlers.NewAutomationHandler(automationSvc),
		AI:         handlers.NewAIHandler(aiSvc),
		Events:     handlers.NewEventsHandler(hub),
		Health:     handlers.NewHealthHandler(db),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Monitoring.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Monitoring.Tracing.ServiceName))
	}
	r.Use(middleware.CORSMiddleware(cfg.Security.CORS))
	r.Use(middleware.RateLimitMiddleware(cfg.Security.RateLimiting))

	handlers.RegisterRoutes(r, db, cfg, h)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Infof("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	logger.Info("Server exited")
}

// loadConfig 读取配置文件与环境变量（CRAFTCRM_ 前缀）。
func loadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/craftcrm")

	viper.SetEnvPrefix("CRAFTCRM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		logrus.Warnf("No config file found, using defaults and environment: %v", err)
	}
}

func setDefaults() {
	def := config.GetDefaultConfig()
	viper.SetDefault("server.host", def.Server.Host)
	viper.SetDefault("server.port", def.Server.Port)
	viper.SetDefault("database.host", def.Database.Host)
	viper.SetDefault("database.port", def.Database.Port)
	viper.SetDefault("database.user", def.Database.User)
	viper.SetDefault("database.password", def.Database.Password)
	viper.SetDefault("database.name", def.Database.Name)
	viper.SetDefault("database.max_open_conns", def.Database.MaxOpenConns)
	viper.SetDefault("database.max_idle_conns", def.Database.MaxIdleConns)
	viper.SetDefault("database.conn_max_lifetime", def.Database.ConnMaxLifetime)
	viper.SetDefault("ai.openai.base_url", def.AI.OpenAI.BaseURL)
	viper.SetDefault("ai.openai.model", def.AI.OpenAI.Model)
	viper.SetDefault("ai.openai.temperature", def.AI.OpenAI.Temperature)
	viper.SetDefault("ai.openai.max_tokens", def.AI.OpenAI.MaxTokens)
	viper.SetDefault("ai.openai.timeout", def.AI.OpenAI.Timeout)
	viper.SetDefault("jwt.secret", def.JWT.Secret)
	viper.SetDefault("jwt.expires_in", def.JWT.ExpiresIn)
	viper.SetDefault("log.level", def.Log.Level)
	viper.SetDefault("log.format", def.Log.Format)
	viper.SetDefault("log.output", def.Log.Output)
	viper.SetDefault("log.file_path", def.Log.FilePath)
	viper.SetDefault("log.max_size", def.Log.MaxSize)
	viper.SetDefault("log.max_age", def.Log.MaxAge)
	viper.SetDefault("log.max_backups", def.Log.MaxBackups)
	viper.SetDefault("log.compress", def.Log.Compress)
	viper.SetDefault("monitoring.enabled", def.Monitoring.Enabled)
	viper.SetDefault("monitoring.metrics_path", def.Monitoring.MetricsPath)
	viper.SetDefault("monitoring.tracing.enabled", def.Monitoring.Tracing.Enabled)
	viper.SetDefault("monitoring.tracing.endpoint", def.Monitoring.Tracing.Endpoint)
	viper.SetDefault("monitoring.tracing.insecure", def.Monitoring.Tracing.Insecure)
	viper.SetDefault("monitoring.tracing.sample_ratio", def.Monitoring.Tracing.SampleRatio)
	viper.SetDefault("monitoring.tracing.service_name", def.Monitoring.Tracing.ServiceName)
	viper.SetDefault("security.cors.enabled", def.Security.CORS.Enabled)
	viper.SetDefault("security.cors.allowed_origins", def.Security.CORS.AllowedOrigins)
	viper.SetDefault("security.cors.allowed_methods", def.Security.CORS.AllowedMethods)
	viper.SetDefault("security.cors.allowed_headers", def.Security.CORS.AllowedHeaders)
	viper.SetDefault("security.rate_limiting.enabled", def.Security.RateLimiting.Enabled)
	viper.SetDefault("security.rate_limiting.requests_per_minute", def.Security.RateLimiting.RequestsPerMinute)
	viper.SetDefault("security.rate_limiting.burst", def.Security.RateLimiting.Burst)
	viper.SetDefault("automation.webhook_timeout", def.Automation.WebhookTimeout)
}

// Package main runs the café registration gateway HTTP server with
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cafe-robusta/backend/config"
	"github.com/cafe-robusta/backend/internal/audit"
	"github.com/cafe-robusta/backend/internal/auth"
	"github.com/cafe-robusta/backend/internal/catalog"
	"github.com/cafe-robusta/backend/internal/middleware"
	"github.com/cafe-robusta/backend/internal/otp"
	"github.com/cafe-robusta/backend/internal/payment"
	"github.com/cafe-robusta/backend/internal/registration"
	"github.com/cafe-robusta/backend/internal/session"
	"github.com/cafe-robusta/backend/pkg/database"
	"github.com/cafe-robusta/backend/pkg/queue"
	"github.com/cafe-robusta/backend/pkg/redis"
	"github.com/cafe-robusta/backend/pkg/response"
	"github.com/cafe-robusta/backend/pkg/restclient"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	sessionTTL := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	tokens := auth.NewTokenService(cfg.Session.JWTSecret, sessionTTL)
	sessions := session.NewStore(rdb.Client, sessionTTL, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	auditRepo := audit.NewRepository(pool)

	// Collaborator clients (content backend, OTP email service, payments).
	rest := restclient.New(cfg.Content.BaseURL, time.Duration(cfg.Content.RequestTimeout)*time.Second)
	catalogClient := catalog.NewClient(rest, logger)
	otpClient := otp.NewClient(rest, logger)
	paymentClient := payment.NewClient(rest, cfg.Razorpay, logger)

	catalogHandler := catalog.NewHandler(catalogClient, logger)
	registrationHandler := registration.NewHandler(
		sessions, tokens, catalogClient, otpClient, paymentClient, jobQueue, auditRepo, logger,
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public catalog reads (proxied to the content backend)
	router.GET("/workshops", catalogHandler.ListWorkshops)
	router.GET("/coffee", catalogHandler.ListCoffee)
	router.GET("/site-media", catalogHandler.SiteMedia)

	// Registration flow start (issues the session token)
	router.POST("/workshops/:id/registrations", registrationHandler.Submit)

	// Flow steps (session token required)
	reg := router.Group("/registrations")
	reg.Use(middleware.Session(tokens))
	{
		reg.GET("/state", registrationHandler.GetState)
		reg.POST("/otp/verify", registrationHandler.VerifyOTP)
		reg.POST("/otp/resend", registrationHandler.ResendOTP)
		reg.POST("/payment/confirm", registrationHandler.ConfirmPayment)
		reg.POST("/payment/dismiss", registrationHandler.DismissCheckout)
		reg.POST("/cancel", registrationHandler.Cancel)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/config"
	"github.com/devedd/neurochat/internal/db"
	"github.com/devedd/neurochat/internal/httpapi"
	"github.com/devedd/neurochat/internal/logger"
	"github.com/devedd/neurochat/internal/store/redisstore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	if cfg.DBAutoMigrate {
		if err := db.Migrate(gdb); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
	}

	rds := redisstore.New(redisstore.Options{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		HMACSecret: cfg.RedisHMACSecret,
	}, log)
	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := rds.Connect(startCtx); err != nil {
		cancel()
		log.Fatal("redis connect", zap.Error(err))
	}
	cancel()
	defer func() { _ = rds.Close() }()

	verifier, err := auth.NewPasswordVerifier(cfg.PasswordScheme)
	if err != nil {
		log.Fatal("password scheme", zap.Error(err))
	}
	authn := auth.NewAuthenticator(gdb, rds, verifier, auth.Options{
		SessionTTL:   cfg.SessionTTL,
		RememberTTL:  cfg.RememberTTL,
		RehydrateTTL: cfg.SessionRehydrateTTL,
	}, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(gdb, rds, authn, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

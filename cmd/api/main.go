package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/commerce"
	"storefront/internal/config"
	"storefront/internal/content"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/logger"
	"storefront/internal/reconcile"
	"storefront/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.Environment, os.Getenv("LOG_LEVEL"))
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	orders, err := cache.New(cache.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		TTL:           cfg.OrderCacheTTL,
	}, log)
	if err != nil {
		log.Fatal("init order cache", zap.Error(err))
	}

	commerceClient := commerce.New(cfg.CommerceAPIURL, cfg.CommerceChannel, cfg.CommerceTimeout, log)
	contentClient := content.New(cfg.ContentAPIURL, cfg.ContentTimeout, log)
	sessions := session.NewManager(session.NewPostgres(dbpool), cfg.SessionTTL)
	reconciler := reconcile.New(orders, log)

	srv, err := httpserver.New(cfg.HTTPAddr, log, dbpool, httpserver.Deps{
		Commerce: func(token string) httpserver.CommerceSession {
			return commerceClient.WithToken(token)
		},
		Sessions:   sessions,
		Orders:     orders,
		Reconciler: reconciler,
		Content:    contentClient,
	}, cfg.AllowedOrigins)
	if err != nil {
		log.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	} else {
		log.Info("server stopped")
	}
}

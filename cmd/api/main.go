package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"servechat/internal/app"
	"servechat/internal/config"
	"servechat/internal/domain"
	apihttp "servechat/internal/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	routerCfg := apihttp.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes(),
	}
	resolve := func(r *http.Request) domain.Identity {
		return a.ResolveIdentity(r.Header)
	}
	status := apihttp.StatusInfo{
		PersistenceEnabled: a.Conversations.Enabled(),
		RunAsUser:          cfg.RunSQLAsUser,
		Catalog:            cfg.Catalog,
		Schema:             cfg.Schema,
		Ping:               a.PingWarehouse,
	}

	chatHandler := apihttp.NewChatHandler(logger, a.Sessions, a.Chat, a.Limiter, routerCfg)
	historyHandler := apihttp.NewHistoryHandler(logger, a.Conversations)
	settingsHandler := apihttp.NewSettingsHandler(logger, a.Chat, status)
	analyticsHandler := apihttp.NewAnalyticsHandler(logger, a.Analytics)
	router := apihttp.NewRouter(logger, routerCfg, resolve, chatHandler, historyHandler, settingsHandler, analyticsHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.Bool("persistence", status.PersistenceEnabled),
		zap.String("default_endpoint", a.Chat.Catalog().Default()),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

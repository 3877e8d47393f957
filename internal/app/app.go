package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"servechat/internal/config"
	"servechat/internal/db"
	"servechat/internal/domain"
	"servechat/internal/identity"
	"servechat/internal/llm"
	"servechat/internal/repository"
	"servechat/internal/service"
)

const startupTimeout = 5 * time.Second

// App reune los servicios compartidos por el API y el chat de terminal.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Warehouse *db.Warehouse
	Namespace db.Namespace
	// SQLUser es el current_user con las credenciales de la app; vacio sin warehouse.
	SQLUser string

	Chat          *service.ChatService
	Conversations *service.ConversationService
	Analytics     *service.AnalyticsService
	Sessions      *service.SessionService
	Limiter       service.ChatRateLimiter

	closers []func()
}

// New arma todas las dependencias. Solo falla por configuracion invalida;
// warehouse, redis o serving caidos degradan el servicio con un warning.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Namespace: db.Namespace{Catalog: cfg.Catalog, Schema: cfg.Schema},
	}

	var (
		convRepo  repository.ConversationRepository
		msgRepo   repository.MessageRepository
		usageRepo repository.UsageRepository
	)
	if cfg.PersistenceEnabled() {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.Warehouse = db.NewWarehouse(pool, cfg.RunSQLAsUser, logger)
		a.initWarehouse(ctx)

		convRepo = repository.NewPgConversationRepository(a.Warehouse, a.Namespace)
		msgRepo = repository.NewPgMessageRepository(a.Warehouse, a.Namespace)
		usageRepo = repository.NewPgUsageRepository(a.Warehouse, a.Namespace)
	} else {
		logger.Warn("persistence disabled, history and analytics unavailable")
	}

	pricing := service.Pricing{PromptPer1K: cfg.PricePromptPer1K, CompletionPer1K: cfg.PriceCompletionPer1K}
	a.Conversations = service.NewConversationService(logger, convRepo, msgRepo, usageRepo, pricing)
	a.Analytics = service.NewAnalyticsService(logger, usageRepo)

	var (
		client llm.ServingClient
		lister llm.EndpointLister
	)
	if cfg.ServingHost != "" && cfg.ServingToken != "" {
		httpClient := llm.NewHTTPClient(cfg.ServingHost, cfg.ServingToken, cfg.ServingTimeout, logger)
		client = llm.NewRetryClient(httpClient, cfg.ServingMaxRetries, cfg.ServingRetryDelay, logger)
		lister = httpClient
	} else {
		logger.Warn("serving workspace not configured, chat disabled")
	}

	catalogFile, err := config.LoadModelCatalog(cfg.ModelCatalogFile)
	if err != nil {
		logger.Warn("model catalog not loaded", zap.String("path", cfg.ModelCatalogFile), zap.Error(err))
	}
	catalog := service.NewEndpointCatalog(cfg.ServingEndpoint, cfg.ServingEndpointsCSV, catalogFile.Models)
	if !catalog.Configured() {
		logger.Warn("no serving endpoint configured")
	}

	a.Chat = service.NewChatService(logger, client, lister, a.Conversations, nil, catalog, service.ChatOptions{
		MaxTurns: cfg.MaxTurns,
		Query:    llm.QueryOptions{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature},
	})

	var store service.StateStore
	redisClient := a.connectRedis(ctx)
	if redisClient != nil {
		store = service.NewRedisStateStore(redisClient)
	}
	if cfg.ChatRateLimit > 0 {
		if redisClient != nil {
			a.Limiter = service.NewRedisChatRateLimiter(redisClient, time.Minute, cfg.ChatRateLimit)
		} else {
			a.Limiter = service.NewMemoryChatRateLimiter(cfg.ChatRateLimit)
		}
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return nil, err
		}
		logger.Warn("session secret not configured, using a random one; tokens will not survive restarts")
	}
	a.Sessions = service.NewSessionService(logger, store, service.NewSessionTokenService(secret, cfg.SessionTTL))

	return a, nil
}

func (a *App) initWarehouse(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	if err := a.Warehouse.Ping(ctx); err != nil {
		a.Logger.Warn("warehouse ping failed", zap.Error(err))
		return
	}
	if user, err := a.Warehouse.CurrentUser(ctx); err != nil {
		a.Logger.Warn("warehouse current_user failed", zap.Error(err))
	} else {
		a.SQLUser = user
	}
	if a.Config.AutoMigrate {
		if err := db.EnsureSchema(ctx, a.Warehouse, a.Namespace); err != nil {
			a.Logger.Warn("ensure schema failed", zap.Error(err))
		} else {
			a.Logger.Info("schema ready", zap.String("schema", a.Namespace.SchemaName()))
		}
	}
}

func (a *App) connectRedis(ctx context.Context) *redis.Client {
	if a.Config.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		a.Logger.Warn("redis ping failed, using in-memory sessions", zap.Error(err))
		_ = client.Close()
		return nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return client
}

// ResolveIdentity resuelve la identidad de un request con el entorno del proceso como fallback.
func (a *App) ResolveIdentity(h http.Header) domain.Identity {
	return identity.Resolve(h, os.LookupEnv, a.SQLUser, a.Config.RunSQLAsUser)
}

// PingWarehouse es nil-safe para /status.
func (a *App) PingWarehouse(ctx context.Context) error {
	return a.Warehouse.Ping(ctx)
}

// Close libera pool y redis en orden inverso.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/cogito/internal/agent"
	"github.com/nidhogg/cogito/internal/api"
	"github.com/nidhogg/cogito/internal/config"
	"github.com/nidhogg/cogito/internal/embedding"
	"github.com/nidhogg/cogito/internal/provider"
	"github.com/nidhogg/cogito/internal/rag"
	"github.com/nidhogg/cogito/internal/service"
	"github.com/nidhogg/cogito/internal/session"
	pgstore "github.com/nidhogg/cogito/internal/store"
	"github.com/nidhogg/cogito/internal/vectorstore"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Cogito...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/cogito.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	ctx := context.Background()

	// Embeddings and vector store
	embedder, err := embedding.New(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		logger.Fatal("failed to build embedding provider", zap.Error(err))
	}

	store, err := vectorstore.New(ctx, vectorstore.Config{
		Backend:    cfg.VectorStore.Backend,
		Collection: cfg.VectorStore.Collection,
		QdrantHost: cfg.Qdrant.Host,
		QdrantPort: cfg.Qdrant.Port,
	}, embedder, logger)
	if err != nil {
		logger.Fatal("failed to build vector store", zap.Error(err))
	}
	logger.Info("Vector store ready", zap.String("backend", store.Name()))

	// Durable knowledge ledger (optional)
	var ledger *pgstore.Ledger
	if cfg.Postgres.DSN != "" {
		l, pgErr := pgstore.NewLedger(ctx, cfg.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without knowledge ledger", zap.Error(pgErr))
		} else {
			ledger = l
			defer ledger.Close()
		}
	}

	retriever := rag.NewRetriever(store, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.TopK)
	knowledge := rag.NewOrchestrator(store, retriever, ledger, cfg.RAG.MaxContextChars, logger)

	registry := service.NewRegistry()
	registry.RegisterDefaults()

	// Model providers for the two agent roles
	responder, thinker, err := buildProviders(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build model providers", zap.Error(err))
	}

	// Session manager with optional Redis persistence
	var sessions *session.Manager
	factory := func() *agent.ThinkingAgent {
		return agent.NewThinkingAgent(responder, thinker, knowledge, registry, agent.Settings{
			ThinkingTemperature: cfg.Agent.ThinkingTemperature,
			ResponseTemperature: cfg.Agent.ResponseTemperature,
			MaxTokens:           cfg.Agent.MaxTokens,
		}, logger)
	}
	if cfg.Redis.URL != "" {
		rdb, redisErr := session.NewRedisClient(ctx, cfg.Redis.URL)
		if redisErr != nil {
			logger.Warn("Redis unavailable, sessions are memory-only", zap.Error(redisErr))
			sessions = session.NewManager(factory, nil, 0, logger)
		} else {
			defer rdb.Close()
			sessions = session.NewManager(factory, rdb, 24*time.Hour, logger)
			logger.Info("Session persistence enabled")
		}
	} else {
		sessions = session.NewManager(factory, nil, 0, logger)
	}

	handler := api.NewHandler(sessions, knowledge, registry, cfg.Agent, cfg.RAG, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Cogito listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Cogito...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if qs, ok := store.(*vectorstore.QdrantStore); ok {
		qs.Close()
	}
}

// buildProviders resolves the agent's provider by ID and instantiates the
// response and thinking models, which may differ in model name.
func buildProviders(cfg *config.Config, logger *zap.Logger) (provider.Provider, provider.Provider, error) {
	var base *config.ProviderConfig
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == cfg.Agent.Provider {
			base = &cfg.Providers[i]
			break
		}
	}
	if base == nil {
		if len(cfg.Providers) == 0 {
			return nil, nil, fmt.Errorf("no providers configured")
		}
		base = &cfg.Providers[0]
		logger.Warn("agent provider not found, using first configured",
			zap.String("wanted", cfg.Agent.Provider), zap.String("using", base.ID))
	}

	responseModel := cfg.Agent.ResponseModel
	if responseModel == "" {
		responseModel = base.Model
	}
	thinkingModel := cfg.Agent.ThinkingModel
	if thinkingModel == "" {
		thinkingModel = responseModel
	}

	responder, err := provider.New(provider.Config{
		ID: base.ID, Type: base.Type, Name: base.Name,
		Endpoint: base.Endpoint, APIKey: base.APIKey,
		Model:       responseModel,
		Temperature: cfg.Agent.ResponseTemperature,
		MaxTokens:   cfg.Agent.MaxTokens,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	thinker, err := provider.New(provider.Config{
		ID: base.ID + "-thinking", Type: base.Type, Name: base.Name,
		Endpoint: base.Endpoint, APIKey: base.APIKey,
		Model:       thinkingModel,
		Temperature: cfg.Agent.ThinkingTemperature,
		MaxTokens:   cfg.Agent.MaxTokens,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return responder, thinker, nil
}

package cmd

import (
	"context"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/resume-chat/internal/agent"
	"github.com/spigell/resume-chat/internal/ai/gemini"
	"github.com/spigell/resume-chat/internal/chunkstore"
	"github.com/spigell/resume-chat/internal/config"
	"github.com/spigell/resume-chat/internal/logger"
	"github.com/spigell/resume-chat/internal/retrieval"
)

// environment holds everything a command needs. Commands call close when done.
type environment struct {
	config *config.Config
	logger *zap.Logger
	client *genai.Client
	store  chunkstore.Store
}

// setup loads the configuration and connects the Gemini client and the chunk
// store. Configuration problems are fatal.
func setup(ctx context.Context) *environment {
	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	cfg, err := getConfig()
	if err != nil {
		lg.Fatal("getting a config", zap.Error(err))
	}

	lg.Info("starting "+app, zap.String("version", version))
	lg.Debug("configuration loaded",
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("answer_model", cfg.Gemini.AnswerModel),
		zap.Int("top_k", cfg.Retrieval.TopK),
	)

	apiKey, err := cfg.Gemini.ResolveAPIKey()
	if err != nil {
		lg.Fatal("loading gemini api key", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or the 'gemini.api-key-file' key in the configuration file"),
		)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		lg.Fatal("creating gemini client", zap.Error(err))
	}

	dsn, err := cfg.Store.ResolveDSN()
	if err != nil {
		lg.Fatal("resolving chunk store dsn", zap.Error(err))
	}

	store, err := chunkstore.Open(ctx, chunkstore.Config{
		Driver:     cfg.Store.Driver,
		DSN:        dsn,
		Dimensions: cfg.Gemini.Dimensions,
	}, lg)
	if err != nil {
		lg.Fatal("opening chunk store", zap.Error(err), zap.String("driver", cfg.Store.Driver))
	}

	return &environment{config: cfg, logger: lg, client: client, store: store}
}

func (e *environment) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing chunk store", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func (e *environment) embedder() *gemini.Embedder {
	return gemini.NewEmbedder(e.client, e.config.Gemini.EmbeddingModel, e.config.Gemini.Dimensions, e.logger)
}

func (e *environment) generator(model string) *gemini.Generator {
	return gemini.NewGenerator(e.client, model, e.config.Gemini.MaxRetries, e.logger).
		WithMaxLogLength(e.config.Gemini.MaxLogLength)
}

// orchestrator wires the router, both handlers and the retrieval tool.
func (e *environment) orchestrator() *agent.Orchestrator {
	cfg := e.config
	tool := retrieval.New(e.store, e.embedder(), cfg.Retrieval.CacheTTL, e.logger)

	return agent.NewOrchestrator(
		agent.NewRouter(e.generator(cfg.Gemini.RouterModel), cfg.Agent.HistoryWindow, logger.WithComponent(e.logger, "router")),
		agent.NewResumeHandler(e.generator(cfg.Gemini.AnswerModel), tool, cfg.Retrieval.TopK, logger.WithComponent(e.logger, "resume")),
		agent.NewChatHandler(e.generator(cfg.Gemini.ChatModel), cfg.Agent.HistoryWindow, logger.WithComponent(e.logger, "chat")),
		logger.WithComponent(e.logger, "orchestrator"),
	)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/config"
	"github.com/lifecraft/profiler/backend/internal/handler"
	"github.com/lifecraft/profiler/backend/internal/model/module"
	"github.com/lifecraft/profiler/backend/internal/service/ai"
	"github.com/lifecraft/profiler/backend/internal/service/extraction"
	"github.com/lifecraft/profiler/backend/internal/service/profiling"
	"github.com/lifecraft/profiler/backend/internal/service/suggest"
	"github.com/lifecraft/profiler/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()
	logger.Info("store opened", zap.String("driver", cfg.Store.Driver))

	modules := module.NewMemoryStore(module.Seed())
	profiles := make(map[string]module.Profile, len(cfg.Engine.Profiles))
	for id, p := range cfg.Engine.Profiles {
		profiles[id] = module.Profile{
			MinExchangesForExtraction: p.MinExchangesForExtraction,
			MaxExchanges:              p.MaxExchanges,
		}
	}
	if err := modules.ApplyProfiles(profiles); err != nil {
		return fmt.Errorf("invalid module profiles: %w", err)
	}

	// 未配置凭证时不构建模型，所有生成走回退内容。
	var chatModel model.BaseChatModel
	if cfg.AI.Enabled() {
		chatModel, err = cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn("failed to initialize chat model, continuing with fallback content", zap.Error(err))
			chatModel = nil
		} else {
			logger.Info("chat model initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("Ark 凭证未配置，对话将使用预设回退内容")
	}

	gen := ai.NewService(chatModel, cfg.AI, logger)
	extractor := extraction.NewService(gen, extraction.Config{
		Timeout:   cfg.Engine.ExtractionTimeout,
		MaxTokens: cfg.Engine.MaxTokens,
	}, logger)
	engine := profiling.NewEngine(modules, st, gen, extractor, profiling.Config{
		GenerationTimeout: cfg.Engine.GenerationTimeout,
		PersistTimeout:    cfg.Engine.PersistTimeout,
		HistoryLimit:      cfg.Engine.HistoryLimit,
		MaxTokens:         cfg.Engine.MaxTokens,
	}, logger)
	suggestSvc := suggest.NewService(gen, modules, cfg.Engine.GenerationTimeout, logger)

	router := handler.NewRouter(modules, engine, suggestSvc, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("profiler backend listening", zap.String("addr", cfg.Server.Addr))
	return runServer(ctx, srv)
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		st, err := store.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

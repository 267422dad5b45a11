package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/conciergehq/concierge/internal/calendar"
	"github.com/conciergehq/concierge/internal/channels"
	"github.com/conciergehq/concierge/internal/channels/telegram"
	"github.com/conciergehq/concierge/internal/channels/whatsapp"
	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/embeddings"
	embedollama "github.com/conciergehq/concierge/internal/embeddings/ollama"
	embedopenai "github.com/conciergehq/concierge/internal/embeddings/openai"
	"github.com/conciergehq/concierge/internal/intent"
	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/orchestrator"
	"github.com/conciergehq/concierge/internal/prompt"
	"github.com/conciergehq/concierge/internal/rag/indexer"
	"github.com/conciergehq/concierge/internal/rag/retriever"
	"github.com/conciergehq/concierge/internal/sessions"
	"github.com/conciergehq/concierge/internal/vectorstore/sqlitevec"
	"github.com/conciergehq/concierge/internal/web"
	"github.com/conciergehq/concierge/pkg/models"
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that runs the assistant.
func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant with all configured transports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "concierge.yaml", "Path to configuration file")
	return cmd
}

func runServe(cfg *config.Config) error {
	logger := cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlitevec.New(sqlitevec.Config{
		Path:      cfg.VectorStore.Path,
		Dimension: cfg.VectorStore.Dimension,
	})
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer store.Close()

	provider, chatModel, err := buildLLMProvider(cfg)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	prompts, err := prompt.NewBuilder()
	if err != nil {
		return err
	}

	cal, err := buildCalendar(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sessionStore := sessions.NewMemoryStore(sessions.Config{
		MaxTurns:      cfg.Sessions.MaxTurns,
		IdleTTL:       cfg.Sessions.IdleTTL,
		SweepInterval: cfg.Sessions.SweepInterval,
	}, logger)
	sessionStore.StartSweeper(ctx)

	orch := orchestrator.New(
		provider,
		intent.NewClassifier(provider, prompts, chatModel, float32(cfg.Intent.Threshold), logger),
		intent.NewExtractor(provider, prompts, chatModel, logger),
		retriever.New(store, embedder, logger),
		prompts,
		sessionStore,
		cal,
		orchestrator.Config{
			Model:              chatModel,
			System:             cfg.LLM.System,
			TopK:               cfg.RAG.TopK,
			ScoreThreshold:     cfg.RAG.ScoreThreshold,
			CalendarMaxResults: cfg.Calendar.MaxResults,
			CalendarWindowDays: cfg.Calendar.WindowDays,
		},
		logger,
	)

	webServer := web.NewServer(web.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, orch, logger)

	adapters := buildAdapters(cfg, orch, logger)

	errCh := make(chan error, len(adapters)+1)
	go func() { errCh <- webServer.Start(ctx) }()
	for _, adapter := range adapters {
		go func(a channels.Adapter) {
			logger.Info("starting channel", "channel", a.Name())
			errCh <- a.Start(ctx)
		}(adapter)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("transport failed", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Stop(shutdownCtx); err != nil {
		logger.Warn("web server shutdown", "error", err)
	}
	for _, adapter := range adapters {
		if err := adapter.Stop(shutdownCtx); err != nil {
			logger.Warn("channel shutdown", "channel", adapter.Name(), "error", err)
		}
	}
	return nil
}

// buildIndexCmd creates the "index" command that loads documents into
// the knowledge base.
func buildIndexCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "index <file> [file...]",
		Short: "Index documents into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runIndex(cmd.Context(), cfg, args)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "concierge.yaml", "Path to configuration file")
	return cmd
}

func runIndex(ctx context.Context, cfg *config.Config, paths []string) error {
	logger := cfg.Logging.NewLogger(os.Stderr)
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := sqlitevec.New(sqlitevec.Config{
		Path:      cfg.VectorStore.Path,
		Dimension: cfg.VectorStore.Dimension,
	})
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer store.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	ix, err := indexer.New(ctx, store, embedder, logger)
	if err != nil {
		return err
	}

	docs := make([]models.Document, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, models.Document{
			Name:    filepath.Base(path),
			Content: string(content),
			Metadata: map[string]string{
				"path": path,
			},
		})
	}

	result, err := ix.Index(ctx, docs, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d chunks (%d already present) from %d files in %s\n",
		result.ChunksIndexed, result.ChunksSkipped, len(docs), result.Duration.Round(time.Millisecond))
	return nil
}

func buildLLMProvider(cfg *config.Config) (llm.Provider, string, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		return llm.NewOllamaProvider(llm.OllamaConfig{
			BaseURL:      cfg.LLM.Ollama.BaseURL,
			DefaultModel: cfg.LLM.Ollama.Model,
			Timeout:      cfg.LLM.Ollama.Timeout,
		}), cfg.LLM.Ollama.Model, nil
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:       cfg.LLM.OpenAI.APIKey,
			BaseURL:      cfg.LLM.OpenAI.BaseURL,
			DefaultModel: cfg.LLM.OpenAI.Model,
		}), cfg.LLM.OpenAI.Model, nil
	default:
		return nil, "", fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func buildEmbedder(cfg *config.Config) (embeddings.Provider, error) {
	switch cfg.Embeddings.Provider {
	case "ollama":
		return embedollama.New(embedollama.Config{
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
		})
	case "openai":
		return embedopenai.New(embedopenai.Config{
			APIKey:  cfg.Embeddings.APIKey,
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
		})
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Embeddings.Provider)
	}
}

func buildCalendar(ctx context.Context, cfg *config.Config, logger *slog.Logger) (calendar.Service, error) {
	if !cfg.Calendar.Enabled {
		logger.Info("calendar disabled")
		return calendar.Disabled{}, nil
	}
	return calendar.NewGoogleService(ctx, calendar.GoogleConfig{
		CalendarID:   cfg.Calendar.CalendarID,
		ClientID:     cfg.Calendar.ClientID,
		ClientSecret: cfg.Calendar.ClientSecret,
		RefreshToken: cfg.Calendar.RefreshToken,
	}, logger)
}

func buildAdapters(cfg *config.Config, orch *orchestrator.Orchestrator, logger *slog.Logger) []channels.Adapter {
	var adapters []channels.Adapter

	if cfg.Channels.WhatsApp.Enabled {
		adapters = append(adapters, whatsapp.New(whatsapp.Config{
			AccessToken:     cfg.Channels.WhatsApp.AccessToken,
			PhoneNumberID:   cfg.Channels.WhatsApp.PhoneNumberID,
			VerifyToken:     cfg.Channels.WhatsApp.VerifyToken,
			GraphAPIVersion: cfg.Channels.WhatsApp.GraphAPIVersion,
			ListenAddr:      cfg.Channels.WhatsApp.ListenAddr,
		}, orch, logger))
	}

	if cfg.Channels.Telegram.Enabled {
		tg, err := telegram.New(telegram.Config{
			BotToken: cfg.Channels.Telegram.BotToken,
		}, orch, logger)
		if err != nil {
			logger.Error("telegram adapter unavailable", "error", err)
		} else {
			adapters = append(adapters, tg)
		}
	}
	return adapters
}

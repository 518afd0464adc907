package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/ashishroygit/medical-chatbot-enterprise/config"
	"github.com/ashishroygit/medical-chatbot-enterprise/embedding"
	"github.com/ashishroygit/medical-chatbot-enterprise/search"
)

func NewOpenAIClient(cfg *config.Config) *openai.Client {
	oaiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oaiCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return openai.NewClientWithConfig(oaiCfg)
}

// Assemble wires the embedding adapter, the vector store bound to the existing index, the
// retriever and the chat model into a Chain. Any error here means the service cannot answer.
func Assemble(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Chain, error) {
	if logger == nil {
		logger = slog.Default()
	}
	openaiClient := NewOpenAIClient(cfg)
	embedder := embedding.New(openaiClient, embedding.DefaultModel)

	store, err := search.Open(ctx, cfg, search.IndexName)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	if err := store.Bind(ctx); err != nil {
		return nil, fmt.Errorf("failed to bind to vector index: %w", err)
	}
	logger.InfoContext(ctx, "bound to vector index",
		slog.String("backend", cfg.VectorBackend),
		slog.String("index", search.IndexName),
		slog.String("embedding_model", embedder.Model()),
	)

	return New(search.NewRetriever(embedder, store), openaiClient, DefaultChatModel, logger), nil
}

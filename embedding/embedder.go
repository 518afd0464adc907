package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel = openai.SmallEmbedding3

	// OpenAI accepts up to 2048 inputs per request, stay well under it
	batchSize = 64
)

var ErrEmptyEmbedding = errors.New("embedding response contained no vectors")

type Client interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Embedder turns query and document text into vectors with a single fixed model.
type Embedder struct {
	client Client
	model  openai.EmbeddingModel
}

func New(client Client, model openai.EmbeddingModel) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{client: client, model: model}
}

func (e *Embedder) Model() string {
	return string(e.model)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts in batches and returns the vectors in input order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed documents %d:%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		if len(resp.Data) == 0 {
			return nil, ErrEmptyEmbedding
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// Data carries its own index, don't rely on response ordering
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

package search

import (
	"context"
	"fmt"
)

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever answers a query string with the SimilarityK closest documents in the store.
type Retriever struct {
	embedder QueryEmbedder
	store    VectorStore
}

func NewRetriever(embedder QueryEmbedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding from query: %w", err)
	}

	docs, err := r.store.Search(ctx, vector, SimilarityK)
	if err != nil {
		return nil, fmt.Errorf("failed to locate nearby documents: %w", err)
	}
	return docs, nil
}

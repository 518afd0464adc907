package search

import (
	"context"
	"errors"
)

const (
	IndexName = "medicalai-chatbot"

	// SimilarityK is the number of documents handed to the model for every question
	SimilarityK = 3

	vectorField = "vector_data"
)

var ErrIndexNotFound = errors.New("vector index does not exist")

type Document struct {
	ID      string    `json:"-"`
	Title   string    `json:"title,omitempty"`
	Link    string    `json:"link,omitempty"`
	Source  string    `json:"source,omitempty"`
	Content string    `json:"content"`
	Vectors []float32 `json:"vector_data,omitempty"`
	Score   float64   `json:"-"`
}

// VectorStore is a similarity index holding embedded document chunks.
type VectorStore interface {
	// Bind verifies the index exists and the credentials are accepted.
	Bind(ctx context.Context) error
	// EnsureIndex creates the index for vectors of the given dimension if it is missing.
	EnsureIndex(ctx context.Context, dims int) error
	Search(ctx context.Context, vector []float32, k int) ([]Document, error)
	Upsert(ctx context.Context, docs []Document) error
}

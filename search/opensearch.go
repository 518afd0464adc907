package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Opensearch API is still stupid :(
type query struct {
	Knn knnSearch `json:"knn"`
}

type knnSearch struct {
	vectorData `json:"vector_data"`
}

type vectorData struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

type OpenSearchStore struct {
	client *opensearch.Client
	index  string
}

func NewOpenSearchStore(client *opensearch.Client, index string) *OpenSearchStore {
	return &OpenSearchStore{client: client, index: index}
}

func (s *OpenSearchStore) Bind(ctx context.Context) error {
	resp, err := opensearchapi.IndicesExistsRequest{
		Index: []string{s.index},
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", s.index, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrIndexNotFound, s.index)
	default:
		return fmt.Errorf("unexpected response checking index %s: %s", s.index, resp.String())
	}
}

func (s *OpenSearchStore) EnsureIndex(ctx context.Context, dims int) error {
	err := s.Bind(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrIndexNotFound) {
		return err
	}

	mapping, err := json.Marshal(map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				vectorField: map[string]any{"type": "knn_vector", "dimension": dims},
				"content":   map[string]any{"type": "text"},
				"title":     map[string]any{"type": "text"},
				"link":      map[string]any{"type": "keyword"},
				"source":    map[string]any{"type": "keyword"},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal index mapping: %w", err)
	}

	resp, err := opensearchapi.IndicesCreateRequest{
		Index: s.index,
		Body:  bytes.NewReader(mapping),
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", s.index, err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("unexpected response creating index %s: %s", s.index, resp.String())
	}
	return nil
}

func (s *OpenSearchStore) Search(ctx context.Context, vector []float32, k int) ([]Document, error) {
	queryBytes, err := json.Marshal(struct {
		Size   int `json:"size"`
		Source struct {
			Excludes []string `json:"excludes"`
		} `json:"_source"`
		Query query `json:"query"`
	}{
		Size: k,
		Source: struct {
			Excludes []string `json:"excludes"`
		}{Excludes: []string{vectorField}},
		Query: query{
			Knn: knnSearch{
				vectorData: vectorData{
					Vector: vector,
					K:      k,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vector query: %w", err)
	}

	searchResponse, err := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(queryBytes),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector query: %w", err)
	}
	defer searchResponse.Body.Close()

	if searchResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response to vector query: %s", searchResponse.String())
	}

	bodyBytes, err := io.ReadAll(searchResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response body: %w", err)
	}

	result := struct {
		Hits struct {
			Hits []struct {
				Id     string   `json:"_id"`
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}{}
	err = json.Unmarshal(bodyBytes, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize search results: %w", err)
	}

	response := make([]Document, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		response[i] = hit.Source
		response[i].ID = hit.Id
		response[i].Score = hit.Score
	}

	return response, nil
}

func (s *OpenSearchStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]string{"_index": s.index, "_id": doc.ID}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("failed to build bulk action for %s: %w", doc.ID, err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to build search document %s: %w", doc.ID, err)
		}
	}

	resp, err := opensearchapi.BulkRequest{
		Index: s.index,
		Body:  &body,
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("error indexing %d documents: %w", len(docs), err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("unexpected bulk indexing response: %s", resp.String())
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID    string          `json:"_id"`
			Error json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("failed to decode bulk indexing response: %w", err)
	}
	if bulk.Errors {
		for _, item := range bulk.Items {
			for _, res := range item {
				if len(res.Error) > 0 {
					return fmt.Errorf("failed to index document %s: %s", res.ID, res.Error)
				}
			}
		}
		return fmt.Errorf("bulk indexing reported errors")
	}
	return nil
}

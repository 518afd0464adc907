package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// metadata keys written next to each vector; "text" holds the chunk itself
const (
	pineconeTextKey   = "text"
	pineconeTitleKey  = "title"
	pineconeLinkKey   = "link"
	pineconeSourceKey = "source"
)

type pineconeIndexes interface {
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
}

type pineconeVectors interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
}

// PineconeStore reads and writes a serverless Pinecone index. The data plane connection is
// opened against the host reported by DescribeIndex, so Bind or EnsureIndex must run first.
type PineconeStore struct {
	indexes   pineconeIndexes
	connect   func(host string) (pineconeVectors, error)
	index     string
	cloud     string
	region    string
	readyPoll time.Duration

	mu      sync.RWMutex
	vectors pineconeVectors
}

func NewPineconeStore(client *pinecone.Client, index, namespace, cloud, region string) *PineconeStore {
	connect := func(host string) (pineconeVectors, error) {
		conn, err := client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return newPineconeStore(client, connect, index, cloud, region)
}

func newPineconeStore(indexes pineconeIndexes, connect func(string) (pineconeVectors, error), index, cloud, region string) *PineconeStore {
	return &PineconeStore{
		indexes:   indexes,
		connect:   connect,
		index:     index,
		cloud:     cloud,
		region:    region,
		readyPoll: 2 * time.Second,
	}
}

func (s *PineconeStore) Bind(ctx context.Context) error {
	idx, err := s.indexes.DescribeIndex(ctx, s.index)
	if err != nil {
		if isPineconeNotFound(err) {
			return fmt.Errorf("%w: %s", ErrIndexNotFound, s.index)
		}
		return fmt.Errorf("failed to describe pinecone index %s: %w", s.index, err)
	}
	return s.attach(idx)
}

func (s *PineconeStore) EnsureIndex(ctx context.Context, dims int) error {
	idx, err := s.indexes.DescribeIndex(ctx, s.index)
	if err == nil {
		return s.attach(idx)
	}
	if !isPineconeNotFound(err) {
		return fmt.Errorf("failed to describe pinecone index %s: %w", s.index, err)
	}

	idx, err = s.indexes.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      s.index,
		Dimension: int32(dims),
		Metric:    pinecone.Cosine,
		Cloud:     pinecone.Cloud(s.cloud),
		Region:    s.region,
	})
	if err != nil {
		return fmt.Errorf("failed to create pinecone index %s: %w", s.index, err)
	}

	for idx.Status == nil || !idx.Status.Ready {
		select {
		case <-ctx.Done():
			return fmt.Errorf("pinecone index %s not ready: %w", s.index, ctx.Err())
		case <-time.After(s.readyPoll):
		}
		if idx, err = s.indexes.DescribeIndex(ctx, s.index); err != nil {
			return fmt.Errorf("failed to describe pinecone index %s: %w", s.index, err)
		}
	}
	return s.attach(idx)
}

func (s *PineconeStore) attach(idx *pinecone.Index) error {
	conn, err := s.connect(idx.Host)
	if err != nil {
		return fmt.Errorf("failed to connect to pinecone index %s at %s: %w", s.index, idx.Host, err)
	}
	s.mu.Lock()
	s.vectors = conn
	s.mu.Unlock()
	return nil
}

func (s *PineconeStore) bound() (pineconeVectors, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.vectors == nil {
		return nil, fmt.Errorf("pinecone index %s is not bound", s.index)
	}
	return s.vectors, nil
}

func (s *PineconeStore) Search(ctx context.Context, vector []float32, k int) ([]Document, error) {
	vectors, err := s.bound()
	if err != nil {
		return nil, err
	}

	res, err := vectors.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(k),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query pinecone index %s: %w", s.index, err)
	}

	docs := make([]Document, 0, len(res.Matches))
	for _, match := range res.Matches {
		if match == nil || match.Vector == nil {
			continue
		}
		fields := match.Vector.Metadata.GetFields()
		docs = append(docs, Document{
			ID:      match.Vector.Id,
			Title:   fields[pineconeTitleKey].GetStringValue(),
			Link:    fields[pineconeLinkKey].GetStringValue(),
			Source:  fields[pineconeSourceKey].GetStringValue(),
			Content: fields[pineconeTextKey].GetStringValue(),
			Score:   float64(match.Score),
		})
	}
	return docs, nil
}

func (s *PineconeStore) Upsert(ctx context.Context, docs []Document) error {
	vectors, err := s.bound()
	if err != nil {
		return err
	}

	batch := make([]*pinecone.Vector, 0, len(docs))
	for _, doc := range docs {
		metadata, err := structpb.NewStruct(map[string]any{
			pineconeTextKey:   doc.Content,
			pineconeTitleKey:  doc.Title,
			pineconeLinkKey:   doc.Link,
			pineconeSourceKey: doc.Source,
		})
		if err != nil {
			return fmt.Errorf("failed to build metadata for %s: %w", doc.ID, err)
		}
		batch = append(batch, &pinecone.Vector{
			Id:       doc.ID,
			Values:   doc.Vectors,
			Metadata: metadata,
		})
	}

	written, err := vectors.UpsertVectors(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to upsert into pinecone index %s: %w", s.index, err)
	}
	if int(written) != len(batch) {
		return fmt.Errorf("pinecone index %s accepted %d of %d vectors", s.index, written, len(batch))
	}
	return nil
}

func isPineconeNotFound(err error) bool {
	var pErr *pinecone.PineconeError
	return errors.As(err, &pErr) && pErr.Code == http.StatusNotFound
}

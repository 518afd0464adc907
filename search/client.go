package search

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/opensearch-project/opensearch-go/v2"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"
	"github.com/pinecone-io/go-pinecone/pinecone"

	"github.com/ashishroygit/medical-chatbot-enterprise/config"
)

// Open builds the store selected by cfg.VectorBackend for the named index. It does not
// contact the backend; call Bind or EnsureIndex for that.
func Open(ctx context.Context, cfg *config.Config, index string) (VectorStore, error) {
	switch cfg.VectorBackend {
	case config.BackendPgVector:
		return OpenPgVectorStore(cfg.PostgresDSN, cfg.VectorStoreAPIKey, index)
	case config.BackendPinecone:
		client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.VectorStoreAPIKey})
		if err != nil {
			return nil, fmt.Errorf("failed to create pinecone client: %w", err)
		}
		return NewPineconeStore(client, index, cfg.PineconeNamespace, cfg.PineconeCloud, cfg.PineconeRegion), nil
	case config.BackendOpenSearch, "":
		client, err := NewOpenSearchClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewOpenSearchStore(client, index), nil
	default:
		return nil, fmt.Errorf("unsupported vector store backend %q", cfg.VectorBackend)
	}
}

func NewOpenSearchClient(ctx context.Context, cfg *config.Config) (*opensearch.Client, error) {
	osCfg := opensearch.Config{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.OpenSearchInsecure},
		},
		Addresses: cfg.OpenSearchAddresses,
		Username:  cfg.OpenSearchUsername,
		Password:  cfg.VectorStoreAPIKey,
	}

	if cfg.OpenSearchAWSSign {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config for request signing: %w", err)
		}
		signer, err := requestsigner.NewSignerWithService(awsCfg, "es")
		if err != nil {
			return nil, fmt.Errorf("failed to create opensearch request signer: %w", err)
		}
		osCfg.Signer = signer
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	return client, nil
}

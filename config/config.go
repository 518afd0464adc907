package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	VectorStoreKeyEnv = "VECTOR_STORE_API_KEY"
	OpenAIKeyEnv      = "OPENAI_API_KEY"
	// PineconeKeyEnv is accepted in place of VectorStoreKeyEnv by the pinecone backend
	PineconeKeyEnv = "PINECONE_API_KEY"

	BackendOpenSearch = "opensearch"
	BackendPgVector   = "pgvector"
	BackendPinecone   = "pinecone"

	dotEnvName = ".env"
)

type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("Missing required environment variable: %s. Set it in your OS or in a .env file next to the executable.", e.Name)
}

type Config struct {
	VectorStoreAPIKey string
	OpenAIAPIKey      string
	OpenAIBaseURL     string

	VectorBackend string

	OpenSearchAddresses []string
	OpenSearchUsername  string
	OpenSearchAWSSign   bool
	OpenSearchInsecure  bool

	PostgresDSN string

	PineconeCloud     string
	PineconeRegion    string
	PineconeNamespace string

	Debug bool
}

// Load reads the dotenv file, validates the required secrets and collects the optional
// backend settings. Nothing else should be built from a Config that failed to load.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	backend := strings.ToLower(getenv("VECTOR_STORE_BACKEND", BackendOpenSearch))

	vectorKeyEnv := VectorStoreKeyEnv
	vectorKey, err := Require(VectorStoreKeyEnv)
	if backend == BackendPinecone {
		vectorKeyEnv = PineconeKeyEnv
		if key, pineconeErr := Require(PineconeKeyEnv); pineconeErr == nil {
			vectorKey, err = key, nil
		} else if err != nil {
			err = pineconeErr
		}
	}
	if err != nil {
		return nil, err
	}
	openaiKey, err := Require(OpenAIKeyEnv)
	if err != nil {
		return nil, err
	}

	// Client libraries further down may read the environment directly
	os.Setenv(vectorKeyEnv, vectorKey)
	os.Setenv(OpenAIKeyEnv, openaiKey)

	cfg := &Config{
		VectorStoreAPIKey:   vectorKey,
		OpenAIAPIKey:        openaiKey,
		OpenAIBaseURL:       getenv("OPENAI_BASE_URL", ""),
		VectorBackend:       backend,
		OpenSearchAddresses: splitList(getenv("OPENSEARCH_ADDRESSES", "https://localhost:9200")),
		OpenSearchUsername:  getenv("OPENSEARCH_USERNAME", "admin"),
		PostgresDSN:         getenv("PG_CONN", "host=localhost port=5432 user=postgres dbname=medical sslmode=disable"),
		PineconeCloud:       getenv("PINECONE_CLOUD", "aws"),
		PineconeRegion:      getenv("PINECONE_REGION", "us-east-1"),
		PineconeNamespace:   getenv("PINECONE_NAMESPACE", ""),
		Debug:               !strings.EqualFold(getenv("APP_ENV", "development"), "production"),
	}

	if cfg.OpenSearchAWSSign, err = getenvBool("OPENSEARCH_AWS_SIGN", false); err != nil {
		return nil, err
	}
	if cfg.OpenSearchInsecure, err = getenvBool("OPENSEARCH_INSECURE_SKIP_VERIFY", false); err != nil {
		return nil, err
	}

	switch cfg.VectorBackend {
	case BackendOpenSearch, BackendPgVector, BackendPinecone:
	default:
		return nil, fmt.Errorf("unsupported VECTOR_STORE_BACKEND %q, expected %q, %q or %q",
			cfg.VectorBackend, BackendOpenSearch, BackendPgVector, BackendPinecone)
	}

	return cfg, nil
}

// Require returns the trimmed value of the named variable, or a *MissingEnvError when it is
// unset or blank.
func Require(name string) (string, error) {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return "", &MissingEnvError{Name: name}
	}
	return val, nil
}

// LoadDotEnv prefers a .env file next to the executable and falls back to the working
// directory. Variables already present in the environment win.
func LoadDotEnv() error {
	if exe, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exe), dotEnvName)
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			return nil
		}
	}

	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", dotEnvName, err)
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %s=%q, expected true or false", key, v)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

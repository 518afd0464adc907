package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequire(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		set      bool
		expected string
		missing  bool
	}{
		{"trims value", "  abc123 \n", true, "abc123", false},
		{"unset", "", false, "", true},
		{"empty", "", true, "", true},
		{"whitespace only", " \t ", true, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			const key = "MEDCHAT_TEST_REQUIRED"
			t.Setenv(key, "")
			if tc.set {
				t.Setenv(key, tc.value)
			}

			val, err := Require(key)
			if tc.missing {
				var missing *MissingEnvError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, key, missing.Name)
				assert.Contains(t, err.Error(), key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, val)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(VectorStoreKeyEnv, " vs-key ")
	t.Setenv(OpenAIKeyEnv, "sk-test")
	t.Setenv("VECTOR_STORE_BACKEND", "")
	t.Setenv("OPENSEARCH_ADDRESSES", "https://a:9200, https://b:9200,")
	t.Setenv("OPENSEARCH_AWS_SIGN", "true")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vs-key", cfg.VectorStoreAPIKey)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, BackendOpenSearch, cfg.VectorBackend)
	assert.Equal(t, []string{"https://a:9200", "https://b:9200"}, cfg.OpenSearchAddresses)
	assert.True(t, cfg.OpenSearchAWSSign)
	assert.True(t, cfg.Debug)
}

func TestLoadMissingKeys(t *testing.T) {
	t.Run("vector store key", func(t *testing.T) {
		t.Setenv(VectorStoreKeyEnv, "   ")
		t.Setenv(OpenAIKeyEnv, "sk-test")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), VectorStoreKeyEnv)
	})

	t.Run("openai key", func(t *testing.T) {
		t.Setenv(VectorStoreKeyEnv, "vs-key")
		t.Setenv(OpenAIKeyEnv, "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), OpenAIKeyEnv)
	})
}

func TestLoadUnknownBackend(t *testing.T) {
	t.Setenv(VectorStoreKeyEnv, "vs-key")
	t.Setenv(OpenAIKeyEnv, "sk-test")
	t.Setenv("VECTOR_STORE_BACKEND", "chroma")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chroma")
}

func TestLoadPineconeKey(t *testing.T) {
	tests := []struct {
		name        string
		vectorKey   string
		pineconeKey string
		expected    string
		missing     bool
	}{
		{"pinecone key", "", " pc-key ", "pc-key", false},
		{"pinecone key wins", "vs-key", "pc-key", "pc-key", false},
		{"generic key", "vs-key", "", "vs-key", false},
		{"neither", "", "  ", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("VECTOR_STORE_BACKEND", "Pinecone")
			t.Setenv(VectorStoreKeyEnv, tc.vectorKey)
			t.Setenv(PineconeKeyEnv, tc.pineconeKey)
			t.Setenv(OpenAIKeyEnv, "sk-test")
			t.Setenv("PINECONE_REGION", "")

			cfg, err := Load()
			if tc.missing {
				var missing *MissingEnvError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, PineconeKeyEnv, missing.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, BackendPinecone, cfg.VectorBackend)
			assert.Equal(t, tc.expected, cfg.VectorStoreAPIKey)
			assert.Equal(t, "us-east-1", cfg.PineconeRegion)
		})
	}
}

func TestLoadOtherBackendsIgnorePineconeKey(t *testing.T) {
	t.Setenv("VECTOR_STORE_BACKEND", "")
	t.Setenv(VectorStoreKeyEnv, "")
	t.Setenv(PineconeKeyEnv, "pc-key")
	t.Setenv(OpenAIKeyEnv, "sk-test")

	_, err := Load()
	var missing *MissingEnvError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, VectorStoreKeyEnv, missing.Name)
}

func TestLoadInvalidBool(t *testing.T) {
	for _, key := range []string{"OPENSEARCH_AWS_SIGN", "OPENSEARCH_INSECURE_SKIP_VERIFY"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(VectorStoreKeyEnv, "vs-key")
			t.Setenv(OpenAIKeyEnv, "sk-test")
			t.Setenv("VECTOR_STORE_BACKEND", "")
			t.Setenv("OPENSEARCH_AWS_SIGN", "")
			t.Setenv("OPENSEARCH_INSECURE_SKIP_VERIFY", "")
			t.Setenv(key, "yes")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
			assert.Contains(t, err.Error(), `"yes"`)
		})
	}
}

func TestLoadProductionDisablesDebug(t *testing.T) {
	t.Setenv(VectorStoreKeyEnv, "vs-key")
	t.Setenv(OpenAIKeyEnv, "sk-test")
	t.Setenv("VECTOR_STORE_BACKEND", "pgvector")
	t.Setenv("APP_ENV", "Production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Debug)
	assert.Equal(t, BackendPgVector, cfg.VectorBackend)
}

type fakeSecrets struct {
	values    map[string]string
	requested []string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	id := aws.ToString(params.SecretId)
	f.requested = append(f.requested, id)
	v, ok := f.values[id]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv(VectorStoreKeyEnv, "")
	t.Setenv(OpenAIKeyEnv, "already-set")
	t.Setenv("VECTOR_STORE_SECRET_ID", "prod/vector")

	sm := &fakeSecrets{values: map[string]string{"prod/vector": " from-secrets "}}
	require.NoError(t, LoadSecrets(context.Background(), sm, DefaultSecretIDs))

	assert.Equal(t, []string{"prod/vector"}, sm.requested)

	val, err := Require(VectorStoreKeyEnv)
	require.NoError(t, err)
	assert.Equal(t, "from-secrets", val)

	val, err = Require(OpenAIKeyEnv)
	require.NoError(t, err)
	assert.Equal(t, "already-set", val)
}

func TestLoadSecretsMissingSecret(t *testing.T) {
	t.Setenv(VectorStoreKeyEnv, "")
	t.Setenv(OpenAIKeyEnv, "set")
	t.Setenv("VECTOR_STORE_SECRET_ID", "")

	err := LoadSecrets(context.Background(), &fakeSecrets{}, DefaultSecretIDs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector-store-api-key")
}

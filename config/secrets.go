package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// DefaultSecretIDs maps each required variable to the env var naming its secret and the
// secret id used when that env var is unset.
var DefaultSecretIDs = map[string]string{
	VectorStoreKeyEnv: "vector-store-api-key",
	OpenAIKeyEnv:      "openai-api-key",
}

// LoadSecrets fills the required variables from Secrets Manager. Variables that already
// hold a non-blank value are left alone, so a local .env still takes precedence.
func LoadSecrets(ctx context.Context, sm SecretGetter, secretIDs map[string]string) error {
	for name, defaultID := range secretIDs {
		if strings.TrimSpace(os.Getenv(name)) != "" {
			continue
		}

		secretID := getenv(secretIDEnv(name), defaultID)
		out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretID),
		})
		if err != nil {
			return fmt.Errorf("failed to read secret %s for %s: %w", secretID, name, err)
		}
		if out.SecretString == nil {
			return fmt.Errorf("secret %s for %s has no string value", secretID, name)
		}
		os.Setenv(name, strings.TrimSpace(*out.SecretString))
	}
	return nil
}

// VECTOR_STORE_API_KEY -> VECTOR_STORE_SECRET_ID, OPENAI_API_KEY -> OPENAI_SECRET_ID
func secretIDEnv(name string) string {
	return strings.TrimSuffix(name, "_API_KEY") + "_SECRET_ID"
}

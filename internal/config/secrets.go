package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretRef identifies a secret value from one of several sources. Exactly
// one of AwsSecretArn, InsecureValue, or EnvVar must be set.
type SecretRef struct {
	AwsSecretArn string `json:"aws_secret_arn,omitempty"`
	Key          string `json:"key,omitempty"`

	InsecureValue string `json:"insecure_value,omitempty"`

	EnvVar string `json:"env_var,omitempty"`
}

// Validate checks that exactly one secret source is configured.
func (r SecretRef) Validate() error {
	sources := 0
	if r.AwsSecretArn != "" {
		sources++
	}
	if r.InsecureValue != "" {
		sources++
	}
	if r.EnvVar != "" {
		sources++
	}

	if sources == 0 {
		return errors.New("secret ref must have one of: aws_secret_arn, insecure_value, or env_var")
	}
	if sources > 1 {
		return errors.New("secret ref must have only one of: aws_secret_arn, insecure_value, or env_var")
	}
	if r.AwsSecretArn != "" && r.Key == "" {
		return errors.New("aws_secret_arn requires key to be set")
	}
	return nil
}

// SecretsManagerClient is the subset of the AWS Secrets Manager client
// arrayshim calls. This allows injecting a mock for testing.
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretCache caches secrets fetched from AWS Secrets Manager so a secret
// backing a long-lived credential isn't refetched on every new_session.
type SecretCache struct {
	mu     sync.RWMutex
	cache  map[string]map[string]any
	client SecretsManagerClient
}

// NewSecretCache creates a SecretCache around an already-configured client.
func NewSecretCache(client SecretsManagerClient) *SecretCache {
	return &SecretCache{
		cache:  make(map[string]map[string]any),
		client: client,
	}
}

// NewSecretCacheFromEnv builds a SecretCache using AWS config discovered
// from the environment (env vars, shared config, instance role, ...).
func NewSecretCacheFromEnv(ctx context.Context) (*SecretCache, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := secretsmanager.NewFromConfig(cfg)
	return NewSecretCache(client), nil
}

// Get resolves ref to its plaintext value.
func (sc *SecretCache) Get(ctx context.Context, ref SecretRef) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}

	if ref.InsecureValue != "" {
		return ref.InsecureValue, nil
	}

	if ref.EnvVar != "" {
		val, ok := os.LookupEnv(ref.EnvVar)
		if !ok {
			return "", fmt.Errorf("environment variable %q not set", ref.EnvVar)
		}
		return val, nil
	}

	if secretData, ok := sc.getCached(ref.AwsSecretArn); ok {
		return extractStringKey(secretData, ref.Key)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if secretData, ok := sc.cache[ref.AwsSecretArn]; ok {
		return extractStringKey(secretData, ref.Key)
	}

	secretData, err := sc.fetchSecret(ctx, ref.AwsSecretArn)
	if err != nil {
		return "", err
	}

	sc.cache[ref.AwsSecretArn] = secretData
	return extractStringKey(secretData, ref.Key)
}

func (sc *SecretCache) getCached(arn string) (map[string]any, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	data, ok := sc.cache[arn]
	return data, ok
}

func (sc *SecretCache) fetchSecret(ctx context.Context, arn string) (map[string]any, error) {
	output, err := sc.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &arn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", arn, err)
	}
	if output.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", arn)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(*output.SecretString), &data); err != nil {
		return nil, fmt.Errorf("failed to parse secret %s as JSON: %w", arn, err)
	}
	return data, nil
}

func extractStringKey(data map[string]any, key string) (string, error) {
	val, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret", key)
	}
	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("value at key %q is not a string (got %T)", key, val)
	}
	return str, nil
}

package config

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/require"
)

type fakeSecretsManagerClient struct {
	getFunc func() (map[string]any, error)
}

func (f *fakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	data, err := f.getFunc()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &secretsmanager.GetSecretValueOutput{SecretString: &s}, nil
}

func TestSecretRefValidate(t *testing.T) {
	cases := []struct {
		name    string
		ref     SecretRef
		wantErr bool
	}{
		{"insecure value", SecretRef{InsecureValue: "x"}, false},
		{"env var", SecretRef{EnvVar: "X"}, false},
		{"aws with key", SecretRef{AwsSecretArn: "arn:x", Key: "password"}, false},
		{"aws missing key", SecretRef{AwsSecretArn: "arn:x"}, true},
		{"no source", SecretRef{}, true},
		{"two sources", SecretRef{InsecureValue: "x", EnvVar: "X"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.ref.Validate()
			if c.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSecretCacheGetInsecureValue(t *testing.T) {
	sc := NewSecretCache(nil)
	val, err := sc.Get(context.Background(), SecretRef{InsecureValue: "hunter2"})
	require.NoError(t, err)
	require.Equal(t, "hunter2", val)
}

func TestSecretCacheGetEnvVar(t *testing.T) {
	t.Setenv("ARRAYSHIM_TEST_SECRET", "from-env")
	sc := NewSecretCache(nil)
	val, err := sc.Get(context.Background(), SecretRef{EnvVar: "ARRAYSHIM_TEST_SECRET"})
	require.NoError(t, err)
	require.Equal(t, "from-env", val)
}

func TestSecretCacheGetEnvVarMissing(t *testing.T) {
	sc := NewSecretCache(nil)
	_, err := sc.Get(context.Background(), SecretRef{EnvVar: "ARRAYSHIM_TEST_SECRET_UNSET"})
	require.Error(t, err)
}

func TestSecretCacheGetAwsCachesAcrossCalls(t *testing.T) {
	calls := 0
	client := &fakeSecretsManagerClient{
		getFunc: func() (map[string]any, error) {
			calls++
			return map[string]any{"password": "s3cret"}, nil
		},
	}
	sc := NewSecretCache(client)
	ref := SecretRef{AwsSecretArn: "arn:aws:secretsmanager:us-east-1:1:secret:x", Key: "password"}

	val, err := sc.Get(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, "s3cret", val)

	val, err = sc.Get(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, "s3cret", val)
	require.Equal(t, 1, calls, "second Get must hit the cache, not the client")
}

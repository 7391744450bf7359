package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsAPI struct {
	values map[string]*string
	err    error
	calls  map[string]int
}

func (f *fakeSecretsAPI) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	name := aws.ToString(in.SecretId)
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[name]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{Name: in.SecretId, SecretString: v}, nil
}

func TestResolver_Get(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]*string{
		"keycloak-master-password": aws.String("s3cr3t"),
	}}
	r := NewResolver(api)

	v, err := r.Get(context.Background(), "keycloak-master-password")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", v)

	t.Run("memoizes within one resolver", func(t *testing.T) {
		_, err := r.Get(context.Background(), "keycloak-master-password")
		require.NoError(t, err)
		assert.Equal(t, 1, api.calls["keycloak-master-password"])
	})

	t.Run("new resolver fetches again", func(t *testing.T) {
		_, err := NewResolver(api).Get(context.Background(), "keycloak-master-password")
		require.NoError(t, err)
		assert.Equal(t, 2, api.calls["keycloak-master-password"])
	})
}

func TestResolver_Errors(t *testing.T) {
	t.Run("wraps api error", func(t *testing.T) {
		boom := errors.New("throttled")
		r := NewResolver(&fakeSecretsAPI{err: boom})
		_, err := r.Get(context.Background(), "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "secrets: get x")
	})

	t.Run("binary secrets are rejected", func(t *testing.T) {
		r := NewResolver(&fakeSecretsAPI{values: map[string]*string{"bin": nil}})
		_, err := r.Get(context.Background(), "bin")
		assert.ErrorIs(t, err, ErrEmptySecret)
	})

	t.Run("errors are not memoized", func(t *testing.T) {
		api := &fakeSecretsAPI{err: errors.New("timeout")}
		r := NewResolver(api)
		_, _ = r.Get(context.Background(), "x")
		_, _ = r.Get(context.Background(), "x")
		assert.Equal(t, 2, api.calls["x"])
	})
}

func TestResolver_Func(t *testing.T) {
	r := NewResolver(&fakeSecretsAPI{values: map[string]*string{"a": aws.String("b")}})
	v, err := r.Func("a")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

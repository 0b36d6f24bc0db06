package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVault map[string]string

func (s stubVault) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := s[name]; ok {
		return v, nil
	}
	return "", errors.New("missing")
}

func TestResolveSource(t *testing.T) {
	tests := []struct {
		source SecretSource
		env    string
		want   SecretSource
	}{
		{SourceAuto, "development", SourceEnvironment},
		{SourceAuto, "", SourceEnvironment},
		{SourceAuto, "production", SourceVault},
		{SourceVault, "development", SourceVault},
		{SourceEnvironment, "production", SourceEnvironment},
	}
	for _, tt := range tests {
		t.Run(string(tt.source)+"/"+tt.env, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSource(tt.source, tt.env))
		})
	}
}

func TestNewProvider_VaultRequiresName(t *testing.T) {
	_, err := NewProvider(&ProviderConfig{Source: SourceVault}, zap.NewNop())
	require.Error(t, err)
}

func TestProvider_GetSecretOrEnv(t *testing.T) {
	ctx := context.Background()

	t.Run("environment source reads env", func(t *testing.T) {
		p, err := NewProvider(&ProviderConfig{Source: SourceEnvironment}, zap.NewNop())
		require.NoError(t, err)

		t.Setenv("STORE_PASSWORD", "s3cret")
		v, err := p.GetSecretOrEnv(ctx, "LEDGER-DB-PASSWORD", "STORE_PASSWORD")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", v)
	})

	t.Run("environment source errors when unset", func(t *testing.T) {
		p, err := NewProvider(&ProviderConfig{Source: SourceEnvironment}, zap.NewNop())
		require.NoError(t, err)

		_, err = p.GetSecretOrEnv(ctx, "LEDGER-DB-PASSWORD", "STORE_PASSWORD_UNSET")
		assert.Error(t, err)
	})

	t.Run("vault source with env override", func(t *testing.T) {
		p := &Provider{source: SourceVault, vault: stubVault{"LEDGER-DB-PASSWORD": "from-vault"}, logger: zap.NewNop()}

		v, err := p.GetSecretOrEnv(ctx, "LEDGER-DB-PASSWORD", "STORE_PASSWORD_UNSET")
		require.NoError(t, err)
		assert.Equal(t, "from-vault", v)

		t.Setenv("STORE_PASSWORD_UNSET", "override")
		v, err = p.GetSecretOrEnv(ctx, "LEDGER-DB-PASSWORD", "STORE_PASSWORD_UNSET")
		require.NoError(t, err)
		assert.Equal(t, "override", v)
	})
}

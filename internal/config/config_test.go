package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, uint64(10), cfg.Sui.Lookahead)
	assert.Equal(t, uint64(10_000_000), cfg.Sui.GasBudget)
	assert.Equal(t, DurableBackendRedis, cfg.Storage.DurableBackend)
	assert.Equal(t, time.Hour, cfg.Storage.VolatileTTL)
	assert.False(t, cfg.UseMySQL())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SUI_EPOCH_LOOKAHEAD", "3")
	t.Setenv("SALT_BACKEND", "mysql")
	t.Setenv("OAUTH_CLIENT_ID", "client-id")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cfg.Sui.Lookahead)
	assert.True(t, cfg.UseMySQL())
	assert.Equal(t, "client-id", cfg.OAuth.ClientID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"file backend without secret", map[string]string{"STORAGE_DURABLE_BACKEND": "file"}, true},
		{"file backend with secret", map[string]string{"STORAGE_DURABLE_BACKEND": "file", "STORAGE_FILE_SECRET": "s"}, false},
		{"unknown durable backend", map[string]string{"STORAGE_DURABLE_BACKEND": "etcd"}, true},
		{"unknown salt backend", map[string]string{"SALT_BACKEND": "vault"}, true},
		{"short kdf salt", map[string]string{"SALT_ENCRYPTION_PASSPHRASE": "p", "SALT_KDF_SALT": "abc"}, true},
		{"zero lookahead", map[string]string{"SUI_EPOCH_LOOKAHEAD": "0"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package container

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-api/internal/config"
	"studio-api/pkg/logger"
)

func TestNew(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	tests := []struct {
		name        string
		config      *config.Config
		expectRedis bool
	}{
		{
			name: "with Redis configured",
			config: &config.Config{
				Environment:    "test",
				RedisURL:       "redis://" + mr.Addr(),
				FirebaseAPIKey: "test-api-key",
			},
			expectRedis: true,
		},
		{
			name: "without Redis configured",
			config: &config.Config{
				Environment:    "test",
				RedisURL:       "",
				FirebaseAPIKey: "test-api-key",
			},
			expectRedis: false,
		},
		{
			// Redis initialization fails but container creation succeeds
			name: "with invalid Redis URL",
			config: &config.Config{
				Environment:    "test",
				RedisURL:       "invalid://redis-url",
				FirebaseAPIKey: "test-api-key",
			},
			expectRedis: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testLogger, err := logger.New("error", "test")
			require.NoError(t, err)

			c, err := New(context.Background(), tt.config, testLogger)
			require.NoError(t, err)
			require.NotNil(t, c)

			if tt.expectRedis {
				assert.NotNil(t, c.GetRedisClient())
			} else {
				assert.Nil(t, c.GetRedisClient())
			}

			// No project configured falls back to the in-memory store.
			assert.NotNil(t, c.Repository)
			assert.NotNil(t, c.GetVerifier())
			assert.NotNil(t, c.GetIdentity())
			assert.NotNil(t, c.GetResourceService())
			assert.NotNil(t, c.GetMetrics())
			assert.Equal(t, tt.config, c.GetConfig())
		})
	}
}

package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorfeed/internal/config"
	"creatorfeed/internal/service/youtube"
	"creatorfeed/pkg/logger"
)

func supabaseConfig(t *testing.T) *config.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	return &config.Config{
		Environment:            "test",
		StoreBackend:           config.StoreBackendSupabase,
		SupabaseURL:            srv.URL,
		SupabaseServiceRoleKey: "service-role",
		YouTubeAPIKey:          "test-api-key",
		YouTubeFeedBaseURL:     "https://www.youtube.com",
		Ingest: config.IngestConfig{
			BatchSize:      5,
			CreatorTimeout: time.Minute,
			FetchRetries:   2,
			StatsCacheTTL:  time.Minute,
		},
	}
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name        string
		mutate      func(cfg *config.Config)
		expectRedis bool
		expectError bool
	}{
		{
			name:        "Container with Redis configured",
			mutate:      func(cfg *config.Config) { cfg.RedisURL = "redis://" + mr.Addr() },
			expectRedis: true,
		},
		{
			name:        "Container without Redis configured",
			mutate:      func(cfg *config.Config) {},
			expectRedis: false,
		},
		{
			name:        "Container with invalid Redis URL",
			mutate:      func(cfg *config.Config) { cfg.RedisURL = "invalid://redis-url" },
			expectRedis: false, // Redis is optional; the container still starts
		},
		{
			name:        "Container with unreachable NATS",
			mutate:      func(cfg *config.Config) { cfg.NATSURL = "nats://127.0.0.1:1" },
			expectRedis: false,
		},
		{
			name: "Container without YouTube credentials",
			mutate: func(cfg *config.Config) {
				cfg.YouTubeAPIKey = ""
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := supabaseConfig(t)
			tt.mutate(cfg)

			c, err := New(context.Background(), cfg, logger.NewNop())
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, tt.expectRedis, c.HasRedis())
			assert.Nil(t, c.NATS)
			assert.Nil(t, c.DB)
			assert.NotNil(t, c.Orchestrator)
			assert.NotNil(t, c.Subscribers)
			assert.NotNil(t, c.Scheduler)
			assert.NotNil(t, c.Tasks)
			assert.Same(t, c.Supabase, c.Repositories.Creators)

			if tt.expectRedis {
				_, cached := c.Statistics.(*youtube.CachedStatistics)
				assert.True(t, cached, "statistics should be read through the Redis cache")
				assert.Contains(t, c.HealthChecks(), "redis")
			} else {
				assert.Same(t, c.YouTube, c.Statistics)
				assert.NotContains(t, c.HealthChecks(), "redis")
			}
			assert.Contains(t, c.HealthChecks(), "supabase")
		})
	}
}

func TestNew_SearchIndexUnavailable(t *testing.T) {
	meili := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer meili.Close()

	cfg := supabaseConfig(t)
	cfg.MeilisearchHost = meili.URL
	cfg.MeilisearchIndex = "youtube_videos"

	c, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Indexer)
}

package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"creatorfeed/internal/config"
	"creatorfeed/internal/events"
	"creatorfeed/internal/handler"
	"creatorfeed/internal/repository"
	"creatorfeed/internal/search"
	"creatorfeed/internal/service"
	"creatorfeed/internal/service/feed"
	"creatorfeed/internal/service/ingest"
	"creatorfeed/internal/service/youtube"
	"creatorfeed/pkg/database"
	"creatorfeed/pkg/logger"
	"creatorfeed/pkg/metrics"
	"creatorfeed/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	DB          *database.PostgresDB // nil with the supabase backend
	Supabase    *repository.SupabaseStore
	RedisClient *redis.Client // nil when Redis is not configured or unreachable
	NATS        *nats.Conn    // nil when NATS_URL is empty
	Indexer     *search.Indexer

	Repositories repository.Repositories
	YouTube      *youtube.Service
	Statistics   youtube.StatisticsProvider
	Fetcher      *feed.Fetcher
	Orchestrator *ingest.Orchestrator
	Subscribers  service.SubscriberRefresher
	Tasks        *service.Runner
	Scheduler    *service.Scheduler
}

// New creates a new dependency injection container. Only the store is
// required; Redis, NATS and Meilisearch degrade to disabled when they fail.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	if err := c.initStore(ctx); err != nil {
		return nil, err
	}

	c.Metrics = metrics.New(c.poolForMetrics())

	c.initRedis()
	c.initNATS()
	c.initIndexer()

	if err := c.initServices(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	switch c.Config.StoreBackend {
	case config.StoreBackendSupabase:
		c.Supabase = repository.NewSupabaseStore(c.Config.SupabaseURL, c.Config.SupabaseServiceRoleKey, nil, c.Logger)
		c.Repositories = repository.Repositories{Creators: c.Supabase, Videos: c.Supabase}
		c.Logger.Info("Using Supabase REST store")
	default:
		db, err := database.NewPostgresDB(ctx, c.Config.DatabaseURL, c.Config.DatabaseReadURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db
		c.Repositories = repository.Repositories{
			Creators: repository.NewCreatorRepository(db),
			Videos:   repository.NewVideoRepository(db),
		}
		c.Logger.Info("Using Postgres store")
	}
	return nil
}

func (c *Container) initRedis() {
	if c.Config.RedisURL == "" {
		c.Logger.Info("Redis URL not configured, proceeding without statistics cache or run lock")
		return
	}
	client, err := redis.NewClient(c.Config.RedisURL, c.Config.Environment, c.Logger.Named("redis").Logger)
	if err != nil {
		c.Logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without it")
		return
	}
	c.RedisClient = client
	c.Logger.Info("Redis client initialized successfully")
}

func (c *Container) initNATS() {
	if c.Config.NATSURL == "" {
		return
	}
	conn, err := events.Connect(c.Config.NATSURL, c.Logger)
	if err != nil {
		c.Logger.WithError(err).Warn("Failed to connect to NATS, run events disabled")
		return
	}
	c.NATS = conn
}

func (c *Container) initIndexer() {
	if c.Config.MeilisearchHost == "" {
		return
	}
	indexer := search.NewIndexer(c.Config.MeilisearchHost, c.Config.MeilisearchAPIKey, c.Config.MeilisearchIndex, c.Logger)
	if err := indexer.EnsureIndex(); err != nil {
		c.Logger.WithError(err).Warn("Failed to prepare search index, search mirroring disabled")
		return
	}
	c.Indexer = indexer
}

func (c *Container) initServices(ctx context.Context) error {
	yt, err := youtube.NewService(ctx, youtube.Options{
		APIKey:            c.Config.YouTubeAPIKey,
		OAuthToken:        c.Config.YouTubeOAuthToken,
		Endpoint:          c.Config.YouTubeAPIEndpoint,
		RequestsPerSecond: c.Config.Ingest.StatsRequestsPerSecond,
	}, c.Metrics, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create YouTube client: %w", err)
	}
	c.YouTube = yt
	c.Statistics = yt

	deps := ingest.Dependencies{
		Creators: c.Repositories.Creators,
		Sink:     c.Repositories.Videos,
		Recorder: c.Metrics,
	}

	if c.RedisClient != nil {
		c.Statistics = youtube.NewCachedStatistics(yt, c.RedisClient, c.Config.Ingest.StatsCacheTTL, c.Logger)
		deps.State = ingest.NewRedisRunState(c.RedisClient, redis.TTLRunLock, c.Logger)
	}
	if c.Indexer != nil {
		deps.Indexer = c.Indexer
	}
	if c.NATS != nil {
		deps.Publisher = events.NewPublisher(c.NATS, events.SubjectRunCompleted, c.Logger)
	}

	c.Fetcher = feed.NewFetcher(c.Config.YouTubeFeedBaseURL, &http.Client{Timeout: 15 * time.Second}, c.Logger)
	deps.Fetcher = c.Fetcher
	deps.Statistics = c.Statistics

	c.Orchestrator = ingest.NewOrchestrator(deps, ingest.Options{
		BatchSize:      c.Config.Ingest.BatchSize,
		CreatorTimeout: c.Config.Ingest.CreatorTimeout,
		FetchRetries:   c.Config.Ingest.FetchRetries,
	}, c.Logger)

	c.Subscribers = service.NewSubscriberService(c.Repositories.Creators, yt, c.Logger)
	c.Tasks = service.NewRunner(c.Logger)
	c.Scheduler = service.NewScheduler(
		c.Orchestrator,
		c.Subscribers,
		c.Config.Ingest.Interval,
		c.Config.Ingest.SubscriberRefreshInterval,
		c.Config.Ingest.RunOnStart,
		c.Logger,
	)
	return nil
}

func (c *Container) poolForMetrics() *pgxpool.Pool {
	if c.DB == nil {
		return nil
	}
	return c.DB.Pool
}

// HealthChecks lists the dependencies /health probes
func (c *Container) HealthChecks() map[string]handler.Pinger {
	checks := make(map[string]handler.Pinger)
	if c.DB != nil {
		checks["database"] = c.DB
	}
	if c.Supabase != nil {
		checks["supabase"] = c.Supabase
	}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient
	}
	return checks
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// Close releases connections in reverse order of creation
func (c *Container) Close() {
	if c.NATS != nil {
		if err := c.NATS.Drain(); err != nil {
			c.Logger.WithError(err).Warn("Failed to drain NATS connection")
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Warn("Failed to close Redis client")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}

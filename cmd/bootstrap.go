package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/config"
	"github.com/Wirlhawk/skillswap-sub000/internal/cache"
	"github.com/Wirlhawk/skillswap-sub000/internal/database"
	"github.com/Wirlhawk/skillswap-sub000/internal/messaging"
	"github.com/Wirlhawk/skillswap-sub000/internal/repositories"
	"github.com/Wirlhawk/skillswap-sub000/internal/search"
	"github.com/Wirlhawk/skillswap-sub000/internal/services"
	"github.com/Wirlhawk/skillswap-sub000/internal/storage"
	"github.com/Wirlhawk/skillswap-sub000/internal/tracing"
)

// loadConfig reads the configuration and applies its logging settings
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}
	configureLogging(cfg)
	return cfg, nil
}

func configureLogging(cfg config.Config) {
	if cfg.IsDevelopment() || strings.EqualFold(cfg.Logging.Format, "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// components holds the infrastructure shared by the api and worker commands.
// Optional components are nil when they are not configured or unreachable.
type components struct {
	dbs     *database.Databases
	cache   *cache.RedisCache
	elastic *search.ElasticClient
	bus     *messaging.ServiceBus
	blobs   *storage.LocalStore
	tracer  tracing.Tracer
}

func setupComponents(cfg config.Config) (*components, error) {
	// Initialize database connections
	dbs, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewLocalStore(cfg.Storage)
	if err != nil {
		_ = dbs.Close()
		return nil, err
	}

	c := &components{dbs: dbs, blobs: blobs}

	// Initialize cache
	c.cache, err = cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		c.cache = cache.NewDisabledCache()
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		c.tracer = tracing.NewNoopTracer()
	} else {
		c.tracer = tracer
	}

	// Initialize Elasticsearch client
	if cfg.Elastic.Enabled {
		c.elastic, err = search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		}
	}

	// Initialize Azure Service Bus client
	c.bus, err = messaging.NewServiceBus(cfg.Azure)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Azure Service Bus, continuing without order events")
	}

	return c, nil
}

// dependencies wires the components into the services
func (c *components) dependencies() services.Dependencies {
	deps := services.Dependencies{
		Store:  repositories.NewStore(c.dbs.Write, c.dbs.Read),
		Cache:  c.cache,
		Blobs:  c.blobs,
		Tracer: c.tracer,
	}
	if c.elastic != nil {
		deps.Indexer = c.elastic
	}
	if c.bus != nil {
		deps.Publisher = c.bus
	}
	return deps
}

func (c *components) close() {
	if c.bus != nil {
		if err := c.bus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus client")
		}
	}
	if err := c.cache.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing Redis cache")
	}
	c.tracer.Close()
	if err := c.dbs.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connections")
	}
}

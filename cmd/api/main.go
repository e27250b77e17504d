// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"mapnav/internal/adapter/geodata"
	"mapnav/internal/config"
	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/domain/tracking"
	"mapnav/internal/metrics"
	"mapnav/internal/server"
	"mapnav/internal/service/layers"
	"mapnav/internal/service/session"
	"mapnav/internal/service/telemetry"
)

func main() {
	// Load .env in development; the file is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Environment)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	m := metrics.New()

	// Optional PostGIS boundary store
	var db *pgxpool.Pool
	if cfg.Database.Host != "" {
		db, err = initDatabase(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize database")
		}
		defer db.Close()
	}

	// Optional NATS event bus
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = initNATS(cfg.NATS, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer natsConn.Close()
	}

	// Boundary layer source: PostGIS when configured, HTTP otherwise
	var layerSource layers.LayerSource
	if db != nil {
		layerSource = geodata.NewBoundaryStore(db, logger)
	} else {
		layerSource = geodata.NewClient(geodata.ClientConfig{
			BaseURL:    cfg.Geo.BaseURL,
			CampaignID: cfg.Geo.CampaignID,
			Timeout:    cfg.Geo.Timeout,
		}, nil, m, logger)
	}

	// Optional tile readiness probes
	var tileChecker layers.TileChecker
	if cfg.Tiles.BaseURL != "" {
		tileChecker = geodata.NewTileChecker(geodata.TileCheckerConfig{
			BaseURL: cfg.Tiles.BaseURL,
			Version: cfg.Tiles.Version,
			Timeout: cfg.Tiles.Timeout,
		}, nil, m, logger)
	}

	// Build the hierarchy index from the reference layers
	index, err := buildIndex(ctx, layerSource, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build hierarchy index")
	}

	// Telemetry hub and feeds
	hub := telemetry.NewHub(telemetry.HubConfig{
		Thresholds: tracking.Thresholds{
			Presence:       cfg.Classifier.PresenceThreshold,
			MovementMeters: cfg.Classifier.MovementMeters,
		},
		PublishSubject: cfg.Telemetry.PublishSubject,
	}, natsConn, m, logger)

	poller := telemetry.NewPoller(telemetry.PollerConfig{
		BaseURL:         cfg.Telemetry.BaseURL,
		Interval:        cfg.Telemetry.PollInterval,
		IncludePrevious: cfg.Telemetry.IncludePrevious,
	}, hub, nil, logger)
	if err := poller.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start telemetry poller")
	}

	wsFeed := telemetry.NewWSFeed(telemetry.WSFeedConfig{
		URL:            cfg.Telemetry.WebsocketURL,
		ReconnectDelay: cfg.Telemetry.ReconnectWait,
	}, hub, poller, logger)
	if err := wsFeed.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start telemetry websocket feed")
	}

	var natsFeed *telemetry.NATSFeed
	if natsConn != nil {
		natsFeed = telemetry.NewNATSFeed(natsConn, hub, logger)
		if err := natsFeed.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start telemetry NATS feed")
		}
	}

	// Campaign allow-list, taken from the campaign layer metadata when a
	// campaign is configured
	allowed := loadAllowList(ctx, cfg, layerSource, logger)

	// Session manager
	manager := session.NewManager(session.ManagerConfig{
		TTL:             cfg.Session.TTL,
		JanitorInterval: cfg.Session.JanitorInterval,
	}, session.Deps{
		Source:  layerSource,
		Tiles:   tileChecker,
		Hub:     hub,
		Index:   index,
		Allowed: allowed,
		Resolver: layers.Config{
			PrefetchTimeout: cfg.Prefetch.Timeout,
			IdleDelay:       cfg.Prefetch.IdleDelay,
		},
		Metrics: m,
		Logger:  logger,
	}, logger)
	if err := manager.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start session manager")
	}

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, manager, hub, index, m, logger)

	// Start HTTP server
	go func() {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	logger.Info().Msg("shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("session manager shutdown error")
	}
	if err := wsFeed.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("websocket feed shutdown error")
	}
	if err := poller.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("telemetry poller shutdown error")
	}
	if natsFeed != nil {
		if err := natsFeed.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("NATS feed shutdown error")
		}
	}

	logger.Info().Msg("shutdown complete")
}

// initLogger builds the process logger: console output in development,
// JSON elsewhere
func initLogger(environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig, logger zerolog.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info().Msg("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}

// buildIndex fetches the three reference layers and assembles the
// administrative hierarchy
func buildIndex(ctx context.Context, source layers.LayerSource, logger zerolog.Logger) (*hierarchy.Index, error) {
	fetch := func(level hierarchy.Level) (*layers.LayerData, error) {
		data, err := source.FetchLayer(ctx, level)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s layer: %w", level, err)
		}
		return data, nil
	}

	deps, err := fetch(hierarchy.LevelDepartment)
	if err != nil {
		return nil, err
	}
	provs, err := fetch(hierarchy.LevelProvince)
	if err != nil {
		logger.Warn().Err(err).Msg("province layer unavailable, hierarchy limited to departments")
		provs = &layers.LayerData{}
	}
	dists, err := fetch(hierarchy.LevelDistrict)
	if err != nil {
		logger.Warn().Err(err).Msg("district layer unavailable, hierarchy limited to provinces")
		dists = &layers.LayerData{}
	}

	return hierarchy.BuildIndex(deps.Collection, provs.Collection, dists.Collection, logger)
}

// loadAllowList extracts the campaign allow-list from the district
// layer metadata. Without a campaign every region is allowed.
func loadAllowList(ctx context.Context, cfg config.Config, source layers.LayerSource, logger zerolog.Logger) *hierarchy.CodeSet {
	if cfg.Geo.CampaignID == "" {
		return nil
	}
	data, err := source.FetchLayer(ctx, hierarchy.LevelDistrict)
	if err != nil || data.Meta == nil || len(data.Meta.AllowedCodes) == 0 {
		logger.Warn().Err(err).Msg("campaign allow-list unavailable, allowing all regions")
		return nil
	}
	logger.Info().Int("codes", len(data.Meta.AllowedCodes)).Msg("campaign allow-list loaded")
	return hierarchy.NewCodeSet(data.Meta.AllowedCodes, hierarchy.UbigeoWidth)
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Wirlhawk/skillswap-sub000/internal/api"
	"github.com/Wirlhawk/skillswap-sub000/internal/api/handlers"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
	"github.com/Wirlhawk/skillswap-sub000/internal/services"
	"github.com/Wirlhawk/skillswap-sub000/internal/session"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server that handles order, milestone, delivery and review requests`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	c, err := setupComponents(cfg)
	if err != nil {
		return err
	}
	defer c.close()

	// Auto-migrate only the write database
	if err := models.SetupModels(c.dbs.Write); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	if c.elastic != nil {
		if err := c.elastic.EnsureIndex(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to ensure order index, searches may fail until it exists")
		}
	}

	deps := c.dependencies()
	opts := api.Options{
		Orders:     services.NewOrderService(deps),
		Milestones: services.NewMilestoneService(deps),
		Deliveries: services.NewDeliveryService(deps),
		Reviews:    services.NewReviewService(deps),
		Sessions:   session.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		HealthChecks: map[string]handlers.HealthCheck{
			"database": func(ctx context.Context) error { return c.dbs.Ping() },
		},
		Tracer: c.tracer,
	}
	if c.elastic != nil {
		opts.Search = c.elastic
		opts.HealthChecks["elasticsearch"] = c.elastic.EnsureIndex
	}

	server := api.NewServer(cfg, opts)

	// Start the server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for termination signal or a failed listener
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

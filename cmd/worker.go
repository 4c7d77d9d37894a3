package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Wirlhawk/skillswap-sub000/internal/services"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that consumes order events from Azure Service Bus
and periodically reindexes recently changed orders into Elasticsearch`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	if c.elastic != nil {
		if err := c.elastic.EnsureIndex(ctx); err != nil {
			return errors.Wrap(err, "failed to ensure order index")
		}
	}

	processor := services.NewEventProcessor(c.dependencies(), cfg.Worker.ReindexBatch)

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	if c.bus != nil {
		g.Go(func() error {
			log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting order event consumer")
			return c.bus.Consume(ctx, processor.HandleEvent)
		})
	} else {
		log.Warn().Msg("No Service Bus configured, relying on the reindex job alone")
	}

	// The reindex job catches orders whose events were lost
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		var mu sync.Mutex
		watermark := time.Time{}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.ReindexInterval),
			gocron.NewTask(func() {
				mu.Lock()
				defer mu.Unlock()

				next, count, err := processor.Reindex(ctx, watermark)
				if err != nil {
					log.Error().Err(err).Time("since", watermark).Msg("Failed to reindex orders")
					return
				}
				watermark = next
				log.Info().Int("orders", count).Time("watermark", watermark).Msg("Reindexed orders")
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return err
		}

		log.Info().Dur("interval", cfg.Worker.ReindexInterval).Msg("Starting order reindex job")
		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

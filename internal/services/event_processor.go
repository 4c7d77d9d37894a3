package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/internal/messaging"
)

// EventProcessor brings read-side state up to date after order events. It runs in
// the worker, behind the Service Bus consumer and the scheduled reindex.
type EventProcessor struct {
	base
	batchSize int
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(deps Dependencies, batchSize int) *EventProcessor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &EventProcessor{base: newBase(deps), batchSize: batchSize}
}

// HandleEvent reindexes the event's order from the database and drops its cached
// stats. An order that no longer exists is skipped.
func (p *EventProcessor) HandleEvent(ctx context.Context, event messaging.Event) error {
	ctx, txn := p.Tracer.StartTransaction(ctx, "process-"+string(event.Type))
	defer p.Tracer.EndTransaction(txn)
	p.Tracer.AddAttribute(ctx, "order_id", event.OrderID.String())

	order, err := p.Store.Repos().Orders.GetByID(ctx, event.OrderID)
	if err != nil {
		if isNotFound(err) {
			log.Warn().
				Str("event_id", event.ID.String()).
				Str("order_id", event.OrderID.String()).
				Msg("Skipping event for unknown order")
			return nil
		}
		p.Tracer.RecordError(ctx, err)
		return err
	}

	if err := p.Indexer.IndexOrder(ctx, order); err != nil {
		p.Tracer.RecordError(ctx, err)
		return err
	}
	p.invalidateStats(ctx, order)

	if event.Type == messaging.EventDeliveryCompleted {
		log.Info().
			Str("order_id", order.ID.String()).
			Str("order_number", order.OrderNumber).
			Str("client_id", event.Data["client_id"]).
			Msg("Delivery marked complete, asking client for final approval")
	}

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("order_id", order.ID.String()).
		Msg("Processed order event")
	return nil
}

// Reindex indexes every order updated at or after since, in batches. It returns the
// newest updated_at seen, to be passed as since on the next run.
func (p *EventProcessor) Reindex(ctx context.Context, since time.Time) (time.Time, int, error) {
	ctx, txn := p.Tracer.StartTransaction(ctx, "reindex-orders")
	defer p.Tracer.EndTransaction(txn)

	watermark := since
	var afterID uuid.UUID
	total := 0
	for {
		orders, err := p.Store.Repos().Orders.ListUpdatedSince(ctx, watermark, afterID, p.batchSize)
		if err != nil {
			p.Tracer.RecordError(ctx, err)
			return watermark, total, err
		}

		for i := range orders {
			if err := p.Indexer.IndexOrder(ctx, &orders[i]); err != nil {
				p.Tracer.RecordError(ctx, err)
				return watermark, total, err
			}
			total++
		}

		if len(orders) > 0 {
			last := orders[len(orders)-1]
			watermark, afterID = last.UpdatedAt, last.ID
		}
		if len(orders) < p.batchSize {
			break
		}
	}

	log.Info().Int("orders", total).Time("since", since).Time("watermark", watermark).Msg("Reindexed orders")
	return watermark, total, nil
}

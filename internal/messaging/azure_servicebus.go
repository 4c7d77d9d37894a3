package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/config"
)

const source = "skillswap-orders"

// EventHandler processes one decoded event
type EventHandler func(ctx context.Context, event Event) error

// ServiceBus publishes and consumes order events on one Azure Service Bus queue
type ServiceBus struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// NewServiceBus creates a new Azure Service Bus client
func NewServiceBus(cfg config.AzureConfig) (*ServiceBus, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	// Create the Service Bus client
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	// Create a sender for the queue
	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &ServiceBus{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// Publish sends an event to the queue
func (s *ServiceBus) Publish(ctx context.Context, event Event) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrapf(err, "failed to send %s event", event.Type)
	}
	return nil
}

func newMessage(event Event) (*azservicebus.Message, error) {
	// Convert the body to JSON
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event")
	}

	messageID := event.ID.String()
	subject := string(event.Type)
	contentType := "application/json"

	return &azservicebus.Message{
		Body:        data,
		MessageID:   &messageID,
		Subject:     &subject,
		ContentType: &contentType,
		ApplicationProperties: map[string]interface{}{
			"source":   source,
			"order_id": event.OrderID.String(),
			"time":     event.OccurredAt.Format(time.RFC3339),
		},
	}, nil
}

// Consume receives events until ctx is cancelled, passing each to handler.
// Handled messages are completed, failed ones abandoned for redelivery and
// undecodable ones dead-lettered.
func (s *ServiceBus) Consume(ctx context.Context, handler EventHandler) error {
	receiver, err := s.client.NewReceiverForQueue(s.queueName, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus receiver")
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus receiver")
		}
	}()

	for {
		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to receive messages")
		}

		for _, message := range messages {
			handleMessage(ctx, receiver, message, handler)
		}
	}
}

// settler is the part of *azservicebus.Receiver used to settle messages
type settler interface {
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
}

func handleMessage(ctx context.Context, s settler, message *azservicebus.ReceivedMessage, handler EventHandler) {
	logger := log.With().Str("message_id", message.MessageID).Logger()

	event, err := DecodeEvent(message.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Dead-lettering undecodable message")
		reason := "undecodable"
		description := err.Error()
		if err := s.DeadLetterMessage(ctx, message, &azservicebus.DeadLetterOptions{
			Reason:           &reason,
			ErrorDescription: &description,
		}); err != nil {
			logger.Error().Err(err).Msg("(DeadLetterMessage) failed")
		}
		return
	}

	if err := handler(ctx, event); err != nil {
		logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Error processing event")
		// Return the message to the queue
		if err := s.AbandonMessage(ctx, message, nil); err != nil {
			logger.Error().Err(err).Msg("(AbandonMessage) failed")
		}
		return
	}

	if err := s.CompleteMessage(ctx, message, nil); err != nil {
		logger.Error().Err(err).Msg("(CompleteMessage) failed")
	}
}

// Close closes the Service Bus client
func (s *ServiceBus) Close() error {
	// Close the sender
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	// Close the client
	if s.client != nil {
		return s.client.Close(context.Background())
	}

	return nil
}

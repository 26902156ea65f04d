package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backoffice/services/complaints/config"
)

// Publisher sends complaint events to an Azure Service Bus topic
type Publisher interface {
	Publish(ctx context.Context, body interface{}) error
	Close() error
}

// servicebusPublisher implements Publisher
type servicebusPublisher struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
}

// NewPublisher creates a new Service Bus publisher for complaint events
func NewPublisher(cfg config.AzureConfig) (Publisher, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.TopicName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &servicebusPublisher{
		client: client,
		sender: sender,
	}, nil
}

// Publish sends a message to the configured topic
func (p *servicebusPublisher) Publish(ctx context.Context, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message body")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "complaints-service",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return p.sender.SendMessage(ctx, msg, nil)
}

// Close closes the publisher
func (p *servicebusPublisher) Close() error {
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if p.client != nil {
		return p.client.Close(context.Background())
	}

	return nil
}

// SubmissionConsumer receives complaint submissions from a Service Bus
// queue, giving upstream systems an ingestion path that bypasses HTTP.
type SubmissionConsumer struct {
	client   *azservicebus.Client
	receiver *azservicebus.Receiver
}

// NewSubmissionConsumer creates a consumer for the submissions queue
func NewSubmissionConsumer(cfg config.AzureConfig) (*SubmissionConsumer, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	receiver, err := client.NewReceiverForQueue(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus receiver")
	}

	return &SubmissionConsumer{
		client:   client,
		receiver: receiver,
	}, nil
}

// ProcessMessages receives messages until the context is cancelled,
// passing each to the handler. Handled messages are completed; failed
// ones are abandoned so the queue redelivers them.
func (c *SubmissionConsumer) ProcessMessages(ctx context.Context, handler func(ctx context.Context, message *azservicebus.ReceivedMessage) error) error {
	for {
		messages, err := c.receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to receive messages")
		}

		for _, message := range messages {
			if err := handler(ctx, message); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to process submission message")
				if abandonErr := c.receiver.AbandonMessage(ctx, message, nil); abandonErr != nil {
					log.Error().Err(abandonErr).Str("message_id", message.MessageID).Msg("Failed to abandon message")
				}
				continue
			}

			if err := c.receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to complete message")
			}
		}
	}
}

// Close closes the consumer
func (c *SubmissionConsumer) Close() error {
	if c.receiver != nil {
		if err := c.receiver.Close(context.Background()); err != nil {
			return err
		}
	}

	if c.client != nil {
		return c.client.Close(context.Background())
	}

	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer configures QoS and starts consuming dispatch messages.
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	// Prefetch bounds unacknowledged deliveries per consumer; paused and
	// long-running jobs must not starve other workers of messages.
	if err := channel.Qos(w.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := w.rabbitClient.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
		slog.Int("prefetch", w.prefetch),
	)

	return deliveries, nil
}

// dispatchDeliveries validates incoming messages and hands them to the pool.
// Malformed messages are NACKed without requeue.
func (w *Worker) dispatchDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg struct {
				JobID string `json:"job_id"`
			}
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				w.logger.Error("Failed to parse message JSON",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				w.nack(delivery.DeliveryTag, false)
				continue
			}

			if _, err := uuid.Parse(msg.JobID); err != nil {
				w.logger.Error("Invalid job_id format - not a UUID",
					slog.String("job_id", msg.JobID),
					slog.String("error", err.Error()),
				)
				w.nack(delivery.DeliveryTag, false)
				continue
			}

			select {
			case w.jobsChan <- &jobMessage{jobID: msg.JobID, deliveryTag: delivery.DeliveryTag}:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", msg.JobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				// Requeue so another worker picks the job up.
				w.nack(delivery.DeliveryTag, true)
				w.logger.Info("Message dispatcher stopped while dispatching job")
				return
			}
		}
	}
}

func (w *Worker) nack(deliveryTag uint64, requeue bool) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		w.logger.Error("Failed to get RabbitMQ channel for NACK")
		return
	}
	if err := channel.Nack(deliveryTag, false, requeue); err != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("error", err.Error()),
		)
	}
}

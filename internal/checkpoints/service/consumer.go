package service

import (
	"context"

	"fleetshare/pkg/config"
	"fleetshare/pkg/kafka"
	kafka_config "fleetshare/pkg/kafka/config"
	"fleetshare/pkg/logger"
)

// ReservationEventConsumer reacts to reservation lifecycle events: a
// cancelled reservation invalidates every open handover token issued
// against it.
type ReservationEventConsumer struct {
	consumer *kafka.Consumer
	log      *logger.Logger
}

func NewReservationEventConsumer(kafkaCfg *kafka_config.Config, service CheckpointService, cfg *config.Config) (*ReservationEventConsumer, error) {
	handler := func(ctx context.Context, msg kafka.Message) error {
		if msg.Headers[kafka.HeaderEventType] != kafka.EventReservationCancelled {
			return nil
		}

		var event kafka.ReservationEvent
		if err := msg.DecodeValue(&event); err != nil {
			cfg.Log.Error("Failed to decode reservation event", "error", err)
			return err
		}

		expired, err := service.ExpireForReservation(ctx, event.ReservationID)
		if err != nil {
			return err
		}

		cfg.Log.Info("Processed reservation cancellation",
			"reservation_id", event.ReservationID,
			"expired_checkpoints", expired,
		)
		return nil
	}

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafka.TopicReservations,
		"checkpoints-reservation-events",
		kafka.TopicReservationsDLQ,
		handler,
	)
	if err != nil {
		return nil, err
	}

	return &ReservationEventConsumer{
		consumer: consumer,
		log:      cfg.Log,
	}, nil
}

func (c *ReservationEventConsumer) Run(ctx context.Context) {
	c.log.Info("Reservation event consumer started", "topic", kafka.TopicReservations)

	if err := c.consumer.Start(ctx); err != nil && ctx.Err() == nil {
		c.log.Error("Reservation event consumer stopped with error", "error", err)
	}
}

func (c *ReservationEventConsumer) Close() error {
	return c.consumer.Close()
}

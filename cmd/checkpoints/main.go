package main

import (
	"fleetshare/internal/checkpoints/handler"
	"fleetshare/internal/checkpoints/repository"
	"fleetshare/internal/checkpoints/service"
	"fleetshare/internal/checkpoints/validator"
	"fleetshare/pkg/app"
	"fleetshare/pkg/client"
	"fleetshare/pkg/config"
	"fleetshare/pkg/kafka"
	kafka_config "fleetshare/pkg/kafka/config"
)

const ServiceName = "checkpoints"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Checkpoints service")

	kafkaCfg := kafka_config.Load()
	checkpointService := initServices(cfg, kafkaCfg)

	consumer, err := service.NewReservationEventConsumer(kafkaCfg, checkpointService, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create reservation event consumer", "error", err)
	}
	defer consumer.Close()

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewCheckpointHandler(checkpointService, cfg.Log))
	serverApp.AddWorker(service.NewSweeper(checkpointService, cfg))
	serverApp.AddWorker(consumer)
	serverApp.Run()
}

func initServices(cfg *config.Config, kafkaCfg *kafka_config.Config) service.CheckpointService {
	checkpointValidator := validator.NewCheckpointValidator(cfg.Log)
	checkpointRepo := repository.NewMongoCheckpointRepository(cfg)

	reservationClient := client.NewReservationClient(cfg.ReservationsServiceURL, cfg.CollaboratorTimeout)

	producer, err := kafka.NewProducer(kafkaCfg, kafka.TopicCheckpoints, kafka.TopicCheckpointsDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	checkpointService := service.NewCheckpointService(
		checkpointRepo,
		checkpointValidator,
		reservationClient,
		producer,
		cfg,
	)

	cfg.Log.Info("Checkpoint service initialized", "database", cfg.MongoDatabaseName)
	return checkpointService
}

package main

import (
	"fleetshare/internal/fairness/handler"
	"fleetshare/internal/fairness/repository"
	"fleetshare/internal/fairness/service"
	"fleetshare/pkg/app"
	"fleetshare/pkg/client"
	"fleetshare/pkg/config"
	"fleetshare/pkg/kafka"
	kafka_config "fleetshare/pkg/kafka/config"
)

const ServiceName = "fairness"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Fairness service")
	fairnessService := initServices(cfg)
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewFairnessHandler(fairnessService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.FairnessService {
	usageRepo := repository.NewUsageStatRepository(cfg)
	scoreRepo := repository.NewFairnessScoreRepository(cfg)
	recRepo := repository.NewRecommendationRepository(cfg)
	reservationReader := repository.NewReservationReader(cfg)

	ownershipClient := client.NewOwnershipClient(cfg.OwnershipServiceURL, cfg.CollaboratorTimeout, cfg.CollaboratorBackoff)
	identityClient := client.NewIdentityClient(cfg.IdentityServiceURL, cfg.CollaboratorTimeout)

	producer, err := kafka.NewProducer(kafka_config.Load(), kafka.TopicRecommendations, kafka.TopicRecommendationsDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	fairnessService := service.NewFairnessService(
		usageRepo,
		scoreRepo,
		recRepo,
		reservationReader,
		ownershipClient,
		identityClient,
		cfg.Client.Redis,
		producer,
		cfg,
	)

	cfg.Log.Info("Fairness service initialized", "database", cfg.MongoDatabaseName)
	return fairnessService
}

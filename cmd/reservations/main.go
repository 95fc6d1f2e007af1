package main

import (
	"fleetshare/internal/reservations/handler"
	"fleetshare/internal/reservations/repository"
	"fleetshare/internal/reservations/service"
	"fleetshare/internal/reservations/validator"
	"fleetshare/pkg/app"
	"fleetshare/pkg/client"
	"fleetshare/pkg/config"
	"fleetshare/pkg/kafka"
	kafka_config "fleetshare/pkg/kafka/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")
	reservationService := initServices(cfg)
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewReservationHandler(reservationService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ReservationService {
	reservationValidator := validator.NewReservationValidator(cfg.BookingGracePeriod, cfg.Log)
	reservationRepo := repository.NewMongoReservationRepository(cfg)
	lockRepo := repository.NewVehicleLockRepository(cfg)

	fairnessClient := client.NewFairnessClient(cfg.FairnessServiceURL, cfg.CollaboratorTimeout, cfg.CollaboratorBackoff)

	producer, err := kafka.NewProducer(kafka_config.Load(), kafka.TopicReservations, kafka.TopicReservationsDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	reservationService := service.NewReservationService(
		reservationRepo,
		lockRepo,
		reservationValidator,
		fairnessClient,
		producer,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService
}

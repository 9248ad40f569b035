package main

import (
	"slotbook/internal/bookings/handler"
	"slotbook/internal/bookings/repository"
	"slotbook/internal/bookings/service"
	"slotbook/internal/bookings/validator"
	"slotbook/pkg/app"
	"slotbook/pkg/config"
	"slotbook/pkg/kafka"
	kafka_config "slotbook/pkg/kafka/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Bookings service")
	bookingService, producer := initServices(cfg)
	if producer != nil {
		defer func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close event producer", "error", err)
			}
		}()
	}

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) (service.BookingService, *kafka.Producer) {
	bookingValidator := validator.NewBookingValidator(cfg.MaxNoteLength, cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewSlotLockRepository(cfg)

	var events service.EventPublisher
	var producer *kafka.Producer
	kafkaCfg := kafka_config.Load()
	if kafkaCfg.Enabled() {
		p, err := kafka.NewProducer(kafkaCfg, cfg.EventsTopic, cfg.EventsDLQTopic)
		if err != nil {
			cfg.Log.Fatal("Failed to create event producer", "error", err)
		}
		producer = p
		events = p
		cfg.Log.Info("Booking event feed enabled", "topic", cfg.EventsTopic)
	} else {
		cfg.Log.Info("Booking event feed disabled (no brokers configured)")
	}

	bookingService := service.NewBookingService(
		bookingRepo,
		lockRepo,
		bookingValidator,
		events,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService, producer
}

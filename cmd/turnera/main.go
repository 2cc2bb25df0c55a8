package main

import (
	"context"
	"errors"

	availability_handler "turnera/internal/availability/handler"
	availability_service "turnera/internal/availability/service"
	"turnera/internal/booking/handler"
	booking_service "turnera/internal/booking/service"
	"turnera/internal/booking/session"
	"turnera/internal/calendar"
	catalog_handler "turnera/internal/catalog/handler"
	catalog_repository "turnera/internal/catalog/repository"
	catalog_service "turnera/internal/catalog/service"
	reservations_handler "turnera/internal/reservations/handler"
	reservations_repository "turnera/internal/reservations/repository"
	reservations_service "turnera/internal/reservations/service"
	"turnera/internal/reservations/validator"
	"turnera/pkg/app"
	"turnera/pkg/config"
	"turnera/pkg/contracts"
	"turnera/pkg/kafka"
	kafka_config "turnera/pkg/kafka/config"
	kafka_middleware "turnera/pkg/kafka/middleware"
	"turnera/pkg/sealer"

	"github.com/joho/godotenv"
)

const ServiceName = "turnera"

func main() {
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()

	cfg.Log.Info("Starting Turnera booking core")
	cfg.SetMongo()
	cfg.SetRedis()

	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	mirrorProducer, err := kafka.NewProducer(kafkaCfg, kafka.TopicCalendarMirror, kafka.TopicCalendarMirrorDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to create calendar mirror producer", "error", err)
	}
	eventsProducer, err := kafka.NewProducer(kafkaCfg, kafka.TopicReservationEvents, kafka.TopicReservationEventsDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to create reservation events producer", "error", err)
	}
	mirrorProducer.Use(kafka_middleware.LoggingProducerMiddleware())
	eventsProducer.Use(kafka_middleware.LoggingProducerMiddleware())

	reservationRepo := reservations_repository.NewMongoReservationRepository(cfg)
	appHandler := initServices(cfg, reservationRepo, mirrorProducer, eventsProducer)

	mirrorConsumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafka.TopicCalendarMirror,
		kafka.GroupCalendarMirror,
		kafka.TopicCalendarMirrorDLQ,
		calendar.NewMirror(calendar.NewClient(cfg), reservationRepo, cfg.Log).Handle,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create calendar mirror consumer", "error", err)
	}
	mirrorConsumer.Use(kafka_middleware.LoggingConsumerMiddleware())

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	go func() {
		cfg.Log.Info("Calendar mirror consumer starting", "topic", kafka.TopicCalendarMirror, "group", kafka.GroupCalendarMirror)
		if err := mirrorConsumer.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Calendar mirror consumer stopped", "error", err)
		}
	}()

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(appHandler)
	serverApp.OnShutdown(func() {
		stopConsumer()
		if err := mirrorConsumer.Close(); err != nil {
			cfg.Log.Error("Failed to close calendar mirror consumer", "error", err)
		}
		if err := mirrorProducer.Close(); err != nil {
			cfg.Log.Error("Failed to close calendar mirror producer", "error", err)
		}
		if err := eventsProducer.Close(); err != nil {
			cfg.Log.Error("Failed to close reservation events producer", "error", err)
		}
		cfg.GracefulShutdown()
	})
	serverApp.Run()
}

func initServices(
	cfg *config.Config,
	reservationRepo reservations_repository.ReservationRepository,
	mirrorProducer *kafka.Producer,
	eventsProducer *kafka.Producer,
) contracts.Handler {
	slotSealer, err := sealer.New(cfg.SlotTokenKey)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize slot token sealer", "error", err)
	}

	catalogRepo := catalog_repository.NewMongoCatalogRepository(cfg)
	catalogService := catalog_service.NewCatalogService(catalogRepo, cfg)

	lockRepo := reservations_repository.NewMongoSlotLockRepository(cfg)
	reservationValidator := validator.NewReservationValidator(cfg.Log)
	reservationService := reservations_service.NewReservationService(
		reservationRepo,
		lockRepo,
		catalogService,
		reservationValidator,
		mirrorProducer,
		eventsProducer,
		cfg,
	)

	availabilityService := availability_service.NewAvailabilityService(catalogRepo, reservationRepo, cfg)

	sessionStore := session.NewRedisStore(cfg)
	dialogService := booking_service.NewDialogService(
		sessionStore,
		catalogService,
		availabilityService,
		reservationService,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return contracts.Compose(
		handler.NewDialogHandler(dialogService, slotSealer, cfg.Log),
		reservations_handler.NewReservationHandler(reservationService, cfg.Log),
		availability_handler.NewAvailabilityHandler(availabilityService, slotSealer, cfg.Log),
		catalog_handler.NewCatalogHandler(catalogService, cfg.Log),
	)
}

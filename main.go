package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-ledger/internal/auth"
	"ms-ledger/internal/checkin"
	"ms-ledger/internal/checkin/checkin_api"
	checkin_db "ms-ledger/internal/checkin/db"
	"ms-ledger/internal/config"
	"ms-ledger/internal/database/migrations"
	"ms-ledger/internal/delegation"
	"ms-ledger/internal/delegation/delegation_api"
	delegation_db "ms-ledger/internal/delegation/db"
	"ms-ledger/internal/event"
	event_db "ms-ledger/internal/event/db"
	"ms-ledger/internal/event/event_api"
	"ms-ledger/internal/kafka"
	"ms-ledger/internal/lock"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/reservation"
	reservation_db "ms-ledger/internal/reservation/db"
	"ms-ledger/internal/reservation/reservation_api"
	"ms-ledger/internal/roster"
	"ms-ledger/internal/sse"
	"ms-ledger/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func openPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// migrate runs on its own handle; closing the migrator closes the database.
func migrate(cfg *config.Config, log *logger.Logger) {
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("MIGRATION", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	runner := migrations.NewRunner(bun.NewDB(sqldb, pgdialect.New()), migrations.Options{Dir: cfg.Ledger.MigrationsDir}, log)
	defer runner.Close()

	if err := runner.Up(); err != nil {
		log.Fatal("MIGRATION", fmt.Sprintf("Failed to apply migrations: %v", err))
	}
}

func openRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

// publisher returns the transfer/event sink. Without Kafka the check-in
// stream is fed straight from the publish path.
func publisher(cfg config.KafkaConfig, emitter *sse.AttendanceEmitter, log *logger.Logger) kafka.Publisher {
	if !cfg.Enabled {
		log.Warn("KAFKA", "Kafka disabled, transfers and ledger events are only logged")
		return &sse.Tee{Next: kafka.NewLogProducer(log), Topic: cfg.Topics.GuestsCheckedIn, Emitter: emitter}
	}

	if err := kafka.EnsureTopicsExist(cfg.Brokers, cfg.Topics.All(), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}
	log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for brokers %v", cfg.Brokers))
	return kafka.NewProducer(cfg.Brokers, log)
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Ledger Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Ledger.AutoMigrate {
		migrate(cfg, log)
	}

	bunDB := openPostgres(cfg.Database, log)
	defer bunDB.Close()
	redisClient := openRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	emitter := sse.NewAttendanceEmitter(log)
	producer := publisher(cfg.Kafka, emitter, log)
	defer producer.Close()
	events := kafka.NewEvents(producer, cfg.Kafka.Topics, log)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.GuestsCheckedIn, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go consumer.Start(ctx, emitter.HandleMessage)
		log.Info("KAFKA", fmt.Sprintf("Check-in stream consuming %s", cfg.Kafka.Topics.GuestsCheckedIn))
	}

	locker := lock.NewRedis(redisClient, log, cfg.Redis.LockTTL, cfg.Redis.LockWait)
	rosters := roster.NewStore(bunDB)
	eventDB := &event_db.DB{Bun: bunDB}
	delegationDB := &delegation_db.DB{Bun: bunDB}

	eventService := event.NewEventService(bunDB, eventDB, rosters, locker, events, log, cfg.Ledger.LicenseAddress)
	reservationService := reservation.NewReservationService(bunDB, eventDB, &reservation_db.DB{Bun: bunDB}, delegationDB,
		rosters, locker, events, log, cfg.Ledger.PurchaseAtomicity)
	delegationService := delegation.NewDelegationService(bunDB, delegationDB, eventDB, rosters, locker, events, log)
	checkinService := checkin.NewCheckInService(bunDB, &checkin_db.DB{Bun: bunDB}, eventDB, rosters, locker, events, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(utils.RequestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteSuccess(w, http.StatusOK, "ok", nil)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth, log))
		log.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			event_api.NewHandler(eventService, log).RegisterRoutes(r)
			reservation_api.NewHandler(reservationService, log).RegisterRoutes(r)
			delegation_api.NewHandler(delegationService, log).RegisterRoutes(r)
			checkin_api.NewHandler(checkinService, log).RegisterRoutes(r)
			checkin_api.NewSSEHandler(log, emitter, eventService).RegisterRoutes(r)
			log.Info("ROUTER", "Ledger routes registered under /api/events")
		})
	})

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// no WriteTimeout: check-in streams are long lived
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Ledger Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Ledger Service shutdown complete")
	}
}

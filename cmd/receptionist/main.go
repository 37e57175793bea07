package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"receptionist/internal/api"
	"receptionist/internal/calendar"
	"receptionist/internal/config"
	"receptionist/internal/events"
	"receptionist/internal/journal"
	"receptionist/internal/ledger"
	"receptionist/internal/metrics"
	"receptionist/internal/notify"
	"receptionist/internal/reception"
	"receptionist/internal/tools"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("RECEPTIONIST_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	clinic, err := cfg.LoadClinic()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load clinic config")
	}
	catalog, err := clinic.Catalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid clinic schedule")
	}
	loc, err := clinic.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid clinic timezone")
	}
	logger.Info().Str("clinic", clinic.String()).Msg("clinic config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus(&logger)
	book := ledger.New(catalog, ledger.WithLocation(loc), ledger.WithFirstNumber(clinic.FirstAppointmentNumber))
	doctor := reception.Doctor{Name: clinic.Doctor.Name, Specialty: clinic.Doctor.Specialty, Fee: clinic.Doctor.Fee}
	svc := reception.NewService(book, catalog, doctor, &logger,
		reception.WithLocation(loc), reception.WithPublisher(bus))

	readyChecks := map[string]api.ReadyCheck{}

	if cfg.Journal.Enabled {
		db, err := journal.Open(cfg.Journal.Path, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("open journal error")
		}
		defer db.Close()
		bus.Subscribe(events.TypeBookingCreated, db.Handle)
		readyChecks["journal"] = db.PingContext
		logger.Info().Str("run_id", db.RunID()).Str("path", cfg.Journal.Path).Msg("booking journal enabled")

		if cfg.Backup.Enabled {
			go startBackupLoop(ctx, db, cfg, &logger)
		}
	}

	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pub := events.NewRedisPublisher(rdb, cfg.Redis.ChannelPrefix, cfg.Redis.QueueSize, &logger)
		bus.SubscribeAll(pub.Handle)
		go pub.Run(ctx)
		readyChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.ManagerChatIDs) > 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("telegram bot init failed, manager notifications disabled")
		} else {
			notifier := notify.NewNotifier(bot, cfg.Telegram.ManagerChatIDs, cfg.Telegram.QueueSize, notify.DefaultRetryConfig(), &logger)
			bus.Subscribe(events.TypeBookingCreated, notifier.Handle)
			go notifier.Run(ctx)
		}
	}

	if cfg.Calendar.Enabled {
		inserter, err := calendar.NewGoogleInserter(ctx, calendar.GoogleConfig{
			CalendarID:       cfg.Calendar.CalendarID,
			CredentialsFile:  cfg.Calendar.CredentialsFile,
			ClientSecretFile: cfg.Calendar.ClientSecretFile,
			TokenFile:        cfg.Calendar.TokenFile,
		})
		if err != nil {
			logger.Error().Err(err).Msg("calendar init failed, calendar sync disabled")
		} else {
			syncer := calendar.NewSyncer(inserter, svc, cfg.Calendar.RequestsPerMinute, cfg.Calendar.QueueSize, &logger)
			bus.Subscribe(events.TypeBookingCreated, syncer.Handle)
			go syncer.Run(ctx)
		}
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Monitoring.GRPCHealthPort > 0 {
		go startGRPCHealthServer(ctx, cfg.Monitoring.GRPCHealthPort, &logger)
	}

	server := api.NewHTTPServer(tools.NewRegistry(svc, catalog, loc), svc, api.Options{
		APIKey:          cfg.Server.APIKey,
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		ReadyChecks:     readyChecks,
	}, &logger)

	logger.Info().Str("doctor", doctor.Name).Msg("receptionist started")
	if err := server.Run(ctx, cfg.Server.Address); err != nil {
		logger.Fatal().Err(err).Msg("http api error")
	}
	logger.Info().Msg("receptionist stopped")
}

func startBackupLoop(ctx context.Context, db *journal.DB, cfg *config.Config, logger *zerolog.Logger) {
	if err := os.MkdirAll(cfg.Backup.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create backup directory")
		return
	}

	// Run first backup after a short delay
	select {
	case <-time.After(1 * time.Minute):
		runBackupTask(db, cfg, logger)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(cfg.BackupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runBackupTask(db, cfg, logger)
		case <-ctx.Done():
			return
		}
	}
}

func runBackupTask(db *journal.DB, cfg *config.Config, logger *zerolog.Logger) {
	timestamp := time.Now().Format("20060102_150405")
	dest := filepath.Join(cfg.Backup.Path, fmt.Sprintf("receptionist_%s.db", timestamp))

	logger.Info().Str("path", dest).Msg("starting journal backup")
	if err := db.Backup(dest); err != nil {
		logger.Error().Err(err).Msg("backup failed")
	} else {
		logger.Info().Msg("backup completed successfully")
	}

	deleted, err := db.CleanupBackups(cfg.Backup.Path, cfg.BackupRetention())
	if err != nil {
		logger.Error().Err(err).Msg("backup cleanup failed")
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startGRPCHealthServer(ctx context.Context, port int, logger *zerolog.Logger) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error().Err(err).Msg("grpc health listen error")
		return
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()
	if err := srv.Serve(lis); err != nil {
		logger.Error().Err(err).Msg("grpc health server error")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	auditService "github.com/jwalitptl/clinic-api/internal/service/audit"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	invitationService "github.com/jwalitptl/clinic-api/internal/service/invitation"
	"github.com/jwalitptl/clinic-api/internal/worker"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.Setup(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := run(cfg, appLogger); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
	log.Info().Msg("worker exited properly")
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m := metrics.NewMetrics("clinic", "worker")

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), appLogger.Zerolog(), m)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer broker.Close()

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)

	processor, err := worker.NewOutboxProcessor(outboxRepo, &base, broker, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
		RetryDelay:   cfg.Outbox.RetryDelay,
		MaxRetries:   cfg.Outbox.MaxRetries,
	}, appLogger.WithFields(map[string]interface{}{"component": "outbox"}), m)
	if err != nil {
		return err
	}

	// The maintenance jobs only touch the repositories below.
	sessions := authService.NewService(authService.Deps{
		Users:    postgres.NewUserRepository(base),
		Sessions: postgres.NewSessionRepository(base),
	}, authService.Config{SessionTTL: cfg.Auth.SessionTTL})
	invitations := invitationService.NewService(&base, invitationService.Repositories{
		Invitations: postgres.NewInvitationRepository(base),
	}, nil, nil, nil, nil, nil, invitationService.Config{TTL: cfg.Invitation.TTL})
	audit := auditService.NewService(postgres.NewAuditRepository(base))

	scheduler := worker.NewScheduler(appLogger.WithFields(map[string]interface{}{"component": "scheduler"}), m)
	for _, job := range []worker.Job{
		worker.SessionPurgeJob(cfg.Jobs.SessionPurgeSchedule, sessions),
		worker.InvitationExpiryJob(cfg.Jobs.InvitationExpirySchedule, invitations),
		worker.OutboxCleanupJob(cfg.Jobs.OutboxCleanupSchedule, outboxRepo, cfg.Jobs.OutboxRetentionDays),
		worker.AuditCleanupJob(cfg.Jobs.AuditCleanupSchedule, audit, cfg.Jobs.AuditRetentionDays),
	} {
		if err := scheduler.Add(job); err != nil {
			return err
		}
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	h := health.NewHandler(map[string]health.Pinger{
		"postgres": health.PingFunc(db.PingContext),
		"redis":    broker,
	})
	h.RegisterRoutes(engine)
	h.RegisterMetrics(engine, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.WorkerPort),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.WorkerPort).Msg("starting worker health server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	scheduler.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()

	select {
	case err = <-errCh:
		err = fmt.Errorf("health server failed: %w", err)
		stop()
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	wg.Wait()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = fmt.Errorf("health server forced to shutdown: %w", shutdownErr)
	}
	return err
}

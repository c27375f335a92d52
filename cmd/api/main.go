package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/cache"
	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/email"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	auditHandler "github.com/jwalitptl/clinic-api/internal/handler/audit"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	catalogHandler "github.com/jwalitptl/clinic-api/internal/handler/catalog"
	clientHandler "github.com/jwalitptl/clinic-api/internal/handler/client"
	clinicHandler "github.com/jwalitptl/clinic-api/internal/handler/clinic"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	invitationHandler "github.com/jwalitptl/clinic-api/internal/handler/invitation"
	memberHandler "github.com/jwalitptl/clinic-api/internal/handler/member"
	paymentHandler "github.com/jwalitptl/clinic-api/internal/handler/payment"
	permissionHandler "github.com/jwalitptl/clinic-api/internal/handler/permission"
	professionalHandler "github.com/jwalitptl/clinic-api/internal/handler/professional"
	webhookHandler "github.com/jwalitptl/clinic-api/internal/handler/webhook"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	auditService "github.com/jwalitptl/clinic-api/internal/service/audit"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	catalogService "github.com/jwalitptl/clinic-api/internal/service/catalog"
	clientService "github.com/jwalitptl/clinic-api/internal/service/client"
	clinicService "github.com/jwalitptl/clinic-api/internal/service/clinic"
	eventService "github.com/jwalitptl/clinic-api/internal/service/event"
	financialService "github.com/jwalitptl/clinic-api/internal/service/financial"
	invitationService "github.com/jwalitptl/clinic-api/internal/service/invitation"
	memberService "github.com/jwalitptl/clinic-api/internal/service/member"
	permissionService "github.com/jwalitptl/clinic-api/internal/service/permission"
	professionalService "github.com/jwalitptl/clinic-api/internal/service/professional"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/event"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/mailer"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/payment/stripe"
	"github.com/jwalitptl/clinic-api/pkg/security"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.Setup(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := run(cfg, appLogger); err != nil {
		log.Fatal().Err(err).Msg("api stopped")
	}
	log.Info().Msg("server exited properly")
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := migrate(cfg.Database.URL()); err != nil {
			return err
		}
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m := metrics.NewMetrics("clinic", "api")

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), appLogger.Zerolog(), m)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer broker.Close()

	// Repositories
	base := postgres.NewBaseRepository(db)
	tx := &base
	userRepo := postgres.NewUserRepository(base)
	sessionRepo := postgres.NewSessionRepository(base)
	clinicRepo := postgres.NewClinicRepository(base)
	memberRepo := postgres.NewMemberRepository(base)
	permissionRepo := postgres.NewPermissionRepository(base)
	invitationRepo := postgres.NewInvitationRepository(base)
	clientRepo := postgres.NewClientRepository(base)
	professionalRepo := postgres.NewProfessionalRepository(base)
	serviceRepo := postgres.NewServiceRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	paymentRepo := postgres.NewPaymentRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	// Caches shared with peers through Redis invalidations
	sessionCache := cache.New("sessions", cfg.Auth.SessionCacheTTL, 2*cfg.Auth.SessionCacheTTL, broker)
	permissionCache := cache.New("permissions", cfg.Auth.PermissionTTL, 2*cfg.Auth.PermissionTTL, broker)
	go func() {
		if err := cache.Listen(ctx, broker, sessionCache, permissionCache); err != nil {
			log.Error().Err(err).Msg("cache invalidation listener stopped")
		}
	}()

	encryptor, err := security.NewAESEncryptor([]byte(cfg.Auth.EncryptionKey))
	if err != nil {
		return fmt.Errorf("failed to create encryptor: %w", err)
	}
	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost)
	v := validator.NewBinding(model.Validators())

	var mail mailer.Mailer = &mailer.LogMailer{}
	if cfg.Mail.Enabled {
		mail = mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
		})
	}
	gateway := stripe.NewGateway(stripe.Config{
		SecretKey:     cfg.Payment.SecretKey,
		WebhookSecret: cfg.Payment.WebhookSecret,
		BaseURL:       cfg.Payment.BaseURL,
	}, m)

	// Services
	auditSvc := auditService.NewService(auditRepo)
	eventSvc := eventService.NewService(outboxRepo)
	permissionSvc := permissionService.NewService(tx, permissionRepo, memberRepo, permissionCache, auditSvc)
	authSvc := authService.NewService(authService.Deps{
		Users:     userRepo,
		Sessions:  sessionRepo,
		JWT:       auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL),
		Hasher:    hasher,
		TOTP:      security.NewTOTP(cfg.App.Name),
		Encryptor: encryptor,
		Cache:     sessionCache,
		Auditor:   auditSvc,
	}, authService.Config{
		SessionTTL:       cfg.Auth.SessionTTL,
		MaxLoginAttempts: cfg.Auth.MaxLoginAttempt,
		LockoutDuration:  cfg.Auth.LockoutDuration,
	})
	clinicSvc := clinicService.NewService(tx, clinicRepo, memberRepo, permissionSvc, auditSvc, cfg.Payment.DefaultCurrency)
	memberSvc := memberService.NewService(tx, memberRepo, permissionSvc, auditSvc)
	invitationSvc := invitationService.NewService(tx, invitationService.Repositories{
		Invitations: invitationRepo,
		Clinics:     clinicRepo,
		Members:     memberRepo,
		Users:       userRepo,
	}, permissionSvc, hasher, email.NewService(mail), eventSvc, auditSvc, invitationService.Config{
		TTL:       cfg.Invitation.TTL,
		AcceptURL: cfg.Invitation.AcceptURL,
	})
	clientSvc := clientService.NewService(tx, clientRepo, v, auditSvc)
	professionalSvc := professionalService.NewService(tx, professionalRepo, memberRepo, v, auditSvc)
	catalogSvc := catalogService.NewService(tx, serviceRepo, v, auditSvc)
	appointmentSvc := appointmentService.NewService(tx, appointmentService.Repositories{
		Appointments:  appointmentRepo,
		Clients:       clientRepo,
		Professionals: professionalRepo,
		Services:      serviceRepo,
	}, v, eventSvc, auditSvc)
	financialSvc := financialService.NewService(tx, financialService.Repositories{
		Payments:     paymentRepo,
		Clients:      clientRepo,
		Clinics:      clinicRepo,
		Appointments: appointmentRepo,
	}, gateway, v, eventSvc, auditSvc)

	// HTTP
	authMiddleware := middleware.NewAuthMiddleware(authSvc, memberSvc, clinicSvc, permissionSvc, cfg.Auth.CookieName)
	tracker := event.NewTracker(eventSvc, event.TrackerConfig{
		Enabled:       cfg.Events.Enabled,
		TrackedFields: cfg.Events.TrackedFields,
	})

	handlers := router.Handlers{
		Health: health.NewHandler(map[string]health.Pinger{
			"postgres": health.PingFunc(db.PingContext),
			"redis":    broker,
		}),
		Auth: authHandler.NewHandler(authSvc, authHandler.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Domain: cfg.Auth.CookieDomain,
			Secure: cfg.Auth.CookieSecure,
		}),
		Clinic:       clinicHandler.NewHandler(clinicSvc),
		Member:       memberHandler.NewHandler(memberSvc),
		Permission:   permissionHandler.NewHandler(permissionSvc),
		Invitation:   invitationHandler.NewHandler(invitationSvc),
		Client:       clientHandler.NewHandler(clientSvc),
		Professional: professionalHandler.NewHandler(professionalSvc),
		Catalog:      catalogHandler.NewHandler(catalogSvc),
		Appointment:  appointmentHandler.NewHandler(appointmentSvc),
		Payment:      paymentHandler.NewHandler(financialSvc),
		Audit:        auditHandler.NewHandler(auditSvc),
		Webhook:      webhookHandler.NewHandler(financialSvc),
	}

	routerConfig := router.RouterConfig{
		RateTTL:        cfg.RateLimit.TTL,
		CORSConfig:     corsConfig(cfg.CORS.AllowedOrigins),
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Gatherer:       prometheus.DefaultGatherer,
		ReleaseMode:    cfg.App.Environment == "production",
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
		routerConfig.AuthRateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond / 10)
		routerConfig.AuthRateBurst = 5
	}

	r := router.NewRouter(authMiddleware, tracker, m, handlers, routerConfig)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func migrate(databaseURL string) error {
	migrator, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func corsConfig(origins []string) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(origins) > 0 {
		cors.AllowOrigins = origins
	}
	return cors
}

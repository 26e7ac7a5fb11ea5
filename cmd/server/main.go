package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agency-crm/internal/auth"
	"agency-crm/internal/billing"
	"agency-crm/internal/cache"
	"agency-crm/internal/config"
	"agency-crm/internal/database"
	"agency-crm/internal/db"
	"agency-crm/internal/documents"
	"agency-crm/internal/handlers"
	"agency-crm/internal/health"
	h "agency-crm/internal/http"
	"agency-crm/internal/logger"
	"agency-crm/internal/middleware"
	"agency-crm/internal/realtime"
	"agency-crm/internal/repositories"
	"agency-crm/internal/services"
	"agency-crm/internal/storage"
	"agency-crm/internal/timeutil"
	"agency-crm/migrations"

	"github.com/rs/zerolog/log"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "agency-crm",
		Version:     version,
	})

	if err := timeutil.SetLocation(cfg.Business.Timezone); err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Business.Timezone).Msg("Unknown timezone, keeping default")
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create database pool")
	}
	defer pool.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := database.NewMigrator(pool, migrations.FS).RunMigrations(migrateCtx); err != nil {
		if pool.Ping(migrateCtx) == nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		log.Warn().Err(err).Msg("Database unreachable, migrations skipped")
	}
	cancel()

	// Redis is optional
	if cfg.Redis.Addr != "" {
		if err := cache.Init(cfg); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, continuing without cache")
		} else {
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connected")
		}
	}
	defer cache.Close()

	objects, err := storage.New(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Object storage unavailable, documents will be rendered on demand")
		objects = storage.Disabled()
	}

	hub := realtime.NewHub(cache.GetClient())
	go hub.Run(ctx)

	// Repositories
	userRepo := repositories.NewUserRepository(pool)
	projectRepo := repositories.NewProjectRepository(pool)
	leadRepo := repositories.NewLeadRepository(pool)
	serviceRepo := repositories.NewServiceRepository(pool)
	billingRepo := repositories.NewBillingRepository(pool)
	taskRepo := repositories.NewTaskRepository(pool)
	sprintRepo := repositories.NewSprintRepository(pool)
	milestoneRepo := repositories.NewMilestoneRepository(pool)
	preferenceRepo := repositories.NewPreferenceRepository(pool)
	settingRepo := repositories.NewSystemSettingRepository(pool)

	// Services
	jwtManager := auth.NewJWTManager(cfg)
	settingService := services.NewSystemSettingService(settingRepo)
	generator := documents.NewGenerator(settingService, cfg.Business.Currency)
	billingService := billing.NewService(billingRepo, generator, objects, hub)
	totpService := services.NewTOTPService(userRepo)
	userService := services.NewUserService(userRepo, jwtManager, totpService, cfg)
	projectService := services.NewProjectService(projectRepo, billingService, hub)
	leadService := services.NewLeadService(leadRepo, hub)
	catalogService := services.NewCatalogService(serviceRepo, hub)
	workService := services.NewWorkService(projectRepo, taskRepo, sprintRepo, milestoneRepo, hub)
	calendarService := services.NewCalendarService(milestoneRepo, taskRepo, sprintRepo)
	preferenceService := services.NewPreferenceService(preferenceRepo)
	onlinePaymentService := services.NewOnlinePaymentService(cfg, billingService)

	if err := userService.BootstrapAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
		log.Error().Err(err).Msg("Failed to create bootstrap admin")
	}

	var storagePing health.PingFunc
	if objects.Enabled() {
		storagePing = objects.Ping
	}
	healthChecker := health.NewHealthChecker(pool, cache.Ping, storagePing)

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, userRepo)
	router := h.NewRouter(&h.Handlers{
		Auth:          handlers.NewAuthHandler(userService),
		User:          handlers.NewUserHandler(userService),
		Project:       handlers.NewProjectHandler(projectService),
		Lead:          handlers.NewLeadHandler(leadService),
		Catalog:       handlers.NewCatalogHandler(catalogService),
		Billing:       handlers.NewBillingHandler(billingService),
		OnlinePayment: handlers.NewOnlinePaymentHandler(onlinePaymentService),
		Work:          handlers.NewWorkHandler(workService),
		Calendar:      handlers.NewCalendarHandler(calendarService),
		Preference:    handlers.NewPreferenceHandler(preferenceService),
		SystemSetting: handlers.NewSystemSettingHandler(settingService),
		Health:        handlers.NewHealthHandler(healthChecker),
	}, hub, authMiddleware)

	handler := middleware.PanicRecovery(middleware.RequestLogger(middleware.NewCORS(cfg)(router)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

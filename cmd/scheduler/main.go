package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/app"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/config"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/handler"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/notify"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Scheduler stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Scheduler stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	logger.Info("Starting scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("timezone", cfg.Timezone),
		zap.Duration("notice_cutoff", cfg.Schedule.NoticeCutoff),
	)

	pool, err := app.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.MigrationsEnabled {
		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			return err
		}
		err = migrator.Run(ctx)
		_ = migrator.Close()
		if err != nil {
			return err
		}
	}

	// Репозитории
	slotRepo := repository.NewSlotRepository(pool, cfg.Timezone)
	courseRepo := repository.NewStudentCourseRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	templateRepo := repository.NewTemplateRepository(pool, logger)
	txManager := repository.NewPostgresTxManager(pool, cfg.Timezone, logger)

	metrics := service.NewMetricsService()

	var cacheStore service.SlotCacheStore
	if cfg.CacheEnabled() {
		client, err := app.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		cacheStore = repository.NewSlotCacheRepository(client)
	}
	cache := service.NewSlotCache(cacheStore, metrics, cfg.Schedule.SlotCacheTTL, logger)

	var notifier service.Notifier = service.NopNotifier{}
	if cfg.NotifierEnabled() {
		b, err := notify.NewTelegramBot(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		notifier = notify.NewTelegramNotifier(b, cfg.Telegram.StaffChatID, loc, logger)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Сервисы
	validate := validator.New()
	directory := service.NewSlotDirectory(slotRepo, cache, loc, time.Now, logger)
	availabilitySvc := service.NewAvailabilityService(templateRepo, txManager, directory, validate, metrics, loc, time.Now, logger)
	ledgerSvc := service.NewLedgerService(courseRepo, txManager, validate, metrics, time.Now, logger)
	bookingSvc := service.NewBookingService(txManager, directory, notifier, metrics, time.Now, logger)
	workflowSvc := service.NewWorkflowService(txManager, assignmentRepo, directory, notifier, metrics, time.Now, cfg.Schedule.NoticeCutoff, logger)

	router := handler.NewRouter(handler.RouterDeps{
		APIPrefix:    cfg.APIPrefix,
		Logger:       logger,
		Metrics:      metrics,
		Availability: handler.NewAvailabilityHandler(availabilitySvc),
		Slots:        handler.NewSlotHandler(directory, loc),
		Courses:      handler.NewStudentCourseHandler(ledgerSvc),
		Bookings:     handler.NewBookingHandler(bookingSvc, workflowSvc),
	})

	server := app.NewServer(cfg.Addr(), router, cfg.HTTP, logger)
	return server.Run(ctx)
}

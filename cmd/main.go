package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/field-visit-backend/config"
	"github.com/sharath018/field-visit-backend/database"
	"github.com/sharath018/field-visit-backend/internal/auditlog"
	"github.com/sharath018/field-visit-backend/internal/auth"
	"github.com/sharath018/field-visit-backend/internal/employee"
	"github.com/sharath018/field-visit-backend/internal/notification"
	"github.com/sharath018/field-visit-backend/internal/reports"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"github.com/sharath018/field-visit-backend/middleware"
	"github.com/sharath018/field-visit-backend/routes"
	"github.com/sharath018/field-visit-backend/utils"
	"go.uber.org/zap"
)

// @title Field Visit Tracking API
// @version 1.0
// @description Visit lifecycle, approval and access control for district field inspections.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	logger, err := utils.NewLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	logger.Info("running database migrations")
	if err := database.Migrate(db,
		&auditlog.AuditLog{},
		&auth.User{},
		&employee.Employee{},
		&visit.Visit{},
		&notification.InAppNotification{},
		&notification.DeviceToken{},
	); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}

	if err := utils.InitRedis(cfg); err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	if utils.RedisClient == nil {
		logger.Warn("redis disabled: no in-flight locks, cache or live notifications")
	}

	fcm, err := utils.InitFirebase(ctx, cfg, logger)
	if err != nil {
		logger.Warn("firebase init failed, push disabled", zap.Error(err))
	}

	// ========== Services ==========
	auditSvc := auditlog.NewService(auditlog.NewRepository(db), logger)

	employeeRepo := employee.NewRepository(db)
	if err := employee.Seed(ctx, employeeRepo); err != nil {
		logger.Fatal("seed employee registry", zap.Error(err))
	}
	var cache employee.Cache
	if utils.RedisClient != nil {
		cache = utils.NewRedisCache(utils.RedisClient)
	}
	employeeSvc := employee.NewService(employeeRepo, cache, logger)

	authSvc := auth.NewService(auth.NewRepository(db), employeeSvc, auditSvc, cfg, logger)

	var notifyOpts []notification.Option
	if mailer := utils.NewMailer(cfg, logger); mailer != nil {
		notifyOpts = append(notifyOpts, notification.WithMailer(mailer))
	}
	notificationSvc := notification.NewService(
		notification.NewRepository(db),
		notification.NewRedisBroadcaster(utils.RedisClient),
		notification.NewFCMPusher(fcm, logger),
		logger,
		notifyOpts...,
	)

	var wg sync.WaitGroup

	// Visit events go through Kafka when brokers are configured; otherwise
	// they are handed to the notification service directly.
	inProcess := notification.NewInProcessPublisher(notificationSvc, logger)
	var publisher visit.Publisher = inProcess
	if writer := utils.NewVisitEventWriter(cfg); writer != nil {
		defer writer.Close()
		publisher = visit.NewKafkaPublisher(writer)

		reader := utils.NewVisitEventReader(cfg)
		defer reader.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := notification.Consume(ctx, reader, notificationSvc, logger); err != nil {
				logger.Error("visit event consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("kafka enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	locker := visit.NopLocker()
	if utils.RedisClient != nil {
		locker = visit.NewRedisLocker(utils.RedisClient)
	}

	visitSvc := visit.NewService(visit.NewRepository(db), employeeSvc, auditSvc, logger,
		visit.WithLocker(locker),
		visit.WithPublisher(publisher),
	)
	reportsSvc := reports.NewService(visitSvc, reports.NewExporter(), auditSvc, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		visit.RunOverdueSweeper(ctx, visitSvc, cfg.OverdueSweep, logger)
	}()

	// ========== HTTP ==========
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.MaxMultipartMemory = 32 << 20

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("create upload dir", zap.String("dir", cfg.UploadDir), zap.Error(err))
	}

	err = routes.Setup(router, cfg, routes.Services{
		Audit:         auditSvc,
		Auth:          authSvc,
		Employees:     employeeSvc,
		Visits:        visitSvc,
		Notifications: notificationSvc,
		Reports:       reportsSvc,
	}, utils.RedisClient, logger)
	if err != nil {
		logger.Fatal("routes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	wg.Wait()
	inProcess.Wait()

	if utils.RedisClient != nil {
		_ = utils.RedisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

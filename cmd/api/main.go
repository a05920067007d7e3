package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sanvida/hms-api/api/swagger"
	"github.com/sanvida/hms-api/internal/handler"
	"github.com/sanvida/hms-api/internal/middleware"
	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/repository"
	"github.com/sanvida/hms-api/internal/service"
	"github.com/sanvida/hms-api/pkg/cache"
	"github.com/sanvida/hms-api/pkg/config"
	"github.com/sanvida/hms-api/pkg/database"
	"github.com/sanvida/hms-api/pkg/logger"
	corsmiddleware "github.com/sanvida/hms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sanvida/hms-api/pkg/middleware/requestid"
	"github.com/sanvida/hms-api/pkg/storage"
)

// @title Sanvida HMS API
// @version 1.0.0
// @description Hospital management API: staff rotation, appointment queue, bed assignment, billing and insurance
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	epoch, err := time.Parse("2006-01-02", cfg.Rotation.Epoch)
	if err != nil {
		logr.Sugar().Fatalw("invalid rotation epoch", "value", cfg.Rotation.Epoch, "error", err)
	}

	exportStore, err := storage.NewLocalStorage(cfg.Exports.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "dir", cfg.Exports.Dir, "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SigningSecret, cfg.Exports.ResultTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	admissionRepo := repository.NewAdmissionRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	insuranceRepo := repository.NewInsuranceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, 10*time.Minute, logr, true)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, employeeRepo, validate, logr)
	employeeSvc := service.NewEmployeeService(employeeRepo, validate, logr)
	patientSvc := service.NewPatientService(patientRepo, validate, logr)
	shiftSvc := service.NewShiftService(shiftRepo, employeeRepo, epoch, validate, logr)
	appointmentSvc := service.NewAppointmentService(
		appointmentRepo, employeeRepo, cacheRepo,
		cfg.Appointments.BoardCacheTTL, cfg.Appointments.AllowRerate,
		validate, logr,
	)
	bedSvc := service.NewBedService(roomRepo, admissionRepo, patientRepo, validate, logr)
	billingSvc := service.NewBillingService(billingRepo, patientRepo, validate, logr)
	insuranceSvc := service.NewInsuranceService(insuranceRepo, patientRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(
		patientRepo, appointmentRepo, roomRepo, admissionRepo, insuranceRepo, billingRepo,
		cacheRepo, cfg.Dashboard.CacheTTL, logr,
	)
	exportSvc := service.NewExportService(
		patientRepo, employeeRepo, appointmentRepo, billingRepo, shiftSvc,
		exportStore, exportSigner,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.ResultTTL},
		validate, logr,
	)

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		Users:        handler.NewUserHandler(userSvc),
		Employees:    handler.NewEmployeeHandler(employeeSvc),
		Shifts:       handler.NewShiftHandler(shiftSvc),
		Appointments: handler.NewAppointmentHandler(appointmentSvc),
		Patients:     handler.NewPatientHandler(patientSvc),
		Rooms:        handler.NewRoomHandler(bedSvc),
		Billing:      handler.NewBillingHandler(billingSvc),
		Insurance:    handler.NewInsuranceHandler(insuranceSvc),
		Dashboard:    handler.NewDashboardHandler(dashboardSvc),
		Exports:      handler.NewExportHandler(exportSvc),
		Metrics:      metricsHandler,
		System:       handler.NewSystemHandler(cacheSvc),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cache": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, authSvc, userRepo, handler.RouterConfig{
		DashboardEnabled: cfg.Dashboard.Enabled,
		ExportsEnabled:   cfg.Exports.Enabled,
	})

	go occupancyGaugeLoop(context.Background(), appointmentRepo, roomRepo, metricsSvc, logr)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// occupancyGaugeLoop refreshes the queue and bed occupancy gauges once a
// minute so Prometheus sees current values between requests.
func occupancyGaugeLoop(ctx context.Context, appointments *repository.AppointmentRepository, rooms *repository.RoomRepository, metrics *service.MetricsService, logr *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		counts, err := appointments.CountTodayByStatus(ctx, time.Now().UTC())
		if err != nil {
			logr.Warn("failed to refresh queue gauge", zap.Error(err))
		} else {
			metrics.SetQueueWaiting(counts[models.AppointmentWaiting])
		}

		_, occupied, err := rooms.BedOccupancy(ctx)
		if err != nil {
			logr.Warn("failed to refresh bed occupancy gauge", zap.Error(err))
		} else {
			metrics.SetBedsOccupied(occupied)
		}
	}
}

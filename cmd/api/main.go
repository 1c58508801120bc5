package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/dlcampaign/dlc-api/api/swagger"
	"github.com/dlcampaign/dlc-api/internal/handler"
	"github.com/dlcampaign/dlc-api/internal/middleware"
	"github.com/dlcampaign/dlc-api/internal/models"
	"github.com/dlcampaign/dlc-api/internal/repository"
	"github.com/dlcampaign/dlc-api/internal/service"
	"github.com/dlcampaign/dlc-api/pkg/cache"
	"github.com/dlcampaign/dlc-api/pkg/config"
	"github.com/dlcampaign/dlc-api/pkg/database"
	"github.com/dlcampaign/dlc-api/pkg/jobs"
	"github.com/dlcampaign/dlc-api/pkg/logger"
	corsmiddleware "github.com/dlcampaign/dlc-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dlcampaign/dlc-api/pkg/middleware/requestid"
	"github.com/dlcampaign/dlc-api/pkg/storage"
)

// @title Digital Literacy Campaign API
// @version 1.0.0
// @description Exam scoring and certificate eligibility service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, question bank caching disabled", "error", err)
		redisClient = nil
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	instituteRepo := repository.NewInstituteRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	examRepo := repository.NewExamRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	exportRepo := repository.NewExportRepository(db)
	bankCache := repository.NewBankCache(redisClient, cfg.Exams.BankCacheTTL)

	authSvc := service.NewAuthService(userRepo, instituteRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
	})
	instituteSvc := service.NewInstituteService(instituteRepo, statsRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, validate, logr)
	certificateSvc := service.NewCertificateService(examRepo, courseRepo, certificateRepo, logr)
	examSvc := service.NewExamService(examRepo, courseRepo, userRepo, uploadStore, bankCache, certificateSvc, metrics, validate, logr, service.ExamConfig{
		PassingThreshold: cfg.Exams.PassingThreshold,
		MaxPageSize:      cfg.Exams.MaxPageSize,
		MaxUploadSize:    cfg.Uploads.MaxUploadSize,
	})
	statsSvc := service.NewStatsService(statsRepo, logr)

	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(exportRepo, examRepo, exportStore, signer, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Exports.Enabled {
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
		go cleanupExports(ctx, exportStore, cfg.Exports, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	adminHandler := handler.NewAdminHandler(instituteSvc, courseSvc, statsSvc)
	trainerHandler := handler.NewTrainerHandler(courseSvc, examSvc)
	candidateHandler := handler.NewCandidateHandler(examSvc, certificateSvc, statsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	api.GET("/courses", middleware.JWT(authSvc), adminHandler.ListCourses)
	if cfg.Exports.Enabled {
		api.GET("/exports/download", exportHandler.Download)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/institutes", adminHandler.CreateInstitute)
	admin.GET("/institutes", adminHandler.ListInstitutes)
	admin.GET("/institutes/:id/stats", adminHandler.InstituteStats)
	admin.POST("/courses", adminHandler.CreateCourse)
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/analytics", adminHandler.SystemAnalytics)

	trainer := api.Group("/trainer", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleTrainer))
	trainer.POST("/subjects", trainerHandler.CreateSubject)
	trainer.GET("/subjects", trainerHandler.ListSubjects)
	trainer.GET("/subjects/:id/exams", trainerHandler.ListSubjectExams)
	trainer.GET("/candidates", trainerHandler.ListCandidates)
	trainer.POST("/exams", trainerHandler.CreateExam)
	trainer.POST("/exams/:id/questions", trainerHandler.UploadQuestionBank)
	trainer.GET("/exams/:id/results", trainerHandler.ExamResults)
	if cfg.Exports.Enabled {
		trainer.POST("/exams/:id/exports", exportHandler.Request)
		trainer.GET("/exports/:id", exportHandler.Status)
	}

	candidate := api.Group("/candidate", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleCandidate))
	candidate.GET("/exams", candidateHandler.AvailableExams)
	candidate.GET("/exams/:id/questions", candidateHandler.ExamQuestions)
	candidate.POST("/attempts", candidateHandler.SubmitExam)
	candidate.GET("/attempts", candidateHandler.Attempts)
	candidate.GET("/certificates", candidateHandler.Certificates)
	candidate.GET("/progress", candidateHandler.Progress)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

func cleanupExports(ctx context.Context, store *storage.LocalStorage, cfg config.ExportsConfig, logr *zap.Logger) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.CleanupOlderThan(cfg.SignedURLTTL)
			if err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
				continue
			}
			if len(deleted) > 0 {
				logr.Sugar().Infow("expired exports removed", "count", len(deleted))
			}
		}
	}
}

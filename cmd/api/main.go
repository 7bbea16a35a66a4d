package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/expoferia/expoferia-api/api/swagger"
	"github.com/expoferia/expoferia-api/internal/handler"
	"github.com/expoferia/expoferia-api/internal/middleware"
	"github.com/expoferia/expoferia-api/internal/models"
	"github.com/expoferia/expoferia-api/internal/repository"
	"github.com/expoferia/expoferia-api/internal/service"
	"github.com/expoferia/expoferia-api/pkg/cache"
	"github.com/expoferia/expoferia-api/pkg/config"
	"github.com/expoferia/expoferia-api/pkg/database"
	"github.com/expoferia/expoferia-api/pkg/export"
	"github.com/expoferia/expoferia-api/pkg/logger"
	corsmiddleware "github.com/expoferia/expoferia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/expoferia/expoferia-api/pkg/middleware/requestid"
	"github.com/expoferia/expoferia-api/pkg/storage"
)

// @title Expoferia API
// @version 1.0.0
// @description Project exposition management backend
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
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, report caching disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cacheRepo != nil)

	documents, err := storage.NewDocumentStore(cfg.Documents.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare document storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	participantSvc := service.NewParticipantService(participantRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	periodSvc := service.NewPeriodService(periodRepo, validate, logr)
	projectSvc := service.NewProjectService(projectRepo, periodRepo, subjectRepo, participantRepo, validate, logr)
	reportSvc := service.NewReportService(reportRepo, periodRepo, subjectRepo, participantRepo, cacheSvc, cfg.Reports.CacheTTL, logr)
	projectSvc.SetReportCache(reportSvc)
	exportSvc := service.NewExportService(reportSvc, documents, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Documents.SignedURLTTL,
	}, logr, nil, nil)
	certificateSvc := service.NewCertificateService(projectRepo, export.NewCertificateExporter(cfg.Certificates.EventName, cfg.Certificates.IssuedBy), documents, signer, cfg.APIPrefix, logr)
	mailingSvc := service.NewMailingService(userRepo, participantRepo, reportSvc, cfg.MailingLists.Delimiter, logr)

	if removed, err := exportSvc.Cleanup(); err != nil {
		logr.Warn("document cleanup failed", zap.Error(err))
	} else if len(removed) > 0 {
		logr.Info("removed stale documents", zap.Int("count", len(removed)))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	participantHandler := handler.NewParticipantHandler(participantSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	periodHandler := handler.NewPeriodHandler(periodSvc)
	projectHandler := handler.NewProjectHandler(projectSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	exportHandler := handler.NewExportHandler(exportSvc, certificateSvc, mailingSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/:token", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)
	authed.PUT("/auth/password", authHandler.ChangePassword)

	admin := middleware.RequireRoles(models.RoleAdministrator)
	manage := middleware.RequireRoles(models.RoleAdministrator, models.RoleCoordinator)

	authed.GET("/users", admin, userHandler.List)
	authed.GET("/users/:id", middleware.RBAC(string(models.RoleAdministrator), "SELF"), userHandler.Get)
	authed.POST("/users", admin, userHandler.Create)
	authed.PUT("/users/:id", admin, userHandler.Update)
	authed.PUT("/users/:id/password", admin, userHandler.ResetPassword)
	authed.DELETE("/users/:id", admin, userHandler.Delete)

	authed.GET("/periods", periodHandler.List)
	authed.GET("/periods/:id", periodHandler.Get)
	authed.POST("/periods", manage, periodHandler.Create)
	authed.PUT("/periods/:id", manage, periodHandler.Update)
	authed.DELETE("/periods/:id", manage, periodHandler.Delete)

	authed.GET("/subjects", subjectHandler.List)
	authed.GET("/subjects/:id", subjectHandler.Get)
	authed.POST("/subjects", manage, subjectHandler.Create)
	authed.PUT("/subjects/:id", manage, subjectHandler.Update)
	authed.DELETE("/subjects/:id", manage, subjectHandler.Delete)

	authed.GET("/participants", participantHandler.List)
	authed.GET("/participants/:id", participantHandler.Get)
	authed.POST("/participants", manage, participantHandler.Create)
	authed.PUT("/participants/:id", manage, participantHandler.Update)
	authed.DELETE("/participants/:id", manage, participantHandler.Delete)

	authed.GET("/projects", projectHandler.List)
	authed.GET("/projects/:id", projectHandler.Get)
	authed.POST("/projects", manage, projectHandler.Create)
	authed.PUT("/projects/:id", manage, projectHandler.Update)
	authed.DELETE("/projects/:id", manage, projectHandler.Delete)
	authed.GET("/projects/:id/participants", projectHandler.Roster)
	authed.POST("/projects/:id/participants", manage, projectHandler.AddParticipants)
	authed.PUT("/projects/:id/participants", manage, projectHandler.ReplaceParticipants)
	authed.DELETE("/projects/:id/participants", manage, projectHandler.RemoveParticipants)
	authed.POST("/projects/:id/certificates", manage, exportHandler.Certificates)

	authed.GET("/reports/projects", reportHandler.Projects)
	authed.GET("/reports/participants", reportHandler.Participants)
	authed.GET("/reports/projects/export", exportHandler.ProjectReport)
	authed.GET("/reports/participants/export", exportHandler.ParticipantReport)

	authed.GET("/mailing-list", manage, exportHandler.MailingList)
	authed.GET("/mailing-list/export", manage, exportHandler.MailingListCSV)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

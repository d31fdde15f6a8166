package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"receiptmaker/internal"
	"receiptmaker/internal/auth"
	"receiptmaker/internal/cache"
	"receiptmaker/internal/config"
	"receiptmaker/internal/handlers"
	"receiptmaker/internal/logger"
	"receiptmaker/internal/render"
	"receiptmaker/internal/scheduler"
	"receiptmaker/internal/services"
	"receiptmaker/internal/storage"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.Configure(cfg.LogLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := internal.InitDB(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := internal.DB

	ctx := context.Background()
	var storageClient storage.StorageClient
	var localStorageClient *storage.LocalStorageClient

	switch cfg.Storage.Type {
	case "gcs":
		log.Infof("Initializing GCS storage with bucket: %s", cfg.GCS.BucketName)
		client, err := storage.NewGCSClient(ctx, cfg.GCS.BucketName, cfg.GCS.ProjectID, cfg.GCS.CredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize GCS client: %v", err)
		}
		storageClient = client
	default:
		log.Infof("Initializing local storage at: %s", cfg.Storage.LocalPath)
		client, err := storage.NewLocalStorageClient(cfg.Storage.LocalPath, cfg.Storage.LocalURL, cfg.Storage.SecretKey)
		if err != nil {
			log.Fatalf("Failed to initialize local storage client: %v", err)
		}
		storageClient = client
		localStorageClient = client
	}
	defer storageClient.Close()

	// Redis is optional: without it defaults are cached per process and the
	// campaign run is not locked across replicas.
	var rdb *redis.Client
	var locker *redislock.Client
	var defaultsStore cache.Store = cache.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.LogWarn(log, "main", "main", "redis ping", cfg.Redis.Addr, err)
		}
		defaultsStore = cache.NewRedisStore(rdb, cfg.Redis.CacheTTL)
		locker = redislock.New(rdb)
		log.Infof("Redis enabled at %s", cfg.Redis.Addr)
	}

	var provider auth.Provider
	switch cfg.Auth.Provider {
	case "google":
		provider, err = auth.NewGoogleProvider(cfg.Auth.GoogleClientID)
	default:
		provider, err = auth.NewJWTProvider(cfg.Auth.JWTSecret)
	}
	if err != nil {
		log.Fatalf("Failed to initialize auth provider: %v", err)
	}
	authMiddleware := auth.NewMiddleware(provider, auth.NewAdminList(cfg.Auth.AdminEmails))

	var pdfBackend render.PDFBackend = render.LocalPDF{}
	if cfg.Render.PDFBackend == "gotenberg" {
		gotenbergPDF, err := render.NewGotenbergPDF(cfg.Gotenberg.URL, cfg.Gotenberg.Timeout)
		if err != nil {
			logger.LogWarn(log, "main", "main", "gotenberg", cfg.Gotenberg.URL, err)
		} else {
			pdfBackend = gotenbergPDF
			log.Infof("PDF export via Gotenberg at %s", cfg.Gotenberg.URL)
		}
	}

	var mailer services.Mailer = services.NewLogMailer(log)
	if cfg.Mail.Host != "" {
		mailer = services.NewSMTPMailer(cfg.Mail)
	}
	signer, err := services.NewUnsubscribeSigner(cfg.Campaign.UnsubscribeSecret)
	if err != nil {
		log.Fatalf("Failed to initialize campaign: %v", err)
	}

	// Services
	statisticsService := services.NewStatisticsService(db, log)
	premiumService := services.NewPremiumService(db)
	templateService := services.NewTemplateService(db)
	userTemplateService := services.NewUserTemplateService(db, statisticsService)
	sectionTemplateService := services.NewSectionTemplateService(db, log)
	sectionDefaults := cache.NewSectionDefaults(sectionTemplateService, defaultsStore, log)
	sectionTemplateService.SetCache(sectionDefaults)

	composer := render.NewComposer(log)
	rasterizer := render.NewRasterizer(render.NewImageLoader(storageClient), log)
	renderService := services.NewRenderService(composer, render.NewExporter(rasterizer, pdfBackend), premiumService, statisticsService)

	campaignService := services.NewCampaignService(db, mailer, signer, services.CampaignOptions{
		PublicBaseURL:  cfg.Campaign.PublicBaseURL,
		DefaultEnabled: cfg.Campaign.Enabled,
		Locker:         locker,
	}, log)
	aiGenerator := services.NewAIGenerator(cfg.AI, statisticsService, log)
	if !aiGenerator.Enabled() {
		log.Warn("GEMINI_API_KEY not set, AI template generation is disabled")
	}
	uploadService := services.NewUploadService(storageClient)
	blogService := services.NewBlogService(db)
	activityLogService := services.NewActivityLogService(db, log)

	// Handlers
	templateHandler := handlers.NewTemplateHandler(templateService, userTemplateService)
	sectionTemplateHandler := handlers.NewSectionTemplateHandler(sectionTemplateService, sectionDefaults)
	renderHandler := handlers.NewRenderHandler(renderService, sectionDefaults)
	uploadHandler := handlers.NewUploadHandler(uploadService, aiGenerator)
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	blogHandler := handlers.NewBlogHandler(blogService)
	statisticsHandler := handlers.NewStatisticsHandler(statisticsService)
	logsHandler := handlers.NewLogsHandler(activityLogService)
	userHandler := handlers.NewUserHandler(premiumService)

	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AddAllowHeaders("Authorization")
	corsConfig.AddExposeHeaders("Content-Disposition", "X-Watermarked")
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"storage":   cfg.Storage.Type,
			"redis":     rdb != nil,
			"ai":        aiGenerator.Enabled(),
		})
	})

	if localStorageClient != nil {
		r.GET("/files/*filepath", func(c *gin.Context) {
			objectName := strings.TrimPrefix(c.Param("filepath"), "/")
			expiresAt, err := strconv.ParseInt(c.Query("expires"), 10, 64)
			if err != nil || c.Query("signature") == "" {
				c.JSON(http.StatusForbidden, gin.H{"error": "signed URL required"})
				return
			}
			if !localStorageClient.VerifySignedURL(objectName, expiresAt, c.Query("signature")) {
				c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired signature"})
				return
			}
			fullPath, err := localStorageClient.GetFilePath(objectName)
			if err != nil {
				c.JSON(http.StatusForbidden, gin.H{"error": "invalid file path"})
				return
			}
			c.File(fullPath)
		})
	}

	v1 := r.Group("/api/v1")
	v1.Use(activityLogService.LoggingMiddleware(), authMiddleware.OptionalUser(), userHandler.EnsureUser())
	{
		// Template library
		v1.GET("/templates", templateHandler.GetAllTemplates)
		v1.GET("/templates/:id", templateHandler.GetTemplate)
		v1.GET("/templates/by-slug/:slug", templateHandler.GetTemplateBySlug)
		v1.GET("/section-defaults/:type", sectionTemplateHandler.GetDefault)

		// Rendering and editing work for anonymous visitors too
		v1.POST("/render/preview", renderHandler.Preview)
		v1.POST("/render/export", renderHandler.Export)
		v1.POST("/editor/apply", renderHandler.ApplyEdits)
		v1.POST("/ai/templates", uploadHandler.GenerateTemplate)

		// Campaign
		v1.POST("/capture-email", campaignHandler.CaptureEmail)
		v1.GET("/unsubscribe", campaignHandler.Unsubscribe)
		v1.POST("/cron/campaigns", auth.RequireSecret(cfg.Auth.CronSecret), campaignHandler.RunCampaign)

		// Blog
		v1.GET("/blog", blogHandler.GetPosts)
		v1.GET("/blog/:slug", blogHandler.GetPost)

		user := v1.Group("", authMiddleware.RequireUser())
		user.GET("/me", userHandler.GetMe)
		user.GET("/me/templates", templateHandler.GetMyTemplates)
		user.POST("/me/templates", templateHandler.CreateMyTemplate)
		user.GET("/me/templates/:id", templateHandler.GetMyTemplate)
		user.PUT("/me/templates/:id", templateHandler.UpdateMyTemplate)
		user.DELETE("/me/templates/:id", templateHandler.DeleteMyTemplate)
		user.POST("/me/templates/from/:templateId", templateHandler.CopyTemplate)
		user.POST("/uploads/logo", uploadHandler.UploadLogo)

		admin := v1.Group("", authMiddleware.RequireUser(), authMiddleware.RequireAdmin())
		admin.POST("/templates", templateHandler.CreateTemplate)
		admin.PUT("/templates/:id", templateHandler.UpdateTemplate)
		admin.DELETE("/templates/:id", templateHandler.DeleteTemplate)

		admin.GET("/admin/section-templates", sectionTemplateHandler.GetAll)
		admin.POST("/admin/section-templates", sectionTemplateHandler.Create)
		admin.PUT("/admin/section-templates/:id", sectionTemplateHandler.Update)
		admin.DELETE("/admin/section-templates/:id", sectionTemplateHandler.Delete)

		admin.GET("/admin/campaign-steps", campaignHandler.GetSteps)
		admin.POST("/admin/campaign-steps", campaignHandler.CreateStep)
		admin.PUT("/admin/campaign-steps/:id", campaignHandler.UpdateStep)
		admin.DELETE("/admin/campaign-steps/:id", campaignHandler.DeleteStep)
		admin.PUT("/admin/campaign/enabled", campaignHandler.SetEnabled)

		admin.GET("/admin/blog", blogHandler.GetAllPosts)
		admin.POST("/admin/blog", blogHandler.CreatePost)
		admin.PUT("/admin/blog/:id", blogHandler.UpdatePost)
		admin.DELETE("/admin/blog/:id", blogHandler.DeletePost)

		admin.GET("/admin/statistics", statisticsHandler.GetAll)
		admin.GET("/admin/statistics/summary", statisticsHandler.GetSummary)
		admin.GET("/admin/statistics/templates", statisticsHandler.GetTemplateStats)
		admin.GET("/admin/statistics/templates/:templateId", statisticsHandler.GetStatsByTemplate)
		admin.GET("/admin/statistics/trends", statisticsHandler.GetTrends)
		admin.GET("/admin/statistics/trends/:eventType", statisticsHandler.GetTimeSeries)

		admin.GET("/admin/logs", logsHandler.GetLogs)
	}

	var campaignScheduler *scheduler.Scheduler
	if cfg.Campaign.CronSchedule != "" {
		campaignScheduler, err = scheduler.New(cfg.Campaign.CronSchedule, campaignService, log)
		if err != nil {
			log.Fatalf("Failed to initialize campaign scheduler: %v", err)
		}
		campaignScheduler.Start()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second, // exports through Gotenberg can be slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s (environment: %s)", cfg.Server.Port, cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	if campaignScheduler != nil {
		campaignScheduler.Stop(shutdownCtx)
	}
	activityLogService.Wait()

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Errorf("Error closing redis: %v", err)
		}
	}
	if err := internal.CloseDB(); err != nil {
		log.Errorf("Error closing database: %v", err)
	}

	log.Info("Server exited")
}

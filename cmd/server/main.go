package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finishflow/internal/admission"
	"finishflow/internal/artifact"
	"finishflow/internal/config"
	"finishflow/internal/database"
	"finishflow/internal/handler"
	"finishflow/internal/media"
	"finishflow/internal/messaging"
	"finishflow/internal/pipeline"
	"finishflow/internal/preset"
	"finishflow/internal/repository"
	"finishflow/internal/service"
	"finishflow/shared/logger"
	sharedMiddleware "finishflow/shared/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

const (
	startupRetries    = 10
	startupRetryDelay = 3 * time.Second
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		// Логгер еще не создан
		_, _ = os.Stderr.WriteString("Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  "finishflow",
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	zap.L().Info("Starting FinishFlow service...")
	zap.L().Info("Configuration loaded", cfg.LogFields()...)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Опциональные внешние системы ---
	var journal pipeline.Journal
	if cfg.JournalEnabled() {
		pool, err := database.Connect(ctx, cfg.GetDSN(), database.PoolOptions{
			MaxConns:    cfg.DBMaxConns,
			IdleTimeout: cfg.DBIdleTimeout,
			Retries:     startupRetries,
			RetryDelay:  startupRetryDelay,
		}, log.Named("Postgres"))
		if err != nil {
			zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer pool.Close()
		if err := database.ApplyMigrations(ctx, pool, log.Named("Migrations")); err != nil {
			zap.L().Fatal("Failed to apply migrations", zap.Error(err))
		}
		journal = repository.NewRunJournal(pool, log.Named("RunJournal"))
	} else {
		zap.L().Info("DB_HOST not set, run journal disabled")
	}

	var notifier pipeline.Notifier
	if cfg.NotifierEnabled() {
		mqConn, err := messaging.Dial(ctx, cfg.RabbitMQURL, startupRetries, startupRetryDelay, log.Named("RabbitMQ"))
		if err != nil {
			zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()
		ch, err := mqConn.Channel()
		if err != nil {
			zap.L().Fatal("Failed to open RabbitMQ channel", zap.Error(err))
		}
		defer ch.Close()
		n, err := messaging.NewRabbitMQNotifier(ch, cfg.VideoEventsQueue, log.Named("VideoNotifier"))
		if err != nil {
			zap.L().Fatal("Failed to create video notifier", zap.Error(err))
		}
		notifier = n
	} else {
		zap.L().Info("RABBITMQ_URL not set, video-ready events disabled")
	}

	// nil клиент переключает rate limiter на хранение в памяти
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		zap.L().Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	}

	// --- Dependency Injection ---
	presets := preset.DefaultLibrary()
	if cfg.PresetsFile != "" {
		presets, err = preset.LoadLibrary(cfg.PresetsFile)
		if err != nil {
			zap.L().Fatal("Failed to load presets", zap.String("path", cfg.PresetsFile), zap.Error(err))
		}
	}

	runner := media.NewExecRunner(log.Named("Exec"))
	prober := media.NewFFprobe(cfg.FFprobeBin, runner, cfg.ProbeTimeout)
	renderer := media.NewFFmpegRenderer(cfg.FFmpegBin, runner, cfg.RenderTimeout, cfg.RenderMixTimeout, log.Named("Renderer"))
	validator := media.NewValidator(prober, media.Thresholds{
		MinBytes:           cfg.MinVideoBytes,
		MinDurationSeconds: cfg.MinVideoSeconds,
	}, log.Named("Validator"))

	aiClient, err := service.NewAIClient(cfg, log.Named("AIClient"))
	if err != nil {
		zap.L().Fatal("Failed to create AI client", zap.Error(err))
	}
	scriptGen := service.NewScriptGenerator(aiClient, cfg.AITemperature, cfg.ScriptTimeout, log.Named("ScriptGenerator"))
	speech := service.NewOpenAISpeech(service.SpeechOptions{
		APIKey:  cfg.AIAPIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.TTSModel,
		Voice:   cfg.TTSVoice,
		Speed:   cfg.TTSSpeed,
		Timeout: cfg.TTSTimeout,
	}, log.Named("Speech"))
	music := service.NewAudioFlowClient(cfg.AudioFlowEngineURL, cfg.AudioFlowTimeout, log.Named("AudioFlow"))

	store := artifact.NewStore(
		artifact.WithTTL(cfg.DownloadTokenTTL),
		artifact.WithSingleUse(cfg.DownloadSingleUse),
		artifact.WithLogger(log.Named("ArtifactStore")),
	)

	pipe, err := pipeline.New(pipeline.Dependencies{
		Script:    scriptGen,
		Speech:    speech,
		Music:     music,
		Prober:    prober,
		Renderer:  renderer,
		Validator: validator,
		Store:     store,
		Gate:      admission.NewSingleFlight(),
		Presets:   presets,
		Journal:   journal,
		Notifier:  notifier,
	}, pipeline.Options{
		ScratchDir:          cfg.ScratchDir,
		MusicEnabled:        cfg.MusicEnabled,
		SpeechFallback:      cfg.TTSFallbackEnabled,
		MinNarrationBytes:   cfg.MinNarrationBytes,
		MinNarrationSeconds: cfg.MinNarrationSeconds,
		PublicBaseURL:       cfg.PublicBaseURL,
	}, log.Named("Pipeline"))
	if err != nil {
		zap.L().Fatal("Failed to create pipeline", zap.Error(err))
	}

	rateLimitMiddleware := handler.NewRateLimiter(redisClient, cfg.RateLimitPerMinute, log.Named("RateLimiter"))
	videoHandler := handler.NewVideoHandler(pipe, store, cfg.MaxBodyBytes, log.Named("VideoHandler"))

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(sharedMiddleware.ZapLoggingMiddlewareForGin(log))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	allowedOrigins := cfg.GetAllowedOrigins()
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "HEAD", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Range", sharedMiddleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Range", "Retry-After", sharedMiddleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	videoHandler.RegisterRoutes(router, rateLimitMiddleware)

	// Prometheus подключается после регистрации роутов
	p.Use(router)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.ServerPort), zap.Duration("write_timeout", srv.WriteTimeout))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")
	stop()

	// Даем текущему запуску шанс завершиться
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}

// writeTimeout покрывает самый долгий запуск: все таймауты шагов подряд плюс запас.
func writeTimeout(cfg *config.Config) time.Duration {
	total := cfg.ScriptTimeout + cfg.TTSTimeout + cfg.AudioFlowTimeout +
		cfg.RenderMixTimeout + cfg.RenderTimeout + 3*cfg.ProbeTimeout
	return total + time.Minute
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "dispatch-center/internal/handler/http"
	wsHandler "dispatch-center/internal/handler/websocket"
	"dispatch-center/internal/hub"
	gormpersistence "dispatch-center/internal/infra/persistence/gorm"
	"dispatch-center/internal/infra/setup"
	redisstate "dispatch-center/internal/infra/state/redis"
	"dispatch-center/internal/middleware"
	"dispatch-center/internal/service"
	"dispatch-center/internal/tasks"
	"dispatch-center/internal/worker"
)

// Config holds the settings loaded from environment variables.
type Config struct {
	DBUser          string
	DBPassword      string
	DBHost          string
	DBPort          string
	DBName          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	ServerPort      string
	LogLevel        string
	RateLimitMax    int
	RateLimitWindow time.Duration
	AppEnv          string
	KeyPrefix       string
	RefreshSchedule string
}

// LoadConfig loads configuration from the environment, with a .env file as
// an optional source.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine, environment wins

	cfg := &Config{
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBHost:          os.Getenv("DB_HOST"),
		DBPort:          os.Getenv("DB_PORT"),
		DBName:          os.Getenv("DB_NAME"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		ServerPort:      os.Getenv("SERVER_PORT"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		AppEnv:          os.Getenv("APP_ENV"),
		KeyPrefix:       os.Getenv("REDIS_KEY_PREFIX"),
		RefreshSchedule: os.Getenv("QUEUE_REFRESH_SCHEDULE"),
		RateLimitMax:    100,
		RateLimitWindow: 1 * time.Second,
	}

	redisDBStr := os.Getenv("REDIS_DB")
	cfg.RedisDB, _ = strconv.Atoi(redisDBStr) // defaults to 0

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "dc:"
	}
	if cfg.RefreshSchedule == "" {
		cfg.RefreshSchedule = "@every 5m"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App owns every component of the dispatch center and their lifecycles.
type App struct {
	Config         *Config
	Log            *logrus.Logger
	DB             *gorm.DB
	RedisClient    *redis.Client
	AsynqClient    *asynq.Client
	AsynqServer    *worker.WorkerServer
	AsynqScheduler *asynq.Scheduler
	Hub            *hub.Hub
	HttpServer     *http.Server
	redisClientOpt asynq.RedisClientOpt
}

// NewApp creates and wires all application components.
func NewApp() (*App, error) {
	// 1. Configuration
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. Logger
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s)", logLevel.String())
	log.Info("Configuration loaded successfully")

	// 3. Infrastructure
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	log.Info("Database initialized")

	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	// 4. Repositories
	log.Info("Initializing repositories...")
	callRepo := gormpersistence.NewGormCallRepository(db)
	assignRepo := gormpersistence.NewGormAssignmentRepository(db)
	sessionRepo := gormpersistence.NewGormQueueSessionRepository(db)
	auditRepo := gormpersistence.NewGormAuditRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
	log.Info("Repositories initialized")

	// 5. Hub (services broadcast through it, so it comes first)
	log.Info("Initializing hub...")
	hubInstance := hub.NewHub()
	log.Info("Hub initialized")

	// 6. Services
	log.Info("Initializing services...")
	auditRecorder := worker.NewAsynqAuditRecorder(asynqClient, auditRepo)
	callService := service.NewCallService(callRepo, assignRepo, stateRepo, auditRecorder, hubInstance)
	sessionService := service.NewQueueSessionService(sessionRepo, auditRecorder, hubInstance)
	log.Info("Services initialized")

	// 7. Handlers
	log.Info("Initializing handlers...")
	callHandler := httpHandler.NewCallHandler(callService)
	queueHandler := httpHandler.NewQueueHandler(sessionService)
	statusHandler := httpHandler.NewStatusHandler(hubInstance)
	websocketHandler := wsHandler.NewWebSocketHandler(hubInstance)
	log.Info("Handlers initialized")

	// 8. Worker server
	log.Info("Initializing worker server...")
	workerServer := worker.NewWorkerServer(redisClientOpt, auditRepo, sessionRepo, hubInstance, log)
	log.Info("Worker server initialized")

	// 9. Router
	log.Info("Setting up Gin router...")
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))

	router.Use(func(c *gin.Context) { /* CORS */
		allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
		if allowedOrigin == "" {
			allowedOrigin = "http://localhost:3000"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	router.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api").Use(middleware.Auth(cfg.JWTSecret))
	{
		api.GET("/status", statusHandler.Status)

		api.GET("/calls", callHandler.ListActiveCalls)
		api.POST("/calls", callHandler.CreateCall)
		api.GET("/calls/:id", callHandler.GetCall)
		api.PATCH("/calls/:id", callHandler.UpdateCall)
		api.POST("/calls/:id/close", callHandler.CloseCall)
		api.POST("/calls/:id/reopen", callHandler.ReopenCall)
		api.POST("/calls/:id/abandon", callHandler.AbandonCall)
		api.POST("/calls/:id/assignments", callHandler.Assign)
		api.PATCH("/calls/:id/assignments/:memberId", callHandler.AdvanceAssignment)
		api.DELETE("/calls/:id/assignments/:memberId", callHandler.Unassign)

		api.POST("/queue/login", queueHandler.Login)
		api.POST("/queue/logout", queueHandler.Logout)
		api.POST("/queue/logout-all", queueHandler.LogoutAll)
		api.GET("/queue/dispatcher", queueHandler.CurrentDispatcher)
		api.GET("/queue/sessions", queueHandler.ActiveSessions)
	}
	wsRoutes := router.Group("/ws").Use(middleware.Auth(cfg.JWTSecret))
	{
		wsRoutes.GET("", websocketHandler.HandleConnection)
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	// 10. HTTP server
	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}
	log.Info("HTTP server initialized")

	app := &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// Start launches the hub, the worker, the scheduler and the HTTP server.
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()
	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := a.AsynqScheduler.Run(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
				a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			} else {
				a.Log.Info("Asynq scheduler stopped.")
			}
		}
	}()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// registerPeriodicTasks builds the scheduler and registers the queue refresh
// that backstops lost realtime events. Start runs it; Shutdown stops it.
func (a *App) registerPeriodicTasks() {
	a.AsynqScheduler = asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	taskPayload, err := tasks.NewQueueRefreshTask()
	if err != nil {
		a.Log.Errorf("Failed to create queue refresh task payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeQueueRefresh, taskPayload)

	schedule := a.Config.RefreshSchedule
	entryID, err := a.AsynqScheduler.Register(schedule, task, asynq.Queue("default"))
	if err != nil {
		a.Log.Errorf("Could not register periodic queue refresh task: %v", err)
	} else {
		a.Log.Infof("Periodic queue refresh task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	}
}

// Shutdown stops every component gracefully.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.Hub != nil {
		a.Hub.Stop()
	}

	if a.AsynqScheduler != nil {
		a.AsynqScheduler.Shutdown()
		a.Log.Info("Asynq scheduler shut down.")
	}

	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		} else {
			a.Log.Info("Asynq client closed.")
		}
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware creates a gin middleware logging one line per request.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   clientIP,
			"method":      method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else {
			if statusCode >= 500 {
				entry.Error("Server error")
			} else if statusCode >= 400 {
				entry.Warn("Client error")
			} else {
				entry.Info("Request handled")
			}
		}
	}
}

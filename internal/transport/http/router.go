package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/mltrack/backend/internal/config"
	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/core/services"
	"github.com/mltrack/backend/internal/infrastructure/db"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/infrastructure/notify"
	"github.com/mltrack/backend/internal/infrastructure/sysinfo"
	"github.com/mltrack/backend/internal/infrastructure/trainer"
	"github.com/mltrack/backend/internal/transport/http/handlers"
	httpmw "github.com/mltrack/backend/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type RouterConfig struct {
	DB     *gorm.DB
	Logger *logger.Logger
	Config *config.Config
}

// Runtime bundles the background loops that run alongside the HTTP
// server: the task monitor, the stats refresher and the history pruner.
// main starts them once the server is up and stops them on shutdown.
type Runtime struct {
	Monitor   *services.Monitor
	Stats     *services.StatsService
	Retention *services.RetentionService
}

func (r *Runtime) Start() {
	r.Monitor.Start()
	r.Stats.Start()
	r.Retention.Start()
}

func (r *Runtime) Stop() {
	r.Retention.Stop()
	r.Stats.Stop()
	r.Monitor.Stop()
}

// SetupRoutes wires repositories, services and handlers and registers
// every route.
func SetupRoutes(app *fiber.App, cfg RouterConfig) *Runtime {
	// Initialize repositories. Runs and events live in Postgres; without
	// it the console still works, it just forgets finished jobs. The
	// event stub keeps feed entries visible in the logs.
	var (
		runRepo     ports.RunRepository
		eventRepo   ports.EventRepository
		settingRepo ports.SettingRepository
		datasetRepo ports.DatasetRepository
	)
	recorderRepo := db.NewEventRepoStub(cfg.Logger)
	if cfg.DB != nil && cfg.Config.Features.EnableHistory {
		runRepo = db.NewRunRepository(cfg.DB, cfg.Logger)
		eventRepo = db.NewEventRepository(cfg.DB, cfg.Logger)
		recorderRepo = eventRepo
	}
	if cfg.DB != nil {
		settingRepo = db.NewSettingRepository(cfg.DB, cfg.Logger)
		datasetRepo = db.NewDatasetRepository(cfg.DB, cfg.Logger)
	}

	// Initialize services
	registry := services.NewTaskRegistry()
	trainerClient := trainer.New(cfg.Config.Trainer, cfg.Logger)
	authService := services.NewAuthService(cfg.Config.Auth, cfg.Logger)
	eventRecorder := services.NewEventRecorder(recorderRepo, cfg.Logger)

	var notifier services.Notifier
	if cfg.Config.Notifications.Enabled {
		notifier = notify.NewEmailNotifier(cfg.Config.Notifications, cfg.Logger)
	}

	monitor := services.NewMonitor(services.MonitorConfig{
		Registry:     registry,
		Trainer:      trainerClient,
		Runs:         runRepo,
		Events:       eventRecorder,
		Notifier:     notifier,
		Logger:       cfg.Logger,
		Interval:     cfg.Config.Polling.Interval,
		ProbeTimeout: cfg.Config.Trainer.RequestTimeout,
	})

	trainingService := services.NewTrainingService(services.TrainingServiceConfig{
		Registry: registry,
		Trainer:  trainerClient,
		Tracker:  monitor,
		Runs:     runRepo,
		Datasets: datasetRepo,
		Events:   eventRecorder,
		Logger:   cfg.Logger,
	})

	statsService := services.NewStatsService(services.StatsServiceConfig{
		Registry: registry,
		Runs:     runRepo,
		Logger:   cfg.Logger,
		Window:   cfg.Config.History.StatsWindow,
		Interval: cfg.Config.History.StatsRefresh,
	})

	retentionService := services.NewRetentionService(services.RetentionServiceConfig{
		Runs:     runRepo,
		Events:   eventRepo,
		Logger:   cfg.Logger,
		MaxAge:   cfg.Config.History.Retention,
		Interval: cfg.Config.History.CleanupInterval,
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, cfg.Logger)
	trainingHandler := handlers.NewTrainingHandler(trainingService, cfg.Logger)
	taskHandler := handlers.NewTaskHandler(trainingService, cfg.Logger)
	statsHandler := handlers.NewStatsHandler(statsService)
	systemHandler := handlers.NewSystemHandler(sysinfo.NewCollector(cfg.Config.Storage.DatasetDir), cfg.Logger)
	watchHandler := handlers.NewWatchHandler(handlers.WatchHandlerConfig{
		Registry:     registry,
		Trainer:      trainerClient,
		Finalizer:    monitor,
		Logger:       cfg.Logger,
		Interval:     cfg.Config.Polling.Interval,
		ProbeTimeout: cfg.Config.Trainer.RequestTimeout,
	})

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Watch sessions over websocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws/tasks", httpmw.WatchAuth(cfg.Config, authService), websocket.New(watchHandler.Handle))

	// API v1 routes
	api := app.Group("/api/v1")

	// Auth routes
	api.Post("/auth/login", authHandler.Login)

	// Training launch routes
	trainings := api.Group("/trainings", httpmw.AdminAuth(cfg.Config, authService))
	trainings.Post("/", trainingHandler.StartTraining)
	trainings.Post("/custom", trainingHandler.StartCustomTraining)

	// Model routes
	models := api.Group("/models", httpmw.AdminAuth(cfg.Config, authService))
	models.Get("/", trainingHandler.GetModels)
	models.Post("/:id/retrain", trainingHandler.Retrain)

	// Task routes
	tasks := api.Group("/tasks", httpmw.AdminAuth(cfg.Config, authService))
	tasks.Get("/", taskHandler.GetTasks)
	tasks.Get("/:id", taskHandler.GetTask)
	tasks.Post("/:id/stop", taskHandler.StopTask)

	// Dashboard routes
	api.Get("/stats", httpmw.AdminAuth(cfg.Config, authService), statsHandler.GetStats)
	api.Get("/system", httpmw.AdminAuth(cfg.Config, authService), systemHandler.GetSystemInfo)

	// Dataset routes
	if datasetRepo != nil {
		datasetService := services.NewDatasetService(services.DatasetServiceConfig{
			Repository:  datasetRepo,
			Logger:      cfg.Logger,
			Dir:         cfg.Config.Storage.DatasetDir,
			MaxBytes:    cfg.Config.Storage.MaxUploadBytes(),
			EnableLocks: cfg.Config.Features.EnableLocks,
		})
		datasetHandler := handlers.NewDatasetHandler(datasetService, cfg.Logger)
		datasets := api.Group("/datasets", httpmw.AdminAuth(cfg.Config, authService))
		datasets.Post("/", datasetHandler.UploadDataset)
		datasets.Get("/", datasetHandler.GetDatasets)
		datasets.Get("/:id", datasetHandler.GetDataset)
		datasets.Put("/:id", datasetHandler.UpdateDataset)
		datasets.Delete("/:id", datasetHandler.DeleteDataset)
		datasets.Get("/:id/download", datasetHandler.DownloadDataset)
	}

	// Settings routes
	if settingRepo != nil {
		settingService := services.NewConsoleSettingService(settingRepo, cfg.Logger, cfg.Config.Features.EnableLocks)
		settingsHandler := handlers.NewSettingsHandler(settingService, cfg.Logger)
		settings := api.Group("/settings", httpmw.AdminAuth(cfg.Config, authService))
		settings.Get("/", settingsHandler.GetSettings)
		settings.Put("/", settingsHandler.UpdateSettings)
		settings.Delete("/:key", settingsHandler.DeleteSetting)
	}

	// Run history routes
	if runRepo != nil {
		runHandler := handlers.NewRunHandler(runRepo)
		runs := api.Group("/runs", httpmw.AdminAuth(cfg.Config, authService))
		runs.Get("/", runHandler.GetRuns)
		runs.Get("/:taskId", runHandler.GetRun)

		maintenanceHandler := handlers.NewMaintenanceHandler(retentionService, cfg.Logger)
		api.Post("/maintenance/prune", httpmw.AdminAuth(cfg.Config, authService), maintenanceHandler.PruneHistory)
	}

	// Activity feed routes
	if eventRepo != nil {
		eventHandler := handlers.NewEventHandler(eventRepo)
		api.Get("/events", httpmw.AdminAuth(cfg.Config, authService), eventHandler.GetEvents)
	}

	return &Runtime{
		Monitor:   monitor,
		Stats:     statsService,
		Retention: retentionService,
	}
}

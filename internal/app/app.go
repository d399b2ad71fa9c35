package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/handlers"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
	"github.com/ternarybob/hirescout/internal/services/auth"
	"github.com/ternarybob/hirescout/internal/services/browser"
	"github.com/ternarybob/hirescout/internal/services/events"
	"github.com/ternarybob/hirescout/internal/services/hiring"
	"github.com/ternarybob/hirescout/internal/services/orchestrator"
	"github.com/ternarybob/hirescout/internal/services/pipeline"
	"github.com/ternarybob/hirescout/internal/services/scheduler"
	"github.com/ternarybob/hirescout/internal/services/status"
	"github.com/ternarybob/hirescout/internal/storage/badger"
	"github.com/ternarybob/hirescout/internal/storage/file"
)

// statusBroadcastInterval is the keep-alive cadence of websocket snapshots
const statusBroadcastInterval = 5 * time.Second

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	ctx       context.Context
	cancelCtx context.CancelFunc

	// Storage
	StorageManager *badger.Manager
	SessionStore   interfaces.SessionStore
	RunStorage     interfaces.RunStorage

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService *scheduler.Service
	StatusService    *status.Service

	// Authentication and extraction
	BrowserFactory interfaces.BrowserFactory
	AuthManager    *auth.Manager
	Extractor      *hiring.Extractor
	Pipeline       *pipeline.Pipeline
	Orchestrator   *orchestrator.Orchestrator

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	StatusHandler    *handlers.StatusHandler
	AuthHandler      *handlers.AuthHandler
	ExtractHandler   *handlers.ExtractHandler
	SchedulerHandler *handlers.SchedulerHandler
	ConfigHandler    *handlers.ConfigHandler
	WSHandler        *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	if err := app.initDatabase(); err != nil {
		app.cancelCtx()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info().
		Str("session_store", string(cfg.Session.Store)).
		Int("concurrency", cfg.Extraction.Concurrency).
		Bool("default_credentials", app.AuthManager.HasDefaultCredentials()).
		Msg("Application initialization complete")

	return app, nil
}

// NewMachine builds a fresh auth machine wired to the configured store,
// browser and event bus
func (a *App) NewMachine() *auth.Machine {
	return auth.NewMachine(auth.ConfigFrom(a.Config), a.SessionStore, a.BrowserFactory, a.EventService, a.Logger)
}

// DefaultCredentials returns the credentials from configuration and environment
func (a *App) DefaultCredentials() models.Credentials {
	return models.NewCredentials(a.Config.LinkedIn.Email, a.Config.LinkedIn.Password)
}

// initDatabase opens Badger and selects the Session Store backend
func (a *App) initDatabase() error {
	window := a.Config.Session.FreshnessWindow.Duration()

	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger, window)
	if err != nil {
		return err
	}
	a.StorageManager = manager
	a.RunStorage = manager.RunStorage()

	switch a.Config.Session.Store {
	case common.SessionStoreBadger:
		a.SessionStore = manager.SessionStorage()
	default:
		a.SessionStore = file.NewSessionStore(a.Config.Session.Path, window, a.Logger)
	}

	a.Logger.Debug().
		Str("store", string(a.Config.Session.Store)).
		Dur("freshness_window", window).
		Msg("Session store selected")

	return nil
}

func (a *App) initServices() error {
	// 1. Event bus, with every event mirrored to the log
	a.EventService = events.NewService(a.Logger)
	if err := events.SubscribeLoggerToAllEvents(a.EventService, a.Logger); err != nil {
		return fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	// 2. Browser automation and auth
	a.BrowserFactory = browser.NewFactory(browser.ConfigFrom(a.Config.Browser), a.Logger)
	a.AuthManager = auth.NewManager(a.NewMachine, a.DefaultCredentials(), a.Logger)

	// 3. Status reporter follows the live machine state
	a.StatusService = status.NewService(a.EventService, a.Logger)
	a.StatusService.SetAuthSource(a.AuthManager.State)
	if err := a.StatusService.SubscribeToAuthEvents(); err != nil {
		return fmt.Errorf("failed to subscribe status service: %w", err)
	}

	// 4. Extraction
	a.Extractor = hiring.NewExtractor(a.Logger)
	a.Pipeline = pipeline.NewPipeline(
		pipeline.ConfigFrom(a.Config.Extraction),
		a.Extractor,
		a.BrowserFactory,
		a.StatusService,
		a.Logger,
	)
	a.Orchestrator = orchestrator.New(
		a.Pipeline,
		func() interfaces.AuthMachine { return a.NewMachine() },
		a.RunStorage,
		a.Logger,
	)

	// 5. Scheduler with the periodic session expiry sweep
	a.SchedulerService = scheduler.NewService(a.Logger)
	if err := a.SchedulerService.RegisterJob(
		scheduler.ExpirySweepJob,
		a.Config.Session.ExpiryCheckSchedule,
		"Drop the authenticated session once it leaves the freshness window",
		scheduler.NewExpirySweep(a.AuthManager.Session, a.Logger),
	); err != nil {
		return fmt.Errorf("failed to register expiry sweep: %w", err)
	}
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	return nil
}

func (a *App) initHandlers() error {
	runGate := handlers.NewRunGate()
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, runGate, a.Logger)
	a.AuthHandler = handlers.NewAuthHandler(a.AuthManager, runGate, a.Logger)
	a.ExtractHandler = handlers.NewExtractHandler(a.Orchestrator, a.AuthManager, a.RunStorage, runGate, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
	a.ConfigHandler = handlers.NewConfigHandler(a.Logger, a.Config)

	a.WSHandler = handlers.NewWebSocketHandler(a.StatusService, a.Logger, &a.Config.WebSocket)
	if err := a.WSHandler.SubscribeToEvents(a.EventService); err != nil {
		return fmt.Errorf("failed to subscribe websocket handler: %w", err)
	}
	a.WSHandler.StartStatusBroadcaster(a.ctx, statusBroadcastInterval)

	a.Logger.Debug().Msg("HTTP handlers initialized")
	return nil
}

// Close stops background work and releases the browser and storage
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.AuthManager != nil {
		if err := a.AuthManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close auth browser")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

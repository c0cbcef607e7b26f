package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tempero-labs/dispenser-backend/internal/db"
	"github.com/tempero-labs/dispenser-backend/internal/observability"
	"github.com/tempero-labs/dispenser-backend/internal/platform/logger"
	"github.com/tempero-labs/dispenser-backend/internal/sse"
	"github.com/tempero-labs/dispenser-backend/internal/sse/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Hub      *sse.Hub
	Bus      bus.Bus

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	hub := sse.NewHub(log)
	eventBus := wireBus(log, cfg)

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, hub, eventBus)
	handlerset := wireHandlers(log, serviceset, hub)
	mw := wireMiddleware(log, serviceset)
	router := wireRouter(cfg, handlerset, mw)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Hub:      hub,
		Bus:      eventBus,
	}, nil
}

// wireBus prefers redis fan-out so several backend replicas can feed the same
// monitor streams. Without REDIS_ADDR events stay in-process.
func wireBus(log *logger.Logger, cfg Config) bus.Bus {
	if cfg.RedisAddr == "" {
		log.Info("No REDIS_ADDR set, using in-process event bus")
		return bus.NewLocalBus()
	}
	b, err := bus.NewRedisBus(log, cfg.RedisAddr, cfg.RedisChannel)
	if err != nil {
		log.Warn("Redis bus unavailable, falling back to in-process bus", "error", err)
		return bus.NewLocalBus()
	}
	return b
}

func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.otelShutdown = observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: a.Cfg.ServiceName,
		Environment: a.Cfg.Environment,
		Version:     a.Cfg.Version,
	})

	if err := a.Services.Notifier.Start(ctx); err != nil {
		cancel()
		a.cancel = nil
		return fmt.Errorf("start job notifier: %w", err)
	}
	return nil
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("event bus close", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

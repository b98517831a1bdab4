package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/db"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	nochttp "github.com/yungbote/noc-backend/internal/http"
	httpMW "github.com/yungbote/noc-backend/internal/http/middleware"
	"github.com/yungbote/noc-backend/internal/jobs/scheduler"
	"github.com/yungbote/noc-backend/internal/jobs/worker"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/envutil"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/realtime"
	"github.com/yungbote/noc-backend/internal/services"
	"github.com/yungbote/noc-backend/internal/temporalx/jobrun"
	"github.com/yungbote/noc-backend/internal/temporalx/temporalworker"
)

// Role selects which background loops Start launches.
type Role int

const (
	// RoleServe runs HTTP, realtime, the scheduler and the job worker.
	RoleServe Role = iota
	// RoleWorker runs only the job worker.
	RoleWorker
	// RoleTask wires everything but starts no loops; used by one-shot commands.
	RoleTask
)

const queueDepthInterval = 15 * time.Second

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Role     Role
	Clients  Clients
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics
	Hub      *realtime.Hub
	Server   *nochttp.Server

	dbService    *db.Service
	worker       *worker.Worker
	runner       *temporalworker.Runner
	scheduler    *scheduler.Scheduler
	otelShutdown func(context.Context) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLogger builds the process logger from LOG_MODE.
func NewLogger() (*logger.Logger, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// Migrate opens the database and applies the schema without wiring anything else.
func Migrate(log *logger.Logger) error {
	cfg := LoadConfig()
	svc, err := db.NewService(log, cfg.DB)
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	log.Info("Schema migrated", "driver", svc.Driver())
	return nil
}

func New(ctx context.Context, log *logger.Logger, role Role) (*App, error) {
	log.Info("Loading environment variables...")
	cfg := LoadConfig()

	dbService, err := db.NewService(log, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(dbService.DB()); err != nil {
		_ = dbService.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		return nil, err
	}

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.Init(log)
	}
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	hub := realtime.NewHub(log, metrics)
	hub.AllowOrigins(httpMW.AllowedOrigins(cfg.CORSOrigins...)...)
	var emit services.Emitter = &services.HubEmitter{Hub: hub}
	if clients.Bus != nil {
		emit = &services.BusEmitter{Bus: clients.Bus, Fallback: hub, Log: log}
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, emit, metrics)
	if err != nil {
		clients.Close()
		_ = dbService.Close()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Role:         role,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		Hub:          hub,
		dbService:    dbService,
		otelShutdown: otelShutdown,
	}

	a.worker = worker.NewWorker(theDB, log, reposet.JobRun, serviceset.Registry, serviceset.JobNotify, metrics, worker.Config{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.PollInterval,
	})
	if cfg.WorkerMode == WorkerModeTemporal && role != RoleTask {
		runner, err := temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, &jobrun.Activities{
			Log:      log,
			Jobs:     reposet.JobRun,
			Executor: a.worker,
		}, cfg.WorkerConcurrency)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.runner = runner
	}
	if role == RoleServe {
		a.scheduler = scheduler.New(log, serviceset.Jobs, reposet.Tenant, clients.Locker, scheduler.DefaultEntries(cfg.NOC.SnapshotInterval))
		a.Server = wireServer(log, cfg, theDB, clients, serviceset, hub, metrics)
	}
	return a, nil
}

// Start launches the background loops for the app's role. It returns once
// they are running.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil || a.Role == RoleTask {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Role == RoleServe {
		if a.Clients.Bus != nil {
			if err := a.Clients.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
				cancel()
				return fmt.Errorf("realtime forwarder: %w", err)
			}
		}
		if a.Cfg.PlaybooksFile != "" {
			n, err := a.Services.Playbooks.LoadFile(dbctx.Context{Ctx: ctx}, a.Cfg.PlaybooksFile)
			if err != nil {
				a.Log.Warn("Playbook file not loaded", "path", a.Cfg.PlaybooksFile, "error", err)
			} else {
				a.Log.Info("Playbooks loaded", "path", a.Cfg.PlaybooksFile, "count", n)
			}
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.scheduler.Run(ctx)
		}()
	}

	if a.runner != nil {
		if err := a.runner.Start(ctx); err != nil {
			cancel()
			return err
		}
	} else {
		a.worker.Start(ctx)
	}

	a.Metrics.StartJobQueueCollector(ctx, a.Log, queueDepthInterval, func(ctx context.Context) (map[string]int64, error) {
		return a.Repos.JobRun.CountByStatus(dbctx.Context{Ctx: ctx})
	})
	return nil
}

// Run starts the app and blocks until ctx is done. The serve role also
// listens on PORT.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	var err error
	if a.Server != nil {
		addr := ":" + a.Cfg.Port
		a.Log.Info("Server listening", "addr", addr)
		err = a.Server.Run(ctx, addr)
	} else {
		<-ctx.Done()
	}
	a.stop()
	return err
}

// RunRollup aggregates every tenant into res once.
func (a *App) RunRollup(ctx context.Context, res noc.Resolution) (*services.RollupReport, error) {
	return a.Services.Metrics.Rollup(dbctx.Context{Ctx: ctx}, res, time.Now().UTC())
}

// RunCleanup applies retention once.
func (a *App) RunCleanup(ctx context.Context) (*services.CleanupReport, error) {
	return a.Services.Metrics.Cleanup(dbctx.Context{Ctx: ctx}, time.Now().UTC())
}

func (a *App) stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.worker.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.stop()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
}

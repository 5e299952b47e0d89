package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/archivebridge-backend/internal/config"
	"github.com/yungbote/archivebridge-backend/internal/data/db"
	"github.com/yungbote/archivebridge-backend/internal/data/repos/catalog"
	"github.com/yungbote/archivebridge-backend/internal/data/repos/jobs"
	"github.com/yungbote/archivebridge-backend/internal/data/repos/records"
	httpH "github.com/yungbote/archivebridge-backend/internal/http/handlers"
	"github.com/yungbote/archivebridge-backend/internal/observability"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
	"github.com/yungbote/archivebridge-backend/internal/services"
	"github.com/yungbote/archivebridge-backend/internal/worker"

	apphttp "github.com/yungbote/archivebridge-backend/internal/http"
)

// App wires the processor's components: database, repositories, the
// job service, the worker pool, and the HTTP surface.
type App struct {
	Log    *logger.Logger
	Cfg    *config.Config
	DB     *gorm.DB
	Server *apphttp.Server
	Jobs   *services.JobService
	Worker *worker.Pool

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	workerWG     sync.WaitGroup
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

	log.Info("Loading environment variables...")
	cfg, err := config.Load(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "archivebridge-processor",
		Environment: os.Getenv("DEPLOY_ENV"),
		Version:     os.Getenv("SERVICE_VERSION"),
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	theDB := pg.DB()
	if err := db.EnsureSchema(theDB, log); err != nil {
		log.Sync()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	jobRepo := jobs.NewJobRepo(theDB, log)
	recordRepo := records.NewRecordRepo(theDB, log)
	ieRepo := records.NewIERepo(theDB, log)
	artifactRepo := records.NewArtifactRepo(theDB, log)
	catalogRepo := catalog.NewCatalogRepo(theDB, log)

	jobService := services.NewJobService(jobRepo, cfg.BackendHost, log)
	pool := worker.NewPool(cfg, jobRepo, recordRepo, ieRepo, artifactRepo, catalogRepo, jobService, log)

	server := apphttp.NewServer(apphttp.RouterConfig{
		ProcessHandler:     httpH.NewProcessHandler(jobService),
		HealthHandler:      httpH.NewHealthHandler(theDB),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Log:                log,
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           theDB,
		Server:       server,
		Jobs:         jobService,
		Worker:       pool,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the worker pool in the background.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.workerWG.Add(1)
	go func() {
		defer a.workerWG.Done()
		a.Worker.Run(ctx)
	}()
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown failed", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.workerWG.Wait()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

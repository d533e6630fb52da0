package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evekb/killfeed/config"
	"github.com/evekb/killfeed/internal/adapters/esi"
	redisadapter "github.com/evekb/killfeed/internal/adapters/redis"
	"github.com/evekb/killfeed/internal/adapters/sso"
	"github.com/evekb/killfeed/internal/data"
	"github.com/evekb/killfeed/internal/domain/job"
	"github.com/evekb/killfeed/internal/queue"
	"github.com/evekb/killfeed/internal/service"
)

// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Queue     *queue.Queue
	Accounts  *data.AccountRepo
	Killmails *data.KillmailRepo
	Entities  *data.EntityRepo
	Tokens    *sso.Client
	Source    *esi.Client
	States    *redisadapter.StateStore
	Processor *service.Processor
	Scheduler *service.Scheduler
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires adapters and services using shared infrastructure.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}

	jobQueue := queue.New(cfg.Queue.Capacity)

	accounts := data.NewAccountRepo(deps.DB)
	killmails := data.NewKillmailRepo(deps.DB)
	entities := data.NewEntityRepo(deps.DB)

	tokens, err := sso.NewClient(sso.Config{
		ClientID:     cfg.SSO.ClientID,
		ClientSecret: cfg.SSO.ClientSecret,
		RedirectURL:  cfg.SSO.RedirectURL,
		Scopes:       strings.Fields(cfg.SSO.Scopes),
		AuthorizeURL: cfg.SSO.AuthorizeURL,
		TokenURL:     cfg.SSO.TokenURL,
		JWKSURL:      cfg.SSO.JWKSURL,
		Audience:     cfg.SSO.Audience,
		Issuers:      cfg.SSO.Issuers,
		Queue:        jobQueue,
		Logger:       logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build token service: %w", err)
	}

	source := esi.NewClient(esi.Config{
		BaseURL: cfg.ESI.BaseURL,
		Logger:  logger,
	})

	processor := service.NewProcessor(service.ProcessorOptions{
		Queue:         jobQueue,
		Accounts:      accounts,
		Killmails:     killmails,
		Entities:      entities,
		Tokens:        tokens,
		Source:        source,
		RefreshWindow: cfg.Scheduler.RefreshWindow,
		Logger:        logger,
	})

	scheduler := service.NewScheduler(service.SchedulerOptions{
		Queue:           jobQueue,
		RefreshInterval: cfg.Scheduler.RefreshInterval,
		FetchInterval:   cfg.Scheduler.FetchInterval,
		ResolveInterval: cfg.Scheduler.ResolveInterval,
		Logger:          logger,
	})

	return ServiceContainer{
		Queue:     jobQueue,
		Accounts:  accounts,
		Killmails: killmails,
		Entities:  entities,
		Tokens:    tokens,
		Source:    source,
		States:    redisadapter.NewStateStore(deps.RedisClient),
		Processor: processor,
		Scheduler: scheduler,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

func launchBackground(deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(deps.ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-deps.ctx.Done():
			default:
				deps.logger.WarnContext(deps.ctx, "dropping background service error",
					"service", descriptor.name, "error", errMsg)
			}
		}
	}()

	deps.logger.InfoContext(deps.ctx, "background service started",
		"service", descriptor.name, "mode", descriptor.mode)

	return done
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	return []backgroundService{
		{
			mode:  config.ServiceModeWorker,
			name:  "processor",
			start: deps.cfg.Services.Processor.Run,
		},
		{
			mode:  config.ServiceModeScheduler,
			name:  "scheduler",
			start: deps.cfg.Services.Scheduler.Run,
		},
	}
}

func startBackgroundServices(deps *serviceStartupDeps) []backgroundServiceHandle {
	services := buildBackgroundServices(deps)
	handles := make([]backgroundServiceHandle, 0, len(services))
	for _, svc := range services {
		done := launchBackground(deps, svc)
		if done == nil {
			continue
		}
		handles = append(handles, backgroundServiceHandle{name: svc.name, done: done})
	}
	return handles
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, len(enabledServices)+1)

	deps := &serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	}

	var httpServer *http.Server
	if enabledServices[config.ServiceModeHTTP] {
		httpServer = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
	}
	backgrounds := startBackgroundServices(deps)

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  httpServer,
		jobQueue:    cfg.Services.Queue,
		worker:      enabledServices[config.ServiceModeWorker],
		logger:      logger,
		backgrounds: backgrounds,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	jobQueue    *queue.Queue
	worker      bool
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for a shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop drains the pipeline: stop accepting HTTP work first, then
// hand the processor its stop sentinel so queued jobs finish, then cancel
// everything that is still running.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			cfg.cancel()
			return err
		}
	}

	// The stop sentinel lets the processor drain jobs ahead of it in the
	// queue. A full queue falls through to plain context cancellation.
	// The processor must be drained before the context is canceled, or the
	// cancellation would abort its dequeue mid-queue.
	if cfg.worker && cfg.jobQueue != nil {
		if err := cfg.jobQueue.TryEnqueue(job.Stop()); err != nil {
			cfg.logger.Warn("could not enqueue stop job, canceling instead", "error", err)
		} else if done := findBackground(cfg.backgrounds, "processor"); done != nil {
			select {
			case <-done:
			case <-time.After(shutdownWaitTimeout):
				cfg.logger.Warn("processor did not drain in time, canceling")
			}
		}
	}

	cfg.cancel()
	for _, svc := range cfg.backgrounds {
		<-svc.done
		cfg.logger.Info("background service stopped", "service", svc.name)
	}

	return nil
}

func findBackground(handles []backgroundServiceHandle, name string) <-chan struct{} {
	for _, h := range handles {
		if h.name == name {
			return h.done
		}
	}
	return nil
}

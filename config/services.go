package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the job processor.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeScheduler runs the periodic job scheduler.
	ServiceModeScheduler ServiceMode = "scheduler"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
		ServiceModeScheduler,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeScheduler:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker, scheduler)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// QueueConfig contains job queue configuration.
type QueueConfig struct {
	// Capacity bounds how many jobs can be pending at once.
	Capacity int `env:"QUEUE_CAPACITY" envDefault:"100"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	if q.Capacity < 1 {
		q.Capacity = 100
	}
}

// SchedulerConfig contains the cadences of the three pipeline stages.
type SchedulerConfig struct {
	// RefreshInterval is how often expiring tokens are refreshed.
	RefreshInterval time.Duration `env:"SCHEDULER_REFRESH_INTERVAL" envDefault:"5m"`

	// FetchInterval is how often recent killmails are listed per account.
	FetchInterval time.Duration `env:"SCHEDULER_FETCH_INTERVAL" envDefault:"10m"`

	// ResolveInterval is how often pending killmails are resolved into entities.
	ResolveInterval time.Duration `env:"SCHEDULER_RESOLVE_INTERVAL" envDefault:"60m"`

	// RefreshWindow limits refresh passes to tokens expiring within the
	// window. Zero disables the filter and refreshes every account.
	RefreshWindow time.Duration `env:"SCHEDULER_REFRESH_WINDOW" envDefault:"20m"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = 5 * time.Minute
	}
	if s.FetchInterval <= 0 {
		s.FetchInterval = 10 * time.Minute
	}
	if s.ResolveInterval <= 0 {
		s.ResolveInterval = 60 * time.Minute
	}
	if s.RefreshWindow < 0 {
		s.RefreshWindow = 0
	}
}

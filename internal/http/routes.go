package httpx

import (
	"log/slog"
	"net/http"

	"github.com/evekb/killfeed/internal/ports"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Tokens       ports.TokenService
	States       ports.LoginStateStore
	Jobs         ports.JobEnqueuer
	CookieDomain string
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Tokens:       services.Tokens,
		States:       services.States,
		Jobs:         services.Jobs,
		CookieDomain: services.CookieDomain,
		Logger:       services.Logger,
	}
	jobHandlers := &JobHandlers{Jobs: services.Jobs}

	mux.HandleFunc("GET /{$}", indexHandler)

	mux.HandleFunc("GET /auth/login", authHandlers.Login)
	mux.HandleFunc("GET /auth/callback", authHandlers.Callback)

	mux.HandleFunc("POST /jobs/refresh", jobHandlers.TriggerRefresh)
	mux.HandleFunc("POST /jobs/fetch", jobHandlers.TriggerFetch)
	mux.HandleFunc("POST /jobs/resolve", jobHandlers.TriggerResolve)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/evekb/killfeed/internal/domain/auth"
	"github.com/evekb/killfeed/internal/domain/job"
	apperrors "github.com/evekb/killfeed/internal/errors"
	"github.com/evekb/killfeed/internal/ports"
)

const stateCookieName = "oauth_state"

// AuthHandlers provides HTTP handlers for the SSO login flow.
type AuthHandlers struct {
	Tokens       ports.TokenService
	States       ports.LoginStateStore
	Jobs         ports.JobEnqueuer
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login handles the login initiation endpoint.
// GET /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	authURL, state := h.Tokens.BuildAuthorizationURL()

	if err := h.States.Save(r.Context(), state); err != nil {
		h.logger().ErrorContext(r.Context(), "save login state failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     errors.New("could not begin login"),
		})
		return
	}

	h.setStateCookie(w, r, state)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles the OAuth callback endpoint. The state parameter must
// match the browser cookie and still be outstanding in the state store;
// only then is the authorization code exchanged.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_state",
			Err:     errors.New("state parameter is required"),
		})
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}

	known, err := h.States.Consume(r.Context(), state)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "consume login state failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_completion_failed",
			Err:     errors.New("could not complete login"),
		})
		return
	}
	if !known {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("state was not issued or already used"),
		})
		return
	}

	account, err := h.Tokens.Exchange(r.Context(), domainauth.AuthorizationCode(code))
	if err != nil {
		h.logger().ErrorContext(r.Context(), "token exchange failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    callbackErrorStatus(err),
			ErrCode: "login_completion_failed",
			Err:     errors.New("could not complete login"),
		})
		return
	}

	h.clearStateCookie(w, r)

	if err := h.Jobs.TryEnqueue(job.SaveAccount(account)); err != nil {
		h.logger().ErrorContext(r.Context(), "enqueue account save failed",
			"character_id", account.CharacterID, "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "queue_full",
			Err:     errors.New("service is busy, retry shortly"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"character_id": account.CharacterID,
	})
}

// callbackErrorStatus maps exchange failures onto response codes. Validation
// failures are the caller's fault; everything else is upstream trouble.
func callbackErrorStatus(err error) int {
	if apperrors.IsValidation(err) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (h *AuthHandlers) setStateCookie(w http.ResponseWriter, r *http.Request, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})
}

func (h *AuthHandlers) clearStateCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Package sso implements the token service against the EVE SSO authorization
// provider: authorization-code and refresh-token exchanges plus access-token
// validation against the provider's live signing-key set.
package sso

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/evekb/killfeed/internal/domain/auth"
	"github.com/evekb/killfeed/internal/domain/job"
	"github.com/evekb/killfeed/internal/domain/model"
	apperrors "github.com/evekb/killfeed/internal/errors"
	"github.com/evekb/killfeed/internal/ports"
)

// signingAlg is the only token signature algorithm the provider uses.
const signingAlg = "RS256"

// Config holds the provider endpoints and application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthorizeURL string
	TokenURL     string
	JWKSURL      string

	// Audience is the fixed provider audience literal accepted alongside the
	// application client id.
	Audience string

	// Issuers is the closed allow-list of accepted issuer claim values.
	Issuers []string

	HTTPClient *http.Client
	Queue      ports.JobEnqueuer
	Logger     *slog.Logger
}

// Client implements the TokenService port. It holds no persistent state;
// everything it needs is configuration.
type Client struct {
	oauth      *oauth2.Config
	jwksURL    string
	audiences  []string
	issuers    []string
	httpClient *http.Client
	queue      ports.JobEnqueuer
	logger     *slog.Logger
}

// NewClient creates a token service client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.AuthorizeURL == "" || cfg.TokenURL == "" || cfg.JWKSURL == "" {
		return nil, errors.New("provider endpoints are required")
	}
	if len(cfg.Issuers) == 0 {
		return nil, errors.New("issuer allow-list is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	audiences := []string{cfg.ClientID}
	if cfg.Audience != "" {
		audiences = append(audiences, cfg.Audience)
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		jwksURL:    cfg.JWKSURL,
		audiences:  audiences,
		issuers:    cfg.Issuers,
		httpClient: httpClient,
		queue:      cfg.Queue,
		logger:     logger,
	}, nil
}

// BuildAuthorizationURL constructs the provider authorization URL with a
// freshly generated state nonce. The caller persists the nonce and must
// verify it on callback before any exchange takes place.
func (c *Client) BuildAuthorizationURL() (string, string) {
	state := uuid.NewString()
	return c.oauth.AuthCodeURL(state), state
}

// Exchange performs the grant-type-specific token exchange, validates the
// returned access token, and builds the resulting account.
func (c *Client) Exchange(ctx context.Context, input auth.TokenInput) (model.Account, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	var (
		token *oauth2.Token
		err   error
	)
	switch input.Grant() {
	case auth.GrantAuthorizationCode:
		token, err = c.oauth.Exchange(ctx, input.Value())
	case auth.GrantRefreshToken:
		token, err = c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: input.Value()}).Token()
	default:
		return model.Account{}, apperrors.Validationf("unsupported grant type: %q", input.Grant())
	}
	if err != nil {
		return model.Account{}, mapExchangeError(err)
	}

	if token.AccessToken == "" {
		return model.Account{}, apperrors.Decode("token response is missing access_token")
	}
	if token.RefreshToken == "" {
		return model.Account{}, apperrors.Decode("token response is missing refresh_token")
	}

	claims, err := c.Validate(ctx, token.AccessToken)
	if err != nil {
		return model.Account{}, err
	}

	account, err := model.NewAccount(token.AccessToken, token.RefreshToken, claims)
	if err != nil {
		return model.Account{}, err
	}

	c.logger.DebugContext(ctx, "validated token",
		"character_id", account.CharacterID,
		"expires_at", account.ExpiresAt)
	return account, nil
}

// Validate verifies the access token against a freshly fetched signing-key
// set. It fails closed: any signature, claims, audience, or issuer problem
// yields a validation error and the token must not be trusted.
func (c *Client) Validate(ctx context.Context, accessToken string) (auth.Claims, error) {
	// The key set is re-fetched on every validation. Stale-key bugs cost
	// more than the extra round trip: validation only happens on login and
	// refresh, never per request.
	key, err := c.fetchSigningKey(ctx)
	if err != nil {
		return auth.Claims{}, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingAlg}),
		jwt.WithExpirationRequired(),
	)
	mapClaims := jwt.MapClaims{}
	if _, parseErr := parser.ParseWithClaims(accessToken, mapClaims, func(*jwt.Token) (any, error) {
		return key, nil
	}); parseErr != nil {
		return auth.Claims{}, apperrors.Wrap(parseErr, apperrors.ErrCodeValidation, "token verification failed")
	}

	return c.checkClaims(mapClaims)
}

func (c *Client) checkClaims(mapClaims jwt.MapClaims) (auth.Claims, error) {
	subject, err := mapClaims.GetSubject()
	if err != nil || subject == "" {
		return auth.Claims{}, apperrors.Validation("token is missing the subject claim")
	}

	audience, err := mapClaims.GetAudience()
	if err != nil {
		return auth.Claims{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "token has a malformed audience claim")
	}
	if !audienceAccepted(audience, c.audiences) {
		return auth.Claims{}, apperrors.Validationf("token audience %v does not include an accepted value", audience)
	}

	issuer, err := mapClaims.GetIssuer()
	if err != nil {
		return auth.Claims{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "token has a malformed issuer claim")
	}
	if !slices.Contains(c.issuers, issuer) {
		return auth.Claims{}, apperrors.Validationf("token issuer %q is not accepted", issuer)
	}

	expiresAt, err := mapClaims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return auth.Claims{}, apperrors.Validation("token is missing the expiry claim")
	}

	return auth.Claims{
		Subject:   subject,
		Audience:  audience,
		Issuer:    issuer,
		ExpiresAt: expiresAt.Time,
	}, nil
}

func audienceAccepted(audience, accepted []string) bool {
	for _, aud := range audience {
		if slices.Contains(accepted, aud) {
			return true
		}
	}
	return false
}

// Refresh sequentially re-exchanges each account's refresh token and enqueues
// a save job per success. A failing account is logged and skipped so the rest
// of the batch still refreshes.
func (c *Client) Refresh(ctx context.Context, accounts []model.Account) {
	c.logger.DebugContext(ctx, "refreshing accounts", "count", len(accounts))
	for _, account := range accounts {
		refreshed, err := c.Exchange(ctx, auth.RefreshToken(account.RefreshToken))
		if err != nil {
			c.logger.ErrorContext(ctx, "refresh token exchange failed",
				"character_id", account.CharacterID, "error", err)
			continue
		}

		c.logger.DebugContext(ctx, "refreshed token",
			"character_id", refreshed.CharacterID,
			"expires_at", refreshed.ExpiresAt)
		if enqueueErr := c.queue.Enqueue(ctx, job.SaveAccount(refreshed)); enqueueErr != nil {
			c.logger.ErrorContext(ctx, "enqueue account save failed",
				"character_id", refreshed.CharacterID, "error", enqueueErr)
		}
	}
}

// mapExchangeError classifies oauth2 exchange failures: a non-2xx token
// endpoint response becomes an http error carrying the response body,
// anything else is a transport failure.
func mapExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return apperrors.Wrapf(err, apperrors.ErrCodeHTTP,
			"token endpoint returned %d: %s", status, string(retrieveErr.Body))
	}
	return apperrors.Wrap(err, apperrors.ErrCodeNetwork, "token exchange request failed")
}

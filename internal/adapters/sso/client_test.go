package sso

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evekb/killfeed/internal/domain/auth"
	"github.com/evekb/killfeed/internal/domain/job"
	"github.com/evekb/killfeed/internal/domain/model"
	apperrors "github.com/evekb/killfeed/internal/errors"
	"github.com/evekb/killfeed/internal/queue"
)

// ssoFixture is a fake authorization provider: a token endpoint minting
// RS256-signed access tokens and a JWKS endpoint publishing the public key.
type ssoFixture struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	queue    *queue.Queue
	issuer   string
	audience string

	// tokenStatus and tokenBody override the token endpoint response when set.
	tokenStatus int
	tokenBody   string

	// claimsOverride mutates the minted claims before signing.
	claimsOverride func(jwt.MapClaims)
}

func newSSOFixture(t *testing.T) *ssoFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &ssoFixture{
		key:      key,
		queue:    queue.New(16),
		issuer:   "login.test.local",
		audience: "Test Provider",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/oauth/token", f.handleToken)
	mux.HandleFunc("/oauth/jwks", f.handleJWKS)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	return f
}

func (f *ssoFixture) handleToken(w http.ResponseWriter, r *http.Request) {
	if f.tokenStatus != 0 {
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
		return
	}

	claims := jwt.MapClaims{
		"sub": "CHARACTER:EVE:123",
		"aud": []string{f.audience},
		"iss": f.issuer,
		"exp": time.Now().Add(20 * time.Minute).Unix(),
	}
	if f.claimsOverride != nil {
		f.claimsOverride(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(f.key)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  signed,
		"refresh_token": "refresh-abc",
		"token_type":    "Bearer",
		"expires_in":    1200,
	})
}

func (f *ssoFixture) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	keySet := jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       &f.key.PublicKey,
			KeyID:     "test-key-1",
			Algorithm: "RS256",
			Use:       "sig",
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(keySet)
}

func (f *ssoFixture) newClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scopes:       []string{"publicData"},
		AuthorizeURL: f.server.URL + "/v2/oauth/authorize",
		TokenURL:     f.server.URL + "/v2/oauth/token",
		JWKSURL:      f.server.URL + "/oauth/jwks",
		Audience:     f.audience,
		Issuers:      []string{f.issuer, "https://" + f.issuer},
		HTTPClient:   f.server.Client(),
		Queue:        f.queue,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestBuildAuthorizationURL_EmbedsState(t *testing.T) {
	f := newSSOFixture(t)
	client := f.newClient(t)

	authURL, state := client.BuildAuthorizationURL()
	require.NotEmpty(t, state)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, state, u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
	assert.Equal(t, "code", u.Query().Get("response_type"))

	_, otherState := client.BuildAuthorizationURL()
	assert.NotEqual(t, state, otherState, "each login attempt gets its own nonce")
}

func TestExchange_AuthorizationCode(t *testing.T) {
	f := newSSOFixture(t)
	client := f.newClient(t)

	account, err := client.Exchange(context.Background(), auth.AuthorizationCode("code-1"))
	require.NoError(t, err)

	assert.Equal(t, int64(123), account.CharacterID)
	assert.NotEmpty(t, account.AccessToken)
	assert.Equal(t, "refresh-abc", account.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(20*time.Minute), account.ExpiresAt, time.Minute)
}

func TestExchange_TokenEndpointError(t *testing.T) {
	f := newSSOFixture(t)
	f.tokenStatus = http.StatusBadRequest
	f.tokenBody = `{"error":"invalid_grant"}`
	client := f.newClient(t)

	_, err := client.Exchange(context.Background(), auth.AuthorizationCode("expired"))
	require.Error(t, err)
	assert.True(t, apperrors.IsHTTP(err))
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestExchange_RejectsUnknownIssuer(t *testing.T) {
	f := newSSOFixture(t)
	f.claimsOverride = func(claims jwt.MapClaims) {
		claims["iss"] = "evil.example.com"
	}
	client := f.newClient(t)

	_, err := client.Exchange(context.Background(), auth.AuthorizationCode("code-1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestExchange_RejectsForeignAudience(t *testing.T) {
	f := newSSOFixture(t)
	f.claimsOverride = func(claims jwt.MapClaims) {
		claims["aud"] = []string{"someone-else"}
	}
	client := f.newClient(t)

	_, err := client.Exchange(context.Background(), auth.AuthorizationCode("code-1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestExchange_AcceptsClientIDAudience(t *testing.T) {
	f := newSSOFixture(t)
	f.claimsOverride = func(claims jwt.MapClaims) {
		claims["aud"] = []string{"client-id"}
	}
	client := f.newClient(t)

	_, err := client.Exchange(context.Background(), auth.AuthorizationCode("code-1"))
	require.NoError(t, err)
}

func TestExchange_RejectsExpiredToken(t *testing.T) {
	f := newSSOFixture(t)
	f.claimsOverride = func(claims jwt.MapClaims) {
		claims["exp"] = time.Now().Add(-time.Minute).Unix()
	}
	client := f.newClient(t)

	_, err := client.Exchange(context.Background(), auth.AuthorizationCode("code-1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestExchange_RejectsMalformedSubject(t *testing.T) {
	f := newSSOFixture(t)
	f.claimsOverride = func(claims jwt.MapClaims) {
		claims["sub"] = "USER:OTHER:123"
	}
	client := f.newClient(t)

	_, err := client.Exchange(context.Background(), auth.AuthorizationCode("code-1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestValidate_RejectsTokenSignedByOtherKey(t *testing.T) {
	f := newSSOFixture(t)
	client := f.newClient(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "CHARACTER:EVE:123",
		"aud": []string{f.audience},
		"iss": f.issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	forged, err := token.SignedString(otherKey)
	require.NoError(t, err)

	_, err = client.Validate(context.Background(), forged)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestValidate_RejectsNonRS256Token(t *testing.T) {
	f := newSSOFixture(t)
	client := f.newClient(t)

	// HS256 token using the alg-confusion trick must be rejected up front.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "CHARACTER:EVE:123",
		"aud": []string{f.audience},
		"iss": f.issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = client.Validate(context.Background(), signed)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRefresh_EnqueuesSavePerSuccess(t *testing.T) {
	f := newSSOFixture(t)
	client := f.newClient(t)

	accounts, err := seedAccounts(client, 2)
	require.NoError(t, err)

	client.Refresh(context.Background(), accounts)

	assert.Equal(t, 2, f.queue.Len())
	for f.queue.Len() > 0 {
		j, ok := f.queue.Dequeue(context.Background())
		require.True(t, ok)
		assert.Equal(t, job.KindSaveAccount, j.Kind)
		require.NotNil(t, j.Account)
		assert.Equal(t, int64(123), j.Account.CharacterID)
	}
}

func TestRefresh_FailureSkipsAccount(t *testing.T) {
	f := newSSOFixture(t)
	client := f.newClient(t)

	accounts, err := seedAccounts(client, 1)
	require.NoError(t, err)

	// Later exchanges fail; the batch must not abort or enqueue saves.
	f.tokenStatus = http.StatusUnauthorized
	f.tokenBody = `{"error":"invalid_token"}`

	client.Refresh(context.Background(), accounts)

	assert.Equal(t, 0, f.queue.Len())
}

func seedAccounts(client *Client, n int) ([]model.Account, error) {
	accounts := make([]model.Account, 0, n)
	for range n {
		account, err := client.Exchange(context.Background(), auth.AuthorizationCode("seed"))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func TestMapExchangeError_Network(t *testing.T) {
	transportErr := &url.Error{Op: "Post", URL: "http://localhost:1", Err: context.DeadlineExceeded}
	err := mapExchangeError(transportErr)
	assert.True(t, apperrors.IsNetwork(err))
}

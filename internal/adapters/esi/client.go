// Package esi implements the remote game-data API client: per-account recent
// killmail listings and unauthenticated killmail detail fetches.
package esi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/evekb/killfeed/internal/domain/model"
	apperrors "github.com/evekb/killfeed/internal/errors"
)

// maxErrorBodyBytes bounds how much of an error response body is surfaced.
const maxErrorBodyBytes = 4 * 1024

// Config holds the API base URL and HTTP client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements the KillmailSource port.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a data API client from the given configuration.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: cfg.BaseURL, httpClient: httpClient, logger: logger}
}

// killmailItem is one entry of the recent-killmails listing.
type killmailItem struct {
	KillmailHash string `json:"killmail_hash"`
	KillmailID   int64  `json:"killmail_id"`
}

// RecentKillmails lists the account's recent killmails with a bearer token.
// When the account carries a last-fetch timestamp it is sent as
// If-Modified-Since; a 304 response yields an empty list without error.
func (c *Client) RecentKillmails(ctx context.Context, account model.Account) ([]model.KillmailRef, error) {
	url := fmt.Sprintf("%s/latest/characters/%d/killmails/recent/", c.baseURL, account.CharacterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNetwork, "build killmail listing request")
	}
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)
	if account.LastFetchedAt != nil {
		req.Header.Set("If-Modified-Since", account.LastFetchedAt.UTC().Format(http.TimeFormat))
	}

	c.logger.DebugContext(ctx, "fetching recent killmails",
		"character_id", account.CharacterID,
		"last_fetched_at", account.LastFetchedAt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNetwork, "fetch killmail listing")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotModified {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, apperrors.HTTPf("killmail listing returned %d: %s", resp.StatusCode, string(body))
	}

	var items []killmailItem
	if decodeErr := json.NewDecoder(resp.Body).Decode(&items); decodeErr != nil {
		return nil, apperrors.Wrap(decodeErr, apperrors.ErrCodeDecode, "decode killmail listing")
	}

	refs := make([]model.KillmailRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, model.KillmailRef{
			KillmailID:   item.KillmailID,
			KillmailHash: item.KillmailHash,
			Status:       model.KillmailStatusNew,
		})
	}
	return refs, nil
}

// KillmailDetail fetches the full killmail document. The endpoint is
// unauthenticated; the hash acts as the access capability.
func (c *Client) KillmailDetail(ctx context.Context, killmailID int64, hash string) (*model.KillmailDocument, error) {
	url := fmt.Sprintf("%s/killmails/%d/%s", c.baseURL, killmailID, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNetwork, "build killmail detail request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNetwork, "fetch killmail detail")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, apperrors.HTTPf("killmail detail returned %d: %s", resp.StatusCode, string(body))
	}

	var doc model.KillmailDocument
	if decodeErr := json.NewDecoder(resp.Body).Decode(&doc); decodeErr != nil {
		return nil, apperrors.Wrap(decodeErr, apperrors.ErrCodeDecode, "decode killmail detail")
	}
	if doc.KillmailID == 0 {
		doc.KillmailID = killmailID
	}
	return &doc, nil
}

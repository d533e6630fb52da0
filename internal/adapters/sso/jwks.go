package sso

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	jose "github.com/go-jose/go-jose/v4"

	apperrors "github.com/evekb/killfeed/internal/errors"
)

// maxJWKSBodyBytes bounds how much of an error response body is surfaced.
const maxJWKSBodyBytes = 4 * 1024

// fetchSigningKey retrieves the provider's current key set and returns the
// public key whose algorithm matches the expected signature algorithm.
func (c *Client) fetchSigningKey(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNetwork, "build key set request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNetwork, "fetch signing key set")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodyBytes))
		return nil, apperrors.HTTPf("key set endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var keySet jose.JSONWebKeySet
	if decodeErr := json.NewDecoder(resp.Body).Decode(&keySet); decodeErr != nil {
		return nil, apperrors.Wrap(decodeErr, apperrors.ErrCodeDecode, "decode signing key set")
	}

	for _, key := range keySet.Keys {
		if key.Algorithm == signingAlg {
			return key.Key, nil
		}
	}
	return nil, apperrors.Validationf("no %s key in provider key set", signingAlg)
}

// Package auth defines the domain types for the account authentication lifecycle.
package auth

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/evekb/killfeed/internal/errors"
)

// subjectPrefix is the fixed prefix of the character subject claim issued by the SSO.
const subjectPrefix = "CHARACTER:EVE:"

// Claims holds the verified contents of an access token. It is transient:
// it exists only for the duration of token validation and is never persisted.
type Claims struct {
	Subject   string
	Audience  []string
	Issuer    string
	ExpiresAt time.Time
}

// CharacterID parses the numeric character identifier from the subject claim.
// The subject has the form "CHARACTER:EVE:<id>".
func (c Claims) CharacterID() (int64, error) {
	suffix, ok := strings.CutPrefix(c.Subject, subjectPrefix)
	if !ok {
		return 0, apperrors.Validationf("unexpected subject format: %q", c.Subject)
	}
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "non-numeric character id in subject %q", c.Subject)
	}
	return id, nil
}

// GrantType identifies the OAuth2 grant used for a token exchange.
type GrantType string

const (
	// GrantAuthorizationCode exchanges an authorization code from the login callback.
	GrantAuthorizationCode GrantType = "authorization_code"
	// GrantRefreshToken exchanges a stored refresh token.
	GrantRefreshToken GrantType = "refresh_token"
)

// TokenInput is the closed set of inputs accepted by the token exchange:
// either an authorization code or a refresh token.
type TokenInput struct {
	grant GrantType
	value string
}

// AuthorizationCode builds a TokenInput for the authorization-code grant.
func AuthorizationCode(code string) TokenInput {
	return TokenInput{grant: GrantAuthorizationCode, value: code}
}

// RefreshToken builds a TokenInput for the refresh-token grant.
func RefreshToken(token string) TokenInput {
	return TokenInput{grant: GrantRefreshToken, value: token}
}

// Grant returns the grant type of the input.
func (t TokenInput) Grant() GrantType { return t.grant }

// Value returns the code or refresh token carried by the input.
func (t TokenInput) Value() string { return t.value }

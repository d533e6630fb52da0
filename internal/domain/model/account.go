// Package model defines the persistent domain types of the killfeed system.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/evekb/killfeed/internal/domain/auth"
)

// Account is the credential record for an authorized character. At most one
// live record exists per character identifier; tokens and expiry are replaced
// on every refresh or re-authorization.
type Account struct {
	ID            uuid.UUID  `db:"id"              json:"id"`
	CharacterID   int64      `db:"character_id"    json:"character_id"`
	AccessToken   string     `db:"access_token"    json:"-"`
	RefreshToken  string     `db:"refresh_token"   json:"-"`
	ExpiresAt     time.Time  `db:"expires_at"      json:"expires_at"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"      json:"updated_at"`
	LastFetchedAt *time.Time `db:"last_fetched_at" json:"last_fetched_at,omitempty"`
}

// NewAccount builds an Account from a validated token pair. The character
// identifier comes from the claims subject and the expiry from the exp claim.
func NewAccount(accessToken, refreshToken string, claims auth.Claims) (Account, error) {
	characterID, err := claims.CharacterID()
	if err != nil {
		return Account{}, err
	}

	now := time.Now().UTC()
	return Account{
		ID:           uuid.New(),
		CharacterID:  characterID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    claims.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

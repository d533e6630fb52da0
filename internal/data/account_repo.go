// Package data implements the persistence contract on PostgreSQL.
package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/evekb/killfeed/internal/data/pgxutil"
	"github.com/evekb/killfeed/internal/domain/model"
	apperrors "github.com/evekb/killfeed/internal/errors"
)

// AccountRepo implements the AccountStore port using PostgreSQL.
type AccountRepo struct {
	DB *sql.DB
}

// NewAccountRepo creates a new AccountRepo with the given database connection.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{DB: db}
}

const accountColumns = `id, character_id, access_token, refresh_token, expires_at, created_at, updated_at, last_fetched_at`

// Upsert inserts the account or, when a record for the character identifier
// already exists, replaces its tokens and expiry and bumps updated_at.
// Creation and last-fetch timestamps of existing records are preserved.
func (r *AccountRepo) Upsert(ctx context.Context, account model.Account) (int64, error) {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, execErr := conn.Exec(ctx, `
			INSERT INTO accounts (id, character_id, access_token, refresh_token, expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (character_id) DO UPDATE SET
				access_token  = EXCLUDED.access_token,
				refresh_token = EXCLUDED.refresh_token,
				expires_at    = EXCLUDED.expires_at,
				updated_at    = now()
		`, account.ID, account.CharacterID, account.AccessToken, account.RefreshToken,
			account.ExpiresAt.UTC(), account.CreatedAt.UTC(), account.UpdatedAt.UTC())
		if execErr != nil {
			return execErr
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert account %d: %w", account.CharacterID, apperrors.MapDBError(err))
	}
	return affected, nil
}

// ListAll returns every stored account ordered by character identifier.
func (r *AccountRepo) ListAll(ctx context.Context) ([]model.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY character_id`)
}

// ListExpiringWithin returns accounts whose access token expires before
// now+window, including tokens that already expired (their refresh token may
// still be usable).
func (r *AccountRepo) ListExpiringWithin(ctx context.Context, window time.Duration) ([]model.Account, error) {
	cutoff := time.Now().UTC().Add(window)
	return r.list(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE expires_at <= $1 ORDER BY character_id`,
		cutoff)
}

func (r *AccountRepo) list(ctx context.Context, query string, args ...any) ([]model.Account, error) {
	var out []model.Account
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, query, args...)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		var collectErr error
		out, collectErr = pgx.CollectRows(rows, pgx.RowToStructByName[model.Account])
		return collectErr
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// SetLastFetched records when the character's killmail listing was last
// fetched. Unknown characters are a no-op.
func (r *AccountRepo) SetLastFetched(ctx context.Context, characterID int64, fetchedAt time.Time) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx,
			`UPDATE accounts SET last_fetched_at = $2 WHERE character_id = $1`,
			characterID, fetchedAt.UTC())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("set last fetched for %d: %w", characterID, apperrors.MapDBError(err))
	}
	return nil
}

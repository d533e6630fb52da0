package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/evekb/killfeed/internal/data/pgxutil"
	"github.com/evekb/killfeed/internal/domain/model"
	apperrors "github.com/evekb/killfeed/internal/errors"
)

// KillmailRepo implements the KillmailStore port using PostgreSQL.
type KillmailRepo struct {
	DB *sql.DB
}

// NewKillmailRepo creates a new KillmailRepo with the given database connection.
func NewKillmailRepo(db *sql.DB) *KillmailRepo {
	return &KillmailRepo{DB: db}
}

// InsertIfAbsent inserts the reference keyed by killmail identifier.
// Duplicate insertion is a no-op and reports 0 affected rows.
func (r *KillmailRepo) InsertIfAbsent(ctx context.Context, ref model.KillmailRef) (int64, error) {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, execErr := conn.Exec(ctx, `
			INSERT INTO killmails (killmail_id, killmail_hash, status)
			VALUES ($1, $2, $3)
			ON CONFLICT (killmail_id) DO NOTHING
		`, ref.KillmailID, ref.KillmailHash, ref.Status)
		if execErr != nil {
			return execErr
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert killmail %d: %w", ref.KillmailID, apperrors.MapDBError(err))
	}
	return affected, nil
}

// UpdateStatus advances the processing status of a killmail reference.
func (r *KillmailRepo) UpdateStatus(ctx context.Context, killmailID int64, status model.KillmailStatus) (int64, error) {
	if !status.Valid() {
		return 0, apperrors.Validationf("invalid killmail status: %q", status)
	}
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, execErr := conn.Exec(ctx,
			`UPDATE killmails SET status = $2 WHERE killmail_id = $1`,
			killmailID, status)
		if execErr != nil {
			return execErr
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update killmail %d status: %w", killmailID, apperrors.MapDBError(err))
	}
	return affected, nil
}

// ListPending returns references still awaiting resolution, oldest first.
func (r *KillmailRepo) ListPending(ctx context.Context) ([]model.KillmailRef, error) {
	var out []model.KillmailRef
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			SELECT killmail_id, killmail_hash, status
			FROM killmails
			WHERE status = $1
			ORDER BY killmail_id
		`, model.KillmailStatusNew)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		var collectErr error
		out, collectErr = pgx.CollectRows(rows, pgx.RowToStructByName[model.KillmailRef])
		return collectErr
	})
	if err != nil {
		return nil, fmt.Errorf("list pending killmails: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

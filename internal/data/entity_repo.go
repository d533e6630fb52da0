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

// EntityRepo implements the EntityStore port using PostgreSQL.
type EntityRepo struct {
	DB *sql.DB
}

// NewEntityRepo creates a new EntityRepo with the given database connection.
func NewEntityRepo(db *sql.DB) *EntityRepo {
	return &EntityRepo{DB: db}
}

// InsertIfAbsent inserts the entity keyed by (identifier, type). Duplicate
// insertion is a no-op and reports 0 affected rows; existing names are never
// touched. The sentinel identifier 0 is rejected outright.
func (r *EntityRepo) InsertIfAbsent(ctx context.Context, entity model.Entity) (int64, error) {
	if !entity.Persistable() {
		return 0, apperrors.Validation("entity identifier 0 is the absent-field sentinel and must not be persisted")
	}
	if !entity.Type.Valid() {
		return 0, apperrors.Validationf("invalid entity type: %q", entity.Type)
	}

	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, execErr := conn.Exec(ctx, `
			INSERT INTO entities (id, name, type)
			VALUES ($1, $2, $3)
			ON CONFLICT (id, type) DO NOTHING
		`, entity.ID, entity.Name, entity.Type)
		if execErr != nil {
			return execErr
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert entity %d/%s: %w", entity.ID, entity.Type, apperrors.MapDBError(err))
	}
	return affected, nil
}

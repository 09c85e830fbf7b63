package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

type PgSuppressionRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgSuppressionRepository(db DB, logger *slog.Logger) domain.SuppressionRepository {
	return &PgSuppressionRepository{db: db, logger: logger.With("component", "suppression_repository_pg")}
}

func (r *PgSuppressionRepository) Contains(ctx context.Context, address string) (bool, error) {
	query := `SELECT 1 FROM opt_out WHERE email = $1 LIMIT 1`

	var one int
	err := r.db.QueryRow(ctx, query, address).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking suppression list: %w", err)
	}
	return true, nil
}

// Add inserts the address. A conflict on the unique email key is not an
// error: the address was already suppressed and added comes back false.
func (r *PgSuppressionRepository) Add(ctx context.Context, address, reasonHash string) (bool, error) {
	query := `
		INSERT INTO opt_out (email, msg_hash, added_at)
		VALUES ($1, $2, now())
		ON CONFLICT (email) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, address, reasonHash)
	if err != nil {
		return false, fmt.Errorf("adding suppression entry: %w", err)
	}
	added := tag.RowsAffected() > 0
	if added {
		r.logger.InfoContext(ctx, "Address suppressed", "reason_hash", reasonHash)
	}
	return added, nil
}

func (r *PgSuppressionRepository) Remove(ctx context.Context, address string) (bool, error) {
	query := `DELETE FROM opt_out WHERE email = $1`

	tag, err := r.db.Exec(ctx, query, address)
	if err != nil {
		return false, fmt.Errorf("removing suppression entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

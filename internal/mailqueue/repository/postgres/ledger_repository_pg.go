package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

type PgLedgerRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgLedgerRepository(db DB, logger *slog.Logger) domain.LedgerRepository {
	return &PgLedgerRepository{db: db, logger: logger.With("component", "ledger_repository_pg")}
}

// Record appends one delivery row. There is no uniqueness constraint on
// msg_hash; repeated attempts of the same message each get a row.
func (r *PgLedgerRepository) Record(ctx context.Context, rec *domain.DeliveryRecord) error {
	query := `
		INSERT INTO sent_mail (msg_hash, account_id, to_addr, ip, object_ref, kind, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		rec.MessageHash, rec.AccountID, rec.ToAddress, rec.IP, rec.ObjectRef,
		int(rec.Kind), rec.SentAt,
	)
	if err != nil {
		return fmt.Errorf("recording delivery: %w", err)
	}
	return nil
}

func (r *PgLedgerRepository) ResolveRecipient(ctx context.Context, messageHash string) (string, error) {
	query := `SELECT to_addr FROM sent_mail WHERE msg_hash = $1 ORDER BY sent_at DESC LIMIT 1`

	var addr string
	err := r.db.QueryRow(ctx, query, messageHash).Scan(&addr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("resolving recipient: %w", err)
	}
	return addr, nil
}

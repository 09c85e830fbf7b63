package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

type PgQueueRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgQueueRepository(db DB, logger *slog.Logger) domain.QueueRepository {
	return &PgQueueRepository{db: db, logger: logger.With("component", "queue_repository_pg")}
}

func (r *PgQueueRepository) Insert(ctx context.Context, msgs []*domain.QueuedMessage) error {
	query := `
		INSERT INTO mail_queue (
			msg_hash, account_id, from_name, to_addr, object_ref, origin_addr,
			ip, kind, body, enqueued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	for _, msg := range msgs {
		err := r.db.QueryRow(ctx, query,
			msg.MessageHash, msg.AccountID, msg.FromName, msg.ToAddress,
			msg.ObjectRef, msg.OriginAddress, msg.IP, int(msg.Kind), msg.Body,
			msg.EnqueuedAt,
		).Scan(&msg.ID)
		if err != nil {
			return fmt.Errorf("inserting queued message: %w", err)
		}
	}
	return nil
}

func (r *PgQueueRepository) FetchPage(ctx context.Context, cutoff time.Time, afterID int64, limit int, kind *domain.Kind) ([]*domain.QueuedMessage, error) {
	query := `
		SELECT id, msg_hash, account_id, from_name, to_addr, object_ref,
		       origin_addr, ip, kind, body, enqueued_at
		FROM mail_queue
		WHERE enqueued_at < $1 AND id > $2
	`
	args := []any{cutoff, afterID}
	if kind != nil {
		query += ` AND kind = $3`
		args = append(args, int(*kind))
	}
	query += fmt.Sprintf(` ORDER BY id ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching queue page: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.QueuedMessage
	for rows.Next() {
		var msg domain.QueuedMessage
		var kindInt int
		if err := rows.Scan(
			&msg.ID, &msg.MessageHash, &msg.AccountID, &msg.FromName,
			&msg.ToAddress, &msg.ObjectRef, &msg.OriginAddress, &msg.IP,
			&kindInt, &msg.Body, &msg.EnqueuedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning queue row: %w", err)
		}
		msg.Kind = domain.Kind(kindInt)
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue rows: %w", err)
	}
	return msgs, nil
}

func (r *PgQueueRepository) DeleteBefore(ctx context.Context, cutoff time.Time, kind *domain.Kind) (int64, error) {
	query := `DELETE FROM mail_queue WHERE enqueued_at < $1`
	args := []any{cutoff}
	if kind != nil {
		query += ` AND kind = $2`
		args = append(args, int(*kind))
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clearing queue: %w", err)
	}
	r.logger.DebugContext(ctx, "Cleared processed queue window", "cutoff", cutoff, "rows", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

func TestPgLedgerRepository_Record(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sentAt := time.Now().UTC()

	t.Run("AppendsRow", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewPgLedgerRepository(mockPool, logger)

		rec := &domain.DeliveryRecord{
			MessageHash: "h1",
			AccountID:   3,
			ToAddress:   "a@example.com",
			IP:          "10.0.0.1",
			ObjectRef:   "obj_1",
			Kind:        domain.KindShare,
			SentAt:      sentAt,
		}
		mockPool.ExpectExec(`INSERT INTO sent_mail`).
			WithArgs(rec.MessageHash, rec.AccountID, rec.ToAddress, rec.IP,
				rec.ObjectRef, int(rec.Kind), rec.SentAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.Record(context.Background(), rec)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("InsertError", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewPgLedgerRepository(mockPool, logger)

		mockPool.ExpectExec(`INSERT INTO sent_mail`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("DB error"))

		err = repo.Record(context.Background(), &domain.DeliveryRecord{MessageHash: "h1", SentAt: sentAt})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DB error")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgLedgerRepository_ResolveRecipient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Found", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewPgLedgerRepository(mockPool, logger)

		rows := mockPool.NewRows([]string{"to_addr"}).AddRow("a@example.com")
		mockPool.ExpectQuery(`SELECT to_addr FROM sent_mail WHERE msg_hash = \$1 ORDER BY sent_at DESC LIMIT 1`).
			WithArgs("h1").
			WillReturnRows(rows)

		addr, err := repo.ResolveRecipient(context.Background(), "h1")
		assert.NoError(t, err)
		assert.Equal(t, "a@example.com", addr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownHash", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewPgLedgerRepository(mockPool, logger)

		mockPool.ExpectQuery(`SELECT to_addr FROM sent_mail`).
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		addr, err := repo.ResolveRecipient(context.Background(), "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, "", addr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- In-memory queue repository ---

// memQueueRepo keeps queue rows in insertion order with sequential ids, which
// is what the cursor pagination contract assumes of the real table.
type memQueueRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*domain.QueuedMessage

	fetchErr  error
	deleteErr error
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{}
}

func (r *memQueueRepo) Insert(ctx context.Context, msgs []*domain.QueuedMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.nextID++
		m.ID = r.nextID
		cp := *m
		r.rows = append(r.rows, &cp)
	}
	return nil
}

func (r *memQueueRepo) FetchPage(ctx context.Context, cutoff time.Time, afterID int64, limit int, kind *domain.Kind) ([]*domain.QueuedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	var out []*domain.QueuedMessage
	for _, m := range r.rows {
		if !m.EnqueuedAt.Before(cutoff) || m.ID <= afterID {
			continue
		}
		if kind != nil && m.Kind != *kind {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memQueueRepo) DeleteBefore(ctx context.Context, cutoff time.Time, kind *domain.Kind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	var kept []*domain.QueuedMessage
	var removed int64
	for _, m := range r.rows {
		if m.EnqueuedAt.Before(cutoff) && (kind == nil || m.Kind == *kind) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	r.rows = kept
	return removed, nil
}

func (r *memQueueRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// --- In-memory ledger ---

type memLedger struct {
	mu      sync.Mutex
	records []*domain.DeliveryRecord

	recordErr  error
	resolveErr error
}

func newMemLedger() *memLedger {
	return &memLedger{}
}

func (l *memLedger) Record(ctx context.Context, rec *domain.DeliveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	cp := *rec
	l.records = append(l.records, &cp)
	return nil
}

func (l *memLedger) ResolveRecipient(ctx context.Context, messageHash string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolveErr != nil {
		return "", l.resolveErr
	}
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].MessageHash == messageHash {
			return l.records[i].ToAddress, nil
		}
	}
	return "", domain.ErrNotFound
}

func (l *memLedger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// --- In-memory suppression list ---

type memSuppression struct {
	mu            sync.Mutex
	entries       map[string]string
	containsCalls int
}

func newMemSuppression() *memSuppression {
	return &memSuppression{entries: map[string]string{}}
}

func (s *memSuppression) Contains(ctx context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containsCalls++
	_, ok := s.entries[address]
	return ok, nil
}

func (s *memSuppression) Add(ctx context.Context, address, reasonHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[address]; ok {
		return false, nil
	}
	s.entries[address] = reasonHash
	return true, nil
}

func (s *memSuppression) Remove(ctx context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[address]; !ok {
		return false, nil
	}
	delete(s.entries, address)
	return true, nil
}

// --- Transport mock ---

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, envelopeFrom, envelopeTo string, rawMessage []byte) error {
	args := m.Called(ctx, envelopeFrom, envelopeTo, rawMessage)
	return args.Error(0)
}

func (m *MockTransport) Name() string { return "mock" }

// --- Event publisher recorder ---

type eventRecorder struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (r *eventRecorder) Publish(ctx context.Context, subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

// QueueService owns enqueueing and the batched due-window scan. Dequeue joins
// each page with its requester accounts and associated objects in memory, one
// resolver call per page rather than per row.
type QueueService struct {
	queue    domain.QueueRepository
	accounts domain.AccountResolver
	objects  domain.ObjectResolver
	ipBans   domain.IPBanChecker
	logger   *slog.Logger
}

func NewQueueService(
	queue domain.QueueRepository,
	accounts domain.AccountResolver,
	objects domain.ObjectResolver,
	ipBans domain.IPBanChecker,
	logger *slog.Logger,
) *QueueService {
	return &QueueService{
		queue:    queue,
		accounts: accounts,
		objects:  objects,
		ipBans:   ipBans,
		logger:   logger.With("service", "queue"),
	}
}

// Enqueue adds one queue row per recipient, all sharing the enqueue
// timestamp, and returns the generated message hash per recipient for
// correlation. requester may be nil for system-originated mail.
func (s *QueueService) Enqueue(
	ctx context.Context,
	requester *domain.Account,
	recipients []string,
	fromName, originAddress string,
	kind domain.Kind,
	body, objectRef, ip string,
) ([]string, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("enqueue: unknown message kind %d", int(kind))
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("enqueue: no recipients")
	}

	accountID := domain.SystemAccountID
	if requester != nil {
		accountID = requester.ID
	}

	now := time.Now().UTC()
	msgs := make([]*domain.QueuedMessage, 0, len(recipients))
	hashes := make([]string, 0, len(recipients))
	for _, to := range recipients {
		hash := domain.MessageHash(to, fromName, accountID, objectRef, originAddress, kind, body, time.Now().UTC())
		msgs = append(msgs, &domain.QueuedMessage{
			MessageHash:   hash,
			AccountID:     accountID,
			FromName:      fromName,
			ToAddress:     to,
			ObjectRef:     objectRef,
			OriginAddress: originAddress,
			IP:            ip,
			Kind:          kind,
			Body:          body,
			EnqueuedAt:    now,
		})
		hashes = append(hashes, hash)
	}

	if err := s.queue.Insert(ctx, msgs); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Messages enqueued", "kind", kind.String(), "count", len(msgs))
	return hashes, nil
}

// ForEachDue walks every queue row with enqueuedAt < cutoff in ascending id
// order, in pages of batchSize, annotating each with its requester, object
// and origin-IP ban state. The page cursor is the highest id seen, so rows
// inserted mid-scan sort after it and surface in a later page or the next
// pass. An error from fn aborts the scan immediately and is returned.
func (s *QueueService) ForEachDue(
	ctx context.Context,
	cutoff time.Time,
	batchSize int,
	kind *domain.Kind,
	fn func(*domain.DueMessage) error,
) (int, error) {
	var (
		afterID   int64
		processed int
	)
	for {
		page, err := s.queue.FetchPage(ctx, cutoff, afterID, batchSize, kind)
		if err != nil {
			return processed, fmt.Errorf("fetching due page: %w", err)
		}
		if len(page) == 0 {
			return processed, nil
		}

		annotated, err := s.annotatePage(ctx, page)
		if err != nil {
			return processed, err
		}

		for _, m := range annotated {
			if err := fn(m); err != nil {
				return processed, err
			}
			processed++
		}

		afterID = page[len(page)-1].ID
		if len(page) < batchSize {
			return processed, nil
		}
	}
}

// ClearBefore bulk-deletes the processed window. Callers must have completed
// a full pass over the same window first; the delete is unconditional.
func (s *QueueService) ClearBefore(ctx context.Context, cutoff time.Time, kind *domain.Kind) (int64, error) {
	return s.queue.DeleteBefore(ctx, cutoff, kind)
}

func (s *QueueService) annotatePage(ctx context.Context, page []*domain.QueuedMessage) ([]*domain.DueMessage, error) {
	var (
		accountIDs []int64
		objectRefs []string
		seenAcct   = map[int64]bool{}
		seenRef    = map[string]bool{}
		ips        = map[string]bool{}
	)
	for _, m := range page {
		if m.AccountID != domain.SystemAccountID && !seenAcct[m.AccountID] {
			seenAcct[m.AccountID] = true
			accountIDs = append(accountIDs, m.AccountID)
		}
		if m.ObjectRef != "" && !seenRef[m.ObjectRef] {
			seenRef[m.ObjectRef] = true
			objectRefs = append(objectRefs, m.ObjectRef)
		}
		if m.IP != "" {
			ips[m.IP] = false
		}
	}

	accounts := map[int64]*domain.Account{}
	if len(accountIDs) > 0 && s.accounts != nil {
		var err error
		accounts, err = s.accounts.AccountsByID(ctx, accountIDs)
		if err != nil {
			return nil, fmt.Errorf("batch-loading accounts: %w", err)
		}
	}

	objects := map[string]*domain.RelatedObject{}
	if len(objectRefs) > 0 && s.objects != nil {
		var err error
		objects, err = s.objects.ObjectsByRef(ctx, objectRefs)
		if err != nil {
			return nil, fmt.Errorf("batch-loading objects: %w", err)
		}
	}

	// Ban state is read per pass, not per enqueue, so bans applied after a
	// message was queued still block it.
	if s.ipBans != nil {
		for ip := range ips {
			banned, err := s.ipBans.IsBanned(ctx, ip)
			if err != nil {
				return nil, fmt.Errorf("checking IP ban for %s: %w", ip, err)
			}
			ips[ip] = banned
		}
	}

	out := make([]*domain.DueMessage, 0, len(page))
	for _, m := range page {
		out = append(out, &domain.DueMessage{
			QueuedMessage: *m,
			Requester:     accounts[m.AccountID],
			Object:        objects[m.ObjectRef],
			IPBanned:      ips[m.IP],
		})
	}
	return out, nil
}

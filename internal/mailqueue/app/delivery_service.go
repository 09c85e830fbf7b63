package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openpress/mailout/internal/mailqueue/adapters/mailtransport"
	"github.com/openpress/mailout/internal/mailqueue/domain"
)

// Outcome classifies how a due message left the delivery loop.
type Outcome string

const (
	// OutcomeSent: the transport accepted the message; a ledger row exists.
	OutcomeSent Outcome = "sent"
	// OutcomeRejected: eligibility failed or the transport permanently
	// refused an address; a ledger row exists and the loop continued.
	OutcomeRejected Outcome = "rejected"
	// OutcomeSkipped: unrenderable message (unknown kind, empty body); no
	// ledger row, the queue row is only bulk-cleared.
	OutcomeSkipped Outcome = "skipped"
)

// DeliveryEventsSubject is the broker subject delivery events are published
// on when a publisher is configured.
const DeliveryEventsSubject = "mailout.delivery.events"

// EventPublisher receives one event per attempted message. A nil publisher
// disables events.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// DeliveryEvent is the JSON payload published after each processed message.
type DeliveryEvent struct {
	MessageHash string    `json:"message_hash"`
	ToAddress   string    `json:"to_address"`
	Kind        string    `json:"kind"`
	Outcome     Outcome   `json:"outcome"`
	At          time.Time `json:"at"`
}

// PassReport summarizes one delivery pass.
type PassReport struct {
	Sent     int
	Rejected int
	Skipped  int
	Cleared  int64
}

func (r *PassReport) Total() int { return r.Sent + r.Rejected + r.Skipped }

func (r *PassReport) count(o Outcome) {
	switch o {
	case OutcomeSent:
		r.Sent++
	case OutcomeRejected:
		r.Rejected++
	case OutcomeSkipped:
		r.Skipped++
	}
}

// DeliveryConfig tunes the worker loop.
type DeliveryConfig struct {
	BatchSize int
	// Kind restricts a pass to one message class; nil processes everything.
	Kind *domain.Kind
	// DryRunOutput receives printed messages in test mode. Defaults to
	// stdout.
	DryRunOutput io.Writer
}

// DeliveryService runs delivery passes over the outbound queue: one
// synchronous transport attempt per due message, outcome recording in the
// ledger, and a bulk queue clear once the whole window has been processed.
type DeliveryService struct {
	queue       *QueueService
	ledger      domain.LedgerRepository
	suppression *SuppressionService
	transport   mailtransport.Transport
	renderers   map[domain.Kind]RenderFunc
	identity    RenderIdentity
	senders     map[domain.SenderIdentity]string
	events      EventPublisher
	logger      *slog.Logger
	cfg         DeliveryConfig
}

func NewDeliveryService(
	queue *QueueService,
	ledger domain.LedgerRepository,
	suppression *SuppressionService,
	transport mailtransport.Transport,
	renderers map[domain.Kind]RenderFunc,
	identity RenderIdentity,
	senders map[domain.SenderIdentity]string,
	events EventPublisher,
	logger *slog.Logger,
	cfg DeliveryConfig,
) *DeliveryService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.DryRunOutput == nil {
		cfg.DryRunOutput = os.Stdout
	}
	return &DeliveryService{
		queue:       queue,
		ledger:      ledger,
		suppression: suppression,
		transport:   transport,
		renderers:   renderers,
		identity:    identity,
		senders:     senders,
		events:      events,
		logger:      logger.With("service", "delivery"),
		cfg:         cfg,
	}
}

// RunDeliveryPass processes every queue entry enqueued before now. In test
// mode the transport is replaced with a printer and nothing is recorded in
// the ledger; the clear behavior is otherwise identical. A transport failure
// outside the refusal taxonomy aborts the pass and leaves the queue
// un-cleared, so the next pass re-attempts the whole window. Duplicate sends
// are an accepted at-least-once cost; the ledger and message hashes let
// consumers dedupe.
func (s *DeliveryService) RunDeliveryPass(ctx context.Context, now time.Time, testMode bool) (*PassReport, error) {
	passID := uuid.NewString()
	log := s.logger.With("pass_id", passID)
	log.InfoContext(ctx, "Delivery pass starting", "cutoff", now, "batch_size", s.cfg.BatchSize, "test_mode", testMode)

	tr := s.transport
	record := true
	if testMode {
		tr = mailtransport.NewDryRunTransport(s.cfg.DryRunOutput)
		record = false
	}

	timer := prometheus.NewTimer(deliveryPassDurationHist)
	defer timer.ObserveDuration()

	report := &PassReport{}
	_, err := s.queue.ForEachDue(ctx, now, s.cfg.BatchSize, s.cfg.Kind, func(m *domain.DueMessage) error {
		outcome, err := s.process(ctx, tr, record, m, log)
		if err != nil {
			return err
		}
		report.count(outcome)
		messagesProcessedCounter.WithLabelValues(m.Kind.String(), string(outcome)).Inc()
		// Like the ledger, events describe real attempts only; a test-mode
		// pass publishes nothing.
		if record {
			s.publishEvent(ctx, m, outcome, log)
		}
		return nil
	})
	if err != nil {
		deliveryPassesCounter.WithLabelValues("aborted").Inc()
		log.ErrorContext(ctx, "Delivery pass aborted; queue left for retry", "error", err,
			"sent", report.Sent, "rejected", report.Rejected, "skipped", report.Skipped)
		return report, fmt.Errorf("delivery pass %s: %w", passID, err)
	}

	if report.Total() == 0 {
		deliveryPassesCounter.WithLabelValues("empty").Inc()
		log.InfoContext(ctx, "Delivery pass found nothing due")
		return report, nil
	}

	cleared, err := s.queue.ClearBefore(ctx, now, s.cfg.Kind)
	if err != nil {
		deliveryPassesCounter.WithLabelValues("aborted").Inc()
		return report, fmt.Errorf("delivery pass %s: clearing queue: %w", passID, err)
	}
	report.Cleared = cleared

	deliveryPassesCounter.WithLabelValues("completed").Inc()
	log.InfoContext(ctx, "Delivery pass completed",
		"sent", report.Sent, "rejected", report.Rejected, "skipped", report.Skipped, "cleared", cleared)
	return report, nil
}

// process runs the per-message state machine:
// DUE -> ELIGIBLE? -> RENDER -> ATTEMPT -> {SENT | REJECTED | SKIPPED}.
// A returned error is fatal for the pass.
func (s *DeliveryService) process(ctx context.Context, tr mailtransport.Transport, record bool, m *domain.DueMessage, log *slog.Logger) (Outcome, error) {
	eligible, err := s.shouldSend(ctx, m)
	if err != nil {
		return "", err
	}
	if !eligible {
		log.InfoContext(ctx, "Message ineligible, rejected without attempt",
			"msg_hash", m.MessageHash, "kind", m.Kind.String())
		return OutcomeRejected, s.record(ctx, record, m)
	}

	switch outcome, err := s.render(m); {
	case err != nil:
		return "", err
	case outcome == OutcomeSkipped:
		log.InfoContext(ctx, "Message unrenderable, skipped",
			"msg_hash", m.MessageHash, "kind", m.Kind.String())
		return OutcomeSkipped, nil
	}

	env, err := domain.BuildEnvelope(m, s.envelopeFrom(m), SubjectFor(s.identity, m))
	if err != nil {
		if errors.Is(err, domain.ErrUnsafeAddress) {
			log.WarnContext(ctx, "Refusing to build envelope for unsafe address", "msg_hash", m.MessageHash)
			return OutcomeRejected, s.record(ctx, record, m)
		}
		return "", err
	}

	raw, err := env.MIME()
	if err != nil {
		if errors.Is(err, domain.ErrBadEncoding) {
			log.WarnContext(ctx, "Message failed to serialize, rejected", "msg_hash", m.MessageHash)
			return OutcomeRejected, s.record(ctx, record, m)
		}
		return "", err
	}

	sendTimer := prometheus.NewTimer(transportSendDurationHist.WithLabelValues(tr.Name()))
	err = tr.Send(ctx, env.From, env.To, raw)
	sendTimer.ObserveDuration()

	if err != nil {
		if errors.Is(err, mailtransport.ErrRecipientRefused) || errors.Is(err, mailtransport.ErrSenderRefused) {
			log.WarnContext(ctx, "Transport refused address, rejected and continuing",
				"msg_hash", m.MessageHash, "error", err)
			return OutcomeRejected, s.record(ctx, record, m)
		}
		// Anything else is fatal for the pass: the queue stays intact and
		// the whole window is re-attempted on the next run.
		return "", fmt.Errorf("transport failure on %s: %w", m.MessageHash, err)
	}

	log.InfoContext(ctx, "Message sent", "msg_hash", m.MessageHash, "kind", m.Kind.String())
	return OutcomeSent, s.record(ctx, record, m)
}

// shouldSend is the eligibility gate: spam requester, spam object, banned
// origin IP or a suppressed address (unless the kind is exempt) all veto the
// send before any render or transport work.
func (s *DeliveryService) shouldSend(ctx context.Context, m *domain.DueMessage) (bool, error) {
	if m.Requester != nil && m.Requester.Spam {
		return false, nil
	}
	if m.Object != nil && m.Object.Spam {
		return false, nil
	}
	if m.IPBanned {
		return false, nil
	}
	if !m.Kind.Info().BypassesSuppression {
		suppressed, err := s.suppression.IsSuppressed(ctx, m.ToAddress)
		if err != nil {
			return false, fmt.Errorf("suppression check for %s: %w", m.MessageHash, err)
		}
		if suppressed {
			return false, nil
		}
	}
	return true, nil
}

// render builds the final body for kinds that need it. A message with no
// registered renderer and no pre-supplied body cannot be sent and is
// skipped; a render failure is fatal, since it means a template or data bug
// that will not improve by continuing.
func (s *DeliveryService) render(m *domain.DueMessage) (Outcome, error) {
	fn, ok := s.renderers[m.Kind]
	if !ok || !m.Kind.Info().RequiresRender {
		if m.Body == "" {
			return OutcomeSkipped, nil
		}
		return "", nil
	}
	body, err := fn(m)
	if err != nil {
		return "", fmt.Errorf("rendering %s body for %s: %w", m.Kind.String(), m.MessageHash, err)
	}
	m.Body = body
	return "", nil
}

func (s *DeliveryService) envelopeFrom(m *domain.DueMessage) string {
	if m.OriginAddress != "" {
		return m.OriginAddress
	}
	return s.senders[m.Kind.Info().Sender]
}

func (s *DeliveryService) record(ctx context.Context, record bool, m *domain.DueMessage) error {
	if !record {
		return nil
	}
	if err := s.ledger.Record(ctx, m.RecordOf(time.Now().UTC())); err != nil {
		return fmt.Errorf("recording delivery of %s: %w", m.MessageHash, err)
	}
	return nil
}

func (s *DeliveryService) publishEvent(ctx context.Context, m *domain.DueMessage, outcome Outcome, log *slog.Logger) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(DeliveryEvent{
		MessageHash: m.MessageHash,
		ToAddress:   m.ToAddress,
		Kind:        m.Kind.String(),
		Outcome:     outcome,
		At:          time.Now().UTC(),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to marshal delivery event", "error", err, "msg_hash", m.MessageHash)
		return
	}
	if err := s.events.Publish(ctx, DeliveryEventsSubject, data); err != nil {
		// Event delivery is best-effort; mail delivery already happened.
		log.WarnContext(ctx, "Failed to publish delivery event", "error", err, "msg_hash", m.MessageHash)
	}
}

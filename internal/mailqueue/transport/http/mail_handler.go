package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

// QueueEnqueuer is the enqueue surface the handler needs.
type QueueEnqueuer interface {
	Enqueue(ctx context.Context, requester *domain.Account, recipients []string, fromName, originAddress string, kind domain.Kind, body, objectRef, ip string) ([]string, error)
}

// SuppressionToggler mutates the opt-out list by message-hash token.
type SuppressionToggler interface {
	Suppress(ctx context.Context, messageHash string) (string, bool, error)
	Unsuppress(ctx context.Context, messageHash string) (string, bool, error)
}

// ConfirmationProducer queues the confirmation mail that follows a
// successful suppression change.
type ConfirmationProducer interface {
	OptOutConfirmation(ctx context.Context, to string) ([]string, error)
	OptInConfirmation(ctx context.Context, to string) ([]string, error)
}

type MailHandler struct {
	queue        QueueEnqueuer
	suppressions SuppressionToggler
	producer     ConfirmationProducer
	validate     *validator.Validate
	logger       *slog.Logger
}

func NewMailHandler(
	queue QueueEnqueuer,
	suppressions SuppressionToggler,
	producer ConfirmationProducer,
	logger *slog.Logger,
) *MailHandler {
	return &MailHandler{
		queue:        queue,
		suppressions: suppressions,
		producer:     producer,
		validate:     validator.New(),
		logger:       logger.With("handler", "mail"),
	}
}

// RegisterRoutes registers mail routes with the given router.
func (h *MailHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/messages", h.handleEnqueue)
	r.Post("/mail/unsubscribe/{msgHash}", h.handleUnsubscribe)
	r.Post("/mail/resubscribe/{msgHash}", h.handleResubscribe)
}

func (h *MailHandler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			h.respondError(w, http.StatusBadRequest, "validation failed", vErrs.Error())
			return
		}
		h.respondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "unknown message kind", req.Kind)
		return
	}

	var requester *domain.Account
	if req.AccountID != domain.SystemAccountID {
		requester = &domain.Account{ID: req.AccountID}
	}

	hashes, err := h.queue.Enqueue(ctx, requester, req.Recipients, req.FromName, "", kind, req.Body, req.ObjectRef, clientIP(r))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to enqueue messages", "error", err, "kind", req.Kind)
		h.respondError(w, http.StatusInternalServerError, "failed to enqueue messages", "")
		return
	}

	logger.InfoContext(ctx, "Messages enqueued", "kind", req.Kind, "count", len(hashes))
	h.respondJSON(w, http.StatusAccepted, EnqueueResponse{MessageHashes: hashes})
}

// handleUnsubscribe suppresses the recipient of the mail identified by the
// token and, when the state actually changed, queues an opt-out
// confirmation to that address.
func (h *MailHandler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	h.toggleSuppression(w, r, true)
}

// handleResubscribe removes the suppression and queues an opt-in
// confirmation.
func (h *MailHandler) handleResubscribe(w http.ResponseWriter, r *http.Request) {
	h.toggleSuppression(w, r, false)
}

func (h *MailHandler) toggleSuppression(w http.ResponseWriter, r *http.Request, suppress bool) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	msgHash := chi.URLParam(r, "msgHash")
	if msgHash == "" {
		h.respondError(w, http.StatusBadRequest, "missing message token", "")
		return
	}

	var (
		email   string
		changed bool
		err     error
	)
	if suppress {
		email, changed, err = h.suppressions.Suppress(ctx, msgHash)
	} else {
		email, changed, err = h.suppressions.Unsuppress(ctx, msgHash)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to update suppression state", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to update suppression state", "")
		return
	}

	// An unresolvable token is a valid, silent no-op.
	if changed {
		if suppress {
			_, err = h.producer.OptOutConfirmation(ctx, email)
		} else {
			_, err = h.producer.OptInConfirmation(ctx, email)
		}
		if err != nil {
			// The suppression change itself stuck; only the confirmation
			// mail failed to queue.
			logger.ErrorContext(ctx, "Failed to queue suppression confirmation", "error", err)
		}
	}

	h.respondJSON(w, http.StatusOK, SuppressionResponse{Email: email, Changed: changed})
}

func (h *MailHandler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *MailHandler) respondError(w http.ResponseWriter, status int, msg, details string) {
	h.respondJSON(w, status, GenericErrorResponse{Error: msg, Details: details})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

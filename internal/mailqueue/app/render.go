package app

import (
	"fmt"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

// RenderFunc builds the final body for a due message immediately before
// send. Renderers are injected as a strategy map keyed by kind; kinds that
// arrive pre-rendered never go through one.
type RenderFunc func(m *domain.DueMessage) (string, error)

// RenderIdentity carries the site identity interpolated into rendered
// bodies.
type RenderIdentity struct {
	Domain string
}

// DefaultRenderers returns plain-text renderers for every kind whose body is
// built at send time. Deployments with a templating pipeline replace
// individual entries.
func DefaultRenderers(id RenderIdentity) map[domain.Kind]RenderFunc {
	r := map[domain.Kind]RenderFunc{
		domain.KindShare:  shareRenderer(id),
		domain.KindOptOut: optRenderer(id, true),
		domain.KindOptIn:  optRenderer(id, false),
	}
	promoText := map[domain.Kind]string{
		domain.KindNewPromo:      "your promotion has been created",
		domain.KindBidPromo:      "a bid has been placed on your promotion",
		domain.KindAcceptPromo:   "your promotion has been accepted",
		domain.KindRejectPromo:   "your promotion has been rejected",
		domain.KindQueuedPromo:   "your promotion has been queued for launch",
		domain.KindLivePromo:     "your promotion is now live",
		domain.KindFinishedPromo: "your promotion has finished",
	}
	for kind, text := range promoText {
		r[kind] = promoRenderer(id, text)
	}
	return r
}

func shareRenderer(id RenderIdentity) RenderFunc {
	return func(m *domain.DueMessage) (string, error) {
		if m.Object == nil {
			return "", fmt.Errorf("share message %s has no associated link", m.MessageHash)
		}
		body := fmt.Sprintf("%s has shared a link with you:\n\n%s\n%s\n",
			m.DisplayFromName(), m.Object.Title, m.Object.URL)
		if m.Body != "" {
			body += "\n" + m.Body + "\n"
		}
		// The footer token is the queue message hash: the ledger can resolve
		// it back to this recipient when the link is used.
		body += fmt.Sprintf("\n--\nto stop receiving mail like this, visit https://%s/mail/unsubscribe/%s\n",
			id.Domain, m.MessageHash)
		return body, nil
	}
}

func optRenderer(id RenderIdentity, leaving bool) RenderFunc {
	return func(m *domain.DueMessage) (string, error) {
		if leaving {
			return fmt.Sprintf(
				"your address has been removed from %s mailings.\n\n"+
					"if this was a mistake, visit https://%s/mail/resubscribe/%s\n",
				id.Domain, id.Domain, m.MessageHash), nil
		}
		return fmt.Sprintf(
			"your address will again receive mail from %s.\n\n"+
				"to opt back out, visit https://%s/mail/unsubscribe/%s\n",
			id.Domain, id.Domain, m.MessageHash), nil
	}
}

func promoRenderer(id RenderIdentity, text string) RenderFunc {
	return func(m *domain.DueMessage) (string, error) {
		body := text
		if m.Object != nil && m.Object.Title != "" {
			body = fmt.Sprintf("%s: %q", text, m.Object.Title)
		}
		if m.Body != "" {
			body += "\n\n" + m.Body
		}
		return body + "\n", nil
	}
}

// SubjectFor maps a kind to its mail subject line.
func SubjectFor(id RenderIdentity, m *domain.DueMessage) string {
	switch m.Kind {
	case domain.KindShare:
		return fmt.Sprintf("%s has shared a link with you", m.DisplayFromName())
	case domain.KindOptOut:
		return fmt.Sprintf("you have been unsubscribed from %s mail", id.Domain)
	case domain.KindOptIn:
		return fmt.Sprintf("you have been resubscribed to %s mail", id.Domain)
	case domain.KindVerifyEmail:
		return fmt.Sprintf("verify your %s email address", id.Domain)
	case domain.KindResetPassword:
		return fmt.Sprintf("reset your %s password", id.Domain)
	default:
		return fmt.Sprintf("[%s] %s", id.Domain, m.Kind.String())
	}
}

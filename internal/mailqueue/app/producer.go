package app

import (
	"context"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

// Identities holds the configured sender addresses, one per sender role.
type Identities struct {
	Domain          string
	SystemAddress   string
	FeedbackAddress string
	NerdsAddress    string
	ShareReply      string
}

// Senders maps the per-kind sender roles onto configured addresses.
func (i Identities) Senders() map[domain.SenderIdentity]string {
	return map[domain.SenderIdentity]string{
		domain.SenderSystem:   i.SystemAddress,
		domain.SenderFeedback: i.FeedbackAddress,
		domain.SenderNerds:    i.NerdsAddress,
		domain.SenderShare:    i.ShareReply,
	}
}

// Producer is the typed enqueue surface used by the rest of the application.
// Each helper fills in the routing defaults for its message class and hands
// off to the queue service.
type Producer struct {
	queue *QueueService
	ids   Identities
}

func NewProducer(queue *QueueService, ids Identities) *Producer {
	return &Producer{queue: queue, ids: ids}
}

// SystemMail sends pre-rendered mail from the site to one user: email
// verification, password resets and similar.
func (p *Producer) SystemMail(ctx context.Context, requester *domain.Account, to string, kind domain.Kind, body, objectRef, ip string) ([]string, error) {
	return p.queue.Enqueue(ctx, requester, []string{to}, p.ids.Domain, p.ids.FeedbackAddress, kind, body, objectRef, ip)
}

// VerifyEmail queues an address-verification mail carrying a pre-rendered
// body with the verification link.
func (p *Producer) VerifyEmail(ctx context.Context, user *domain.Account, to, body, ip string) ([]string, error) {
	return p.SystemMail(ctx, user, to, domain.KindVerifyEmail, body, "", ip)
}

// PasswordReset queues a password-reset mail with a pre-rendered body.
func (p *Producer) PasswordReset(ctx context.Context, user *domain.Account, body, ip string) ([]string, error) {
	return p.SystemMail(ctx, user, user.Email, domain.KindResetPassword, body, "", ip)
}

// Feedback queues user feedback to the configured feedback address.
func (p *Producer) Feedback(ctx context.Context, requester *domain.Account, fromName, body, ip string) ([]string, error) {
	return p.queue.Enqueue(ctx, requester, []string{p.ids.FeedbackAddress}, fromName, p.ids.FeedbackAddress, domain.KindFeedback, body, "", ip)
}

// AdInquiry queues an advertising inquiry to the feedback address.
func (p *Producer) AdInquiry(ctx context.Context, requester *domain.Account, fromName, body, ip string) ([]string, error) {
	return p.queue.Enqueue(ctx, requester, []string{p.ids.FeedbackAddress}, fromName, p.ids.FeedbackAddress, domain.KindAdvertise, body, "", ip)
}

// TranslationHelp queues a translator-volunteer mail to the feedback
// address.
func (p *Producer) TranslationHelp(ctx context.Context, requester *domain.Account, fromName, body, ip string) ([]string, error) {
	return p.queue.Enqueue(ctx, requester, []string{p.ids.FeedbackAddress}, fromName, p.ids.FeedbackAddress, domain.KindHelpTranslate, body, "", ip)
}

// NerdMail queues an operational notice to the people running the site.
func (p *Producer) NerdMail(ctx context.Context, fromName, body string) ([]string, error) {
	if fromName == "" {
		fromName = p.ids.Domain
	}
	return p.queue.Enqueue(ctx, nil, []string{p.ids.NerdsAddress}, fromName, p.ids.NerdsAddress, domain.KindNerdMail, body, "", "")
}

// Share queues a shared-link mail to one or more recipients; the body is
// rendered by the worker at send time from the associated link.
func (p *Producer) Share(ctx context.Context, requester *domain.Account, recipients []string, fromName, note, objectRef, ip string) ([]string, error) {
	return p.queue.Enqueue(ctx, requester, recipients, fromName, p.ids.ShareReply, domain.KindShare, note, objectRef, ip)
}

// OptOutConfirmation queues the mail confirming an address was suppressed.
// The confirmation itself bypasses suppression so it can still be delivered.
func (p *Producer) OptOutConfirmation(ctx context.Context, to string) ([]string, error) {
	return p.queue.Enqueue(ctx, nil, []string{to}, p.ids.Domain, p.ids.FeedbackAddress, domain.KindOptOut, "", "", "")
}

// OptInConfirmation queues the mail confirming an address was taken off the
// suppression list.
func (p *Producer) OptInConfirmation(ctx context.Context, to string) ([]string, error) {
	return p.queue.Enqueue(ctx, nil, []string{to}, p.ids.Domain, p.ids.FeedbackAddress, domain.KindOptIn, "", "", "")
}

// PromoNotice queues a promotion lifecycle notice to the promotion's author.
func (p *Producer) PromoNotice(ctx context.Context, author *domain.Account, kind domain.Kind, body, objectRef string) ([]string, error) {
	return p.queue.Enqueue(ctx, author, []string{author.Email}, p.ids.Domain, p.ids.FeedbackAddress, kind, body, objectRef, "")
}

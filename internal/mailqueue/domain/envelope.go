package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsafeAddress means an address begins with a character that some
	// mail-transport CLIs interpret as a command flag. The envelope is never
	// built for such addresses.
	ErrUnsafeAddress = errors.New("address starts with an unsafe character")

	// ErrBadEncoding means the message could not be serialized as valid
	// UTF-8 text.
	ErrBadEncoding = errors.New("message text is not valid utf-8")
)

// Envelope is a fully formed outbound message ready for a transport attempt.
type Envelope struct {
	From     string
	FromName string
	To       string
	Subject  string
	Body     string

	// MessageID is the queue message hash, carried as a threading-safe
	// header so replies and opt-out links can be correlated.
	MessageID string
	// Username is set when a requester account exists.
	Username string
}

// BuildEnvelope assembles the envelope for a due message, guarding against
// header injection via flag-shaped addresses.
func BuildEnvelope(m *DueMessage, from, subject string) (*Envelope, error) {
	if strings.HasPrefix(from, "-") || strings.HasPrefix(m.ToAddress, "-") {
		return nil, ErrUnsafeAddress
	}
	env := &Envelope{
		From:      from,
		FromName:  m.DisplayFromName(),
		To:        m.ToAddress,
		Subject:   subject,
		Body:      m.Body,
		MessageID: m.MessageHash,
	}
	if m.Requester != nil {
		env.Username = m.Requester.Name
	}
	return env, nil
}

// MIME serializes the envelope as a plain-text RFC 822 message.
func (e *Envelope) MIME() ([]byte, error) {
	for _, s := range []string{e.From, e.FromName, e.To, e.Subject, e.Body, e.Username} {
		if !utf8.ValidString(s) {
			return nil, ErrBadEncoding
		}
	}

	from := e.From
	if e.FromName != "" {
		from = fmt.Sprintf("%q <%s>", e.FromName, e.From)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(e.Subject))
	if e.Username != "" {
		fmt.Fprintf(&b, "X-Mailout-Username: %s\r\n", sanitizeHeader(e.Username))
	}
	fmt.Fprintf(&b, "X-Mailout-ID: %s\r\n", e.MessageID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(e.Body)
	return []byte(b.String()), nil
}

// sanitizeHeader strips CR/LF so user-supplied text cannot smuggle headers.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

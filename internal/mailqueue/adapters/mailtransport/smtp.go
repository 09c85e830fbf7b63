package mailtransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"strings"

	gomail "gopkg.in/gomail.v2"
)

// SMTPTransport delivers via an SMTP relay. Each Send dials, hands off one
// message and closes; mail volume is modest and the worker sends one message
// at a time.
type SMTPTransport struct {
	dialer *gomail.Dialer
	logger *slog.Logger
}

func NewSMTPTransport(host string, port int, username, password string, logger *slog.Logger) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(host, port, username, password),
		logger: logger.With("component", "smtp_transport"),
	}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, envelopeFrom, envelopeTo string, rawMessage []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sc, err := t.dialer.Dial()
	if err != nil {
		return fmt.Errorf("dialing smtp relay: %w", err)
	}
	defer sc.Close()

	err = sc.Send(envelopeFrom, []string{envelopeTo}, rawWriter(rawMessage))
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify maps permanent 5xx refusals onto the refusal sentinels so one bad
// address never aborts a delivery pass. Everything else passes through and
// is fatal to the pass.
func classify(err error) error {
	var tpErr *textproto.Error
	if !errors.As(err, &tpErr) || tpErr.Code < 500 || tpErr.Code >= 600 {
		return err
	}
	if strings.Contains(strings.ToLower(tpErr.Msg), "sender") {
		return fmt.Errorf("smtp %d %s: %w", tpErr.Code, tpErr.Msg, ErrSenderRefused)
	}
	return fmt.Errorf("smtp %d %s: %w", tpErr.Code, tpErr.Msg, ErrRecipientRefused)
}

type rawWriter []byte

func (r rawWriter) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r)
	return int64(n), err
}

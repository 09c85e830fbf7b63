package mailtransport

import (
	"context"
	"fmt"
	"io"
)

// DryRunTransport prints messages instead of sending them. Used by delivery
// passes in test mode for dry-run verification.
type DryRunTransport struct {
	out io.Writer
}

func NewDryRunTransport(out io.Writer) *DryRunTransport {
	return &DryRunTransport{out: out}
}

func (t *DryRunTransport) Name() string { return "dryrun" }

func (t *DryRunTransport) Send(ctx context.Context, envelopeFrom, envelopeTo string, rawMessage []byte) error {
	_, err := fmt.Fprintf(t.out, "MAIL FROM %s TO %s\n%s\n", envelopeFrom, envelopeTo, rawMessage)
	return err
}

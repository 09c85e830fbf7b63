package mailtransport

import (
	"context"
	"errors"
)

var (
	// ErrRecipientRefused means the transport permanently rejected the
	// recipient address. Routine: the worker records the rejection and
	// continues the batch.
	ErrRecipientRefused = errors.New("recipient address refused")

	// ErrSenderRefused means the transport permanently rejected the sender
	// address. Handled the same way as a refused recipient.
	ErrSenderRefused = errors.New("sender address refused")
)

// Transport hands a fully formed message to a delivery mechanism. Any
// returned error other than the two refusal sentinels is treated as fatal
// for the whole delivery pass.
type Transport interface {
	Send(ctx context.Context, envelopeFrom, envelopeTo string, rawMessage []byte) error
	Name() string
}

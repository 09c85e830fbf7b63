package domain

import "fmt"

// Kind is the closed enumeration of message classes. The numeric values are
// persisted in the queue and ledger tables and must not be reordered.
type Kind int

const (
	KindShare Kind = iota + 1
	KindFeedback
	KindAdvertise
	KindOptOut
	KindOptIn
	KindHelpTranslate
	KindVerifyEmail
	KindResetPassword
	KindNerdMail
	KindNewPromo
	KindBidPromo
	KindAcceptPromo
	KindRejectPromo
	KindQueuedPromo
	KindLivePromo
	KindFinishedPromo
)

// SenderIdentity selects which configured address a kind is sent from.
type SenderIdentity string

const (
	SenderSystem   SenderIdentity = "system"
	SenderFeedback SenderIdentity = "feedback"
	SenderNerds    SenderIdentity = "nerds"
	SenderShare    SenderIdentity = "share"
)

// KindInfo is the per-kind policy row. Adding a kind means adding one entry
// to the registry; the delivery loop reads policy from here instead of
// branching on kind values.
type KindInfo struct {
	Name string

	// RequiresRender means the final body is built by the worker immediately
	// before send, via the renderer registered for this kind.
	RequiresRender bool

	// BypassesSuppression exempts the kind from the suppression check. Only
	// opt-out confirmations carry this: the confirmation must reach an
	// address that was just suppressed.
	BypassesSuppression bool

	Sender SenderIdentity
}

var kindRegistry = map[Kind]KindInfo{
	KindShare:         {Name: "share", RequiresRender: true, Sender: SenderShare},
	KindFeedback:      {Name: "feedback", Sender: SenderFeedback},
	KindAdvertise:     {Name: "advertise", Sender: SenderFeedback},
	KindOptOut:        {Name: "optout", RequiresRender: true, BypassesSuppression: true, Sender: SenderSystem},
	KindOptIn:         {Name: "optin", RequiresRender: true, Sender: SenderSystem},
	KindHelpTranslate: {Name: "help_translate", Sender: SenderFeedback},
	KindVerifyEmail:   {Name: "verify_email", Sender: SenderSystem},
	KindResetPassword: {Name: "reset_password", Sender: SenderSystem},
	KindNerdMail:      {Name: "nerdmail", Sender: SenderNerds},
	KindNewPromo:      {Name: "new_promo", RequiresRender: true, Sender: SenderSystem},
	KindBidPromo:      {Name: "bid_promo", RequiresRender: true, Sender: SenderSystem},
	KindAcceptPromo:   {Name: "accept_promo", RequiresRender: true, Sender: SenderSystem},
	KindRejectPromo:   {Name: "reject_promo", RequiresRender: true, Sender: SenderSystem},
	KindQueuedPromo:   {Name: "queued_promo", RequiresRender: true, Sender: SenderSystem},
	KindLivePromo:     {Name: "live_promo", RequiresRender: true, Sender: SenderSystem},
	KindFinishedPromo: {Name: "finished_promo", RequiresRender: true, Sender: SenderSystem},
}

// Info returns the policy row for k. Unknown kinds return a zero KindInfo.
func (k Kind) Info() KindInfo {
	return kindRegistry[k]
}

// Valid reports whether k is a registered kind.
func (k Kind) Valid() bool {
	_, ok := kindRegistry[k]
	return ok
}

func (k Kind) String() string {
	if info, ok := kindRegistry[k]; ok {
		return info.Name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a kind by its registry name.
func ParseKind(name string) (Kind, error) {
	for k, info := range kindRegistry {
		if info.Name == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown message kind %q", name)
}

// Kinds returns all registered kinds. Order is unspecified.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindRegistry))
	for k := range kindRegistry {
		out = append(out, k)
	}
	return out
}

package domain

import "time"

// SystemAccountID marks messages originated by the system itself rather than
// a requesting account.
const SystemAccountID int64 = 0

// QueuedMessage is one outbound-queue row. Rows are created on enqueue, read
// in FIFO batches by the delivery worker and deleted in bulk after a pass;
// they are never updated in place.
type QueuedMessage struct {
	ID            int64
	MessageHash   string
	AccountID     int64
	FromName      string
	ToAddress     string
	ObjectRef     string
	OriginAddress string
	IP            string
	Kind          Kind
	Body          string
	EnqueuedAt    time.Time
}

// Account is the requesting account joined in at dequeue time. It mirrors
// only what delivery decisions need; the account system itself is an
// external collaborator.
type Account struct {
	ID    int64
	Name  string
	Email string
	Spam  bool
}

// RelatedObject is the business object a message refers to (a shared link, a
// promotion), joined in at dequeue time.
type RelatedObject struct {
	Ref   string
	Title string
	URL   string
	Spam  bool
}

// DueMessage is a QueuedMessage annotated with its batch-loaded requester,
// associated object and the banned state of its origin IP at read time.
type DueMessage struct {
	QueuedMessage

	Requester *Account
	Object    *RelatedObject
	IPBanned  bool
}

// DisplayFromName renders the human-facing sender name: the requester's
// username alone when the caller-supplied name matches it, otherwise
// "name (username)".
func (m *DueMessage) DisplayFromName() string {
	if m.Requester == nil || m.Requester.Name == "" {
		return m.FromName
	}
	if m.FromName == "" || m.FromName == m.Requester.Name {
		return m.Requester.Name
	}
	return m.FromName + " (" + m.Requester.Name + ")"
}

// DeliveryRecord is one ledger row: a send that was actually attempted,
// successfully or with an explicit rejection. Rows are append-only.
type DeliveryRecord struct {
	MessageHash string
	AccountID   int64
	ToAddress   string
	IP          string
	ObjectRef   string
	Kind        Kind
	SentAt      time.Time
}

// RecordOf builds the ledger row for an attempted send of m.
func (m *DueMessage) RecordOf(sentAt time.Time) *DeliveryRecord {
	return &DeliveryRecord{
		MessageHash: m.MessageHash,
		AccountID:   m.AccountID,
		ToAddress:   m.ToAddress,
		IP:          m.IP,
		ObjectRef:   m.ObjectRef,
		Kind:        m.Kind,
		SentAt:      sentAt,
	}
}

// SuppressionEntry is one opt-out row. Presence means all future non-exempt
// sends to the address are rejected before transport.
type SuppressionEntry struct {
	Address string
	// ReasonHash is the message hash of the mail whose opt-out link was used.
	ReasonHash string
	AddedAt    time.Time
}

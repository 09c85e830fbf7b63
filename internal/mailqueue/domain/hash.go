package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// MessageHash derives the content identifier carried by a queued message. It
// is an idempotency and lookup token, not a primary key: the enqueue-time
// nanosecond clock sample keeps identical payloads enqueued at different
// instants from sharing a token, and residual collisions are tolerated.
func MessageHash(toAddress, fromName string, accountID int64, objectRef, originAddress string, kind Kind, body string, at time.Time) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s|%d|%s|%d",
		toAddress, fromName, accountID, objectRef, originAddress, int(kind), body, at.UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}

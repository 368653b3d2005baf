package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"example.com/riskpipeline/internal/domain"
)

// EventKey returns a stable composite key for a validated event.
// The timestamp keeps its offset since the derived hour depends on it.
func EventKey(ev *domain.Event) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		ev.UserID,
		ev.Timestamp.Format(time.RFC3339Nano),
		ev.Action,
		ev.Category,
		strconv.FormatFloat(ev.Amount, 'g', -1, 64),
		ev.SessionID,
	)
}

// Digest returns the hex-encoded SHA-256 over the keys of events in order.
// Two runs over the same validated input yield the same digest.
func Digest(events []domain.Event) string {
	h := sha256.New()
	for i := range events {
		_, _ = h.Write([]byte(EventKey(&events[i])))
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

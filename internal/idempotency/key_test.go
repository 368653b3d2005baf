package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"example.com/riskpipeline/internal/domain"
)

func TestDigest(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	a := []domain.Event{
		{UserID: "u1", Timestamp: ts, Action: domain.ActionPurchase, Category: "home", Amount: 12.5, SessionID: "s1"},
		{UserID: "u2", Timestamp: ts.Add(time.Second), Action: domain.ActionViewProduct, Category: "toys", SessionID: "s2"},
	}
	b := append([]domain.Event(nil), a...)

	assert.Equal(t, Digest(a), Digest(b))
	assert.Len(t, Digest(a), 64)

	b[0].Amount = 12.51
	assert.NotEqual(t, Digest(a), Digest(b))

	// order matters
	assert.NotEqual(t, Digest(a), Digest([]domain.Event{a[1], a[0]}))
}

func TestEventKey(t *testing.T) {
	ev := domain.Event{
		UserID:    "user_1",
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 500_000_000, time.UTC),
		Action:    domain.ActionAddToCart,
		Category:  "beauty",
		Amount:    0,
		SessionID: "sess_120",
	}
	assert.Equal(t, "user_1|2025-03-01T10:00:00.5Z|add_to_cart|beauty|0|sess_120", EventKey(&ev))
}

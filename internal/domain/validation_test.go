package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(errs []FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, fe.Field)
	}
	return out
}

func TestValidateEvent_Valid(t *testing.T) {
	raw, errs := DecodeRawEvent([]byte(`{
		"user_id": "user_1",
		"timestamp": "2025-03-01T10:15:30.250000",
		"action": "purchase",
		"category": "electronics",
		"amount": 129.99,
		"session_id": "sess_101"
	}`))
	require.Empty(t, errs)

	ev, errs := ValidateEvent(&raw)
	require.Empty(t, errs)
	assert.Equal(t, "user_1", ev.UserID)
	assert.Equal(t, ActionPurchase, ev.Action)
	assert.Equal(t, 129.99, ev.Amount)
	assert.Equal(t, "sess_101", ev.SessionID)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 15, 30, 250_000_000, time.UTC), ev.Timestamp)
}

func TestValidateEvent_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		input string
		field string
	}{
		{"null timestamp", `{"user_id":"u","timestamp":null,"action":"purchase","category":"c","amount":1,"session_id":"s"}`, "timestamp"},
		{"missing user", `{"timestamp":"2025-03-01T10:00:00","action":"purchase","category":"c","amount":1,"session_id":"s"}`, "user_id"},
		{"empty session", `{"user_id":"u","timestamp":"2025-03-01T10:00:00","action":"purchase","category":"c","amount":1,"session_id":""}`, "session_id"},
		{"negative amount", `{"user_id":"u","timestamp":"2025-03-01T10:00:00","action":"purchase","category":"c","amount":-5,"session_id":"s"}`, "amount"},
		{"missing amount", `{"user_id":"u","timestamp":"2025-03-01T10:00:00","action":"purchase","category":"c","session_id":"s"}`, "amount"},
		{"amount as string", `{"user_id":"u","timestamp":"2025-03-01T10:00:00","action":"purchase","category":"c","amount":"12","session_id":"s"}`, "amount"},
		{"user as number", `{"user_id":7,"timestamp":"2025-03-01T10:00:00","action":"purchase","category":"c","amount":1,"session_id":"s"}`, "user_id"},
		{"bad timestamp", `{"user_id":"u","timestamp":"yesterday","action":"purchase","category":"c","amount":1,"session_id":"s"}`, "timestamp"},
		{"unknown action", `{"user_id":"u","timestamp":"2025-03-01T10:00:00","action":"teleport","category":"c","amount":1,"session_id":"s"}`, "action"},
		{"not an object", `[1,2,3]`, "record"},
		{"year 1600", `{"user_id":"u","timestamp":"1600-01-01T00:00:00","action":"purchase","category":"c","amount":1,"session_id":"s"}`, "timestamp"},
		{"year 2300", `{"user_id":"u","timestamp":"2300-01-01T00:00:00Z","action":"purchase","category":"c","amount":1,"session_id":"s"}`, "timestamp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, errs := DecodeRawEvent([]byte(tc.input))
			if len(errs) == 0 {
				_, errs = ValidateEvent(&raw)
			}
			require.NotEmpty(t, errs)
			assert.Contains(t, fields(errs), tc.field)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		hour int
	}{
		{"2025-03-01T23:59:59", 23},
		{"2025-03-01T08:00:00.123456", 8},
		{"2025-03-01 14:30:00", 14},
		{"2025-03-01T14:30:00Z", 14},
		{"2025-03-01T14:30:00.5+05:30", 14},
		{"2025-03-01T06:45", 6},
	}
	for _, tc := range cases {
		ts, err := ParseTimestamp(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.hour, ts.Hour(), tc.in)
	}

	_, err := ParseTimestamp("01/03/2025")
	assert.Error(t, err)
}

func TestValidator_Counts(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"user_id":"u1","timestamp":"2025-03-01T10:00:00","action":"view_product","category":"home","amount":0,"session_id":"s1"}`),
		json.RawMessage(`{"user_id":"u1","timestamp":"2025-03-01T10:00:05","action":"purchase","category":"home","amount":-5,"session_id":"s1"}`),
		json.RawMessage(`{"user_id":"u2","timestamp":null,"action":"view_product","category":"toys","amount":0,"session_id":"s2"}`),
		json.RawMessage(`{"user_id":"u2","timestamp":"2025-03-01T11:00:00","action":"add_to_cart","category":"toys","amount":0,"session_id":"s2"}`),
	}

	v := NewValidator()
	out := v.ValidateAll(records)

	require.Len(t, out, 2)
	assert.Equal(t, 2, v.Passed())
	assert.Equal(t, 2, v.Failed())
	assert.Equal(t, map[string]int{"amount": 1, "timestamp": 1}, v.FailuresByField())

	rej := v.Rejections()
	require.Len(t, rej, 2)
	assert.Equal(t, 1, rej[0].Index)
	assert.Equal(t, "u1", rej[0].UserID)
	assert.Equal(t, 2, rej[1].Index)
	assert.Equal(t, "u2", rej[1].UserID)
}

func TestValidateEvent_TimestampRangeEdges(t *testing.T) {
	for _, ts := range []string{"1677-09-22T00:00:00", "2262-04-11T00:00:00"} {
		raw, errs := DecodeRawEvent([]byte(`{"user_id":"u","timestamp":"` + ts + `","action":"purchase","category":"c","amount":1,"session_id":"s"}`))
		require.Empty(t, errs)
		_, errs = ValidateEvent(&raw)
		assert.Empty(t, errs, ts)
	}
}

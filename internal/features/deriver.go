// Package features derives per-user rolling statistics and per-session
// durations over a batch of validated events.
package features

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"example.com/riskpipeline/internal/domain"
)

// WindowSize is the number of events (current plus preceding) in a rolling window.
const WindowSize = 5

type sessionKey struct {
	userID    string
	sessionID string
}

// Derive returns one EnrichedEvent per input event, ordered by user and then
// by timestamp (stable for equal timestamps). IsHighRisk is left unset.
func Derive(events []domain.Event) []domain.EnrichedEvent {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b domain.Event) int {
		if c := cmp.Compare(a.UserID, b.UserID); c != 0 {
			return c
		}
		return a.Timestamp.Compare(b.Timestamp)
	})

	durations := sessionDurations(sorted)
	out := make([]domain.EnrichedEvent, len(sorted))

	var w window
	for i, ev := range sorted {
		if i == 0 || sorted[i-1].UserID != ev.UserID {
			w.reset()
		}

		var diff *float64
		if w.len() > 0 {
			d := secondsBetween(w.lastTS, ev.Timestamp)
			diff = &d
		}
		w.push(sample{timeDiff: diff, amount: ev.Amount, ts: ev.Timestamp})

		en := domain.EnrichedEvent{
			Event:              ev,
			TimeDiff:           diff,
			AmountVolatility:   Round2(w.amountStdDev()),
			SessionDurationMin: durations[sessionKey{ev.UserID, ev.SessionID}],
			Hour:               ev.Timestamp.Hour(),
		}
		if avg, ok := w.meanTimeDiff(); ok {
			r := Round2(avg)
			en.RollingAvgLatency = &r
		}
		out[i] = en
	}
	return out
}

// sessionDurations maps each (user, session) to (max - min) timestamp in
// minutes, rounded to 2 decimals.
func sessionDurations(events []domain.Event) map[sessionKey]float64 {
	type bounds struct{ first, last time.Time }
	spans := make(map[sessionKey]*bounds)
	for _, ev := range events {
		k := sessionKey{ev.UserID, ev.SessionID}
		b, ok := spans[k]
		if !ok {
			spans[k] = &bounds{ev.Timestamp, ev.Timestamp}
			continue
		}
		if ev.Timestamp.Before(b.first) {
			b.first = ev.Timestamp
		}
		if ev.Timestamp.After(b.last) {
			b.last = ev.Timestamp
		}
	}
	out := make(map[sessionKey]float64, len(spans))
	for k, b := range spans {
		out[k] = Round2(secondsBetween(b.first, b.last) / 60)
	}
	return out
}

// secondsBetween returns b - a in seconds. Unlike time.Time.Sub it does not
// saturate for instants more than 292 years apart.
func secondsBetween(a, b time.Time) float64 {
	return float64(b.Unix()-a.Unix()) + float64(b.Nanosecond()-a.Nanosecond())/1e9
}

// Round2 rounds to 2 decimal places the way a dataframe does: the binary
// value is scaled by 100, rounded half-to-even, then scaled back. So 2.675,
// stored as 2.67499..., rounds down to 2.67.
func Round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return decimal.NewFromFloat(f * 100).RoundBank(0).Shift(-2).InexactFloat64()
}

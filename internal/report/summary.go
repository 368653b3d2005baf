// Package report condenses the user_behavior table into the headline
// figures a dashboard shows.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"example.com/riskpipeline/internal/domain"
	"example.com/riskpipeline/internal/features"
)

// Night hours run from NightStartHour to NightEndHour inclusive. A nocturnal
// share above NocturnalAlertPct is reported as elevated.
const (
	NightStartHour    = 0
	NightEndHour      = 5
	NocturnalAlertPct = 20.0
)

// Summary holds the aggregate view of one persisted table.
type Summary struct {
	TotalEvents    int64            `json:"total_events"`
	UniqueUsers    int64            `json:"unique_users"`
	AvgSessionMin  float64          `json:"avg_session_min"`
	HighRiskEvents int64            `json:"high_risk_events"`
	ActionMix      map[string]int64 `json:"action_mix"`
	ActivityByHour [24]int64        `json:"activity_by_hour"`

	// AvgSessionMinHighRisk is the mean session length over flagged rows,
	// 0 when nothing is flagged.
	AvgSessionMinHighRisk float64 `json:"avg_session_min_high_risk"`
	// TopVolatilityUser owns the row with the highest amount_volatility.
	TopVolatilityUser string  `json:"top_volatility_user,omitempty"`
	TopVolatility     float64 `json:"top_volatility"`
}

// NocturnalPct is the share of events in night hours, in percent.
func (s Summary) NocturnalPct() float64 {
	if s.TotalEvents == 0 {
		return 0
	}
	var night int64
	for h := NightStartHour; h <= NightEndHour; h++ {
		night += s.ActivityByHour[h]
	}
	return features.Round2(float64(night) / float64(s.TotalEvents) * 100)
}

// NocturnalAlert reports whether night activity exceeds NocturnalAlertPct.
func (s Summary) NocturnalAlert() bool { return s.NocturnalPct() > NocturnalAlertPct }

// Summarize computes a Summary over enriched rows. AvgSessionMin is the mean
// of session_duration_min across rows, matching a per-row table average.
func Summarize(rows []domain.EnrichedEvent) Summary {
	s := Summary{ActionMix: make(map[string]int64)}
	users := make(map[string]struct{})
	var sessionSum, riskySessionSum float64
	for i := range rows {
		r := &rows[i]
		s.TotalEvents++
		users[r.UserID] = struct{}{}
		sessionSum += r.SessionDurationMin
		if r.IsHighRisk {
			s.HighRiskEvents++
			riskySessionSum += r.SessionDurationMin
		}
		// first row wins ties, so the result follows table order
		if i == 0 || r.AmountVolatility > s.TopVolatility {
			s.TopVolatilityUser = r.UserID
			s.TopVolatility = r.AmountVolatility
		}
		s.ActionMix[string(r.Action)]++
		if r.Hour >= 0 && r.Hour < 24 {
			s.ActivityByHour[r.Hour]++
		}
	}
	s.UniqueUsers = int64(len(users))
	if s.TotalEvents > 0 {
		s.AvgSessionMin = features.Round2(sessionSum / float64(s.TotalEvents))
	}
	if s.HighRiskEvents > 0 {
		s.AvgSessionMinHighRisk = features.Round2(riskySessionSum / float64(s.HighRiskEvents))
	}
	return s
}

// Write renders s as aligned text.
func (s Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "total events\t%d\n", s.TotalEvents)
	fmt.Fprintf(tw, "unique users\t%d\n", s.UniqueUsers)
	fmt.Fprintf(tw, "avg session (min)\t%.1f\n", s.AvgSessionMin)
	fmt.Fprintf(tw, "high risk events\t%d\n", s.HighRiskEvents)
	fmt.Fprintln(tw, "\naction mix")
	for _, a := range slices.Sorted(maps.Keys(s.ActionMix)) {
		fmt.Fprintf(tw, "  %s\t%d\n", a, s.ActionMix[a])
	}
	fmt.Fprintln(tw, "\nactivity by hour")
	for h, n := range s.ActivityByHour {
		if n > 0 {
			fmt.Fprintf(tw, "  %02d\t%d\n", h, n)
		}
	}
	level := "normal"
	if s.NocturnalAlert() {
		level = "elevated"
	}
	fmt.Fprintf(tw, "  night share (%02d-%02d)\t%.1f%% %s\n", NightStartHour, NightEndHour, s.NocturnalPct(), level)

	fmt.Fprintln(tw, "\nrisk")
	if s.HighRiskEvents > 0 {
		fmt.Fprintf(tw, "  avg session flagged (min)\t%.1f\n", s.AvgSessionMinHighRisk)
	}
	if s.TopVolatilityUser != "" {
		fmt.Fprintf(tw, "  top volatility\t%s %.2f\n", s.TopVolatilityUser, s.TopVolatility)
	}
	return tw.Flush()
}

package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"example.com/riskpipeline/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func TestIsHighRisk(t *testing.T) {
	cases := []struct {
		name  string
		ev    domain.EnrichedEvent
		want  bool
		rules []Rule
	}{
		{
			name: "fast add to cart",
			ev:   domain.EnrichedEvent{Event: domain.Event{Action: domain.ActionAddToCart}, RollingAvgLatency: ptr(1.0)},
			want: true, rules: []Rule{RuleRapidFire},
		},
		{
			name: "fast page refresh",
			ev:   domain.EnrichedEvent{Event: domain.Event{Action: domain.ActionPageRefresh}, RollingAvgLatency: ptr(2.99)},
			want: true, rules: []Rule{RuleRapidFire},
		},
		{
			name: "fast purchase is not impulsive",
			ev:   domain.EnrichedEvent{Event: domain.Event{Action: domain.ActionPurchase}, RollingAvgLatency: ptr(0.5)},
			want: false,
		},
		{
			name: "latency at threshold",
			ev:   domain.EnrichedEvent{Event: domain.Event{Action: domain.ActionAddToCart}, RollingAvgLatency: ptr(3.0)},
			want: false,
		},
		{
			name: "undefined latency",
			ev:   domain.EnrichedEvent{Event: domain.Event{Action: domain.ActionPageRefresh}},
			want: false,
		},
		{
			name: "volatile spend regardless of action",
			ev:   domain.EnrichedEvent{Event: domain.Event{Action: domain.ActionViewProduct}, AmountVolatility: 150.01},
			want: true, rules: []Rule{RuleVolatileSpend},
		},
		{
			name: "volatility at threshold",
			ev:   domain.EnrichedEvent{AmountVolatility: 150.0},
			want: false,
		},
		{
			name: "long session with calm behavior",
			ev:   domain.EnrichedEvent{Event: domain.Event{Action: domain.ActionViewProduct}, RollingAvgLatency: ptr(600), SessionDurationMin: 30.5},
			want: true, rules: []Rule{RuleLongSession},
		},
		{
			name: "all rules",
			ev: domain.EnrichedEvent{
				Event:              domain.Event{Action: domain.ActionAddToCart},
				RollingAvgLatency:  ptr(1),
				AmountVolatility:   263.86,
				SessionDurationMin: 45,
			},
			want: true, rules: []Rule{RuleRapidFire, RuleVolatileSpend, RuleLongSession},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsHighRisk(&tc.ev))
			assert.Equal(t, tc.rules, Matches(&tc.ev))
		})
	}
}

func TestClassify(t *testing.T) {
	events := []domain.EnrichedEvent{
		{Event: domain.Event{Action: domain.ActionAddToCart}, RollingAvgLatency: ptr(1)},
		{Event: domain.Event{Action: domain.ActionPurchase}, AmountVolatility: 200},
		{Event: domain.Event{Action: domain.ActionViewProduct}},
		{Event: domain.Event{Action: domain.ActionViewProduct}, SessionDurationMin: 31, AmountVolatility: 151},
	}
	counts := Classify(events)

	assert.True(t, events[0].IsHighRisk)
	assert.True(t, events[1].IsHighRisk)
	assert.False(t, events[2].IsHighRisk)
	assert.True(t, events[3].IsHighRisk)
	assert.Equal(t, map[Rule]int{RuleRapidFire: 1, RuleVolatileSpend: 2, RuleLongSession: 1}, counts)
}

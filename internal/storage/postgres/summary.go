package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/riskpipeline/internal/domain"
	"example.com/riskpipeline/internal/report"
)

// QuerySummary computes the dashboard headline figures in SQL.
func (db *DB) QuerySummary(ctx context.Context) (report.Summary, error) {
	s := report.Summary{ActionMix: make(map[string]int64)}

	row := db.Pool.QueryRow(ctx, `
SELECT COUNT(*)::bigint,
       COUNT(DISTINCT user_id)::bigint,
       COALESCE(ROUND(AVG(session_duration_min)::numeric, 2), 0)::float8,
       COUNT(*) FILTER (WHERE is_high_risk)::bigint,
       COALESCE(ROUND((AVG(session_duration_min) FILTER (WHERE is_high_risk))::numeric, 2), 0)::float8
FROM `+domain.TableName)
	if err := row.Scan(&s.TotalEvents, &s.UniqueUsers, &s.AvgSessionMin, &s.HighRiskEvents, &s.AvgSessionMinHighRisk); err != nil {
		return s, fmt.Errorf("scan totals: %w", err)
	}

	err := db.Pool.QueryRow(ctx, `
SELECT user_id, amount_volatility
FROM `+domain.TableName+`
ORDER BY amount_volatility DESC, user_id, "timestamp"
LIMIT 1`).Scan(&s.TopVolatilityUser, &s.TopVolatility)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return s, fmt.Errorf("query top volatility: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `
SELECT action, COUNT(*)::bigint
FROM `+domain.TableName+`
GROUP BY action
ORDER BY action`)
	if err != nil {
		return s, fmt.Errorf("query action mix: %w", err)
	}
	for rows.Next() {
		var action string
		var n int64
		if err := rows.Scan(&action, &n); err != nil {
			rows.Close()
			return s, fmt.Errorf("scan action mix: %w", err)
		}
		s.ActionMix[action] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s, err
	}

	hours, err := db.QueryHourly(ctx)
	if err != nil {
		return s, err
	}
	s.ActivityByHour = hours
	return s, nil
}

// QueryHourly buckets events by the stored hour column.
func (db *DB) QueryHourly(ctx context.Context) ([24]int64, error) {
	var out [24]int64
	rows, err := db.Pool.Query(ctx, `
SELECT hour, COUNT(*)::bigint
FROM `+domain.TableName+`
GROUP BY 1
ORDER BY 1 ASC`)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var hour int16
		var n int64
		if err := rows.Scan(&hour, &n); err != nil {
			return out, fmt.Errorf("scan bucket: %w", err)
		}
		if hour >= 0 && hour < 24 {
			out[hour] = n
		}
	}
	return out, rows.Err()
}

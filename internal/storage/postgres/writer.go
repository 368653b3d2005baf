package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"example.com/riskpipeline/internal/domain"
)

// DefaultCopyBatchSize bounds the rows sent per COPY call.
const DefaultCopyBatchSize = 5000

type Writer struct {
	db        *DB
	batchSize int
	log       *zap.Logger
	now       func() time.Time
}

func NewWriter(db *DB, batchSize int, log *zap.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultCopyBatchSize
	}
	return &Writer{
		db:        db,
		batchSize: batchSize,
		log:       log.With(zap.String("component", "sink"), zap.String("store", "postgres")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (w *Writer) String() string { return "postgres:" + domain.TableName }

// Replace swaps the contents of user_behavior for rows and records run, all
// in one transaction. On any error the transaction is rolled back and the
// previous table contents remain.
func (w *Writer) Replace(ctx context.Context, rows []domain.EnrichedEvent, run domain.Run) (int64, error) {
	tx, err := w.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "TRUNCATE "+domain.TableName); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", domain.TableName, err)
	}

	var total int64
	for start := 0; start < len(rows); start += w.batchSize {
		end := min(start+w.batchSize, len(rows))
		chunk := rows[start:end]
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{domain.TableName},
			domain.Columns,
			pgx.CopyFromSlice(len(chunk), func(i int) ([]any, error) {
				return rowValues(&chunk[i]), nil
			}),
		)
		if err != nil {
			return 0, fmt.Errorf("copy rows %d-%d: %w", start, end, err)
		}
		total += n
		w.log.Debug("copy chunk", zap.Int("from", start), zap.Int("to", end), zap.Int64("copied", n))
	}

	if run.ID != "" {
		if err := insertRun(ctx, tx, run, w.now()); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	w.log.Info("table replaced", zap.String("table", domain.TableName), zap.Int64("rows", total))
	return total, nil
}

func rowValues(e *domain.EnrichedEvent) []any {
	return []any{
		e.UserID,
		e.Timestamp,
		string(e.Action),
		e.Category,
		e.Amount,
		e.SessionID,
		e.TimeDiff, // nil -> NULL
		e.RollingAvgLatency,
		e.AmountVolatility,
		e.SessionDurationMin,
		int16(e.Hour),
		e.IsHighRisk,
	}
}

func insertRun(ctx context.Context, tx pgx.Tx, run domain.Run, finished time.Time) error {
	_, err := tx.Exec(ctx, `
INSERT INTO pipeline_runs
  (run_id, input_path, input_digest, started_at, finished_at, records_read, records_valid, records_rejected, high_risk)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.InputPath, run.InputDigest, run.StartedAt, finished,
		run.Read, run.Valid, run.Rejected, run.HighRisk,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// LoadAll reads user_behavior back in (user_id, timestamp) order.
func (w *Writer) LoadAll(ctx context.Context) ([]domain.EnrichedEvent, error) {
	rows, err := w.db.Pool.Query(ctx, `
SELECT user_id, "timestamp", action, category, amount, session_id,
       time_diff, rolling_avg_latency, amount_volatility, session_duration_min, hour, is_high_risk
FROM `+domain.TableName+`
ORDER BY user_id, "timestamp"`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", domain.TableName, err)
	}
	defer rows.Close()

	var out []domain.EnrichedEvent
	for rows.Next() {
		var (
			e      domain.EnrichedEvent
			action string
			hour   int16
		)
		if err := rows.Scan(&e.UserID, &e.Timestamp, &action, &e.Category, &e.Amount, &e.SessionID,
			&e.TimeDiff, &e.RollingAvgLatency, &e.AmountVolatility, &e.SessionDurationMin, &hour, &e.IsHighRisk); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Action = domain.Action(action)
		e.Hour = int(hour)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastRun returns the most recent pipeline_runs entry, or false when none exist.
func (w *Writer) LastRun(ctx context.Context) (domain.Run, bool, error) {
	var r domain.Run
	err := w.db.Pool.QueryRow(ctx, `
SELECT run_id::text, input_path, input_digest, started_at, records_read, records_valid, records_rejected, high_risk
FROM pipeline_runs
ORDER BY finished_at DESC
LIMIT 1`).Scan(&r.ID, &r.InputPath, &r.InputDigest, &r.StartedAt, &r.Read, &r.Valid, &r.Rejected, &r.HighRisk)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, false, nil
	}
	if err != nil {
		return domain.Run{}, false, fmt.Errorf("query last run: %w", err)
	}
	return r, true, nil
}

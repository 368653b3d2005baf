// Package file persists the user_behavior table as a JSON snapshot on disk.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"example.com/riskpipeline/internal/domain"
)

// Row is the on-disk form of one EnrichedEvent; field order matches domain.Columns.
type Row struct {
	UserID             string   `json:"user_id"`
	Timestamp          string   `json:"timestamp"`
	Action             string   `json:"action"`
	Category           string   `json:"category"`
	Amount             float64  `json:"amount"`
	SessionID          string   `json:"session_id"`
	TimeDiff           *float64 `json:"time_diff"`
	RollingAvgLatency  *float64 `json:"rolling_avg_latency"`
	AmountVolatility   float64  `json:"amount_volatility"`
	SessionDurationMin float64  `json:"session_duration_min"`
	Hour               int      `json:"hour"`
	IsHighRisk         bool     `json:"is_high_risk"`
}

// Table is the snapshot document.
type Table struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Sink writes snapshots to a single resolved path.
type Sink struct {
	path string
	log  *zap.Logger
}

// NewSink returns a Sink for path, which must already be confined to the
// data directory by the caller.
func NewSink(path string, log *zap.Logger) *Sink {
	return &Sink{path: path, log: log.With(zap.String("component", "sink"), zap.String("store", "file"))}
}

func (s *Sink) String() string { return s.path }

// Replace overwrites the snapshot with rows. The new content is written to a
// temp file in the same directory and renamed into place, so a failed write
// leaves the previous snapshot intact. Run metadata is not stored: the
// snapshot depends on the rows only.
func (s *Sink) Replace(ctx context.Context, rows []domain.EnrichedEvent, _ domain.Run) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := Encode(rows)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return 0, fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return 0, fmt.Errorf("replace %s: %w", s.path, err)
	}
	s.log.Info("table replaced", zap.String("path", s.path), zap.Int("rows", len(rows)), zap.Int("bytes", len(data)))
	return int64(len(rows)), nil
}

// Load reads the snapshot back.
func (s *Sink) Load(ctx context.Context) ([]domain.EnrichedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return Decode(data)
}

// Encode renders rows deterministically: same rows, same bytes.
func Encode(rows []domain.EnrichedEvent) ([]byte, error) {
	doc := Table{
		Table:   domain.TableName,
		Columns: domain.Columns,
		Rows:    make([]Row, len(rows)),
	}
	for i := range rows {
		doc.Rows[i] = toRow(&rows[i])
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) ([]domain.EnrichedEvent, error) {
	var doc Table
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	if doc.Table != domain.TableName {
		return nil, fmt.Errorf("decode table: unexpected table %q", doc.Table)
	}
	out := make([]domain.EnrichedEvent, len(doc.Rows))
	for i, r := range doc.Rows {
		ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("decode table: row %d: %w", i, err)
		}
		out[i] = domain.EnrichedEvent{
			Event: domain.Event{
				UserID:    r.UserID,
				Timestamp: ts,
				Action:    domain.Action(r.Action),
				Category:  r.Category,
				Amount:    r.Amount,
				SessionID: r.SessionID,
			},
			TimeDiff:           r.TimeDiff,
			RollingAvgLatency:  r.RollingAvgLatency,
			AmountVolatility:   r.AmountVolatility,
			SessionDurationMin: r.SessionDurationMin,
			Hour:               r.Hour,
			IsHighRisk:         r.IsHighRisk,
		}
	}
	return out, nil
}

func toRow(e *domain.EnrichedEvent) Row {
	return Row{
		UserID:             e.UserID,
		Timestamp:          e.Timestamp.Format(time.RFC3339Nano),
		Action:             string(e.Action),
		Category:           e.Category,
		Amount:             e.Amount,
		SessionID:          e.SessionID,
		TimeDiff:           e.TimeDiff,
		RollingAvgLatency:  e.RollingAvgLatency,
		AmountVolatility:   e.AmountVolatility,
		SessionDurationMin: e.SessionDurationMin,
		Hour:               e.Hour,
		IsHighRisk:         e.IsHighRisk,
	}
}

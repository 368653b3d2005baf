// Package pipeline runs one batch: load, validate, derive, classify, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"example.com/riskpipeline/internal/domain"
	"example.com/riskpipeline/internal/features"
	"example.com/riskpipeline/internal/idempotency"
	"example.com/riskpipeline/internal/ingest"
	"example.com/riskpipeline/internal/logging"
	"example.com/riskpipeline/internal/metrics"
	"example.com/riskpipeline/internal/risk"
	"example.com/riskpipeline/internal/safepath"
	"example.com/riskpipeline/internal/tracing"
)

const defaultStoreTimeout = 60 * time.Second

type Options struct {
	DataDir      string
	StoreTimeout time.Duration
	Log          *zap.Logger
	Metrics      *metrics.Recorder
}

// Opener opens the output store. Run calls it only once a validated batch is
// ready to persist, so a bad input never touches the store.
type Opener func(ctx context.Context) (Sink, error)

type Pipeline struct {
	loader       *ingest.Loader
	open         Opener
	store        string
	storeTimeout time.Duration
	log          *zap.Logger
	metrics      *metrics.Recorder
	now          func() time.Time
}

// Result is the report of a single run.
type Result struct {
	RunID             string
	InputPath         string
	Store             string
	Read              int
	Valid             int
	Rejected          int
	HighRisk          int
	RejectionsByField map[string]int
	Rejections        []domain.Rejection
	RuleHits          map[risk.Rule]int
	Digest            string
	Duration          time.Duration
}

// New returns a Pipeline writing to an already opened sink.
func New(sink Sink, opts Options) *Pipeline {
	return NewDeferred(sink.String(), func(context.Context) (Sink, error) { return sink, nil }, opts)
}

// NewDeferred returns a Pipeline that opens its store through open, after
// load and validation succeed. store names the target in logs and results.
func NewDeferred(store string, open Opener, opts Options) *Pipeline {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return &Pipeline{
		loader:       ingest.NewLoader(opts.DataDir, opts.Log),
		open:         open,
		store:        store,
		storeTimeout: opts.StoreTimeout,
		log:          opts.Log,
		metrics:      opts.Metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run processes input and replaces the store with the enriched rows. Bad
// records are counted and skipped. The store is neither opened nor written
// when the input is missing, escapes the data directory, or yields no valid
// record.
func (p *Pipeline) Run(ctx context.Context, input string) (res Result, err error) {
	started := p.now()
	res = Result{
		RunID:     uuid.NewString(),
		InputPath: input,
		Store:     p.store,
	}
	log := logging.WithRun(p.log, res.RunID)

	ctx, span := tracing.StartSpan(ctx, "pipeline.run", tracing.RunID(res.RunID))
	defer func() {
		res.Duration = time.Since(started)
		p.metrics.ObserveRun(started, err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	_, loadSpan := tracing.StartSpan(ctx, "pipeline.load")
	records, resolved, err := p.loader.Load(ctx, input)
	loadSpan.End()
	if err != nil {
		return res, err
	}
	res.InputPath = resolved
	res.Read = len(records)
	p.metrics.RecordsRead.Add(float64(res.Read))

	_, valSpan := tracing.StartSpan(ctx, "pipeline.validate", tracing.Records(res.Read))
	v := domain.NewValidator()
	events := v.ValidateAll(records)
	valSpan.End()
	res.Valid = v.Passed()
	res.Rejected = v.Failed()
	res.Rejections = v.Rejections()
	res.RejectionsByField = v.FailuresByField()
	p.metrics.RecordsValid.Add(float64(res.Valid))
	for field, n := range res.RejectionsByField {
		p.metrics.RecordsRejected.WithLabelValues(field).Add(float64(n))
	}
	log.Info("validation complete",
		zap.Int("passed", res.Valid),
		zap.Int("failed", res.Rejected),
		zap.Any("failures_by_field", res.RejectionsByField),
	)
	if len(events) == 0 {
		return res, fmt.Errorf("%w: %d records read from %s", ErrEmptyResult, res.Read, resolved)
	}
	res.Digest = idempotency.Digest(events)

	_, deriveSpan := tracing.StartSpan(ctx, "pipeline.derive", tracing.Records(len(events)))
	rows := features.Derive(events)
	deriveSpan.End()

	_, classifySpan := tracing.StartSpan(ctx, "pipeline.classify", tracing.Records(len(rows)))
	res.RuleHits = risk.Classify(rows)
	classifySpan.End()
	for i := range rows {
		if rows[i].IsHighRisk {
			res.HighRisk++
		}
	}
	for rule, n := range res.RuleHits {
		p.metrics.HighRiskEvents.WithLabelValues(string(rule)).Add(float64(n))
	}

	run := domain.Run{
		ID:          res.RunID,
		InputPath:   resolved,
		InputDigest: res.Digest,
		StartedAt:   started,
		Read:        res.Read,
		Valid:       res.Valid,
		Rejected:    res.Rejected,
		HighRisk:    res.HighRisk,
	}
	persistCtx, persistSpan := tracing.StartSpan(ctx, "pipeline.persist", tracing.Records(len(rows)))
	n, store, err := p.persist(persistCtx, rows, run)
	persistSpan.End()
	if store != "" {
		res.Store = store
	}
	if err != nil {
		return res, err
	}
	p.metrics.RowsPersisted.Add(float64(n))

	log.Info("run complete",
		zap.String("store", res.Store),
		zap.Int64("rows", n),
		zap.Int("high_risk", res.HighRisk),
		zap.String("digest", res.Digest),
	)
	return res, nil
}

func (p *Pipeline) persist(ctx context.Context, rows []domain.EnrichedEvent, run domain.Run) (int64, string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	sink, err := p.open(ctx)
	if err != nil {
		var perr *PersistenceError
		if errors.As(err, &perr) || errors.Is(err, safepath.ErrPathSecurity) {
			return 0, "", err
		}
		return 0, "", &PersistenceError{Store: p.store, Err: err}
	}
	n, err := sink.Replace(ctx, rows, run)
	if err != nil {
		return 0, sink.String(), &PersistenceError{Store: sink.String(), Err: err}
	}
	return n, sink.String(), nil
}

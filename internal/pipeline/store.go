package pipeline

import (
	"context"

	"go.uber.org/zap"

	"example.com/riskpipeline/internal/domain"
	"example.com/riskpipeline/internal/report"
	"example.com/riskpipeline/internal/safepath"
	"example.com/riskpipeline/internal/storage/file"
	"example.com/riskpipeline/internal/storage/postgres"
)

// Sink replaces the user_behavior table with a new set of rows.
type Sink interface {
	Replace(ctx context.Context, rows []domain.EnrichedEvent, run domain.Run) (int64, error)
	String() string
}

// Store is an opened output target: a Postgres database or a JSON snapshot
// file inside the data directory.
type Store struct {
	Sink

	db   *postgres.DB
	pg   *postgres.Writer
	file *file.Sink
}

// ResolveTarget checks target without side effects and returns the name
// used for it in logs. File paths must resolve inside dataDir.
func ResolveTarget(dataDir, target string) (string, error) {
	if postgres.IsDSN(target) {
		return "postgres:" + domain.TableName, nil
	}
	return safepath.Resolve(dataDir, target)
}

// OpenStore opens target. A postgres:// URL connects and migrates the
// database; anything else is a file path that must resolve inside dataDir.
func OpenStore(ctx context.Context, dataDir, target string, copyBatchSize int, log *zap.Logger) (*Store, error) {
	if postgres.IsDSN(target) {
		db, err := postgres.Connect(ctx, target)
		if err != nil {
			return nil, &PersistenceError{Store: "postgres", Err: err}
		}
		if err := db.Ready(ctx); err != nil {
			db.Close()
			return nil, &PersistenceError{Store: "postgres", Err: err}
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, &PersistenceError{Store: "postgres", Err: err}
		}
		w := postgres.NewWriter(db, copyBatchSize, log)
		return &Store{Sink: w, db: db, pg: w}, nil
	}

	resolved, err := ResolveTarget(dataDir, target)
	if err != nil {
		return nil, err
	}
	s := file.NewSink(resolved, log)
	return &Store{Sink: s, file: s}, nil
}

// Summary computes the dashboard figures over the stored table.
func (s *Store) Summary(ctx context.Context) (report.Summary, error) {
	if s.db != nil {
		return s.db.QuerySummary(ctx)
	}
	rows, err := s.file.Load(ctx)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summarize(rows), nil
}

// LastRun returns the latest recorded run. File stores keep no run history.
func (s *Store) LastRun(ctx context.Context) (domain.Run, bool, error) {
	if s.pg == nil {
		return domain.Run{}, false, nil
	}
	return s.pg.LastRun(ctx)
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

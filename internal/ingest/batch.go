package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SubjectIngestor ingests a single subject.
type SubjectIngestor interface {
	Ingest(ctx context.Context, subjectID string) (Result, error)
}

// BatchRunner fans subject ingestion out over a bounded number of workers.
type BatchRunner struct {
	ingestor        SubjectIngestor
	workers         int
	continueOnError bool
	logger          *zap.Logger
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithWorkers bounds the number of subjects ingested concurrently. Values below one mean one.
func WithWorkers(n int) BatchOption {
	return func(b *BatchRunner) {
		if n < 1 {
			n = 1
		}
		b.workers = n
	}
}

// WithContinueOnError keeps ingesting the remaining subjects after a failure.
func WithContinueOnError(enabled bool) BatchOption {
	return func(b *BatchRunner) { b.continueOnError = enabled }
}

// WithBatchLogger overrides the logger.
func WithBatchLogger(logger *zap.Logger) BatchOption {
	return func(b *BatchRunner) { b.logger = logger }
}

// NewBatchRunner constructs a BatchRunner that runs subjects one at a time by default.
func NewBatchRunner(ingestor SubjectIngestor, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{ingestor: ingestor, workers: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run ingests every subject. Results are indexed like subjectIDs; failed subjects leave a
// zero Result. Without continue-on-error the first failure cancels subjects not yet started
// and is returned; otherwise all failures are joined.
func (b *BatchRunner) Run(ctx context.Context, subjectIDs []string) ([]Result, error) {
	results := make([]Result, len(subjectIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	var (
		mu   sync.Mutex
		errs []error
	)
	for idx, id := range subjectIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := b.ingestor.Ingest(gctx, id)
			if err != nil {
				err = fmt.Errorf("subject %s: %w", id, err)
				b.logger.Error("subject ingestion failed",
					zap.String("subject", id),
					zap.Bool("input_error", IsSubjectError(err)),
					zap.Error(err))
				if !b.continueOnError {
					return err
				}
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			results[idx] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

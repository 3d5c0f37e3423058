// Package postgres provides the Postgres-backed warehouse.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/reps/internal/domain"
	"example.com/reps/internal/warehouse"
)

// schemaLockKey serialises concurrent EnsureSchema calls across workers.
const schemaLockKey = 0x7265_7073

// Store appends subject batches with COPY and serves the validator's read-only queries.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Option configures optional behaviour for the Store.
type Option func(*Store)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the warehouse at url and verifies the connection.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", domain.ErrWarehouse, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", domain.ErrWarehouse, err)
	}
	return NewStore(pool, opts...), nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// EnsureSchema creates the session tables, indexes and unified views if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin schema tx: %v", domain.ErrWarehouse, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(schemaLockKey)); err != nil {
		return fmt.Errorf("%w: schema lock: %v", domain.ErrWarehouse, err)
	}
	for _, stmt := range warehouse.SchemaStatements(warehouse.Postgres) {
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", domain.ErrWarehouse, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit schema: %v", domain.ErrWarehouse, err)
	}
	return nil
}

// AppendSubject copies every session of the batch inside a single transaction.
func (s *Store) AppendSubject(ctx context.Context, batch warehouse.SubjectBatch) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin append tx: %v", domain.ErrWarehouse, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	for _, session := range batch.Sessions {
		samples := session.Samples
		n, copyErr := tx.CopyFrom(ctx, pgx.Identifier{session.Session.IMUTable()}, warehouse.IMUColumns,
			pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
				return warehouse.IMURow(samples[i], samples[i].Timestamp.UTC()), nil
			}))
		if copyErr != nil {
			err = fmt.Errorf("%w: copy %s: %v", domain.ErrWarehouse, session.Session.IMUTable(), copyErr)
			return err
		}
		s.logger.Debug("copied imu rows", zap.String("subject", batch.SubjectID), zap.String("table", session.Session.IMUTable()), zap.Int64("rows", n))

		segments := session.Segments
		if _, copyErr = tx.CopyFrom(ctx, pgx.Identifier{session.Session.LabelTable()}, warehouse.LabelColumns,
			pgx.CopyFromSlice(len(segments), func(i int) ([]any, error) {
				return warehouse.LabelRow(segments[i], segments[i].Start.UTC(), segments[i].End.UTC()), nil
			})); copyErr != nil {
			err = fmt.Errorf("%w: copy %s: %v", domain.ErrWarehouse, session.Session.LabelTable(), copyErr)
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit append: %v", domain.ErrWarehouse, err)
	}
	return nil
}

// SessionSpans returns the first and last IMU timestamp per subject session.
func (s *Store) SessionSpans(ctx context.Context) ([]warehouse.SessionSpan, error) {
	var spans []warehouse.SessionSpan
	err := s.readOnly(ctx, warehouse.SpansQuery, func(rows pgx.Rows) error {
		var span warehouse.SessionSpan
		var session string
		if err := rows.Scan(&span.SubjectID, &session, &span.First, &span.Last); err != nil {
			return err
		}
		parsed, err := domain.ParseSession(session)
		if err != nil {
			return err
		}
		span.Session = parsed
		span.First, span.Last = span.First.UTC(), span.Last.UTC()
		spans = append(spans, span)
		return nil
	})
	return spans, err
}

// LabelSegments returns every stored segment ordered by subject, session and start.
func (s *Store) LabelSegments(ctx context.Context) ([]warehouse.SessionSegment, error) {
	var segments []warehouse.SessionSegment
	err := s.readOnly(ctx, warehouse.SegmentsQuery, func(rows pgx.Rows) error {
		var seg warehouse.SessionSegment
		var session string
		var exercise *int32
		if err := rows.Scan(&seg.SubjectID, &session, &seg.Start, &seg.End, &exercise); err != nil {
			return err
		}
		parsed, err := domain.ParseSession(session)
		if err != nil {
			return err
		}
		seg.Session = parsed
		seg.Start, seg.End = seg.Start.UTC(), seg.End.UTC()
		if exercise != nil {
			seg.ExerciseID = domain.Exercise(*exercise)
		}
		segments = append(segments, seg)
		return nil
	})
	return segments, err
}

// ScanIMU streams every stored IMU row to fn in subject, session, timestamp order.
func (s *Store) ScanIMU(ctx context.Context, fn func(warehouse.SessionSample) error) error {
	return s.readOnly(ctx, warehouse.ScanQuery, func(rows pgx.Rows) error {
		var sample warehouse.SessionSample
		var session string
		if err := rows.Scan(&sample.SubjectID, &session, &sample.Timestamp,
			&sample.AX, &sample.AY, &sample.AZ, &sample.GX, &sample.GY, &sample.GZ); err != nil {
			return err
		}
		parsed, err := domain.ParseSession(session)
		if err != nil {
			return err
		}
		sample.Session = parsed
		sample.Timestamp = sample.Timestamp.UTC()
		return fn(sample)
	})
}

func (s *Store) readOnly(ctx context.Context, query string, each func(pgx.Rows) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("%w: begin read tx: %v", domain.ErrWarehouse, err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: query: %v", domain.ErrWarehouse, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: read rows: %v", domain.ErrWarehouse, err)
	}
	return tx.Commit(ctx)
}

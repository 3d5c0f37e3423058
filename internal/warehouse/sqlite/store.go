// Package sqlite provides an embedded, file-backed warehouse.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"example.com/reps/internal/domain"
	"example.com/reps/internal/warehouse"
)

// timeLayout is fixed width so stored timestamps order lexically.
const timeLayout = "2006-01-02 15:04:05.000000000"

var readLayouts = []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"}

// Store is a single-file warehouse. Writes are serialised through one connection.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Option configures optional behaviour for the Store.
type Option func(*Store)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open creates or opens the warehouse file at path.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create warehouse directory: %v", domain.ErrWarehouse, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrWarehouse, path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrWarehouse, path, err)
	}

	s := &Store{db: db, path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the warehouse file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the session tables, indexes and unified views if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin schema tx: %v", domain.ErrWarehouse, err)
	}
	defer tx.Rollback()

	for _, stmt := range warehouse.SchemaStatements(warehouse.SQLite) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", domain.ErrWarehouse, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit schema: %v", domain.ErrWarehouse, err)
	}
	return nil
}

// AppendSubject inserts every session of the batch inside a single transaction.
func (s *Store) AppendSubject(ctx context.Context, batch warehouse.SubjectBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin append tx: %v", domain.ErrWarehouse, err)
	}
	defer tx.Rollback()

	for _, session := range batch.Sessions {
		if err := insertAll(ctx, tx, session.Session.IMUTable(), warehouse.IMUColumns, len(session.Samples), func(i int) []any {
			sample := session.Samples[i]
			return warehouse.IMURow(sample, formatTime(sample.Timestamp))
		}); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, session.Session.LabelTable(), warehouse.LabelColumns, len(session.Segments), func(i int) []any {
			seg := session.Segments[i]
			return warehouse.LabelRow(seg, formatTime(seg.Start), formatTime(seg.End))
		}); err != nil {
			return err
		}
		s.logger.Debug("inserted session rows",
			zap.String("subject", batch.SubjectID),
			zap.String("session", string(session.Session)),
			zap.Int("imu_rows", len(session.Samples)),
			zap.Int("segments", len(session.Segments)))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit append: %v", domain.ErrWarehouse, err)
	}
	return nil
}

func insertAll(ctx context.Context, tx *sql.Tx, table string, columns []string, n int, row func(int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, warehouse.InsertStatement(table, columns, func(int) string { return "?" }))
	if err != nil {
		return fmt.Errorf("%w: prepare insert into %s: %v", domain.ErrWarehouse, table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("%w: insert into %s: %v", domain.ErrWarehouse, table, err)
		}
	}
	return nil
}

// SessionSpans returns the first and last IMU timestamp per subject session.
func (s *Store) SessionSpans(ctx context.Context) ([]warehouse.SessionSpan, error) {
	var spans []warehouse.SessionSpan
	err := s.query(ctx, warehouse.SpansQuery, func(rows *sql.Rows) error {
		var span warehouse.SessionSpan
		var session, first, last string
		if err := rows.Scan(&span.SubjectID, &session, &first, &last); err != nil {
			return err
		}
		var err error
		if span.Session, err = domain.ParseSession(session); err != nil {
			return err
		}
		if span.First, err = parseTime(first); err != nil {
			return err
		}
		if span.Last, err = parseTime(last); err != nil {
			return err
		}
		spans = append(spans, span)
		return nil
	})
	return spans, err
}

// LabelSegments returns every stored segment ordered by subject, session and start.
func (s *Store) LabelSegments(ctx context.Context) ([]warehouse.SessionSegment, error) {
	var segments []warehouse.SessionSegment
	err := s.query(ctx, warehouse.SegmentsQuery, func(rows *sql.Rows) error {
		var seg warehouse.SessionSegment
		var session, start, end string
		if err := rows.Scan(&seg.SubjectID, &session, &start, &end, &seg.ExerciseID); err != nil {
			return err
		}
		var err error
		if seg.Session, err = domain.ParseSession(session); err != nil {
			return err
		}
		if seg.Start, err = parseTime(start); err != nil {
			return err
		}
		if seg.End, err = parseTime(end); err != nil {
			return err
		}
		seg.ExerciseID = domain.NormalizeExercise(seg.ExerciseID)
		segments = append(segments, seg)
		return nil
	})
	return segments, err
}

// ScanIMU streams every stored IMU row to fn in subject, session, timestamp order.
func (s *Store) ScanIMU(ctx context.Context, fn func(warehouse.SessionSample) error) error {
	return s.query(ctx, warehouse.ScanQuery, func(rows *sql.Rows) error {
		var sample warehouse.SessionSample
		var session, ts string
		if err := rows.Scan(&sample.SubjectID, &session, &ts,
			&sample.AX, &sample.AY, &sample.AZ, &sample.GX, &sample.GY, &sample.GZ); err != nil {
			return err
		}
		var err error
		if sample.Session, err = domain.ParseSession(session); err != nil {
			return err
		}
		if sample.Timestamp, err = parseTime(ts); err != nil {
			return err
		}
		return fn(sample)
	})
}

func (s *Store) query(ctx context.Context, query string, each func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
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
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", domain.ErrWarehouse, raw)
}

// Package warehouse defines the append-only session tables the pipeline writes and the
// unified relations the validator reads.
package warehouse

import (
	"context"
	"database/sql"
	"time"

	"example.com/reps/internal/domain"
)

// SessionBatch holds the rows destined for one session's tables.
type SessionBatch struct {
	Session  domain.Session
	Samples  []domain.IMUSample
	Segments []domain.LabelSegment
}

// SubjectBatch holds every session written for a subject; it is appended atomically.
type SubjectBatch struct {
	SubjectID string
	Sessions  []SessionBatch
}

// Rows returns the number of IMU rows and label segments in the batch.
func (b SubjectBatch) Rows() (samples, segments int) {
	for _, s := range b.Sessions {
		samples += len(s.Samples)
		segments += len(s.Segments)
	}
	return samples, segments
}

// Writer appends ingested subjects.
type Writer interface {
	EnsureSchema(ctx context.Context) error
	AppendSubject(ctx context.Context, batch SubjectBatch) error
}

// SessionSpan is the first and last IMU timestamp stored for a subject session.
type SessionSpan struct {
	SubjectID string
	Session   domain.Session
	First     time.Time
	Last      time.Time
}

// SessionSegment is a stored label segment tagged with its session.
type SessionSegment struct {
	Session domain.Session
	domain.LabelSegment
}

// SessionSample is a stored IMU row tagged with its session.
type SessionSample struct {
	Session domain.Session
	domain.IMUSample
}

// Reader exposes the unified views across session tables. Implementations must not write.
type Reader interface {
	SessionSpans(ctx context.Context) ([]SessionSpan, error)
	LabelSegments(ctx context.Context) ([]SessionSegment, error)
	ScanIMU(ctx context.Context, fn func(SessionSample) error) error
}

// Store is a warehouse backend.
type Store interface {
	Writer
	Reader
	Close() error
}

// Column lists shared by the session tables of every backend.
var (
	IMUColumns   = []string{"id", "ts", "ax", "ay", "az", "gx", "gy", "gz"}
	LabelColumns = []string{"id", "ts_start", "ts_end", "exercise_id"}
)

// IMURow builds the argument list for one IMU row. ts is passed through so backends can
// choose their timestamp encoding.
func IMURow(s domain.IMUSample, ts any) []any {
	return []any{s.SubjectID, ts,
		nullFloat(s.AX), nullFloat(s.AY), nullFloat(s.AZ),
		nullFloat(s.GX), nullFloat(s.GY), nullFloat(s.GZ),
	}
}

// LabelRow builds the argument list for one label segment.
func LabelRow(seg domain.LabelSegment, start, end any) []any {
	var exercise any
	if seg.ExerciseID.Valid {
		exercise = seg.ExerciseID.Int32
	}
	return []any{seg.SubjectID, start, end, exercise}
}

func nullFloat(v sql.NullFloat64) any {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

// Package ingest loads raw subject recordings into the warehouse.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/reps/internal/domain"
	"example.com/reps/internal/events"
	"example.com/reps/internal/observability"
	"example.com/reps/internal/processing"
	"example.com/reps/internal/warehouse"
)

// Locator resolves the raw files of a subject.
type Locator interface {
	Locate(subjectID string) (domain.SubjectFiles, error)
}

// RawReader decodes raw sensor and label files.
type RawReader interface {
	ReadAccel(path string) ([]domain.RawAccelSample, error)
	ReadGyro(path string) ([]domain.RawGyroSample, error)
	ReadLabels(path string) ([]domain.RawLabelSample, error)
}

// SessionResult describes the rows appended for one session.
type SessionResult struct {
	Session  domain.Session
	Samples  int
	Segments int
	Start    time.Time
	End      time.Time
}

// Result summarises one subject's ingestion. Skipped is set when the subject had no label files.
type Result struct {
	SubjectID string
	Sessions  []SessionResult
	Align     processing.AlignStats
	Skipped   bool
}

// Ingestor aligns, segments and appends one subject at a time.
type Ingestor struct {
	locator   Locator
	reader    RawReader
	store     warehouse.Writer
	publisher events.Publisher
	logger    *zap.Logger
	runID     string
	now       func() time.Time
}

// Option configures optional behaviour for the Ingestor.
type Option func(*Ingestor)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Ingestor) { i.logger = logger }
}

// WithPublisher sets the destination of SubjectIngested events.
func WithPublisher(p events.Publisher) Option {
	return func(i *Ingestor) { i.publisher = p }
}

// WithRunID tags emitted events with a caller supplied run id.
func WithRunID(id string) Option {
	return func(i *Ingestor) { i.runID = id }
}

// NewIngestor constructs an Ingestor. Every call shares one run id unless WithRunID is given.
func NewIngestor(locator Locator, reader RawReader, store warehouse.Writer, opts ...Option) *Ingestor {
	i := &Ingestor{
		locator:   locator,
		reader:    reader,
		store:     store,
		publisher: events.Noop{},
		logger:    zap.NewNop(),
		runID:     uuid.NewString(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// RunID returns the id attached to this ingestor's events.
func (i *Ingestor) RunID() string {
	return i.runID
}

// Ingest loads one subject. Nothing is written unless every session of the subject succeeds.
func (i *Ingestor) Ingest(ctx context.Context, subjectID string) (res Result, err error) {
	started := i.now()
	logger := i.logger.With(zap.String("subject", subjectID))
	defer func() {
		result := observability.ResultSuccess
		switch {
		case err != nil:
			result = observability.ResultFailure
		case res.Skipped:
			result = observability.ResultSkipped
		}
		observability.RecordSubject(result, i.now().Sub(started))
	}()

	files, err := i.locator.Locate(subjectID)
	if err != nil {
		return Result{SubjectID: subjectID}, err
	}
	res = Result{SubjectID: subjectID}

	sessions := files.SessionsPresent()
	if len(sessions) == 0 {
		logger.Warn("no label files found; subject skipped")
		res.Skipped = true
		return res, nil
	}

	aligned, err := i.align(files)
	if err != nil {
		return res, err
	}
	res.Align = aligned.stats
	if aligned.stats.OffGrid > 0 {
		logger.Warn("raw samples off the 10ms grid were dropped", zap.Int("off_grid", aligned.stats.OffGrid))
	}
	observability.RecordOffGrid(aligned.stats.OffGrid)

	batch := warehouse.SubjectBatch{SubjectID: subjectID}
	for _, session := range sessions {
		sb, sr, err := i.session(files, session, aligned.samples)
		if err != nil {
			return res, err
		}
		batch.Sessions = append(batch.Sessions, sb)
		res.Sessions = append(res.Sessions, sr)
	}

	if err := i.store.EnsureSchema(ctx); err != nil {
		return res, err
	}
	if err := i.store.AppendSubject(ctx, batch); err != nil {
		return res, err
	}

	for _, sr := range res.Sessions {
		observability.RecordAppended(string(sr.Session), sr.Samples, sr.Segments)
		logger.Info("ingested session",
			zap.String("session", string(sr.Session)),
			zap.Int("imu_rows", sr.Samples),
			zap.Int("segments", sr.Segments),
			zap.Time("start", sr.Start),
			zap.Time("end", sr.End))
	}

	if err := i.publisher.SubjectIngested(ctx, i.event(res)); err != nil {
		logger.Warn("publish subject ingested event", zap.Error(err))
	}
	return res, nil
}

type alignment struct {
	samples []domain.IMUSample
	stats   processing.AlignStats
}

func (i *Ingestor) align(files domain.SubjectFiles) (alignment, error) {
	accel, err := i.reader.ReadAccel(files.AccelPath)
	if err != nil {
		return alignment{}, err
	}
	gyro, err := i.reader.ReadGyro(files.GyroPath)
	if err != nil {
		return alignment{}, err
	}
	if len(accel) == 0 || len(gyro) == 0 {
		return alignment{}, fmt.Errorf("%w: subject %s has an empty sensor stream (accel=%d gyro=%d)",
			domain.ErrMalformedInput, files.SubjectID, len(accel), len(gyro))
	}
	if first, last, _ := processing.Extent(accel, gyro); last.Sub(first) > processing.MaxSpan {
		return alignment{}, fmt.Errorf("%w: subject %s sensor timestamps span %s to %s, more than %s",
			domain.ErrMalformedInput, files.SubjectID, first.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano), processing.MaxSpan)
	}

	samples, stats := processing.AlignWithStats(accel, gyro)
	for k := range samples {
		samples[k].SubjectID = files.SubjectID
	}
	return alignment{samples: samples, stats: stats}, nil
}

func (i *Ingestor) session(files domain.SubjectFiles, session domain.Session, aligned []domain.IMUSample) (warehouse.SessionBatch, SessionResult, error) {
	path := files.Labels[session]
	labels, err := i.reader.ReadLabels(path)
	if err != nil {
		return warehouse.SessionBatch{}, SessionResult{}, err
	}
	segments := processing.WithSubject(processing.Segment(labels), files.SubjectID)
	start, end, ok := processing.Span(segments)
	if !ok {
		return warehouse.SessionBatch{}, SessionResult{}, fmt.Errorf("%w: %s has no label rows", domain.ErrMalformedInput, path)
	}

	samples := processing.Clip(aligned, start, end)
	return warehouse.SessionBatch{Session: session, Samples: samples, Segments: segments},
		SessionResult{Session: session, Samples: len(samples), Segments: len(segments), Start: start, End: end},
		nil
}

func (i *Ingestor) event(res Result) events.SubjectIngested {
	evt := events.SubjectIngested{
		RunID:      i.runID,
		SubjectID:  res.SubjectID,
		OffGrid:    res.Align.OffGrid,
		IngestedAt: i.now().UTC(),
	}
	for _, sr := range res.Sessions {
		evt.Sessions = append(evt.Sessions, events.SessionSummary{
			Session:  string(sr.Session),
			IMURows:  sr.Samples,
			Segments: sr.Segments,
			Start:    sr.Start,
			End:      sr.End,
		})
	}
	return evt
}

// IsSubjectError reports whether err stems from a subject's inputs rather than the warehouse.
func IsSubjectError(err error) bool {
	return errors.Is(err, domain.ErrMissingInput) || errors.Is(err, domain.ErrMalformedInput)
}

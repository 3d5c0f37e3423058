package processing

import (
	"time"

	"example.com/reps/internal/domain"
)

// Segment run-length encodes a time-ordered label stream on exercise id.
// Each segment ends where the next one starts; the last one ends at the final sample.
func Segment(labels []domain.RawLabelSample) []domain.LabelSegment {
	if len(labels) == 0 {
		return nil
	}

	segments := make([]domain.LabelSegment, 0, 8)
	current := domain.LabelSegment{
		Start:      labels[0].Timestamp,
		ExerciseID: domain.NormalizeExercise(labels[0].ExerciseID),
	}
	for _, l := range labels[1:] {
		id := domain.NormalizeExercise(l.ExerciseID)
		if id != current.ExerciseID {
			current.End = l.Timestamp
			segments = append(segments, current)
			current = domain.LabelSegment{Start: l.Timestamp, ExerciseID: id}
		}
	}
	current.End = labels[len(labels)-1].Timestamp
	return append(segments, current)
}

// Span returns the earliest start and latest end across segments.
func Span(segments []domain.LabelSegment) (start, end time.Time, ok bool) {
	if len(segments) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end = segments[0].Start, segments[0].End
	for _, s := range segments[1:] {
		if s.Start.Before(start) {
			start = s.Start
		}
		if s.End.After(end) {
			end = s.End
		}
	}
	return start, end, true
}

// Clip keeps the samples whose timestamp lies in [start, end].
func Clip(samples []domain.IMUSample, start, end time.Time) []domain.IMUSample {
	out := make([]domain.IMUSample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// WithSubject tags every segment with the subject id.
func WithSubject(segments []domain.LabelSegment, subjectID string) []domain.LabelSegment {
	for i := range segments {
		segments[i].SubjectID = subjectID
	}
	return segments
}

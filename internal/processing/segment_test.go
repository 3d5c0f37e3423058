package processing

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"example.com/reps/internal/domain"
)

func label(i int, code ...int32) domain.RawLabelSample {
	s := domain.RawLabelSample{Timestamp: at(i)}
	if len(code) > 0 {
		s.ExerciseID = domain.Exercise(code[0])
	}
	return s
}

func TestSegmentClosesOnChange(t *testing.T) {
	got := Segment([]domain.RawLabelSample{label(0, 1), label(1, 1), label(2)})

	want := []domain.LabelSegment{
		{Start: at(0), End: at(2), ExerciseID: domain.Exercise(1)},
		{Start: at(2), End: at(2), ExerciseID: domain.Rest()},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestSegmentRestDoesNotSplit(t *testing.T) {
	got := Segment([]domain.RawLabelSample{label(0), label(1), label(2), label(3, 4), label(5)})

	require.Len(t, got, 3)
	require.False(t, got[0].ExerciseID.Valid)
	require.True(t, got[0].End.Equal(at(3)))
	require.Equal(t, int32(4), got[1].ExerciseID.Int32)
	require.True(t, got[2].Start.Equal(at(5)))
	require.True(t, got[2].End.Equal(at(5)))
}

func TestSegmentPartitionsStream(t *testing.T) {
	codes := []int32{0, 0, 3, 3, 3, 0, 7, 7, 0, 0}
	labels := make([]domain.RawLabelSample, 0, len(codes))
	changes := 0
	for i, c := range codes {
		if c == 0 {
			labels = append(labels, label(i))
		} else {
			labels = append(labels, label(i, c))
		}
		if i > 0 && codes[i-1] != c {
			changes++
		}
	}

	got := Segment(labels)

	require.Len(t, got, changes+1)
	require.True(t, got[0].Start.Equal(labels[0].Timestamp))
	require.True(t, got[len(got)-1].End.Equal(labels[len(labels)-1].Timestamp))
	for i := 1; i < len(got); i++ {
		require.True(t, got[i-1].End.Equal(got[i].Start), "gap or overlap at segment %d", i)
		require.NotEqual(t, got[i-1].ExerciseID, got[i].ExerciseID)
	}

	// expanding each segment back over the samples reproduces the labels
	seg := 0
	for _, l := range labels {
		for seg+1 < len(got) && !l.Timestamp.Before(got[seg+1].Start) {
			seg++
		}
		require.Equal(t, domain.NormalizeExercise(l.ExerciseID), got[seg].ExerciseID)
	}
}

func TestSegmentNormalizesInvalidPayload(t *testing.T) {
	dirty := domain.RawLabelSample{Timestamp: at(1)}
	dirty.ExerciseID.Int32 = 9

	got := Segment([]domain.RawLabelSample{label(0), dirty})

	require.Len(t, got, 1)
}

func TestSegmentEmpty(t *testing.T) {
	require.Nil(t, Segment(nil))
}

func TestSpanAndClip(t *testing.T) {
	segments := []domain.LabelSegment{
		{Start: at(2), End: at(5)},
		{Start: at(5), End: at(7), ExerciseID: domain.Exercise(2)},
	}
	start, end, ok := Span(segments)
	require.True(t, ok)
	require.True(t, start.Equal(at(2)))
	require.True(t, end.Equal(at(7)))

	samples := make([]domain.IMUSample, 0, 10)
	for i := 0; i < 10; i++ {
		samples = append(samples, domain.IMUSample{Timestamp: at(i)})
	}

	clipped := Clip(samples, start, end)

	require.Len(t, clipped, 6)
	for _, s := range clipped {
		require.False(t, s.Timestamp.Before(start))
		require.False(t, s.Timestamp.After(end))
	}
}

func TestSpanEmpty(t *testing.T) {
	_, _, ok := Span(nil)
	require.False(t, ok)
}

func TestWithSubject(t *testing.T) {
	segs := WithSubject([]domain.LabelSegment{{Start: at(0), End: at(1)}}, "007")
	require.Equal(t, "007", segs[0].SubjectID)
	require.Equal(t, time.Duration(0), segs[0].Start.Sub(at(0)))
}

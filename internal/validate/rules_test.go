package validate

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"example.com/reps/internal/domain"
	"example.com/reps/internal/warehouse"
)

var t0 = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

func sec(n int) time.Time { return t0.Add(time.Duration(n) * time.Second) }

func span(subject string, session domain.Session, first, last int) warehouse.SessionSpan {
	return warehouse.SessionSpan{SubjectID: subject, Session: session, First: sec(first), Last: sec(last)}
}

func seg(subject string, session domain.Session, start, end int, code ...int32) warehouse.SessionSegment {
	s := warehouse.SessionSegment{Session: session}
	s.SubjectID, s.Start, s.End = subject, sec(start), sec(end)
	if len(code) > 0 {
		s.ExerciseID = domain.Exercise(code[0])
	}
	return s
}

func TestNullPaddingCleanWhenRecordingIsPaddedWithRest(t *testing.T) {
	spans := []warehouse.SessionSpan{span("S1", domain.SessionStructured, 0, 10)}
	segments := []warehouse.SessionSegment{
		seg("S1", domain.SessionStructured, 0, 3),
		seg("S1", domain.SessionStructured, 3, 7, 4),
		seg("S1", domain.SessionStructured, 7, 10),
		seg("S1", domain.SessionStructured, 10, 10),
	}
	require.Empty(t, NullPadding(spans, segments, true))
}

func TestNullPaddingReportsLabelAtStart(t *testing.T) {
	spans := []warehouse.SessionSpan{span("S1", domain.SessionStructured, 0, 10)}
	segments := []warehouse.SessionSegment{
		seg("S1", domain.SessionStructured, 0, 5, 42),
		seg("S1", domain.SessionStructured, 5, 10),
	}

	got := NullPadding(spans, segments, false)
	want := []Violation{{
		SubjectID:  "S1",
		Session:    domain.SessionStructured,
		At:         sec(0),
		Reason:     ReasonLabelAtStart,
		ExerciseID: domain.Exercise(42),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
}

func TestNullPaddingReportsLabelAtEnd(t *testing.T) {
	spans := []warehouse.SessionSpan{span("S2", domain.SessionUnstructured, 0, 10)}
	segments := []warehouse.SessionSegment{
		seg("S2", domain.SessionUnstructured, 0, 4),
		seg("S2", domain.SessionUnstructured, 4, 10, 7),
	}

	got := NullPadding(spans, segments, false)
	require.Len(t, got, 1)
	require.Equal(t, ReasonLabelAtEnd, got[0].Reason)
	require.True(t, got[0].At.Equal(sec(10)))
}

func TestNullPaddingSingleLabeledSampleFlagsBothEnds(t *testing.T) {
	spans := []warehouse.SessionSpan{span("S1", domain.SessionStructured, 0, 0)}
	segments := []warehouse.SessionSegment{seg("S1", domain.SessionStructured, 0, 0, 42)}

	got := NullPadding(spans, segments, false)
	require.Len(t, got, 2)
	require.Equal(t, ReasonLabelAtStart, got[0].Reason)
	require.Equal(t, ReasonLabelAtEnd, got[1].Reason)
}

func TestNullPaddingUsesLabelInEffectAtBoundary(t *testing.T) {
	spans := []warehouse.SessionSpan{span("S1", domain.SessionStructured, 0, 10)}
	segments := []warehouse.SessionSegment{
		seg("S1", domain.SessionStructured, 0, 10, 3),
		seg("S1", domain.SessionStructured, 10, 10),
	}

	got := NullPadding(spans, segments, false)
	require.Len(t, got, 1, "the rest segment starting at the last sample is the one in effect")
	require.Equal(t, ReasonLabelAtStart, got[0].Reason)
}

func TestNullPaddingCoveragePolicy(t *testing.T) {
	spans := []warehouse.SessionSpan{span("S1", domain.SessionStructured, 0, 10)}
	segments := []warehouse.SessionSegment{seg("S1", domain.SessionStructured, 2, 8, 5)}

	require.Empty(t, NullPadding(spans, segments, false))

	got := NullPadding(spans, segments, true)
	require.Len(t, got, 2)
	require.Equal(t, ReasonNoLabelAtStart, got[0].Reason)
	require.Equal(t, ReasonNoLabelAtEnd, got[1].Reason)
}

func TestNullPaddingIgnoresOtherSessions(t *testing.T) {
	spans := []warehouse.SessionSpan{span("S1", domain.SessionStructured, 0, 10)}
	segments := []warehouse.SessionSegment{
		seg("S1", domain.SessionUnstructured, 0, 10, 9),
		seg("S2", domain.SessionStructured, 0, 10, 9),
	}
	require.Empty(t, NullPadding(spans, segments, false))
}

func TestSessionSeparation(t *testing.T) {
	spans := []warehouse.SessionSpan{
		span("A", domain.SessionStructured, 0, 10),
		span("A", domain.SessionUnstructured, 9, 20),
		span("B", domain.SessionStructured, 0, 10),
		span("B", domain.SessionUnstructured, 11, 20),
		span("C", domain.SessionStructured, 0, 10),
		span("C", domain.SessionUnstructured, 10, 20),
		span("D", domain.SessionUnstructured, 0, 5),
	}

	got := SessionSeparation(spans)
	require.Len(t, got, 2)
	require.Equal(t, "A", got[0].SubjectID)
	require.True(t, got[0].StructuredEnd.Equal(sec(10)))
	require.True(t, got[0].UnstructuredStart.Equal(sec(9)))
	require.Equal(t, "C", got[1].SubjectID, "touching sessions overlap")
}

func TestLimitsExceeds(t *testing.T) {
	limits := DefaultLimits()
	require.InDelta(t, 78.4532, limits.Accel, 1e-9)

	_, _, bad := limits.Exceeds(domain.IMUSample{AX: domain.Reading(78.45), GZ: domain.Reading(-2000.5)})
	require.False(t, bad)

	accel, gyro, bad := limits.Exceeds(domain.IMUSample{AX: domain.Reading(100), GY: domain.Reading(-3)})
	require.True(t, bad)
	require.Equal(t, 100.0, accel)
	require.Equal(t, 3.0, gyro)

	_, gyro, bad = limits.Exceeds(domain.IMUSample{GZ: domain.Reading(-2001.5)})
	require.True(t, bad)
	require.Equal(t, 2001.5, gyro)

	_, _, bad = limits.Exceeds(domain.IMUSample{})
	require.False(t, bad, "missing readings never exceed")
}

func TestLimitsWithDefaults(t *testing.T) {
	require.Equal(t, DefaultLimits(), Limits{}.WithDefaults())
	require.Equal(t, Limits{Accel: 20, Gyro: DefaultGyroLimit}, Limits{Accel: 20}.WithDefaults())
}

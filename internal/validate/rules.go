package validate

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"
	"time"

	"example.com/reps/internal/domain"
	"example.com/reps/internal/warehouse"
)

// Rule names.
const (
	RuleNullPadding       = "null_padding"
	RuleSessionSeparation = "session_separation"
	RulePhysicalLimits    = "physical_limits"
)

// Null padding reasons.
const (
	ReasonLabelAtStart   = "label_at_start"
	ReasonLabelAtEnd     = "label_at_end"
	ReasonNoLabelAtStart = "no_label_at_start"
	ReasonNoLabelAtEnd   = "no_label_at_end"
)

// Violation is one offending subject, session or sample. Fields not relevant to the
// reporting rule are left zero.
type Violation struct {
	SubjectID string         `json:"subject_id"`
	Session   domain.Session `json:"session,omitempty"`
	At        time.Time      `json:"at"`

	Reason     string        `json:"reason,omitempty"`
	ExerciseID sql.NullInt32 `json:"-"`

	StructuredEnd     time.Time `json:"structured_end,omitzero"`
	UnstructuredStart time.Time `json:"unstructured_start,omitzero"`

	AccelMax float64 `json:"accel_max,omitempty"`
	GyroMax  float64 `json:"gyro_max,omitempty"`
}

// Rule checks one warehouse invariant.
type Rule struct {
	Name   string
	Header string
	Check  func(ctx context.Context, src Source) ([]Violation, error)
	Line   func(v Violation, names Namer) string
}

// NullPaddingRule requires every recording to begin and end at rest. With requireCoverage an
// instant that no label segment covers is reported too; otherwise it counts as rest.
func NullPaddingRule(requireCoverage bool) Rule {
	return Rule{
		Name:   RuleNullPadding,
		Header: "Labels present at start/end of recording:",
		Check: func(ctx context.Context, src Source) ([]Violation, error) {
			spans, err := src.SessionSpans(ctx)
			if err != nil {
				return nil, err
			}
			segments, err := src.LabelSegments(ctx)
			if err != nil {
				return nil, err
			}
			return NullPadding(spans, segments, requireCoverage), nil
		},
		Line: func(v Violation, names Namer) string {
			line := fmt.Sprintf("subject=%s session=%s reason=%s ts=%s", v.SubjectID, v.Session, v.Reason, formatTime(v.At))
			if v.ExerciseID.Valid {
				line += fmt.Sprintf(" exercise=%d (%s)", v.ExerciseID.Int32, names.Name(v.ExerciseID.Int32))
			}
			return line
		},
	}
}

// SessionSeparationRule requires the structured session to end before the unstructured one starts.
func SessionSeparationRule() Rule {
	return Rule{
		Name:   RuleSessionSeparation,
		Header: "Structured/unstructured overlap:",
		Check: func(ctx context.Context, src Source) ([]Violation, error) {
			spans, err := src.SessionSpans(ctx)
			if err != nil {
				return nil, err
			}
			return SessionSeparation(spans), nil
		},
		Line: func(v Violation, _ Namer) string {
			return fmt.Sprintf("subject=%s structured_end=%s unstructured_start=%s",
				v.SubjectID, formatTime(v.StructuredEnd), formatTime(v.UnstructuredStart))
		},
	}
}

// PhysicalLimitsRule flags every stored sample beyond the sensor limits.
func PhysicalLimitsRule(limits Limits) Rule {
	return Rule{
		Name:   RulePhysicalLimits,
		Header: "Sensor saturation (>8 g or >2000 °/s):",
		Check: func(ctx context.Context, src Source) ([]Violation, error) {
			var out []Violation
			err := src.ScanIMU(ctx, func(s warehouse.SessionSample) error {
				accel, gyro, bad := limits.Exceeds(s.IMUSample)
				if bad {
					out = append(out, Violation{
						SubjectID: s.SubjectID,
						Session:   s.Session,
						At:        s.Timestamp,
						AccelMax:  accel,
						GyroMax:   gyro,
					})
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			slices.SortStableFunc(out, func(a, b Violation) int {
				return cmp.Or(cmp.Compare(a.SubjectID, b.SubjectID), a.At.Compare(b.At), cmp.Compare(a.Session, b.Session))
			})
			return out, nil
		},
		Line: func(v Violation, _ Namer) string {
			return fmt.Sprintf("subject=%s session=%s ts=%s acc_max=%.4f gyro_max=%.4f",
				v.SubjectID, v.Session, formatTime(v.At), v.AccelMax, v.GyroMax)
		},
	}
}

// DefaultRules returns the full rule set in reporting order.
func DefaultRules(limits Limits, requireCoverage bool) []Rule {
	return []Rule{
		NullPaddingRule(requireCoverage),
		SessionSeparationRule(),
		PhysicalLimitsRule(limits),
	}
}

type sessionKey struct {
	subject string
	session domain.Session
}

// NullPadding checks the label in effect at the first and last sample of every subject session.
// The label in effect at t is the segment with the latest start among those covering t.
func NullPadding(spans []warehouse.SessionSpan, segments []warehouse.SessionSegment, requireCoverage bool) []Violation {
	bySession := make(map[sessionKey][]warehouse.SessionSegment)
	for _, seg := range segments {
		k := sessionKey{seg.SubjectID, seg.Session}
		bySession[k] = append(bySession[k], seg)
	}

	var out []Violation
	for _, span := range spans {
		segs := bySession[sessionKey{span.SubjectID, span.Session}]
		checks := []struct {
			at               time.Time
			labeled, missing string
		}{
			{span.First, ReasonLabelAtStart, ReasonNoLabelAtStart},
			{span.Last, ReasonLabelAtEnd, ReasonNoLabelAtEnd},
		}
		for _, c := range checks {
			seg, ok := inEffect(segs, c.at)
			v := Violation{SubjectID: span.SubjectID, Session: span.Session, At: c.at}
			switch {
			case ok && seg.ExerciseID.Valid:
				v.Reason = c.labeled
				v.ExerciseID = seg.ExerciseID
			case !ok && requireCoverage:
				v.Reason = c.missing
			default:
				continue
			}
			out = append(out, v)
		}
	}

	slices.SortStableFunc(out, func(a, b Violation) int {
		return cmp.Or(cmp.Compare(a.SubjectID, b.SubjectID), cmp.Compare(a.Session, b.Session), a.At.Compare(b.At))
	})
	return out
}

func inEffect(segments []warehouse.SessionSegment, t time.Time) (warehouse.SessionSegment, bool) {
	var (
		best  warehouse.SessionSegment
		found bool
	)
	for _, seg := range segments {
		if seg.Start.After(t) || seg.End.Before(t) {
			continue
		}
		if !found || !seg.Start.Before(best.Start) {
			best, found = seg, true
		}
	}
	return best, found
}

// SessionSeparation flags subjects whose structured session ends at or after the start of
// their unstructured session. Subjects with a single session are never flagged.
func SessionSeparation(spans []warehouse.SessionSpan) []Violation {
	type bounds struct {
		structuredEnd, unstructuredStart time.Time
		hasStructured, hasUnstructured    bool
	}
	bySubject := make(map[string]*bounds)
	for _, span := range spans {
		b, ok := bySubject[span.SubjectID]
		if !ok {
			b = &bounds{}
			bySubject[span.SubjectID] = b
		}
		switch span.Session {
		case domain.SessionStructured:
			if !b.hasStructured || span.Last.After(b.structuredEnd) {
				b.structuredEnd = span.Last
			}
			b.hasStructured = true
		case domain.SessionUnstructured:
			if !b.hasUnstructured || span.First.Before(b.unstructuredStart) {
				b.unstructuredStart = span.First
			}
			b.hasUnstructured = true
		}
	}

	var out []Violation
	for subject, b := range bySubject {
		if !b.hasStructured || !b.hasUnstructured || b.structuredEnd.Before(b.unstructuredStart) {
			continue
		}
		out = append(out, Violation{
			SubjectID:         subject,
			At:                b.unstructuredStart,
			StructuredEnd:     b.structuredEnd,
			UnstructuredStart: b.unstructuredStart,
		})
	}
	slices.SortFunc(out, func(a, b Violation) int { return cmp.Compare(a.SubjectID, b.SubjectID) })
	return out
}

// StandardGravity in m/s².
const StandardGravity = 9.80665

// Default sensor limits. The gyroscope saturates at 2000 °/s; stored values overshoot slightly.
const (
	DefaultAccelLimit = 8 * StandardGravity
	DefaultGyroLimit  = 2001.0
)

// Limits are the largest per-axis magnitudes a sample may carry.
type Limits struct {
	Accel float64
	Gyro  float64
}

// DefaultLimits returns the standard sensor limits.
func DefaultLimits() Limits {
	return Limits{Accel: DefaultAccelLimit, Gyro: DefaultGyroLimit}
}

// WithDefaults replaces unset limits with the defaults.
func (l Limits) WithDefaults() Limits {
	if l.Accel <= 0 {
		l.Accel = DefaultAccelLimit
	}
	if l.Gyro <= 0 {
		l.Gyro = DefaultGyroLimit
	}
	return l
}

// Exceeds returns the largest absolute accelerometer and gyroscope readings of s and whether
// either is beyond its limit. Missing readings are ignored.
func (l Limits) Exceeds(s domain.IMUSample) (accelMax, gyroMax float64, exceeded bool) {
	accelMax = maxAbs(s.AX, s.AY, s.AZ)
	gyroMax = maxAbs(s.GX, s.GY, s.GZ)
	return accelMax, gyroMax, accelMax > l.Accel || gyroMax > l.Gyro
}

func maxAbs(values ...sql.NullFloat64) float64 {
	var m float64
	for _, v := range values {
		if v.Valid {
			m = math.Max(m, math.Abs(v.Float64))
		}
	}
	return m
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.000000")
}

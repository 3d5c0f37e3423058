// Package processing turns raw sensor and label streams into the uniform series stored in the warehouse.
package processing

import (
	"database/sql"
	"slices"
	"time"

	"example.com/reps/internal/domain"
)

// Step is the fixed period of the aligned timeline.
const Step = 10 * time.Millisecond

// MaxSpan bounds the time covered by one subject's recordings. A longer extent means a
// corrupt timestamp and would otherwise allocate one row per Step across it.
const MaxSpan = 24 * time.Hour

// AlignStats describes how the raw inputs mapped onto the aligned timeline.
type AlignStats struct {
	AccelRows int
	GyroRows  int
	Merged    int // distinct timestamps after the outer join
	OffGrid   int // merged timestamps that do not fall on the timeline
	Timeline  int
}

type column func(*domain.IMUSample) *sql.NullFloat64

var (
	accelColumns = []column{
		func(s *domain.IMUSample) *sql.NullFloat64 { return &s.AX },
		func(s *domain.IMUSample) *sql.NullFloat64 { return &s.AY },
		func(s *domain.IMUSample) *sql.NullFloat64 { return &s.AZ },
	}
	gyroColumns = []column{
		func(s *domain.IMUSample) *sql.NullFloat64 { return &s.GX },
		func(s *domain.IMUSample) *sql.NullFloat64 { return &s.GY },
		func(s *domain.IMUSample) *sql.NullFloat64 { return &s.GZ },
	}
)

// Align merges the accelerometer and gyroscope streams onto one timeline with a fixed Step.
//
// Both streams must be non-empty; Align returns nil otherwise.
func Align(accel []domain.RawAccelSample, gyro []domain.RawGyroSample) []domain.IMUSample {
	out, _ := AlignWithStats(accel, gyro)
	return out
}

// Extent returns the earliest and latest timestamps across both streams.
// ok is false when either stream is empty.
func Extent(accel []domain.RawAccelSample, gyro []domain.RawGyroSample) (first, last time.Time, ok bool) {
	if len(accel) == 0 || len(gyro) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = accel[0].Timestamp, accel[0].Timestamp
	widen := func(ts time.Time) {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	for _, s := range accel {
		widen(s.Timestamp)
	}
	for _, s := range gyro {
		widen(s.Timestamp)
	}
	return first, last, true
}

// AlignWithStats is Align that also reports how many joined rows fell off the timeline.
func AlignWithStats(accel []domain.RawAccelSample, gyro []domain.RawGyroSample) ([]domain.IMUSample, AlignStats) {
	stats := AlignStats{AccelRows: len(accel), GyroRows: len(gyro)}
	if len(accel) == 0 || len(gyro) == 0 {
		return nil, stats
	}

	merged := outerJoin(accel, gyro)
	keys := make([]int64, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	stats.Merged = len(keys)

	start := merged[keys[0]].Timestamp
	span := time.Duration(keys[len(keys)-1] - keys[0])
	n := int(span/Step) + 1
	stats.Timeline = n

	out := make([]domain.IMUSample, n)
	matched := 0
	for i := range out {
		ts := start.Add(time.Duration(i) * Step)
		if row, ok := merged[ts.UnixNano()]; ok {
			out[i] = row
			matched++
		}
		out[i].Timestamp = ts
	}
	stats.OffGrid = len(keys) - matched

	for _, col := range accelColumns {
		interpolate(out, col)
	}
	for _, col := range append(slices.Clone(accelColumns), gyroColumns...) {
		forwardFill(out, col)
	}
	return out, stats
}

// outerJoin keys both streams by exact timestamp; the later observation wins on duplicates.
func outerJoin(accel []domain.RawAccelSample, gyro []domain.RawGyroSample) map[int64]domain.IMUSample {
	merged := make(map[int64]domain.IMUSample, max(len(accel), len(gyro)))
	for _, a := range accel {
		key := a.Timestamp.UnixNano()
		row, ok := merged[key]
		if !ok {
			row.Timestamp = a.Timestamp
		}
		row.AX, row.AY, row.AZ = domain.Reading(a.X), domain.Reading(a.Y), domain.Reading(a.Z)
		merged[key] = row
	}
	for _, g := range gyro {
		key := g.Timestamp.UnixNano()
		row, ok := merged[key]
		if !ok {
			row.Timestamp = g.Timestamp
		}
		row.GX, row.GY, row.GZ = domain.Reading(g.X), domain.Reading(g.Y), domain.Reading(g.Z)
		merged[key] = row
	}
	return merged
}

// interpolate fills interior gaps linearly by position. Leading and trailing gaps are left alone.
func interpolate(rows []domain.IMUSample, col column) {
	prev := -1
	for i := range rows {
		cur := col(&rows[i])
		if !cur.Valid {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			lo := col(&rows[prev]).Float64
			hi := cur.Float64
			width := float64(i - prev)
			for k := prev + 1; k < i; k++ {
				frac := float64(k-prev) / width
				*col(&rows[k]) = domain.Reading(lo + (hi-lo)*frac)
			}
		}
		prev = i
	}
}

func forwardFill(rows []domain.IMUSample, col column) {
	var last sql.NullFloat64
	for i := range rows {
		cur := col(&rows[i])
		if cur.Valid {
			last = *cur
			continue
		}
		if last.Valid {
			*cur = last
		}
	}
}

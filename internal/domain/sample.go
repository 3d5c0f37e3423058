package domain

import (
	"database/sql"
	"time"
)

// RawAccelSample is one accelerometer observation as read from the raw files.
type RawAccelSample struct {
	Timestamp time.Time
	X, Y, Z   float64
}

// RawGyroSample is one gyroscope observation as read from the raw files.
type RawGyroSample struct {
	Timestamp time.Time
	X, Y, Z   float64
}

// RawLabelSample is one exercise-label observation. An invalid ExerciseID means rest.
type RawLabelSample struct {
	Timestamp  time.Time
	ExerciseID sql.NullInt32
}

// IMUSample is a row of the aligned accelerometer + gyroscope series.
// Readings stay invalid when no value precedes them on the timeline.
type IMUSample struct {
	SubjectID  string
	Timestamp  time.Time
	AX, AY, AZ sql.NullFloat64
	GX, GY, GZ sql.NullFloat64
}

// LabelSegment is a maximal time span during which the exercise label did not change.
type LabelSegment struct {
	SubjectID  string
	Start      time.Time
	End        time.Time
	ExerciseID sql.NullInt32
}

// Exercise returns a valid exercise id.
func Exercise(code int32) sql.NullInt32 {
	return sql.NullInt32{Int32: code, Valid: true}
}

// Rest returns the id used for unlabeled stretches.
func Rest() sql.NullInt32 {
	return sql.NullInt32{}
}

// NormalizeExercise zeroes the payload of invalid ids so that rest always compares equal to rest.
func NormalizeExercise(id sql.NullInt32) sql.NullInt32 {
	if !id.Valid {
		return sql.NullInt32{}
	}
	return id
}

// Reading wraps a present sensor value.
func Reading(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

package rawdata

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"example.com/reps/internal/domain"
)

// Column names used by the raw recordings.
const (
	ColTimestamp = "Timestamp"
	ColExercise  = "Exercise"
)

var (
	accelColumns = []string{"Accelerometer_X", "Accelerometer_Y", "Accelerometer_Z"}
	gyroColumns  = []string{"Gyroscope_X", "Gyroscope_Y", "Gyroscope_Z"}
)

// timestamps carry up to seven fractional digits; only microseconds are kept.
const timestampWidth = 26

// Sensor columns are optional because dataframe writers mark every column nullable;
// a null reading is rejected rather than decoded as zero.
type accelRow struct {
	Timestamp string   `parquet:"Timestamp"`
	X         *float64 `parquet:"Accelerometer_X,optional"`
	Y         *float64 `parquet:"Accelerometer_Y,optional"`
	Z         *float64 `parquet:"Accelerometer_Z,optional"`
}

type gyroRow struct {
	Timestamp string   `parquet:"Timestamp"`
	X         *float64 `parquet:"Gyroscope_X,optional"`
	Y         *float64 `parquet:"Gyroscope_Y,optional"`
	Z         *float64 `parquet:"Gyroscope_Z,optional"`
}

type labelRow struct {
	Timestamp string   `parquet:"Timestamp"`
	Exercise  *float64 `parquet:"Exercise,optional"`
}

// intLabelRow reads label files whose Exercise column was written as an integer.
type intLabelRow struct {
	Timestamp string `parquet:"Timestamp"`
	Exercise  *int64 `parquet:"Exercise,optional"`
}

// Reader decodes raw files into typed samples. Naive timestamps are interpreted in the
// reader's location and returned in UTC.
type Reader struct {
	location *time.Location
}

// NewReader constructs a Reader. A nil location means UTC.
func NewReader(location *time.Location) *Reader {
	if location == nil {
		location = time.UTC
	}
	return &Reader{location: location}
}

// ReadAccel decodes an accelerometer file.
func (r *Reader) ReadAccel(path string) ([]domain.RawAccelSample, error) {
	if isParquet(path) {
		rows, err := readParquet[accelRow](path, append([]string{ColTimestamp}, accelColumns...))
		if err != nil {
			return nil, err
		}
		out := make([]domain.RawAccelSample, 0, len(rows))
		for i, row := range rows {
			ts, err := r.parseTimestamp(row.Timestamp)
			if err != nil {
				return nil, malformed(path, i, err)
			}
			xyz, err := readings(accelColumns, row.X, row.Y, row.Z)
			if err != nil {
				return nil, malformed(path, i, err)
			}
			out = append(out, domain.RawAccelSample{Timestamp: ts, X: xyz[0], Y: xyz[1], Z: xyz[2]})
		}
		return out, nil
	}

	var out []domain.RawAccelSample
	err := r.readCSV(path, accelColumns, func(ts time.Time, values []string) error {
		xyz, err := parseFloats(values)
		if err != nil {
			return err
		}
		out = append(out, domain.RawAccelSample{Timestamp: ts, X: xyz[0], Y: xyz[1], Z: xyz[2]})
		return nil
	})
	return out, err
}

// ReadGyro decodes a gyroscope file.
func (r *Reader) ReadGyro(path string) ([]domain.RawGyroSample, error) {
	if isParquet(path) {
		rows, err := readParquet[gyroRow](path, append([]string{ColTimestamp}, gyroColumns...))
		if err != nil {
			return nil, err
		}
		out := make([]domain.RawGyroSample, 0, len(rows))
		for i, row := range rows {
			ts, err := r.parseTimestamp(row.Timestamp)
			if err != nil {
				return nil, malformed(path, i, err)
			}
			xyz, err := readings(gyroColumns, row.X, row.Y, row.Z)
			if err != nil {
				return nil, malformed(path, i, err)
			}
			out = append(out, domain.RawGyroSample{Timestamp: ts, X: xyz[0], Y: xyz[1], Z: xyz[2]})
		}
		return out, nil
	}

	var out []domain.RawGyroSample
	err := r.readCSV(path, gyroColumns, func(ts time.Time, values []string) error {
		xyz, err := parseFloats(values)
		if err != nil {
			return err
		}
		out = append(out, domain.RawGyroSample{Timestamp: ts, X: xyz[0], Y: xyz[1], Z: xyz[2]})
		return nil
	})
	return out, err
}

// ReadLabels decodes a label file and returns it sorted by timestamp.
func (r *Reader) ReadLabels(path string) ([]domain.RawLabelSample, error) {
	var out []domain.RawLabelSample
	if isParquet(path) {
		var err error
		out, err = r.readParquetLabels(path)
		if err != nil {
			return nil, err
		}
	} else {
		err := r.readCSV(path, []string{ColExercise}, func(ts time.Time, values []string) error {
			id, err := parseExercise(values[0])
			if err != nil {
				return err
			}
			out = append(out, domain.RawLabelSample{Timestamp: ts, ExerciseID: id})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	slices.SortStableFunc(out, func(a, b domain.RawLabelSample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

func (r *Reader) readParquetLabels(path string) ([]domain.RawLabelSample, error) {
	columns := []string{ColTimestamp, ColExercise}
	kind, err := columnKind(path, ColExercise)
	if err != nil {
		return nil, err
	}

	type labelValue struct {
		timestamp string
		exercise  *float64
	}
	var values []labelValue
	switch kind {
	case parquet.Int32, parquet.Int64:
		rows, err := readParquet[intLabelRow](path, columns)
		if err != nil {
			return nil, err
		}
		values = make([]labelValue, 0, len(rows))
		for _, row := range rows {
			v := labelValue{timestamp: row.Timestamp}
			if row.Exercise != nil {
				f := float64(*row.Exercise)
				v.exercise = &f
			}
			values = append(values, v)
		}
	default:
		rows, err := readParquet[labelRow](path, columns)
		if err != nil {
			return nil, err
		}
		values = make([]labelValue, 0, len(rows))
		for _, row := range rows {
			values = append(values, labelValue{timestamp: row.Timestamp, exercise: row.Exercise})
		}
	}

	out := make([]domain.RawLabelSample, 0, len(values))
	for i, v := range values {
		ts, err := r.parseTimestamp(v.timestamp)
		if err != nil {
			return nil, malformed(path, i, err)
		}
		id, err := exerciseFromFloat(v.exercise)
		if err != nil {
			return nil, malformed(path, i, err)
		}
		out = append(out, domain.RawLabelSample{Timestamp: ts, ExerciseID: id})
	}
	return out, nil
}

func (r *Reader) parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC(), nil
	}
	if len(raw) > timestampWidth {
		raw = raw[:timestampWidth]
	}
	layout := "2006-01-02 15:04:05"
	if strings.Contains(raw, "T") {
		layout = "2006-01-02T15:04:05"
	}
	ts, err := time.ParseInLocation(layout, raw, r.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func (r *Reader) readCSV(path string, columns []string, emit func(time.Time, []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrMissingInput, path)
		}
		return err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("%w: %s: read header: %v", domain.ErrMalformedInput, path, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	positions := make([]int, 0, len(columns)+1)
	for _, name := range append([]string{ColTimestamp}, columns...) {
		pos, ok := index[name]
		if !ok {
			return fmt.Errorf("%w: %s: missing column %s", domain.ErrMalformedInput, path, name)
		}
		positions = append(positions, pos)
	}

	values := make([]string, len(columns))
	for row := 0; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return malformed(path, row, err)
		}
		ts, err := r.parseTimestamp(record[positions[0]])
		if err != nil {
			return malformed(path, row, err)
		}
		for i, pos := range positions[1:] {
			values[i] = record[pos]
		}
		if err := emit(ts, values); err != nil {
			return malformed(path, row, err)
		}
	}
}

func openParquet(path string) (*os.File, *parquet.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrMissingInput, path)
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, path, err)
	}
	return f, pf, nil
}

// columnKind reports the physical type of a leaf column.
func columnKind(path, name string) (parquet.Kind, error) {
	f, pf, err := openParquet(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	leaf, ok := pf.Schema().Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s: missing column %s", domain.ErrMalformedInput, path, name)
	}
	return leaf.Node.Type().Kind(), nil
}

func readParquet[T any](path string, columns []string) ([]T, error) {
	f, pf, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, name := range columns {
		if _, ok := pf.Schema().Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %s: missing column %s", domain.ErrMalformedInput, path, name)
		}
	}

	rows := make([]T, pf.NumRows())
	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()
	total := 0
	for total < len(rows) {
		n, err := reader.Read(rows[total:])
		total += n
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, path, err)
		}
	}
	return rows[:total], nil
}

func parseFloats(values []string) ([3]float64, error) {
	var out [3]float64
	for i, v := range values[:3] {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return out, err
		}
		out[i] = f
	}
	return out, nil
}

func readings(columns []string, values ...*float64) ([3]float64, error) {
	var out [3]float64
	for i, v := range values[:3] {
		if v == nil {
			return out, fmt.Errorf("missing %s reading", columns[i])
		}
		out[i] = *v
	}
	return out, nil
}

func parseExercise(raw string) (sql.NullInt32, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "na", "nan", "null", "none":
		return domain.Rest(), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return sql.NullInt32{}, fmt.Errorf("parse exercise %q: %w", raw, err)
	}
	return exerciseFromFloat(&f)
}

func exerciseFromFloat(v *float64) (sql.NullInt32, error) {
	if v == nil || math.IsNaN(*v) {
		return domain.Rest(), nil
	}
	if *v != math.Trunc(*v) || *v < math.MinInt32 || *v > math.MaxInt32 {
		return sql.NullInt32{}, fmt.Errorf("exercise code %v is not an integer", *v)
	}
	return domain.Exercise(int32(*v)), nil
}

func isParquet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".parquet")
}

func malformed(path string, row int, err error) error {
	return fmt.Errorf("%w: %s row %d: %v", domain.ErrMalformedInput, path, row, err)
}

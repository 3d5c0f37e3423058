package processing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/reps/internal/domain"
)

var t0 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func at(i int) time.Time {
	return t0.Add(time.Duration(i) * Step)
}

func accelAt(i int, v float64) domain.RawAccelSample {
	return domain.RawAccelSample{Timestamp: at(i), X: v, Y: v, Z: v}
}

func gyroAt(i int, v float64) domain.RawGyroSample {
	return domain.RawGyroSample{Timestamp: at(i), X: v, Y: v, Z: v}
}

func TestAlignSingleSharedTimestamp(t *testing.T) {
	out := Align(
		[]domain.RawAccelSample{{Timestamp: t0, X: 1, Y: 1, Z: 1}},
		[]domain.RawGyroSample{{Timestamp: t0, X: 2, Y: 2, Z: 2}},
	)

	require.Len(t, out, 1)
	require.True(t, out[0].Timestamp.Equal(t0))
	for _, v := range []float64{out[0].AX.Float64, out[0].AY.Float64, out[0].AZ.Float64} {
		require.Equal(t, 1.0, v)
	}
	for _, v := range []float64{out[0].GX.Float64, out[0].GY.Float64, out[0].GZ.Float64} {
		require.Equal(t, 2.0, v)
	}
}

func TestAlignProducesContiguousTimeline(t *testing.T) {
	accel := make([]domain.RawAccelSample, 0, 10)
	gyro := make([]domain.RawGyroSample, 0, 10)
	for i := 0; i < 10; i++ {
		accel = append(accel, accelAt(i, float64(i)))
		gyro = append(gyro, gyroAt(i, float64(i)))
	}

	out := Align(accel, gyro)

	require.Len(t, out, 10)
	for i := 1; i < len(out); i++ {
		require.Equal(t, Step, out[i].Timestamp.Sub(out[i-1].Timestamp))
	}
}

func TestAlignCoversBothStreamsSpan(t *testing.T) {
	// gyro starts earlier and accel ends later; the timeline spans both.
	accel := []domain.RawAccelSample{accelAt(3, 1), accelAt(9, 1)}
	gyro := []domain.RawGyroSample{gyroAt(0, 5), gyroAt(4, 6)}

	out, stats := AlignWithStats(accel, gyro)

	require.Len(t, out, 10)
	require.True(t, out[0].Timestamp.Equal(at(0)))
	require.True(t, out[9].Timestamp.Equal(at(9)))
	require.Equal(t, 4, stats.Merged)
	require.Zero(t, stats.OffGrid)
	require.Equal(t, 10, stats.Timeline)
}

func TestAlignInterpolatesInteriorAccelGaps(t *testing.T) {
	accel := []domain.RawAccelSample{accelAt(0, 0), accelAt(4, 8)}
	gyro := []domain.RawGyroSample{gyroAt(0, 1), gyroAt(4, 1)}

	out := Align(accel, gyro)

	require.Len(t, out, 5)
	require.InDelta(t, 2.0, out[1].AX.Float64, 1e-9)
	require.InDelta(t, 4.0, out[2].AY.Float64, 1e-9)
	require.InDelta(t, 6.0, out[3].AZ.Float64, 1e-9)
	for i := 1; i < 4; i++ {
		require.True(t, out[i].AX.Valid)
		require.Greater(t, out[i].AX.Float64, 0.0)
		require.Less(t, out[i].AX.Float64, 8.0)
	}
}

func TestAlignForwardFillsGyro(t *testing.T) {
	accel := []domain.RawAccelSample{accelAt(0, 0), accelAt(3, 3)}
	gyro := []domain.RawGyroSample{gyroAt(0, 7)}

	out := Align(accel, gyro)

	require.Len(t, out, 4)
	for _, row := range out {
		require.True(t, row.GX.Valid)
		require.Equal(t, 7.0, row.GX.Float64)
	}
}

func TestAlignLeavesLeadingNullsAndFillsTrailing(t *testing.T) {
	accel := []domain.RawAccelSample{accelAt(2, 4)}
	gyro := []domain.RawGyroSample{gyroAt(0, 1), gyroAt(4, 2)}

	out := Align(accel, gyro)

	require.Len(t, out, 5)
	require.False(t, out[0].AX.Valid)
	require.False(t, out[1].AX.Valid)
	require.Equal(t, 4.0, out[2].AX.Float64)
	// trailing accel nulls are not interpolated but forward filled
	require.Equal(t, 4.0, out[3].AX.Float64)
	require.Equal(t, 4.0, out[4].AX.Float64)
	// gyro between its two observations carries the earlier value
	require.Equal(t, 1.0, out[3].GX.Float64)
	require.Equal(t, 2.0, out[4].GX.Float64)
}

func TestAlignDropsOffGridObservations(t *testing.T) {
	accel := []domain.RawAccelSample{
		accelAt(0, 1),
		{Timestamp: at(1).Add(3 * time.Millisecond), X: 100, Y: 100, Z: 100},
		accelAt(2, 3),
	}
	gyro := []domain.RawGyroSample{gyroAt(0, 0)}

	out, stats := AlignWithStats(accel, gyro)

	require.Len(t, out, 3)
	require.Equal(t, 1, stats.OffGrid)
	require.InDelta(t, 2.0, out[1].AX.Float64, 1e-9)
}

func TestAlignIsDeterministic(t *testing.T) {
	accel := []domain.RawAccelSample{accelAt(5, 1), accelAt(0, 2), accelAt(2, 3)}
	gyro := []domain.RawGyroSample{gyroAt(4, 1), gyroAt(1, 2)}

	require.Equal(t, Align(accel, gyro), Align(accel, gyro))
}

func TestAlignEmptyStream(t *testing.T) {
	require.Nil(t, Align(nil, []domain.RawGyroSample{gyroAt(0, 1)}))
}

func TestExtentCoversBothStreams(t *testing.T) {
	accel := []domain.RawAccelSample{accelAt(3, 0), accelAt(1, 0)}
	gyro := []domain.RawGyroSample{{Timestamp: at(7)}, {Timestamp: at(2)}}

	first, last, ok := Extent(accel, gyro)
	require.True(t, ok)
	require.Equal(t, at(1), first)
	require.Equal(t, at(7), last)

	_, _, ok = Extent(accel, nil)
	require.False(t, ok)
}

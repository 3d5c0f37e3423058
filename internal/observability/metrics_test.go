package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordSubjectCountsByResult(t *testing.T) {
	before := testutil.ToFloat64(subjectsIngested.WithLabelValues(ResultFailure))
	RecordSubject(ResultFailure, 20*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(subjectsIngested.WithLabelValues(ResultFailure)))
}

func TestRecordAppendedPerSession(t *testing.T) {
	rows := testutil.ToFloat64(imuRowsAppended.WithLabelValues("structured"))
	segs := testutil.ToFloat64(segmentsAppended.WithLabelValues("structured"))

	RecordAppended("structured", 120, 4)

	require.Equal(t, rows+120, testutil.ToFloat64(imuRowsAppended.WithLabelValues("structured")))
	require.Equal(t, segs+4, testutil.ToFloat64(segmentsAppended.WithLabelValues("structured")))
}

func TestRecordOffGridIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(offGridSamples)
	RecordOffGrid(0)
	RecordOffGrid(3)
	require.Equal(t, before+3, testutil.ToFloat64(offGridSamples))
}

func TestRecordValidationSetsGauge(t *testing.T) {
	RecordValidation(time.Unix(1700000000, 0), map[string]int{"null_padding": 2, "physical_limits": 0})

	var m dto.Metric
	require.NoError(t, violationsGauge.WithLabelValues("null_padding").Write(&m))
	require.Equal(t, 2.0, m.GetGauge().GetValue())
	require.Equal(t, 0.0, testutil.ToFloat64(violationsGauge.WithLabelValues("physical_limits")))
	require.Equal(t, 1700000000.0, testutil.ToFloat64(lastValidationGauge))
}

func TestPushSendsToGateway(t *testing.T) {
	var path string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	require.NoError(t, Push(context.Background(), gateway.URL, "reps_ingest"))
	require.Equal(t, "/metrics/job/reps_ingest/instance/reps", path)
	require.NoError(t, Push(context.Background(), "", "ignored"))
}

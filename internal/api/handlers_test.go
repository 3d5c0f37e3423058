package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/reps/internal/exercises"
	"example.com/reps/internal/validate"
)

type mockValidator struct {
	report validate.Report
	err    error
	calls  int
}

func (m *mockValidator) Validate(context.Context) (validate.Report, error) {
	m.calls++
	return m.report, m.err
}

func newMux(t *testing.T, v Validator) *http.ServeMux {
	t.Helper()
	catalog, err := exercises.Parse([]byte("exercises:\n  - {code: 2, name: Row}\n  - {code: 1, name: Squat}\n"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(v, catalog, nil).RegisterRoutes(mux)
	return mux
}

func TestValidationReportsViolations(t *testing.T) {
	v := &mockValidator{report: validate.Report{
		RunID: "run-1",
		Results: []validate.RuleResult{
			{Rule: validate.RuleNullPadding, Header: "Labels present at start/end of recording:"},
			{
				Rule:       validate.RuleSessionSeparation,
				Header:     "Structured/unstructured overlap:",
				Violations: []validate.Violation{{SubjectID: "S1"}},
				Lines:      []string{"subject=S1"},
			},
		},
	}}

	rec := httptest.NewRecorder()
	newMux(t, v).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/validation", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ValidationView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.False(t, body.Clean)
	require.Equal(t, []string{"Structured/unstructured overlap:\nsubject=S1"}, body.Messages)
	require.Equal(t, "run-1", body.Report.RunID)
}

func TestValidationCleanReturnsEmptyMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(t, &mockValidator{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/validation", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, mustField(t, rec.Body.Bytes(), "messages"))
}

func TestValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(t, &mockValidator{err: errors.New("db gone")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/validation", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `"validation_failed"`, mustField(t, rec.Body.Bytes(), "type"))
}

func TestValidationRejectsPost(t *testing.T) {
	v := &mockValidator{}
	rec := httptest.NewRecorder()
	newMux(t, v).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/validation", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Zero(t, v.calls)
}

func TestExercisesListsCatalog(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(t, &mockValidator{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/exercises", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"code":1,"name":"Squat"},{"code":2,"name":"Row"}]`, mustField(t, rec.Body.Bytes(), "exercises"))
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(t, &mockValidator{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func mustField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &payload))
	raw, ok := payload[field]
	require.True(t, ok, "missing field %s", field)
	return string(raw)
}

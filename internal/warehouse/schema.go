package warehouse

import (
	"fmt"
	"strings"

	"example.com/reps/internal/domain"
)

// Dialect captures the DDL differences between backends.
type Dialect struct {
	Float     string
	Timestamp string
	// CreateView is the statement prefix used for the unified views.
	CreateView string
}

var (
	Postgres = Dialect{Float: "DOUBLE PRECISION", Timestamp: "TIMESTAMP", CreateView: "CREATE OR REPLACE VIEW"}
	SQLite   = Dialect{Float: "REAL", Timestamp: "TIMESTAMP", CreateView: "CREATE VIEW IF NOT EXISTS"}
)

// Names of the unified views.
const (
	IMUView   = "imu"
	LabelView = "labels"
)

// SchemaStatements returns the idempotent DDL for every session table, its indexes and the
// unified views. Statements are meant to run in order inside one transaction.
func SchemaStatements(d Dialect) []string {
	stmts := make([]string, 0, 16)
	for _, s := range domain.Sessions() {
		imu, lbl := s.IMUTable(), s.LabelTable()
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR,
    ts %s,
    ax %[3]s, ay %[3]s, az %[3]s,
    gx %[3]s, gy %[3]s, gz %[3]s
)`, imu, d.Timestamp, d.Float),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR,
    ts_start %s,
    ts_end %[2]s,
    exercise_id INTEGER
)`, lbl, d.Timestamp),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_id ON %[1]s (id)", imu),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ts ON %[1]s (ts)", imu),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_id ON %[1]s (id)", lbl),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ts_start ON %[1]s (ts_start)", lbl),
		)
	}
	return append(stmts, unifiedView(d, IMUView, imuSelect), unifiedView(d, LabelView, labelSelect))
}

func imuSelect(s domain.Session) string {
	return fmt.Sprintf("SELECT id AS subject_id, ts, ax, ay, az, gx, gy, gz, CAST('%s' AS TEXT) AS session FROM %s", s, s.IMUTable())
}

func labelSelect(s domain.Session) string {
	return fmt.Sprintf("SELECT id AS subject_id, ts_start, ts_end, exercise_id, CAST('%s' AS TEXT) AS session FROM %s", s, s.LabelTable())
}

func unifiedView(d Dialect, name string, sel func(domain.Session) string) string {
	parts := make([]string, 0, 2)
	for _, s := range domain.Sessions() {
		parts = append(parts, sel(s))
	}
	return fmt.Sprintf("%s %s AS\n%s", d.CreateView, name, strings.Join(parts, "\nUNION ALL\n"))
}

// Queries over the unified views, shared by every backend.
const (
	SpansQuery = `SELECT subject_id, session, MIN(ts), MAX(ts) FROM imu
GROUP BY subject_id, session
ORDER BY subject_id, session`

	SegmentsQuery = `SELECT subject_id, session, ts_start, ts_end, exercise_id FROM labels
ORDER BY subject_id, session, ts_start, ts_end`

	ScanQuery = `SELECT subject_id, session, ts, ax, ay, az, gx, gy, gz FROM imu
ORDER BY subject_id, session, ts`
)

// InsertStatement builds a positional INSERT for table; placeholder renders the n-th (1-based) parameter.
func InsertStatement(table string, columns []string, placeholder func(n int) string) string {
	params := make([]string, len(columns))
	for i := range columns {
		params[i] = placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(params, ", "))
}

// Package domain defines the subjects, sessions and sensor series handled by the warehouse pipeline.
package domain

import "fmt"

// Session identifies the recording protocol a label file belongs to.
type Session string

const (
	SessionStructured   Session = "structured"
	SessionUnstructured Session = "unstructured"
)

// Sessions returns every session kind in canonical order.
func Sessions() []Session {
	return []Session{SessionStructured, SessionUnstructured}
}

// ParseSession converts a stored session tag back into a Session.
func ParseSession(value string) (Session, error) {
	switch Session(value) {
	case SessionStructured, SessionUnstructured:
		return Session(value), nil
	default:
		return "", fmt.Errorf("unknown session %q", value)
	}
}

// IMUTable is the warehouse table holding the aligned series for the session.
func (s Session) IMUTable() string {
	return "imu_" + string(s)
}

// LabelTable is the warehouse table holding the label segments for the session.
func (s Session) LabelTable() string {
	return "labels_" + string(s)
}

// SubjectFiles lists the raw inputs discovered for one subject.
// Labels only carries sessions whose label file exists.
type SubjectFiles struct {
	SubjectID string
	AccelPath string
	GyroPath  string
	Labels    map[Session]string
}

// SessionsPresent returns the sessions with a label file, in canonical order.
func (f SubjectFiles) SessionsPresent() []Session {
	out := make([]Session, 0, len(f.Labels))
	for _, s := range Sessions() {
		if _, ok := f.Labels[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

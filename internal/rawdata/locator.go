// Package rawdata locates and decodes the per-subject raw sensor and label files.
package rawdata

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"example.com/reps/internal/domain"
)

// Extensions lists the raw file formats in lookup order.
var Extensions = []string{".parquet", ".csv"}

// Locator resolves raw file paths below a root directory laid out as
//
//	<root>/acc/REPS-<id>_acc.<ext>
//	<root>/gyro/REPS-<id>_gyro.<ext>
//	<root>/exercise_labels/<session>/REPS-<id>_labels.<ext>
type Locator struct {
	root string
}

// NewLocator constructs a Locator for the given raw root.
func NewLocator(root string) *Locator {
	return &Locator{root: root}
}

// Root returns the directory the locator searches.
func (l *Locator) Root() string {
	return l.root
}

// Locate finds the raw files for a subject. Missing sensor files yield domain.ErrMissingInput;
// missing label files only drop the session.
func (l *Locator) Locate(subjectID string) (domain.SubjectFiles, error) {
	files := domain.SubjectFiles{SubjectID: subjectID, Labels: make(map[domain.Session]string)}

	accel, ok := l.find(filepath.Join(l.root, "acc"), fmt.Sprintf("REPS-%s_acc", subjectID))
	if !ok {
		return domain.SubjectFiles{}, fmt.Errorf("%w: accelerometer file for subject %s under %s", domain.ErrMissingInput, subjectID, l.root)
	}
	gyro, ok := l.find(filepath.Join(l.root, "gyro"), fmt.Sprintf("REPS-%s_gyro", subjectID))
	if !ok {
		return domain.SubjectFiles{}, fmt.Errorf("%w: gyroscope file for subject %s under %s", domain.ErrMissingInput, subjectID, l.root)
	}
	files.AccelPath, files.GyroPath = accel, gyro

	for _, session := range domain.Sessions() {
		dir := filepath.Join(l.root, "exercise_labels", string(session))
		if path, ok := l.find(dir, fmt.Sprintf("REPS-%s_labels", subjectID)); ok {
			files.Labels[session] = path
		}
	}
	return files, nil
}

// Subjects lists the subject ids that have an accelerometer file, sorted.
func (l *Locator) Subjects() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.root, "acc"))
	if err != nil {
		return nil, fmt.Errorf("list accelerometer files: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if !slices.Contains(Extensions, ext) {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		if !strings.HasPrefix(base, "REPS-") || !strings.HasSuffix(base, "_acc") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(base, "REPS-"), "_acc")
		if id == "" || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (l *Locator) find(dir, stem string) (string, bool) {
	for _, ext := range Extensions {
		path := filepath.Join(dir, stem+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

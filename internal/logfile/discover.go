package logfile

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	apperrors "logforensics/internal/errors"
)

// Discover implements the file-backed half of C11's S1 step
// (`search_files`): walk root and return every regular file whose name
// contains dateStamp (e.g. "2025-07-24"), recognizing the plain and
// compressed extensions this package already knows how to decode. Grounded
// on the teacher's internal/monitors.FileMonitor directory walk, which
// likewise uses filepath.WalkDir rather than filepath.Glob to tolerate
// nested environment subdirectories.
func Discover(root, dateStamp string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !hasRecognizedExtension(path) {
			return nil
		}
		if dateStamp == "" || strings.Contains(filepath.Base(path), dateStamp) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.IOError("Discover", err.Error()).Wrap(err)
	}
	sort.Strings(matches)
	return matches, nil
}

func hasRecognizedExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".log", ".txt", ".gz", ".zip", ".xz", ".json":
		return true
	default:
		return false
	}
}

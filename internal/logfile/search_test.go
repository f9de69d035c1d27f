package logfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSearchFindsCaseInsensitiveMatches(t *testing.T) {
	path := writeTestLog(t, "INFO starting\nERROR bkash transaction failed\nINFO done\n")

	matches, err := Search(path, []string{"bkash"}, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].LineNumber)
	assert.Contains(t, matches[0].Line, "bkash")
}

func TestSearchContextLines(t *testing.T) {
	path := writeTestLog(t, "l1\nl2\nMATCH\nl4\nl5\n")

	matches, err := Search(path, []string{"MATCH"}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"l2"}, matches[0].Before)
	assert.Equal(t, []string{"l4"}, matches[0].After)
}

func TestSearchWithTraceIDs(t *testing.T) {
	content := "trace_id=abc\nERROR something bad\n"
	path := writeTestLog(t, content)

	finder := func(text string, offset int) (string, bool) {
		idx := strings.Index(text, "trace_id=abc")
		if idx < 0 {
			return "", false
		}
		return "abc", true
	}

	matches, err := SearchWithTraceIDs(path, []string{"ERROR"}, finder)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "abc", matches[0].TraceID)
}

func TestSearchInvalidPatternErrors(t *testing.T) {
	path := writeTestLog(t, "hello\n")
	_, err := Search(path, []string{"("}, 0)
	assert.Error(t, err)
}

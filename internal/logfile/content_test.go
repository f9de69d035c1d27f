package logfile

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func TestReadFullContentPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o644))

	content, err := ReadFullContent(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", content)
}

func TestReadFullContentGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log.gz")
	var buf bytes.Buffer
	gz := kgzip.NewWriter(&buf)
	_, err := gz.Write([]byte("compressed line\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	content, err := ReadFullContent(path)
	require.NoError(t, err)
	assert.Equal(t, "compressed line\n", content)
}

func TestReadFullContentXZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log.xz")
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write([]byte("lzma line\n"))
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	content, err := ReadFullContent(path)
	require.NoError(t, err)
	assert.Equal(t, "lzma line\n", content)
}

func TestReadFullContentZipFiltersNonLogMembers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zip")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w1, err := zw.Create("app.log")
	require.NoError(t, err)
	_, err = w1.Write([]byte("log content"))
	require.NoError(t, err)

	w2, err := zw.Create("README.txt")
	require.NoError(t, err)
	_, err = w2.Write([]byte("ignored"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	content, err := ReadFullContent(path)
	require.NoError(t, err)
	assert.Equal(t, "log content", content)
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, KindGzip, DetectKind("a.log.gz"))
	assert.Equal(t, KindZip, DetectKind("a.zip"))
	assert.Equal(t, KindXZ, DetectKind("a.log.xz"))
	assert.Equal(t, KindPlain, DetectKind("a.log"))
}

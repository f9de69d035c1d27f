package logfile

import (
	"archive/zip"
	"io"
	"os"
	"strings"

	apperrors "logforensics/internal/errors"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// ReadFullContent implements C3's read_full_content(path) -> string: it
// decodes path according to its detected Kind and returns the complete
// decoded text. For zip archives, every member whose name ends in ".log" is
// concatenated in archive order, separated by a blank line.
func ReadFullContent(path string) (string, error) {
	switch DetectKind(path) {
	case KindGzip:
		return readGzip(path)
	case KindZip:
		return readZipLogMembers(path)
	case KindXZ:
		return readXZ(path)
	default:
		return readPlain(path)
	}
}

func readPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.IOError("ReadFullContent", err.Error()).Wrap(err)
	}
	return string(data), nil
}

func readGzip(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.IOError("ReadFullContent", err.Error()).Wrap(err)
	}
	defer f.Close()

	gz, err := kgzip.NewReader(f)
	if err != nil {
		return "", apperrors.FramingError("ReadFullContent", "invalid gzip stream").Wrap(err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return "", apperrors.FramingError("ReadFullContent", "gzip decode failed").Wrap(err)
	}
	return string(data), nil
}

func readXZ(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.IOError("ReadFullContent", err.Error()).Wrap(err)
	}
	defer f.Close()

	xzr, err := xz.NewReader(f)
	if err != nil {
		return "", apperrors.FramingError("ReadFullContent", "invalid xz stream").Wrap(err)
	}

	data, err := io.ReadAll(xzr)
	if err != nil {
		return "", apperrors.FramingError("ReadFullContent", "xz decode failed").Wrap(err)
	}
	return string(data), nil
}

// readZipLogMembers scans every member of the zip archive at path, keeping
// only names ending in ".log", and concatenates their decompressed content.
func readZipLogMembers(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", apperrors.FramingError("ReadFullContent", "invalid zip archive").Wrap(err)
	}
	defer r.Close()

	var b strings.Builder
	for _, member := range r.File {
		if !strings.HasSuffix(strings.ToLower(member.Name), ".log") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return "", apperrors.FramingError("ReadFullContent", "failed to open zip member "+member.Name).Wrap(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", apperrors.FramingError("ReadFullContent", "failed to read zip member "+member.Name).Wrap(err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.Write(data)
	}
	return b.String(), nil
}

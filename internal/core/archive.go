package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	ArchiveFilename    = "metal_holes_detections.zip"
	ArchiveContentType = "application/zip"

	memberSuffix = "_detection.json"
)

type ArchiveEntry struct {
	MemberName string
	Report     DetectionReport
}

// baseName strips any directory components a client may have sent with the
// filename, accepting both slash styles.
func baseName(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		return filename[i+1:]
	}
	return filename
}

// splitExt splits name into stem and extension at the last dot. Leading dots
// never start an extension, so ".hidden" has no extension.
func splitExt(name string) (string, string) {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name, ""
	}
	if strings.Trim(name[:dot], ".") == "" {
		return name, ""
	}
	return name[:dot], name[dot:]
}

func MemberName(filename string) string {
	stem, _ := splitExt(baseName(filename))
	return stem + memberSuffix
}

// MemberNames derives one archive member name per uploaded filename. Names
// that collide with an earlier one get a numeric suffix on the stem.
func MemberNames(filenames []string) []string {
	names := make([]string, len(filenames))
	taken := make(map[string]struct{}, len(filenames))

	for i, filename := range filenames {
		stem, _ := splitExt(baseName(filename))
		name := stem + memberSuffix
		for n := 2; ; n++ {
			if _, exists := taken[name]; !exists {
				break
			}
			name = fmt.Sprintf("%s-%d%s", stem, n, memberSuffix)
		}
		taken[name] = struct{}{}
		names[i] = name
	}

	return names
}

func MarshalReport(report DetectionReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// BuildArchive writes every report as an indented JSON member of a single
// zip archive. Members keep a zero modification time so the same entries
// always produce the same bytes.
func BuildArchive(entries []ArchiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, entry := range entries {
		data, err := MarshalReport(entry.Report)
		if err != nil {
			return nil, fmt.Errorf("error serializing report %s: %w", entry.MemberName, err)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   entry.MemberName,
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating archive member %s: %w", entry.MemberName, err)
		}

		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("error writing archive member %s: %w", entry.MemberName, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("error finalizing archive: %w", err)
	}

	return buf.Bytes(), nil
}

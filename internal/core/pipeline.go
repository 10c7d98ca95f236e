package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

var (
	ErrNoImages          = errors.New("no images uploaded")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidImage      = errors.New("invalid image")
)

var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

type Upload struct {
	Filename string
	Data     []byte
}

type ImageResult struct {
	Filename     string
	MemberName   string
	Report       DetectionReport
	DroppedCount int
}

type BatchResult struct {
	Images  []ImageResult
	Archive []byte
}

type Pipeline struct {
	detector  Detector
	threshold float32
}

func NewPipeline(detector Detector, threshold float32) *Pipeline {
	return &Pipeline{detector: detector, threshold: threshold}
}

func (p *Pipeline) Threshold() float32 {
	return p.threshold
}

func checkExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(baseName(filename)))
	if _, ok := supportedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %q must be a jpg, jpeg, or png file", ErrUnsupportedFormat, filename)
	}
	return nil
}

// ProcessBatch runs every upload through the detector in order and packages
// the reports into a single archive. The first failing image aborts the batch
// and no archive is produced.
func (p *Pipeline) ProcessBatch(ctx context.Context, uploads []Upload) (*BatchResult, error) {
	if len(uploads) == 0 {
		return nil, ErrNoImages
	}

	for _, upload := range uploads {
		if err := checkExtension(upload.Filename); err != nil {
			return nil, err
		}
	}

	filenames := make([]string, len(uploads))
	for i, upload := range uploads {
		filenames[i] = upload.Filename
	}
	memberNames := MemberNames(filenames)

	start := time.Now()

	results := make([]ImageResult, 0, len(uploads))
	entries := make([]ArchiveEntry, 0, len(uploads))

	for i, upload := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch cancelled: %w", err)
		}

		img, err := imaging.Decode(bytes.NewReader(upload.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: unable to decode %q: %v", ErrInvalidImage, upload.Filename, err)
		}
		if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
			return nil, fmt.Errorf("%w: %q has zero size", ErrInvalidImage, upload.Filename)
		}

		detections, err := p.detector.Detect(ctx, img, p.threshold)
		if err != nil {
			return nil, fmt.Errorf("error running detector on %q: %w", upload.Filename, err)
		}

		report, dropped := BuildReport(detections)
		if dropped > 0 {
			slog.Warn("dropped detections with unknown class", "filename", upload.Filename, "dropped", dropped)
		}

		slog.Info("processed image", "filename", upload.Filename, "regular_holes", report.RegularHolesCount, "threaded_holes", report.ThreadedHolesCount)

		results = append(results, ImageResult{
			Filename:     upload.Filename,
			MemberName:   memberNames[i],
			Report:       report,
			DroppedCount: dropped,
		})
		entries = append(entries, ArchiveEntry{MemberName: memberNames[i], Report: report})
	}

	archive, err := BuildArchive(entries)
	if err != nil {
		return nil, fmt.Errorf("error building archive: %w", err)
	}

	slog.Info("batch complete", "images", len(results), "archive_bytes", len(archive), "duration", time.Since(start))

	return &BatchResult{Images: results, Archive: archive}, nil
}

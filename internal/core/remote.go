package core

import (
	"bytes"
	"context"
	"fmt"
	"hole-detector/internal/core/types"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-resty/resty/v2"
)

const remoteDetectorTimeout = 60 * time.Second

// RemoteDetector delegates inference to an HTTP service hosting the model.
type RemoteDetector struct {
	client       *resty.Client
	inferenceURL string
}

type remoteDetection struct {
	ClassId    int        `json:"class_id"`
	Box        [4]float64 `json:"box"`
	Confidence float32    `json:"confidence"`
}

type remoteResponse struct {
	Detections []remoteDetection `json:"detections"`
}

func NewRemoteDetector(inferenceURL string) (*RemoteDetector, error) {
	if inferenceURL == "" {
		return nil, fmt.Errorf("inference url must be set for the remote detector")
	}

	client := resty.New().
		SetTimeout(remoteDetectorTimeout).
		SetHeader("Accept", "application/json")

	return &RemoteDetector{client: client, inferenceURL: inferenceURL}, nil
}

func (d *RemoteDetector) Detect(ctx context.Context, img image.Image, confidenceThreshold float32) ([]types.Detection, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image has zero size (%dx%d)", ErrInvalidImage, bounds.Dx(), bounds.Dy())
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("error encoding image for remote detector: %w", err)
	}

	var result remoteResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetFileReader("file", "image.png", &buf).
		SetFormData(map[string]string{
			"conf": strconv.FormatFloat(float64(confidenceThreshold), 'f', -1, 32),
		}).
		SetResult(&result).
		Post(d.inferenceURL)
	if err != nil {
		return nil, fmt.Errorf("error calling remote detector: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		slog.Error("remote detector returned error", "status", resp.StatusCode(), "body", resp.String())
		return nil, fmt.Errorf("remote detector failed with status %d", resp.StatusCode())
	}

	detections := make([]types.Detection, 0, len(result.Detections))
	for _, det := range result.Detections {
		if det.Confidence <= confidenceThreshold {
			continue
		}
		detections = append(detections, types.Detection{
			Class:      types.ClassId(det.ClassId),
			Box:        types.Box(det.Box),
			Confidence: det.Confidence,
		})
	}

	return detections, nil
}

func (d *RemoteDetector) Release() {}

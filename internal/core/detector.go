package core

import (
	"context"
	"fmt"
	"hole-detector/internal/core/types"
	"image"
)

// DetectorType represents the backend used to run the hole detection model
type DetectorType string

// Available detector types
const (
	OnnxYolo DetectorType = "onnx"
	Remote   DetectorType = "remote"
)

const (
	DefaultConfidenceThreshold float32 = 0.25
	DefaultIouThreshold        float32 = 0.7
	DefaultInputSize                   = 640
	maxDetections                      = 300
)

type Detector interface {
	Detect(ctx context.Context, img image.Image, confidenceThreshold float32) ([]types.Detection, error)

	Release()
}

type DetectorConfig struct {
	ModelPath    string
	InputSize    int
	IouThreshold float32
	InferenceURL string
}

type DetectorLoader func(DetectorConfig) (Detector, error)

func NewDetectorLoaders() map[DetectorType]DetectorLoader {
	return map[DetectorType]DetectorLoader{
		OnnxYolo: func(cfg DetectorConfig) (Detector, error) {
			return LoadOnnxDetector(cfg.ModelPath, cfg.InputSize, cfg.IouThreshold)
		},
		Remote: func(cfg DetectorConfig) (Detector, error) {
			return NewRemoteDetector(cfg.InferenceURL)
		},
	}
}

func LoadDetector(detectorType DetectorType, cfg DetectorConfig) (Detector, error) {
	loader, ok := NewDetectorLoaders()[detectorType]
	if !ok {
		return nil, fmt.Errorf("invalid detector type '%s': must be one of '%s' or '%s'", detectorType, OnnxYolo, Remote)
	}
	return loader(cfg)
}

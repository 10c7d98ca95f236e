package core

import (
	"context"
	"fmt"
	"hole-detector/internal/core/types"
	"image"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

type OnnxDetector struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession

	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]

	inputSize    int
	channels     int
	anchors      int
	iouThreshold float32
}

// checkInputShape accepts [1, 3, size, size] inputs. Dynamic (negative)
// batch or spatial dimensions are allowed.
func checkInputShape(shape ort.Shape, inputSize int) error {
	if len(shape) != 4 || shape[1] != 3 {
		return fmt.Errorf("unsupported model input shape %v: expected [1, 3, %d, %d]", shape, inputSize, inputSize)
	}
	if shape[0] > 0 && shape[0] != 1 {
		return fmt.Errorf("unsupported model input shape %v: batch size must be 1", shape)
	}
	for _, dim := range shape[2:] {
		if dim > 0 && dim != int64(inputSize) {
			return fmt.Errorf("model input shape %v does not match MODEL_INPUT_SIZE %d", shape, inputSize)
		}
	}
	return nil
}

func LoadOnnxDetector(modelPath string, inputSize int, iouThreshold float32) (*OnnxDetector, error) {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	if iouThreshold <= 0 {
		iouThreshold = DefaultIouThreshold
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("error reading model info from %s: %w", modelPath, err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected a detection model with 1 input and 1 output, found %d inputs and %d outputs", len(inputs), len(outputs))
	}

	if err := checkInputShape(inputs[0].Dimensions, inputSize); err != nil {
		return nil, err
	}

	outShape := outputs[0].Dimensions
	if len(outShape) != 3 || outShape[0] != 1 || outShape[1] <= 0 || outShape[2] <= 0 {
		return nil, fmt.Errorf("unsupported model output shape %v: expected [1, 4+classes, anchors]", outShape)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}

	size := int64(inputSize)
	inT, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("failed to allocate input tensor: %w", err)
	}

	outT, err := ort.NewEmptyTensor[float32](ort.NewShape(outShape...))
	if err != nil {
		inT.Destroy()
		session.Destroy()
		return nil, fmt.Errorf("failed to allocate output tensor: %w", err)
	}

	slog.Info("loaded onnx detector", "model", modelPath, "input", inputs[0].Name, "output", outputs[0].Name, "output_shape", outShape.String())

	return &OnnxDetector{
		session:      session,
		input:        inT,
		output:       outT,
		inputSize:    inputSize,
		channels:     int(outShape[1]),
		anchors:      int(outShape[2]),
		iouThreshold: iouThreshold,
	}, nil
}

func (d *OnnxDetector) Detect(ctx context.Context, img image.Image, confidenceThreshold float32) ([]types.Detection, error) {
	padded, lb, err := letterboxImage(img, d.inputSize)
	if err != nil {
		return nil, err
	}

	data := imageToTensorData(padded, d.inputSize)

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.input.GetData(), data)

	if err := d.session.Run([]ort.Value{d.input}, []ort.Value{d.output}); err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}

	cands, err := decodeYoloOutput(d.output.GetData(), d.channels, d.anchors, confidenceThreshold)
	if err != nil {
		return nil, err
	}

	return toDetections(nonMaxSuppression(cands, d.iouThreshold, maxDetections), lb), nil
}

func (d *OnnxDetector) Release() {
	d.input.Destroy()
	d.output.Destroy()
	d.session.Destroy()
}

package core

import (
	"fmt"
	"hole-detector/internal/core/types"
	"sort"
)

type candidate struct {
	class types.ClassId
	box   types.Box
	score float32
}

// decodeYoloOutput reads a YOLOv8 detection head laid out as [4+nc, anchors]
// (cx, cy, w, h followed by one score per class) and keeps every anchor whose
// best class score is strictly above the threshold. Boxes stay in model input
// coordinates.
func decodeYoloOutput(data []float32, channels, anchors int, threshold float32) ([]candidate, error) {
	if channels < 5 {
		return nil, fmt.Errorf("unexpected model output: need at least 5 channels, got %d", channels)
	}
	if len(data) != channels*anchors {
		return nil, fmt.Errorf("unexpected model output: expected %d values, got %d", channels*anchors, len(data))
	}

	numClasses := channels - 4

	var out []candidate
	for i := 0; i < anchors; i++ {
		best, bestScore := 0, data[4*anchors+i]
		for c := 1; c < numClasses; c++ {
			if s := data[(4+c)*anchors+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if bestScore <= threshold {
			continue
		}

		cx, cy := float64(data[i]), float64(data[anchors+i])
		w, h := float64(data[2*anchors+i]), float64(data[3*anchors+i])
		out = append(out, candidate{
			class: types.ClassId(best),
			box:   types.Box{cx - w/2, cy - h/2, cx + w/2, cy + h/2},
			score: bestScore,
		})
	}

	return out, nil
}

// nonMaxSuppression runs greedy per-class NMS. The result is ordered by
// descending score and truncated to maxDet entries.
func nonMaxSuppression(cands []candidate, iouThreshold float32, maxDet int) []candidate {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	suppressed := make([]bool, len(sorted))
	var kept []candidate

	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		if len(kept) == maxDet {
			break
		}

		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].class != sorted[i].class {
				continue
			}
			if sorted[i].box.IoU(sorted[j].box) > float64(iouThreshold) {
				suppressed[j] = true
			}
		}
	}

	return kept
}

func toDetections(cands []candidate, lb letterbox) []types.Detection {
	detections := make([]types.Detection, 0, len(cands))
	for _, c := range cands {
		detections = append(detections, types.Detection{
			Class:      c.class,
			Box:        lb.toSource(c.box[0], c.box[1], c.box[2], c.box[3]),
			Confidence: c.score,
		})
	}
	return detections
}

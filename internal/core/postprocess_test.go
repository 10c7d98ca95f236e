package core

import (
	"hole-detector/internal/core/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// yoloOutput lays out rows of [cx, cy, w, h, score_0, ..., score_n] in the
// channel-major order the model produces.
func yoloOutput(rows [][]float32) ([]float32, int, int) {
	channels, anchors := len(rows[0]), len(rows)
	data := make([]float32, channels*anchors)
	for i, row := range rows {
		for c, v := range row {
			data[c*anchors+i] = v
		}
	}
	return data, channels, anchors
}

func TestDecodeYoloOutput(t *testing.T) {
	data, channels, anchors := yoloOutput([][]float32{
		{50, 50, 20, 10, 0.9, 0.1},
		{100, 100, 10, 10, 0.2, 0.6},
		{10, 10, 4, 4, 0.1, 0.2},
	})

	cands, err := decodeYoloOutput(data, channels, anchors, 0.25)
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.Equal(t, types.RegularHole, cands[0].class)
	assert.Equal(t, types.Box{40, 45, 60, 55}, cands[0].box)
	assert.InDelta(t, 0.9, cands[0].score, 1e-6)

	assert.Equal(t, types.ThreadedHole, cands[1].class)
	assert.Equal(t, types.Box{95, 95, 105, 105}, cands[1].box)
}

func TestDecodeYoloOutputThresholdIsStrict(t *testing.T) {
	data, channels, anchors := yoloOutput([][]float32{
		{50, 50, 20, 10, 0.25, 0.0},
		{50, 50, 20, 10, 0.0, 0.2501},
	})

	cands, err := decodeYoloOutput(data, channels, anchors, 0.25)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, types.ThreadedHole, cands[0].class)
}

func TestDecodeYoloOutputBadShape(t *testing.T) {
	_, err := decodeYoloOutput(make([]float32, 8), 4, 2, 0.25)
	assert.Error(t, err)

	_, err = decodeYoloOutput(make([]float32, 11), 6, 2, 0.25)
	assert.Error(t, err)
}

func TestNonMaxSuppression(t *testing.T) {
	cands := []candidate{
		{class: types.RegularHole, box: types.Box{0, 0, 10, 10}, score: 0.8},
		{class: types.RegularHole, box: types.Box{1, 0, 11, 10}, score: 0.9},
		{class: types.ThreadedHole, box: types.Box{0, 0, 10, 10}, score: 0.7},
		{class: types.RegularHole, box: types.Box{50, 50, 60, 60}, score: 0.5},
	}

	kept := nonMaxSuppression(cands, 0.7, maxDetections)
	require.Len(t, kept, 3)

	assert.InDelta(t, 0.9, kept[0].score, 1e-6)
	assert.Equal(t, types.ThreadedHole, kept[1].class, "overlaps across classes are kept")
	assert.Equal(t, types.Box{50, 50, 60, 60}, kept[2].box)
}

func TestNonMaxSuppressionKeepsModerateOverlap(t *testing.T) {
	cands := []candidate{
		{class: types.RegularHole, box: types.Box{0, 0, 10, 10}, score: 0.9},
		{class: types.RegularHole, box: types.Box{5, 0, 15, 10}, score: 0.8},
	}

	kept := nonMaxSuppression(cands, 0.7, maxDetections)
	assert.Len(t, kept, 2)
}

func TestNonMaxSuppressionMaxDetections(t *testing.T) {
	var cands []candidate
	for i := 0; i < 10; i++ {
		x := float64(i * 20)
		cands = append(cands, candidate{class: types.RegularHole, box: types.Box{x, 0, x + 10, 10}, score: float32(i) / 10})
	}

	kept := nonMaxSuppression(cands, 0.7, 3)
	require.Len(t, kept, 3)
	assert.InDelta(t, 0.9, kept[0].score, 1e-6)
	assert.InDelta(t, 0.7, kept[2].score, 1e-6)
}

func TestToDetections(t *testing.T) {
	lb := newLetterbox(1280, 640, 640)
	dets := toDetections([]candidate{
		{class: types.ThreadedHole, box: types.Box{100, 200, 300, 400}, score: 0.5},
	}, lb)

	require.Len(t, dets, 1)
	assert.Equal(t, types.ThreadedHole, dets[0].Class)
	assert.Equal(t, types.Box{200, 80, 600, 480}, dets[0].Box)
	assert.InDelta(t, 0.5, dets[0].Confidence, 1e-6)
}

package types_test

import (
	"hole-detector/internal/core/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoxIoU(t *testing.T) {
	a := types.Box{0, 0, 10, 10}

	assert.InDelta(t, 1.0, a.IoU(a), 1e-9)
	assert.InDelta(t, 0.0, a.IoU(types.Box{20, 20, 30, 30}), 1e-9)
	assert.InDelta(t, 25.0/175.0, a.IoU(types.Box{5, 5, 15, 15}), 1e-9)
	assert.Equal(t, 0.0, types.Box{5, 5, 5, 5}.IoU(types.Box{5, 5, 5, 5}))
}

func TestClassIdString(t *testing.T) {
	assert.Equal(t, "regular", types.RegularHole.String())
	assert.Equal(t, "threaded", types.ThreadedHole.String())
	assert.Equal(t, "class_7", types.ClassId(7).String())
}

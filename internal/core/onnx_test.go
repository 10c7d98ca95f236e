package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	ort "github.com/yalue/onnxruntime_go"
)

func TestCheckInputShape(t *testing.T) {
	tests := []struct {
		name  string
		shape ort.Shape
		size  int
		ok    bool
	}{
		{"matching", ort.NewShape(1, 3, 640, 640), 640, true},
		{"dynamic", ort.NewShape(-1, 3, -1, -1), 640, true},
		{"size mismatch", ort.NewShape(1, 3, 640, 640), 320, false},
		{"one side mismatch", ort.NewShape(1, 3, 640, 320), 640, false},
		{"channels", ort.NewShape(1, 1, 640, 640), 640, false},
		{"batch", ort.NewShape(4, 3, 640, 640), 640, false},
		{"rank", ort.NewShape(3, 640, 640), 640, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := checkInputShape(test.shape, test.size)
			if test.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

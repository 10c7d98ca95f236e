package core

import (
	"fmt"
	"hole-detector/internal/core/types"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

var letterboxFill = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// letterbox records how a source image was fit into the square model input
// so that boxes can be mapped back to source pixels.
type letterbox struct {
	scale      float64
	padX, padY int
	srcW, srcH int
}

func newLetterbox(srcW, srcH, size int) letterbox {
	scale := math.Min(float64(size)/float64(srcW), float64(size)/float64(srcH))
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))

	dw := float64(size-w) / 2
	dh := float64(size-h) / 2

	return letterbox{
		scale: scale,
		padX:  int(math.Round(dw - 0.1)),
		padY:  int(math.Round(dh - 0.1)),
		srcW:  srcW,
		srcH:  srcH,
	}
}

func (lb letterbox) resizedSize() (int, int) {
	return int(math.Round(float64(lb.srcW) * lb.scale)), int(math.Round(float64(lb.srcH) * lb.scale))
}

// toSource maps a box in model input coordinates back to the source image,
// clipping it to the image bounds.
func (lb letterbox) toSource(x1, y1, x2, y2 float64) types.Box {
	clip := func(v float64, hi int) float64 {
		return math.Min(math.Max(v, 0), float64(hi))
	}
	return types.Box{
		clip((x1-float64(lb.padX))/lb.scale, lb.srcW),
		clip((y1-float64(lb.padY))/lb.scale, lb.srcH),
		clip((x2-float64(lb.padX))/lb.scale, lb.srcW),
		clip((y2-float64(lb.padY))/lb.scale, lb.srcH),
	}
}

func letterboxImage(img image.Image, size int) (*image.NRGBA, letterbox, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, letterbox{}, fmt.Errorf("%w: image has zero size (%dx%d)", ErrInvalidImage, bounds.Dx(), bounds.Dy())
	}

	lb := newLetterbox(bounds.Dx(), bounds.Dy(), size)
	w, h := lb.resizedSize()

	resized := imaging.Resize(img, w, h, imaging.Linear)
	canvas := imaging.New(size, size, letterboxFill)
	canvas = imaging.Paste(canvas, resized, image.Pt(lb.padX, lb.padY))

	return canvas, lb, nil
}

// imageToTensorData converts a square NRGBA image to CHW float32 RGB values in [0,1].
func imageToTensorData(img *image.NRGBA, size int) []float32 {
	plane := size * size
	data := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+size*4]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+4]
			i := y*size + x
			data[i] = float32(px[0]) / 255
			data[plane+i] = float32(px[1]) / 255
			data[2*plane+i] = float32(px[2]) / 255
		}
	}

	return data
}

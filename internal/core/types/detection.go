package types

import "fmt"

type ClassId int

const (
	RegularHole  ClassId = 0
	ThreadedHole ClassId = 1
)

func (c ClassId) String() string {
	switch c {
	case RegularHole:
		return "regular"
	case ThreadedHole:
		return "threaded"
	default:
		return fmt.Sprintf("class_%d", int(c))
	}
}

// Box is an axis aligned bounding box in source image pixels, ordered
// [x1, y1, x2, y2].
type Box [4]float64

func (b Box) Width() float64 {
	return max(0, b[2]-b[0])
}

func (b Box) Height() float64 {
	return max(0, b[3]-b[1])
}

func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// IoU returns the intersection over union of two boxes, 0 when either is empty.
func (b Box) IoU(o Box) float64 {
	ix1, iy1 := max(b[0], o[0]), max(b[1], o[1])
	ix2, iy2 := min(b[2], o[2]), min(b[3], o[3])
	inter := max(0, ix2-ix1) * max(0, iy2-iy1)

	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

type Detection struct {
	Class      ClassId
	Box        Box
	Confidence float32
}

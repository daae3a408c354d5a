package gaze

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestClassifyCentroid(t *testing.T) {
	tests := []struct {
		name  string
		cx    float64
		width int
		want  Direction
	}{
		{"quarter width", 25, 100, Left},
		{"middle", 50, 100, Center},
		{"three quarter width", 75, 100, Right},
		{"left boundary is center", 100.0 / 3, 100, Center},
		{"just inside left", 100.0/3 - 0.01, 100, Left},
		{"right boundary is center", 200.0 / 3, 100, Center},
		{"just inside right", 200.0/3 + 0.01, 100, Right},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCentroid(tt.cx, tt.width))
		})
	}
}

func TestDirectionOfRejectsTinyCrops(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	assert.Equal(t, NA, DirectionOf(empty))

	tiny := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	defer tiny.Close()
	assert.Equal(t, NA, DirectionOf(tiny))

	narrow := gocv.NewMatWithSize(40, 8, gocv.MatTypeCV8UC3)
	defer narrow.Close()
	assert.Equal(t, NA, DirectionOf(narrow))
}

// A uniform crop has no pupil blob to threshold out.
func TestDirectionOfUniformCrop(t *testing.T) {
	flat := gocv.NewMatWithSize(canvasH, canvasW, gocv.MatTypeCV8UC3)
	defer flat.Close()
	flat.SetTo(gocv.NewScalar(40, 40, 40, 0))

	assert.Equal(t, Undetected, DirectionOf(flat))
}

func TestDirectionOfSyntheticPupil(t *testing.T) {
	tests := []struct {
		name    string
		centerX int
		want    Direction
	}{
		{"pupil left", 16, Left},
		{"pupil centered", canvasW / 2, Center},
		{"pupil right", canvasW - 16, Right},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eye := gocv.NewMatWithSize(canvasH, canvasW, gocv.MatTypeCV8UC3)
			defer eye.Close()
			eye.SetTo(gocv.NewScalar(230, 230, 230, 0))
			gocv.Circle(&eye, image.Pt(tt.centerX, canvasH/2), 9,
				color.RGBA{R: 10, G: 10, B: 10, A: 255}, -1)

			assert.Equal(t, tt.want, DirectionOf(eye))
		})
	}
}

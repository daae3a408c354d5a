package detector

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBox(t *testing.T) {
	b := BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 70}

	assert.Equal(t, float32(100), b.Width())
	assert.Equal(t, float32(50), b.Height())
	assert.Equal(t, float32(5000), b.Area())
	assert.Equal(t, Point{X: 60, Y: 45}, b.Center())
	assert.Equal(t, image.Rect(10, 20, 110, 70), b.Rect())
}

func TestLandmarkPixel(t *testing.T) {
	var set LandmarkSet
	set[IdxNoseTip] = Point3{X: 0.5, Y: 0.25, Z: 0}

	p := set.Pixel(IdxNoseTip, 640, 480)
	assert.Equal(t, float32(320), p.X)
	assert.Equal(t, float32(120), p.Y)
}

func TestPnPImagePointsOrder(t *testing.T) {
	var set LandmarkSet
	for i, idx := range PnPIndices {
		set[idx] = Point3{X: float32(i) * 0.1, Y: float32(i) * 0.1}
	}

	pts := set.PnPImagePoints(100, 100)
	for i := range pts {
		assert.InDelta(t, float64(i)*10, float64(pts[i].X), 1e-4, "point %d", i)
	}
}

func TestEyeBounds(t *testing.T) {
	var set LandmarkSet
	// spread the left-eye landmarks over a 40x10 pixel region
	for i, idx := range LeftEyeIndices {
		set[idx] = Point3{
			X: (200 + float32(i)*8) / 640,
			Y: (100 + float32(i%2)*10) / 480,
		}
	}

	r := set.EyeBounds(LeftEyeIndices, 640, 480, 5)
	assert.Equal(t, image.Rect(195, 95, 245, 115), r)
}

func TestEyeBoundsClampsToFrame(t *testing.T) {
	var set LandmarkSet
	for _, idx := range RightEyeIndices {
		set[idx] = Point3{X: 0.005, Y: 0.005}
	}

	r := set.EyeBounds(RightEyeIndices, 640, 480, 5)
	assert.Equal(t, 0, r.Min.X)
	assert.Equal(t, 0, r.Min.Y)
	assert.False(t, r.Empty())
}

func TestEyeBoundsOffFrame(t *testing.T) {
	var set LandmarkSet
	for _, idx := range LeftEyeIndices {
		set[idx] = Point3{X: 1.5, Y: 1.5}
	}

	r := set.EyeBounds(LeftEyeIndices, 640, 480, 5)
	assert.True(t, r.Empty())
}

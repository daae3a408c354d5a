package detector

import "image"

// Point represents a 2D point
type Point struct {
	X, Y float32
}

// Point3 represents a point with the mesh model's relative depth
type Point3 struct {
	X, Y, Z float32
}

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// MeshPoints is the number of landmarks produced by the face mesh model
const MeshPoints = 468

// LandmarkSet holds the dense face-mesh landmarks for one detected face in
// one frame. Coordinates are normalized to [0,1] relative to the frame size.
type LandmarkSet [MeshPoints]Point3

// Landmark indices following the MediaPipe face mesh convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	IdxNoseTip        = 1
	IdxChin           = 152
	IdxLeftEyeCorner  = 263
	IdxRightEyeCorner = 33
	IdxLeftMouth      = 287
	IdxRightMouth     = 57
)

// PnPIndices lists the six landmarks used for head pose estimation, ordered
// to match the canonical 3D model points in the pose package.
var PnPIndices = [6]int{
	IdxNoseTip,
	IdxChin,
	IdxLeftEyeCorner,
	IdxRightEyeCorner,
	IdxLeftMouth,
	IdxRightMouth,
}

// EyeIndices identifies the six contour landmarks of one eye
type EyeIndices [6]int

var (
	// LeftEyeIndices are the left-eye contour landmarks
	LeftEyeIndices = EyeIndices{362, 385, 387, 263, 373, 380}
	// RightEyeIndices are the right-eye contour landmarks
	RightEyeIndices = EyeIndices{33, 160, 158, 133, 153, 144}
)

// Pixel returns landmark i in pixel coordinates for a frame of the given size
func (l *LandmarkSet) Pixel(i, width, height int) Point {
	return Point{
		X: l[i].X * float32(width),
		Y: l[i].Y * float32(height),
	}
}

// PnPImagePoints returns the six pose landmarks in pixel coordinates, in
// model-point order.
func (l *LandmarkSet) PnPImagePoints(width, height int) [6]Point {
	var pts [6]Point
	for i, idx := range PnPIndices {
		pts[i] = l.Pixel(idx, width, height)
	}
	return pts
}

// EyeBounds computes the padded pixel bounding rectangle around one eye's
// landmarks, clamped to the frame.
func (l *LandmarkSet) EyeBounds(eye EyeIndices, width, height, pad int) image.Rectangle {
	minX, minY := width, height
	maxX, maxY := 0, 0
	for _, idx := range eye {
		p := l.Pixel(idx, width, height)
		x, y := int(p.X), int(p.Y)
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	r := image.Rect(minX-pad, minY-pad, maxX+pad, maxY+pad)
	return r.Intersect(image.Rect(0, 0, width, height))
}

// Face represents a face located by the SCRFD stage
type Face struct {
	BoundingBox BoundingBox
	Score       float32
}

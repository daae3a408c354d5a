package analyzer

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/detector"
)

// FaceCounter counts faces in a frame. Zero boxes is a normal outcome.
type FaceCounter interface {
	Count(frame gocv.Mat) []image.Rectangle
	Close() error
}

// LandmarkProvider yields zero or one dense landmark sets per frame. A nil
// set with a nil error means no landmarks resolved this frame.
type LandmarkProvider interface {
	Detect(frame gocv.Mat) (*detector.LandmarkSet, error)
	Close() error
}

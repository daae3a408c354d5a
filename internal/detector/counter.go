package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Cascade tuning. Fixed: the counter is a coarse presence check, not the
// landmark path, so there is no per-deployment calibration.
const (
	cascadeScaleFactor  = 1.1
	cascadeMinNeighbors = 5
	cascadeMinSize      = 30
)

// Counter counts faces in a frame using a Haar cascade. It runs
// independently of the mesh landmark path so the two detectors
// cross-check each other.
type Counter struct {
	classifier gocv.CascadeClassifier
}

// NewCounter loads the cascade from the given XML file
func NewCounter(cascadePath string) (*Counter, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade classifier from %s", cascadePath)
	}
	return &Counter{classifier: classifier}, nil
}

// Count returns the bounding boxes of all faces in the frame. Zero boxes is
// a normal outcome, not an error; box order is detector-defined.
func (c *Counter) Count(frame gocv.Mat) []image.Rectangle {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	return c.classifier.DetectMultiScaleWithParams(
		gray,
		cascadeScaleFactor,
		cascadeMinNeighbors,
		0,
		image.Pt(cascadeMinSize, cascadeMinSize),
		image.Pt(0, 0),
	)
}

// Close releases the classifier
func (c *Counter) Close() error {
	return c.classifier.Close()
}

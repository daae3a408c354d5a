package analyzer

import (
	"errors"
	"image"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/detector"
	"github.com/dudu/proctor/internal/gaze"
	"github.com/dudu/proctor/internal/pose"
)

type stubCounter struct {
	boxes  []image.Rectangle
	closed bool
}

func (c *stubCounter) Count(frame gocv.Mat) []image.Rectangle { return c.boxes }
func (c *stubCounter) Close() error                           { c.closed = true; return nil }

type stubLandmarks struct {
	set    *detector.LandmarkSet
	err    error
	calls  int
	closed bool
}

func (l *stubLandmarks) Detect(frame gocv.Mat) (*detector.LandmarkSet, error) {
	l.calls++
	return l.set, l.err
}

func (l *stubLandmarks) Close() error { l.closed = true; return nil }

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testFrame() gocv.Mat {
	return gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
}

func TestAnalyzeSkipsLandmarksUnlessExactlyOneFace(t *testing.T) {
	tests := []struct {
		name  string
		boxes []image.Rectangle
	}{
		{"no faces", nil},
		{"two faces", []image.Rectangle{image.Rect(0, 0, 50, 50), image.Rect(100, 0, 150, 50)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			landmarks := &stubLandmarks{}
			a := New(&stubCounter{boxes: tt.boxes}, landmarks, discardLogger())

			frame := testFrame()
			defer frame.Close()
			result := a.Analyze(frame)

			assert.Equal(t, len(tt.boxes), result.NumFaces)
			assert.Zero(t, landmarks.calls, "landmark detection must not run")
			assert.Nil(t, result.Pose)
			assert.Equal(t, gaze.Direction(""), result.LeftEye)
		})
	}
}

func TestAnalyzeDegradesWhenLandmarksFail(t *testing.T) {
	boxes := []image.Rectangle{image.Rect(10, 10, 60, 60)}

	for _, landmarks := range []*stubLandmarks{
		{err: errors.New("inference failed")},
		{set: nil}, // no landmarks resolved, no error
	} {
		a := New(&stubCounter{boxes: boxes}, landmarks, discardLogger())

		frame := testFrame()
		defer frame.Close()
		result := a.Analyze(frame)

		assert.Equal(t, 1, result.NumFaces)
		assert.Nil(t, result.Pose)

		status := result.Status()
		assert.Equal(t, 1, status.NumFaces)
		assert.Equal(t, StatusUnknown, status.HeadPose)
		assert.Equal(t, StatusUnknown, status.LeftEyeDir)
		assert.Equal(t, StatusUnknown, status.RightEyeDir)
	}
}

func TestAnalyzeRunsPoseAndGazeOnSingleFace(t *testing.T) {
	set := frontalLandmarks()
	a := New(
		&stubCounter{boxes: []image.Rectangle{image.Rect(200, 130, 440, 400)}},
		&stubLandmarks{set: set},
		discardLogger(),
	)

	frame := testFrame()
	defer frame.Close()
	result := a.Analyze(frame)

	assert.Equal(t, 1, result.NumFaces)
	assert.NotNil(t, result.Pose)
	// the frame is uniform, so the eye crops have no pupil blob
	assert.Equal(t, gaze.Undetected, result.LeftEye)
	assert.Equal(t, gaze.Undetected, result.RightEye)
}

// frontalLandmarks places the pose and eye landmarks at plausible frontal
// positions so PnP has a well-conditioned solve.
func frontalLandmarks() *detector.LandmarkSet {
	var set detector.LandmarkSet
	set[detector.IdxNoseTip] = detector.Point3{X: 0.50, Y: 0.50}
	set[detector.IdxChin] = detector.Point3{X: 0.50, Y: 0.72}
	set[detector.IdxLeftEyeCorner] = detector.Point3{X: 0.62, Y: 0.40}
	set[detector.IdxRightEyeCorner] = detector.Point3{X: 0.38, Y: 0.40}
	set[detector.IdxLeftMouth] = detector.Point3{X: 0.58, Y: 0.62}
	set[detector.IdxRightMouth] = detector.Point3{X: 0.42, Y: 0.62}

	for i, idx := range detector.LeftEyeIndices {
		set[idx] = detector.Point3{X: 0.56 + float32(i)*0.015, Y: 0.39 + float32(i%2)*0.02}
	}
	for i, idx := range detector.RightEyeIndices {
		set[idx] = detector.Point3{X: 0.35 + float32(i)*0.015, Y: 0.39 + float32(i%2)*0.02}
	}
	return &set
}

func TestResultStatus(t *testing.T) {
	r := Result{
		NumFaces: 1,
		Pose:     &pose.Pose{Horizontal: pose.Left, Vertical: pose.Center},
		LeftEye:  gaze.Center,
		RightEye: gaze.NA,
	}

	s := r.Status()
	assert.Equal(t, 1, s.NumFaces)
	assert.Equal(t, "Left, Center", s.HeadPose)
	assert.Equal(t, "Center", s.LeftEyeDir)
	assert.Equal(t, "N/A", s.RightEyeDir)
	assert.Empty(t, s.LeftEyeImage)
}

func TestClose(t *testing.T) {
	counter := &stubCounter{}
	landmarks := &stubLandmarks{}
	a := New(counter, landmarks, discardLogger())

	assert.NoError(t, a.Close())
	assert.True(t, counter.closed)
	assert.True(t, landmarks.closed)
}

// Package analyzer runs the per-frame proctoring analysis: face counting,
// head pose and per-eye gaze. One Analyze call serves both the live
// monitoring loop and one-shot requests against an uploaded frame.
package analyzer

import (
	"encoding/base64"
	"image"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/detector"
	"github.com/dudu/proctor/internal/gaze"
	"github.com/dudu/proctor/internal/pose"
)

// StatusUnknown marks status fields whose analysis did not run this frame
const StatusUnknown = "Unknown"

// Result is the outcome of analyzing one frame. Pose is nil and eye
// directions empty when the frame did not contain exactly one face or no
// landmarks resolved.
type Result struct {
	NumFaces        int
	Faces           []image.Rectangle
	Pose            *pose.Pose
	LeftEye         gaze.Direction
	RightEye        gaze.Direction
	LeftEyePreview  []byte
	RightEyePreview []byte
}

// Status is the poller-facing snapshot shape derived from a Result. Eye
// previews are JPEG base64 so the snapshot serializes directly.
type Status struct {
	NumFaces      int    `json:"num_faces"`
	HeadPose      string `json:"head_pose"`
	LeftEyeDir    string `json:"left_eye_dir"`
	RightEyeDir   string `json:"right_eye_dir"`
	LeftEyeImage  string `json:"left_eye_img"`
	RightEyeImage string `json:"right_eye_img"`
}

// Status converts the result to its snapshot form. Skipped analyses read
// Unknown rather than defaulting to Center, so a transient detection
// failure stays visible to pollers.
func (r Result) Status() Status {
	s := Status{
		NumFaces:    r.NumFaces,
		HeadPose:    StatusUnknown,
		LeftEyeDir:  StatusUnknown,
		RightEyeDir: StatusUnknown,
	}

	if r.Pose != nil {
		s.HeadPose = r.Pose.String()
	}
	if r.LeftEye != "" {
		s.LeftEyeDir = string(r.LeftEye)
	}
	if r.RightEye != "" {
		s.RightEyeDir = string(r.RightEye)
	}
	if len(r.LeftEyePreview) > 0 {
		s.LeftEyeImage = base64.StdEncoding.EncodeToString(r.LeftEyePreview)
	}
	if len(r.RightEyePreview) > 0 {
		s.RightEyeImage = base64.StdEncoding.EncodeToString(r.RightEyePreview)
	}

	return s
}

// Analyzer orchestrates the per-frame analyzers
type Analyzer struct {
	counter   FaceCounter
	landmarks LandmarkProvider
	logger    *logrus.Logger
}

// New creates an analyzer owning the given counter and landmark provider
func New(counter FaceCounter, landmarks LandmarkProvider, logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		counter:   counter,
		landmarks: landmarks,
		logger:    logger,
	}
}

// Analyze runs one frame through the pipeline. Pose and gaze require
// exactly one counted face; otherwise they are skipped, not defaulted.
// Per-stage failures degrade the result instead of erroring: a session
// must survive any transient per-frame condition.
func (a *Analyzer) Analyze(frame gocv.Mat) Result {
	boxes := a.counter.Count(frame)
	result := Result{
		NumFaces: len(boxes),
		Faces:    boxes,
	}

	if len(boxes) != 1 {
		return result
	}

	set, err := a.landmarks.Detect(frame)
	if err != nil {
		a.logger.WithError(err).Warn("landmark detection failed")
		return result
	}
	if set == nil {
		return result
	}

	pts := set.PnPImagePoints(frame.Cols(), frame.Rows())
	if p, err := pose.Estimate(frame.Cols(), frame.Rows(), pts); err == nil {
		result.Pose = &p
	} else {
		a.logger.WithError(err).Debug("pose estimate skipped")
	}

	result.LeftEye, result.LeftEyePreview = gaze.Estimate(frame, set, detector.LeftEyeIndices)
	result.RightEye, result.RightEyePreview = gaze.Estimate(frame, set, detector.RightEyeIndices)

	return result
}

// Close releases the underlying analyzers
func (a *Analyzer) Close() error {
	err := a.counter.Close()
	if lerr := a.landmarks.Close(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}

// Package pose recovers 3D head orientation from six 2D facial landmarks by
// solving a perspective-n-point problem against a fixed canonical head model.
package pose

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/detector"
)

// Direction is a discrete head orientation class
type Direction string

const (
	Left   Direction = "Left"
	Right  Direction = "Right"
	Center Direction = "Center"
	Up     Direction = "Up"
	Down   Direction = "Down"
)

// classification boundary in degrees, both axes, strict inequality
const directionThreshold = 15.0

// Pose is the estimated head orientation for one frame
type Pose struct {
	Pitch      float64
	Yaw        float64
	Horizontal Direction
	Vertical   Direction
}

// String renders the pose the way the live status reports it
func (p Pose) String() string {
	return fmt.Sprintf("%s, %s", p.Horizontal, p.Vertical)
}

// Canonical 3D model of the six pose landmarks, head-centered coordinates.
// Fixed constants, not per-subject measurements: nose tip, chin, eye
// corners, mouth corners. Order matches detector.PnPIndices.
var modelPoints = []gocv.Point3f{
	{X: 0.0, Y: 0.0, Z: 0.0},
	{X: 0.0, Y: -330.0, Z: -65.0},
	{X: -225.0, Y: 170.0, Z: -135.0},
	{X: 225.0, Y: 170.0, Z: -135.0},
	{X: -150.0, Y: -150.0, Z: -125.0},
	{X: 150.0, Y: -150.0, Z: -125.0},
}

// Estimate solves for head orientation from the six pose landmarks in pixel
// coordinates. The camera is approximated with focal length = frame width
// and principal point = frame center; no calibration step exists.
func Estimate(frameW, frameH int, imagePoints [6]detector.Point) (Pose, error) {
	objPts := gocv.NewPoint3fVectorFromPoints(modelPoints)
	defer objPts.Close()

	pts := make([]gocv.Point2f, len(imagePoints))
	for i, p := range imagePoints {
		pts[i] = gocv.Point2f{X: p.X, Y: p.Y}
	}
	imgPts := gocv.NewPoint2fVectorFromPoints(pts)
	defer imgPts.Close()

	cameraMatrix := intrinsicMatrix(frameW, frameH)
	defer cameraMatrix.Close()

	distCoeffs := gocv.Zeros(4, 1, gocv.MatTypeCV64F)
	defer distCoeffs.Close()

	rvec := gocv.NewMat()
	defer rvec.Close()
	tvec := gocv.NewMat()
	defer tvec.Close()

	if ok := gocv.SolvePnP(objPts, imgPts, cameraMatrix, distCoeffs, &rvec, &tvec, false, 0); !ok {
		return Pose{}, fmt.Errorf("PnP solve failed")
	}

	rmat := gocv.NewMat()
	defer rmat.Close()
	gocv.Rodrigues(rvec, &rmat)

	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = rmat.GetDoubleAt(i, j)
		}
	}

	pitch, yaw := eulerAngles(r)
	horizontal, vertical := Classify(pitch, yaw)

	return Pose{
		Pitch:      pitch,
		Yaw:        yaw,
		Horizontal: horizontal,
		Vertical:   vertical,
	}, nil
}

// intrinsicMatrix builds the assumed camera matrix
func intrinsicMatrix(frameW, frameH int) gocv.Mat {
	focal := float64(frameW)
	cx := float64(frameW) / 2
	cy := float64(frameH) / 2

	m := gocv.Zeros(3, 3, gocv.MatTypeCV64F)
	m.SetDoubleAt(0, 0, focal)
	m.SetDoubleAt(0, 2, cx)
	m.SetDoubleAt(1, 1, focal)
	m.SetDoubleAt(1, 2, cy)
	m.SetDoubleAt(2, 2, 1)
	return m
}

// eulerAngles decomposes a rotation matrix into pitch and yaw in degrees,
// switching to the alternate formula near the gimbal-lock singularity.
func eulerAngles(r [3][3]float64) (pitch, yaw float64) {
	sy := math.Sqrt(r[0][0]*r[0][0] + r[1][0]*r[1][0])

	if sy >= 1e-6 {
		pitch = degrees(math.Atan2(r[2][1], r[2][2]))
	} else {
		pitch = degrees(math.Atan2(-r[1][2], r[1][1]))
	}
	yaw = degrees(math.Atan2(-r[2][0], sy))
	return pitch, yaw
}

// Classify maps pitch/yaw to discrete directions. The pitch mapping
// (negative pitch reads Up) follows the deployed comparison direction;
// whether the physical sign convention is intended is pending product-owner
// confirmation. TODO: confirm pitch sign with product owner.
func Classify(pitch, yaw float64) (horizontal, vertical Direction) {
	horizontal = Center
	if yaw < -directionThreshold {
		horizontal = Left
	} else if yaw > directionThreshold {
		horizontal = Right
	}

	vertical = Center
	if pitch < -directionThreshold {
		vertical = Up
	} else if pitch > directionThreshold {
		vertical = Down
	}

	return horizontal, vertical
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

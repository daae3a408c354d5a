// Package gaze classifies per-eye gaze direction from a cropped eye region
// by thresholding out the pupil blob and locating its centroid.
package gaze

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/detector"
)

// Direction is the per-eye gaze classification. Undetected means the eye
// region was usable but no pupil blob resolved; NA means the region
// geometry itself was unusable (off-frame or degenerate).
type Direction string

const (
	Left       Direction = "Left"
	Center     Direction = "Center"
	Right      Direction = "Right"
	Undetected Direction = "Undetected"
	NA         Direction = "N/A"
)

const (
	cropPad    = 5
	minCropDim = 10
	canvasW    = 100
	canvasH    = 60

	// adaptive mean threshold tuning
	threshBlock  = 11
	threshOffset = 3
)

// Estimate crops one eye from the frame using its landmark indices and
// classifies the gaze. The returned preview is the raw crop JPEG-encoded
// for diagnostics, nil when the crop is unusable.
func Estimate(frame gocv.Mat, set *detector.LandmarkSet, eye detector.EyeIndices) (Direction, []byte) {
	crop := CropEye(frame, set, eye)
	defer crop.Close()

	dir := DirectionOf(crop)
	if dir == NA {
		return dir, nil
	}

	return dir, encodePreview(crop)
}

// CropEye extracts the padded eye region from the frame. The returned Mat
// may be empty when the landmarks fall outside the frame; callers own it.
func CropEye(frame gocv.Mat, set *detector.LandmarkSet, eye detector.EyeIndices) gocv.Mat {
	rect := set.EyeBounds(eye, frame.Cols(), frame.Rows(), cropPad)
	if rect.Empty() {
		return gocv.NewMat()
	}

	region := frame.Region(rect)
	defer region.Close()
	return region.Clone()
}

// DirectionOf classifies gaze from an eye crop. The crop is resized to a
// fixed canvas, contrast-normalized, blurred, and adaptively thresholded so
// the darker pupil region becomes the dominant foreground contour; the
// contour centroid's horizontal position decides the direction.
func DirectionOf(eyeImg gocv.Mat) Direction {
	if eyeImg.Empty() || eyeImg.Rows() < minCropDim || eyeImg.Cols() < minCropDim {
		return NA
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(eyeImg, &resized, image.Pt(canvasW, canvasH), 0, 0, gocv.InterpolationCubic)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(resized, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)
	gocv.GaussianBlur(gray, &gray, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(gray, &thresh, 255, gocv.AdaptiveThresholdMean,
		gocv.ThresholdBinaryInv, threshBlock, threshOffset)

	contours := gocv.FindContours(thresh, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	largest := -1
	largestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > largestArea {
			largestArea = area
			largest = i
		}
	}
	if largest < 0 {
		return Undetected
	}

	// centroid via image moments of the filled pupil blob
	mask := gocv.Zeros(canvasH, canvasW, gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.DrawContours(&mask, contours, largest, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	moments := gocv.Moments(mask, true)
	if moments["m00"] == 0 {
		return Undetected
	}

	cx := moments["m10"] / moments["m00"]
	return ClassifyCentroid(cx, canvasW)
}

// ClassifyCentroid maps the pupil centroid's x position to a direction.
// Boundaries are strict: a centroid exactly on width/3 reads Center.
func ClassifyCentroid(cx float64, width int) Direction {
	w := float64(width)
	if cx < w/3 {
		return Left
	}
	if cx > 2*w/3 {
		return Right
	}
	return Center
}

func encodePreview(crop gocv.Mat) []byte {
	if crop.Empty() {
		return nil
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, crop)
	if err != nil {
		return nil
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out
}

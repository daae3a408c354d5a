package detector

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/inference"
)

// Mesh is the landmark provider: it locates the most confident face with
// SCRFD, then regresses the dense 468-point face mesh over the cropped
// region. Callers get zero or one LandmarkSet per frame, normalized to
// frame size; everything else is internal.
type Mesh struct {
	locator        *SCRFD
	session        *inference.Session
	inputSize      int
	cropExpansion  float32
	scoreThreshold float32
}

// NewMesh creates the landmark provider. The locator is owned by the Mesh
// and released by Close.
func NewMesh(modelPath string, locator *SCRFD, logger *logrus.Logger) (*Mesh, error) {
	inputNames := []string{"input_1"}
	// conv2d_21 carries the 468*3 coordinates, conv2d_31 the face score
	outputNames := []string{"conv2d_21", "conv2d_31"}

	session, err := inference.NewSession(modelPath, inputNames, outputNames, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create face mesh session: %w", err)
	}

	return &Mesh{
		locator:        locator,
		session:        session,
		inputSize:      192,
		cropExpansion:  1.5,
		scoreThreshold: 0.5,
	}, nil
}

// Detect returns the landmark set for the frame's best face, or nil when no
// face is located or the mesh confidence is below threshold. A nil set with
// a nil error is the normal "no landmarks this frame" outcome.
func (m *Mesh) Detect(img gocv.Mat) (*LandmarkSet, error) {
	face, err := m.locator.Best(img)
	if err != nil {
		return nil, fmt.Errorf("face location failed: %w", err)
	}
	if face == nil {
		return nil, nil
	}

	bbox := face.BoundingBox
	center := bbox.Center()
	maxDim := bbox.Width()
	if bbox.Height() > maxDim {
		maxDim = bbox.Height()
	}
	scale := float32(m.inputSize) / (maxDim * m.cropExpansion)

	M := m.cropTransform(center.X, center.Y, scale)
	cropped := gocv.NewMat()
	defer cropped.Close()
	gocv.WarpAffine(img, &cropped, M, image.Pt(m.inputSize, m.inputSize))
	M.Close()

	rgb := gocv.NewMat()
	gocv.CvtColor(cropped, &rgb, gocv.ColorBGRToRGB)
	defer rgb.Close()

	floatMat := gocv.NewMat()
	rgb.ConvertTo(&floatMat, gocv.MatTypeCV32FC3)
	defer floatMat.Close()

	// mesh model expects [0,1] input
	blob := gocv.BlobFromImage(floatMat, 1.0/255.0, image.Pt(m.inputSize, m.inputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	floatData := bytesToFloat32(blob.ToBytes())
	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, int64(m.inputSize), int64(m.inputSize)),
		floatData,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	coordTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 1, 1, MeshPoints * 3})
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinate tensor: %w", err)
	}
	defer coordTensor.Destroy()

	scoreTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 1, 1, 1})
	if err != nil {
		return nil, fmt.Errorf("failed to create score tensor: %w", err)
	}
	defer scoreTensor.Destroy()

	err = m.session.Run([]ort.Value{inputTensor}, []ort.Value{coordTensor, scoreTensor})
	if err != nil {
		return nil, fmt.Errorf("mesh inference failed: %w", err)
	}

	if sigmoid(scoreTensor.GetData()[0]) < m.scoreThreshold {
		return nil, nil
	}

	set := m.backProject(coordTensor.GetData(), center.X, center.Y, scale, img.Cols(), img.Rows())
	return set, nil
}

// cropTransform builds the affine matrix mapping the expanded face crop to
// the model input square
func (m *Mesh) cropTransform(centerX, centerY, scale float32) gocv.Mat {
	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)

	M.SetDoubleAt(0, 0, float64(scale))
	M.SetDoubleAt(0, 1, 0)
	M.SetDoubleAt(0, 2, float64(m.inputSize)/2-float64(centerX*scale))
	M.SetDoubleAt(1, 0, 0)
	M.SetDoubleAt(1, 1, float64(scale))
	M.SetDoubleAt(1, 2, float64(m.inputSize)/2-float64(centerY*scale))

	return M
}

// backProject maps model-space coordinates to frame-normalized landmarks
func (m *Mesh) backProject(coords []float32, centerX, centerY, scale float32, frameW, frameH int) *LandmarkSet {
	var set LandmarkSet
	half := float32(m.inputSize) / 2

	for i := 0; i < MeshPoints; i++ {
		x := (coords[i*3] - half) / scale + centerX
		y := (coords[i*3+1] - half) / scale + centerY
		z := coords[i*3+2] / scale

		set[i] = Point3{
			X: x / float32(frameW),
			Y: y / float32(frameH),
			Z: z / float32(frameW),
		}
	}

	return &set
}

// Close releases the mesh session and the underlying locator
func (m *Mesh) Close() error {
	err := m.session.Destroy()
	if lerr := m.locator.Close(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}

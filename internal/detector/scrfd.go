package detector

import (
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/inference"
)

// SCRFD locates faces for the mesh regressor. Only the score and bbox heads
// are decoded; the proctoring pipeline takes its landmarks from the mesh
// model, not from SCRFD keypoints.
type SCRFD struct {
	session       *inference.Session
	inputSize     int
	confThreshold float32
	nmsThreshold  float32
	strides       []int
	numAnchors    int
}

// NewSCRFD creates a new SCRFD face locator
func NewSCRFD(modelPath string, inputSize int, confThreshold, nmsThreshold float32, logger *logrus.Logger) (*SCRFD, error) {
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
	}

	session, err := inference.NewSession(modelPath, inputNames, outputNames, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:       session,
		inputSize:     inputSize,
		confThreshold: confThreshold,
		nmsThreshold:  nmsThreshold,
		strides:       []int{8, 16, 32},
		numAnchors:    2, // anchors per position
	}, nil
}

// Locate finds faces in an image, highest score first
func (s *SCRFD) Locate(img gocv.Mat) ([]Face, error) {
	origHeight := img.Rows()
	origWidth := img.Cols()

	inputBlob, scale := s.preprocess(img)
	defer inputBlob.Close()

	floatData := bytesToFloat32(inputBlob.ToBytes())

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, int64(s.inputSize), int64(s.inputSize)),
		floatData,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 6)
	outputTensors := make([]*ort.Tensor[float32], 6)
	for i, stride := range s.strides {
		anchors := (s.inputSize / stride) * (s.inputSize / stride) * s.numAnchors

		scoreTensor, err := inference.CreateEmptyTensor[float32]([]int64{int64(anchors), 1})
		if err != nil {
			return nil, fmt.Errorf("failed to create score tensor: %w", err)
		}
		bboxTensor, err := inference.CreateEmptyTensor[float32]([]int64{int64(anchors), 4})
		if err != nil {
			scoreTensor.Destroy()
			return nil, fmt.Errorf("failed to create bbox tensor: %w", err)
		}

		outputs[i] = scoreTensor
		outputs[i+3] = bboxTensor
		outputTensors[i] = scoreTensor
		outputTensors[i+3] = bboxTensor
	}
	defer func() {
		for _, t := range outputTensors {
			t.Destroy()
		}
	}()

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	faces := s.decode(outputTensors, scale, origWidth, origHeight)
	return nonMaxSuppress(faces, s.nmsThreshold), nil
}

// Best returns the highest-scoring face, or nil when the frame has none
func (s *SCRFD) Best(img gocv.Mat) (*Face, error) {
	faces, err := s.Locate(img)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}
	return &faces[0], nil
}

// preprocess letterboxes the image to the square input size and normalizes
// to the model's (x - 127.5) / 128 range, NCHW
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	height := img.Rows()
	width := img.Cols()

	longest := width
	if height > width {
		longest = height
	}
	scale := float32(s.inputSize) / float32(longest)

	newWidth := int(float32(width) * scale)
	newHeight := int(float32(height) * scale)

	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSize(s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	padded.SetTo(gocv.NewScalar(0, 0, 0, 0))
	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()
	resized.Close()

	rgb := gocv.NewMat()
	gocv.CvtColor(padded, &rgb, gocv.ColorBGRToRGB)
	padded.Close()

	blob := gocv.NewMat()
	rgb.ConvertTo(&blob, gocv.MatTypeCV32FC3)
	rgb.Close()
	gocv.AddWeighted(blob, 1.0/128.0, blob, 0, -127.5/128.0, &blob)

	blobNCHW := gocv.BlobFromImage(blob, 1.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	blob.Close()

	return blobNCHW, scale
}

// decode converts the per-stride anchor outputs to face boxes in original
// image coordinates
func (s *SCRFD) decode(outputs []*ort.Tensor[float32], scale float32, origWidth, origHeight int) []Face {
	var faces []Face

	for level, stride := range s.strides {
		fm := s.inputSize / stride
		scoreData := outputs[level].GetData()
		bboxData := outputs[level+3].GetData()

		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				for a := 0; a < s.numAnchors; a++ {
					idx := (y*fm+x)*s.numAnchors + a
					score := sigmoid(scoreData[idx])
					if score <= s.confThreshold {
						continue
					}

					cx := (float32(x) + 0.5) * float32(stride)
					cy := (float32(y) + 0.5) * float32(stride)

					// bbox head predicts distances to the box edges
					b := idx * 4
					faces = append(faces, Face{
						BoundingBox: BoundingBox{
							X1: clamp((cx-bboxData[b]*float32(stride))/scale, 0, float32(origWidth)),
							Y1: clamp((cy-bboxData[b+1]*float32(stride))/scale, 0, float32(origHeight)),
							X2: clamp((cx+bboxData[b+2]*float32(stride))/scale, 0, float32(origWidth)),
							Y2: clamp((cy+bboxData[b+3]*float32(stride))/scale, 0, float32(origHeight)),
						},
						Score: score,
					})
				}
			}
		}
	}

	return faces
}

// Close releases locator resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func bytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}

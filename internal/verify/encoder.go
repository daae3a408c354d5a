package verify

import (
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/inference"
)

// EmbeddingSize is the ArcFace embedding dimension
const EmbeddingSize = 512

// Embedding is an L2-normalized face embedding vector
type Embedding [EmbeddingSize]float32

// Vector returns the embedding as a plain slice
func (e *Embedding) Vector() []float32 {
	return e[:]
}

const encoderInput = 112

// Encoder extracts face embeddings with an ArcFace model. The face crop is
// resized to the model input; verification runs on unaligned captures.
type Encoder struct {
	session *inference.Session
}

// NewEncoder creates a new ArcFace encoder
func NewEncoder(modelPath string, logger *logrus.Logger) (*Encoder, error) {
	inputNames := []string{"input.1"}
	outputNames := []string{"683"} // output node name from the model

	session, err := inference.NewSession(modelPath, inputNames, outputNames, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ArcFace session: %w", err)
	}

	return &Encoder{session: session}, nil
}

// Extract computes the embedding for a face crop of any size
func (e *Encoder) Extract(faceCrop gocv.Mat) (*Embedding, error) {
	if faceCrop.Empty() {
		return nil, fmt.Errorf("empty face crop")
	}

	inputData := e.preprocess(faceCrop)

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, encoderInput, encoderInput),
		inputData,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, EmbeddingSize})
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := e.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return normalizeEmbedding(outputTensor.GetData()), nil
}

// preprocess resizes the crop to the model input and converts to a [0,1]
// RGB NCHW blob
func (e *Encoder) preprocess(img gocv.Mat) []float32 {
	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Pt(encoderInput, encoderInput), 0, 0, gocv.InterpolationLinear)
	defer resized.Close()

	rgb := gocv.NewMat()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)
	defer rgb.Close()

	floatImg := gocv.NewMat()
	rgb.ConvertTo(&floatImg, gocv.MatTypeCV32FC3)
	defer floatImg.Close()

	blob := gocv.BlobFromImage(floatImg, 1.0/255.0, image.Pt(encoderInput, encoderInput),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	return bytesToFloat32(blob.ToBytes())
}

// normalizeEmbedding L2-normalizes the raw model output
func normalizeEmbedding(data []float32) *Embedding {
	var embedding Embedding

	var norm float64
	for _, v := range data[:EmbeddingSize] {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm < 1e-10 {
		norm = 1
	}

	for i := 0; i < EmbeddingSize; i++ {
		embedding[i] = data[i] / float32(norm)
	}

	return &embedding
}

// Close releases encoder resources
func (e *Encoder) Close() error {
	return e.session.Destroy()
}

func bytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}

// Package verify compares a captured face against a subject's enrolled
// reference. Two strategies exist and are never combined: ArcFace embedding
// cosine similarity when an enrollment embedding is stored, and grayscale
// template matching against the reference photo otherwise.
package verify

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/detector"
)

// ErrNoFaceDetected reports that the probe or reference image contained no
// locatable face. Callers must surface this distinctly from a low-similarity
// rejection: "face not detected" is actionable, "doesn't match" is not.
var ErrNoFaceDetected = errors.New("no face detected in image")

// ErrNoEmbedding reports that the subject has no stored enrollment embedding
var ErrNoEmbedding = errors.New("no stored embedding for subject")

const (
	// EmbeddingThreshold is the cosine similarity bound for the embedding
	// path; a match requires strictly greater similarity.
	EmbeddingThreshold = 0.6

	// TemplateThreshold is the normalized cross-correlation bound for the
	// lower-fidelity template fallback.
	TemplateThreshold = 0.5
)

// Result is the outcome of one verification
type Result struct {
	Match      bool    `json:"match"`
	Similarity float64 `json:"similarity"`
}

// CosineSimilarity computes dot(a,b)/(|a|*|b|). Zero-norm inputs yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Compare scores two embeddings against a threshold. The match condition is
// strictly greater than, never greater-or-equal.
func Compare(ref, probe []float32, threshold float64) Result {
	similarity := CosineSimilarity(ref, probe)
	return Result{
		Match:      similarity > threshold,
		Similarity: similarity,
	}
}

// Verifier runs the embedding-based verification path
type Verifier struct {
	locator   *detector.SCRFD
	encoder   *Encoder
	store     *Store
	threshold float64
	logger    *logrus.Logger
}

// NewVerifier wires the locator, encoder and store together. The caller
// retains ownership of the locator and encoder.
func NewVerifier(locator *detector.SCRFD, encoder *Encoder, store *Store, logger *logrus.Logger) *Verifier {
	return &Verifier{
		locator:   locator,
		encoder:   encoder,
		store:     store,
		threshold: EmbeddingThreshold,
		logger:    logger,
	}
}

// EmbedFace locates the best face in the image and extracts its embedding.
// Returns ErrNoFaceDetected when the image has no locatable face.
func (v *Verifier) EmbedFace(img gocv.Mat) (*Embedding, error) {
	face, err := v.locator.Best(img)
	if err != nil {
		return nil, fmt.Errorf("face location failed: %w", err)
	}
	if face == nil {
		return nil, ErrNoFaceDetected
	}

	rect := face.BoundingBox.Rect().Intersect(imageBounds(img))
	if rect.Empty() {
		return nil, ErrNoFaceDetected
	}

	crop := img.Region(rect)
	defer crop.Close()

	return v.encoder.Extract(crop)
}

// VerifySubject embeds the probe frame and compares it against the
// subject's stored enrollment embedding.
func (v *Verifier) VerifySubject(subjectID string, probe gocv.Mat) (Result, error) {
	ref, err := v.store.LoadEmbedding(subjectID)
	if err != nil {
		return Result{}, err
	}

	probeEmb, err := v.EmbedFace(probe)
	if err != nil {
		return Result{}, err
	}

	result := Compare(ref.Vector(), probeEmb.Vector(), v.threshold)
	v.logger.WithFields(logrus.Fields{
		"subject":    subjectID,
		"similarity": result.Similarity,
		"match":      result.Match,
	}).Debug("embedding verification")

	return result, nil
}

// Enroll extracts and stores the enrollment embedding for a subject from a
// reference image. Returns ErrNoFaceDetected when the reference has no face.
func (v *Verifier) Enroll(subjectID string, reference gocv.Mat) error {
	emb, err := v.EmbedFace(reference)
	if err != nil {
		return err
	}
	return v.store.SaveEmbedding(subjectID, emb)
}

// CompareTemplate matches a live face region against a stored grayscale
// reference image using normalized cross-correlation. The region is resized
// to the reference's dimensions so the match collapses to a single score.
func CompareTemplate(faceRegion, reference gocv.Mat) float64 {
	if faceRegion.Empty() || reference.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if faceRegion.Channels() > 1 {
		gocv.CvtColor(faceRegion, &gray, gocv.ColorBGRToGray)
	} else {
		faceRegion.CopyTo(&gray)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(reference.Cols(), reference.Rows()), 0, 0, gocv.InterpolationLinear)

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(resized, reference, &result, gocv.TmCcoeffNormed, mask)

	return float64(result.GetFloatAt(0, 0))
}

func imageBounds(img gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, img.Cols(), img.Rows())
}

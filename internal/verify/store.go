package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gocv.io/x/gocv"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store holds enrollment artifacts per subject: the reference photo at
// <dir>/<subject>.jpg and the embedding at <dir>/embeddings/<subject>.json.
// Artifacts are immutable for a session's lifetime; re-enrollment replaces
// them wholesale.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// embeddingRecord is the on-disk embedding format
type embeddingRecord struct {
	SubjectID string    `json:"subject_id"`
	Dimension int       `json:"dimension"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// PhotoPath returns the reference photo path for a subject
func (s *Store) PhotoPath(subjectID string) string {
	return filepath.Join(s.dir, subjectID+".jpg")
}

func (s *Store) embeddingPath(subjectID string) string {
	return filepath.Join(s.dir, "embeddings", subjectID+".json")
}

// SavePhoto writes the reference photo for a subject
func (s *Store) SavePhoto(subjectID string, frame gocv.Mat) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create reference dir: %w", err)
	}

	path := s.PhotoPath(subjectID)
	if ok := gocv.IMWrite(path, frame); !ok {
		return fmt.Errorf("failed to write reference photo %s", path)
	}
	return nil
}

// LoadReferenceGray loads the subject's reference photo as grayscale for
// template matching. The second return is false when no photo is enrolled;
// absence is tolerated, not an error.
func (s *Store) LoadReferenceGray(subjectID string) (gocv.Mat, bool) {
	path := s.PhotoPath(subjectID)
	if _, err := os.Stat(path); err != nil {
		return gocv.NewMat(), false
	}

	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), false
	}
	return img, true
}

// SaveEmbedding stores the enrollment embedding for a subject
func (s *Store) SaveEmbedding(subjectID string, emb *Embedding) error {
	if err := os.MkdirAll(filepath.Join(s.dir, "embeddings"), 0o755); err != nil {
		return fmt.Errorf("failed to create embeddings dir: %w", err)
	}

	record := embeddingRecord{
		SubjectID: subjectID,
		Dimension: EmbeddingSize,
		Vector:    emb.Vector(),
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	if err := os.WriteFile(s.embeddingPath(subjectID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write embedding: %w", err)
	}
	return nil
}

// LoadEmbedding loads the subject's enrollment embedding. Returns
// ErrNoEmbedding when none is stored.
func (s *Store) LoadEmbedding(subjectID string) (*Embedding, error) {
	data, err := os.ReadFile(s.embeddingPath(subjectID))
	if os.IsNotExist(err) {
		return nil, ErrNoEmbedding
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding: %w", err)
	}

	var record embeddingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	if record.Dimension != EmbeddingSize || len(record.Vector) != EmbeddingSize {
		return nil, fmt.Errorf("embedding for %s has dimension %d, want %d",
			subjectID, len(record.Vector), EmbeddingSize)
	}

	var emb Embedding
	copy(emb[:], record.Vector)
	return &emb, nil
}

// HasEmbedding reports whether the subject has a stored embedding
func (s *Store) HasEmbedding(subjectID string) bool {
	_, err := os.Stat(s.embeddingPath(subjectID))
	return err == nil
}

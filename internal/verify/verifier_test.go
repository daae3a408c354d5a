package verify

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"scaled", []float32{2, 0, 0}, []float32{5, 0, 0}, 1.0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := make([]float32, EmbeddingSize)
	b := make([]float32, EmbeddingSize)
	for i := range a {
		a[i] = rng.Float32()*2 - 1
		b[i] = rng.Float32()*2 - 1
	}

	assert.InDelta(t, CosineSimilarity(a, b), CosineSimilarity(b, a), 1e-12)
}

func TestCompareThresholdIsStrict(t *testing.T) {
	a := []float32{1, 0}

	// similarity exactly at the threshold is not a match
	r := Compare(a, a, 1.0)
	assert.InDelta(t, 1.0, r.Similarity, 1e-9)
	assert.False(t, r.Match)

	r = Compare(a, a, 0.999)
	assert.True(t, r.Match)

	r = Compare(a, []float32{0, 1}, 0.0)
	assert.InDelta(t, 0.0, r.Similarity, 1e-9)
	assert.False(t, r.Match)
}

func TestStoreEmbeddingRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	var emb Embedding
	for i := range emb {
		emb[i] = float32(i) / EmbeddingSize
	}

	assert.False(t, store.HasEmbedding("alice"))
	require.NoError(t, store.SaveEmbedding("alice", &emb))
	assert.True(t, store.HasEmbedding("alice"))

	loaded, err := store.LoadEmbedding("alice")
	require.NoError(t, err)
	assert.Equal(t, emb, *loaded)
}

func TestStoreLoadEmbeddingMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.LoadEmbedding("nobody")
	assert.ErrorIs(t, err, ErrNoEmbedding)
}

func TestStoreLoadEmbeddingDimensionMismatch(t *testing.T) {
	store := NewStore(t.TempDir())

	var emb Embedding
	require.NoError(t, store.SaveEmbedding("bob", &emb))

	// corrupt the record with a truncated vector
	data := []byte(`{"subject_id":"bob","dimension":128,"vector":[0.1,0.2],"created_at":"2026-01-01T00:00:00Z"}`)
	require.NoError(t, os.WriteFile(store.embeddingPath("bob"), data, 0o644))

	_, err := store.LoadEmbedding("bob")
	assert.ErrorContains(t, err, "dimension")
}

func TestStoreLoadReferenceGrayMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	ref, ok := store.LoadReferenceGray("nobody")
	defer ref.Close()
	assert.False(t, ok)
}

func TestCompareTemplateIdentical(t *testing.T) {
	ref := gradientMat(48, 64)
	defer ref.Close()

	score := CompareTemplate(ref, ref)
	assert.InDelta(t, 1.0, score, 1e-4)
}

func TestCompareTemplateEmptyInputs(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	ref := gradientMat(48, 64)
	defer ref.Close()

	assert.Equal(t, 0.0, CompareTemplate(empty, ref))
	assert.Equal(t, 0.0, CompareTemplate(ref, empty))
}

// gradientMat builds a single-channel ramp so normalized cross-correlation
// has non-zero variance to work with.
func gradientMat(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.SetUCharAt(y, x, uint8((x*255)/cols))
		}
	}
	return m
}

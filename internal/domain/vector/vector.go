// Package vector holds stored embeddings and the math used to compare them.
package vector

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
)

// Metadata is the typed metadata stored next to a vector.
type Metadata struct {
	Source            string          `json:"source"`
	Model             string          `json:"model,omitempty"`
	VocabularyVersion uint64          `json:"vocabulary_version,omitempty"`
	TextHash          string          `json:"text_hash,omitempty"`
	Title             string          `json:"title,omitempty"`
	Extra             json.RawMessage `json:"extra,omitempty"`
}

// HashText fingerprints the text a vector was built from.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

// Vector is one embedding per (record id, kind).
type Vector struct {
	RecordID   string    `json:"record_id"`
	Kind       string    `json:"kind"`
	Components []float32 `json:"components"`
	Metadata   Metadata  `json:"metadata"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the key and that every component is finite.
func (v *Vector) Validate() error {
	if v.RecordID == "" {
		return domain.InvalidInputf("record id is required")
	}
	if v.Kind == "" {
		return domain.InvalidInputf("vector kind is required")
	}
	if len(v.Components) == 0 {
		return domain.InvalidInputf("vector for %s/%s has no components", v.RecordID, v.Kind)
	}
	for i, c := range v.Components {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("component %d of %s/%s is not finite: %w",
				i, v.RecordID, v.Kind, domain.ErrVectorStoreCorrupt)
		}
	}
	return nil
}

// Cosine returns dot(a,b)/(|a||b|), or 0 when either norm is zero or lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	den := math.Sqrt(na) * math.Sqrt(nb)
	if den == 0 {
		return 0
	}
	return dot / den
}

// Norm returns the L2 norm.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// NormalizeL2 scales v to unit length in place. A zero vector is left unchanged.
func NormalizeL2(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return v
	}
	inv := 1.0 / n
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Fit pads with zeros or truncates v to exactly dim components. The input is not modified.
func Fit(v []float32, dim int) []float32 {
	out := make([]float32, dim)
	copy(out, v)
	return out
}

// IsZero reports whether every component is zero ("no signal").
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

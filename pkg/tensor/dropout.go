package tensor

import (
	"time"

	"golang.org/x/exp/rand"
)

// Dropout randomly zeros out elements with probability p and rescales the
// survivors by 1/(1-p) (inverted dropout). When active is false, the input
// is returned unchanged.
//
// Masks are drawn fresh on every call; there is no cross-call state beyond
// the package RNG.
func (t *Tensor) Dropout(p float64, active bool) *Tensor {
	if !active || p == 0 {
		return t.Clone()
	}
	if p < 0 || p >= 1 {
		panic("dropout probability must be in [0, 1)")
	}

	result := NewTensor(t.Shape)
	scale := 1.0 / (1.0 - p)
	for i := range t.Data {
		if dropoutRand.Float64() >= p {
			result.Data[i] = t.Data[i] * scale
		}
	}
	return result
}

// dropoutRand is the package-level random source for dropout masks.
var dropoutRand = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))

// SetDropoutSeed reseeds the dropout random source (useful for tests).
func SetDropoutSeed(seed uint64) {
	dropoutRand = rand.New(rand.NewSource(seed))
}

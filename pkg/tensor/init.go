package tensor

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
)

// GlorotUniform returns a tensor of the given shape filled with samples
// from U(-limit, limit) where limit = sqrt(6 / (fanIn + fanOut)).
func GlorotUniform(shape []int, fanIn, fanOut int) *Tensor {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	result := NewTensor(shape)
	for i := range result.Data {
		result.Data[i] = (initRand.Float64()*2 - 1) * limit
	}
	return result
}

// initRand is the package-level random source for weight initialization.
var initRand = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))

// SetInitSeed reseeds the weight-initialization random source.
func SetInitSeed(seed uint64) {
	initRand = rand.New(rand.NewSource(seed))
}

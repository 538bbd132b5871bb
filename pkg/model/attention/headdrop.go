package attention

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"melformer/pkg/tensor"
)

// HeadDrop zeroes the contribution of dropN randomly chosen heads per batch
// element and rescales the survivors to preserve expected magnitude.
//
// The input must be rank 4: (batch, heads, seq_q, depth_v). Each batch row
// draws its own independent permutation of kept heads; the survivors are
// rescaled by heads/(heads-dropN), inverted-dropout style.
//
// Identity cases: training off, dropN == 0, or a single head.
func HeadDrop(batch *tensor.Tensor, training bool, dropN int) (*tensor.Tensor, error) {
	if !training || dropN == 0 {
		return batch, nil
	}
	if batch.NumDims() != 4 {
		return nil, fmt.Errorf("attention values must be 4 dimensional, got shape %v", batch.Shape)
	}

	batchSize := batch.Shape[0]
	heads := batch.Shape[1]
	if heads == 1 {
		return batch, nil
	}
	if dropN < 0 || dropN >= heads {
		return nil, fmt.Errorf("drop_n_heads (%d) must be in [0, %d) for %d heads", dropN, heads, heads)
	}

	rowSize := batch.Shape[2] * batch.Shape[3]
	scale := float64(heads) / float64(heads-dropN)

	result := batch.Clone()
	keep := make([]float64, heads)
	for b := 0; b < batchSize; b++ {
		// Fresh keep-mask per batch row: heads-dropN ones, dropN zeros,
		// independently shuffled.
		for h := 0; h < heads; h++ {
			if h < heads-dropN {
				keep[h] = 1
			} else {
				keep[h] = 0
			}
		}
		headDropRand.Shuffle(heads, func(i, j int) {
			keep[i], keep[j] = keep[j], keep[i]
		})

		for h := 0; h < heads; h++ {
			offset := (b*heads + h) * rowSize
			if keep[h] == 0 {
				for i := 0; i < rowSize; i++ {
					result.Data[offset+i] = 0
				}
			} else {
				for i := 0; i < rowSize; i++ {
					result.Data[offset+i] *= scale
				}
			}
		}
	}

	return result, nil
}

// headDropRand is the package-level random source for head permutations.
var headDropRand = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))

// SetHeadDropSeed reseeds the head-drop random source (useful for tests).
func SetHeadDropSeed(seed uint64) {
	headDropRand = rand.New(rand.NewSource(seed))
}

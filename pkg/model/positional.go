package model

import (
	"fmt"
	"math"

	"melformer/pkg/tensor"
)

// PositionalEncoding precomputes the sinusoidal position table of shape
// (1, maxLen, modelDim). The table is computed once at construction and
// sliced to the call-time sequence length; it is never recomputed per call.
//
// Even feature indices carry sin(pos / 10000^(2i/d)), odd indices the
// corresponding cos.
func PositionalEncoding(maxLen, modelDim int) *tensor.Tensor {
	table := tensor.NewTensor([]int{1, maxLen, modelDim})
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < modelDim; i++ {
			angle := float64(pos) / math.Pow(10000, float64(2*(i/2))/float64(modelDim))
			if i%2 == 0 {
				table.Data[pos*modelDim+i] = math.Sin(angle)
			} else {
				table.Data[pos*modelDim+i] = math.Cos(angle)
			}
		}
	}
	return table
}

// slicePositions returns the (1, seqLen, modelDim) prefix of the table.
// The returned tensor shares the table's storage.
func slicePositions(table *tensor.Tensor, seqLen int) (*tensor.Tensor, error) {
	maxLen, modelDim := table.Shape[1], table.Shape[2]
	if seqLen > maxLen {
		return nil, fmt.Errorf("sequence length %d exceeds maximum position encoding %d", seqLen, maxLen)
	}
	return &tensor.Tensor{
		Data:    table.Data[:seqLen*modelDim],
		Shape:   []int{1, seqLen, modelDim},
		Strides: []int{seqLen * modelDim, modelDim, 1},
	}, nil
}

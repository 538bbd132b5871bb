package model

import (
	"fmt"

	"melformer/pkg/tensor"
)

// Masks mark blocked attention positions with 1 and allowed positions
// with 0. The attention kernel turns them into large negative additive
// biases before the softmax.

// PaddingMask builds a mask of shape (batch, 1, 1, seqLen) blocking the
// padded tail of each sequence. lengths holds the valid length per batch
// row.
func PaddingMask(lengths []int, seqLen int) (*tensor.Tensor, error) {
	mask := tensor.NewTensor([]int{len(lengths), 1, 1, seqLen})
	for b, valid := range lengths {
		if valid < 0 || valid > seqLen {
			return nil, fmt.Errorf("valid length %d out of range for sequence length %d", valid, seqLen)
		}
		for j := valid; j < seqLen; j++ {
			mask.Data[b*seqLen+j] = 1
		}
	}
	return mask, nil
}

// LookAheadMask builds a causal mask of shape (1, 1, seqLen, seqLen)
// blocking attention to later positions (strict upper triangle).
func LookAheadMask(seqLen int) *tensor.Tensor {
	mask := tensor.NewTensor([]int{1, 1, seqLen, seqLen})
	for i := 0; i < seqLen; i++ {
		for j := i + 1; j < seqLen; j++ {
			mask.Data[i*seqLen+j] = 1
		}
	}
	return mask
}

// CombinedMask merges a look-ahead mask with a padding mask for decoder
// self-attention: a position is blocked if either mask blocks it.
func CombinedMask(lookAhead, padding *tensor.Tensor) (*tensor.Tensor, error) {
	sum, err := tensor.Add(lookAhead, padding)
	if err != nil {
		return nil, fmt.Errorf("failed to combine masks: %w", err)
	}
	for i, v := range sum.Data {
		if v > 1 {
			sum.Data[i] = 1
		}
	}
	return sum, nil
}

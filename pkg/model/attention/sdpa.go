// Package attention implements the attention mechanisms of the acoustic
// model: the scaled dot-product kernel, structured head dropout, and the
// query-concatenation multi-head attention layer.
package attention

import (
	"fmt"
	"math"

	"melformer/pkg/tensor"
)

// maskPenalty is the additive bias applied to blocked score positions
// before the softmax. Blocked positions carry value 1 in the mask.
const maskPenalty = -1e9

// ScaledDotProductAttention computes attention over per-head projections.
//
// Input shapes:
//   - q: (batch, heads, seq_q, depth)
//   - k: (batch, heads, seq_k, depth)
//   - v: (batch, heads, seq_k, depth_v)
//   - mask: broadcastable against (batch, heads, seq_q, seq_k), 1 where
//     attention is blocked, or nil for no masking
//
// Returns the weighted values (batch, heads, seq_q, depth_v) and the
// attention weights (batch, heads, seq_q, seq_k).
func ScaledDotProductAttention(q, k, v, mask *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	kt, err := k.Transpose(2, 3)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to transpose keys: %w", err)
	}

	scores, err := tensor.Matmul(q, kt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute attention scores: %w", err)
	}

	depth := k.Shape[len(k.Shape)-1]
	scores = scores.Scale(1.0 / math.Sqrt(float64(depth)))

	if mask != nil {
		scores, err = tensor.Add(scores, mask.Scale(maskPenalty))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to apply attention mask: %w", err)
		}
	}

	weights := tensor.Softmax(scores)

	weighted, err := tensor.Matmul(weights, v)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply attention weights to values: %w", err)
	}

	return weighted, weights, nil
}

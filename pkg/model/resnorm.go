package model

import (
	"fmt"

	"melformer/pkg/model/attention"
	"melformer/pkg/tensor"
)

// SelfAttentionResNorm wraps multi-head self-attention with dropout, a
// residual connection to the original input, and layer normalization.
// Query, key, and value all derive from the same tensor.
type SelfAttentionResNorm struct {
	MHA         *attention.MultiHeadAttention
	Norm        *LayerNorm
	DropoutRate float64
}

// NewSelfAttentionResNorm creates the wrapped self-attention block.
func NewSelfAttentionResNorm(modelDim, numHeads int, dropoutRate float64) (*SelfAttentionResNorm, error) {
	mha, err := attention.NewMultiHeadAttention(modelDim, numHeads)
	if err != nil {
		return nil, err
	}
	return &SelfAttentionResNorm{
		MHA:         mha,
		Norm:        NewLayerNorm(modelDim, 1e-6),
		DropoutRate: dropoutRate,
	}, nil
}

// Forward applies self-attention -> dropout -> residual add -> layer norm.
// Returns the normalized output and the attention weights.
func (s *SelfAttentionResNorm) Forward(x, mask *tensor.Tensor, training bool, dropNHeads int) (*tensor.Tensor, *tensor.Tensor, error) {
	attnOut, weights, err := s.MHA.Forward(x, x, x, mask, training, dropNHeads)
	if err != nil {
		return nil, nil, err
	}
	attnOut = attnOut.Dropout(s.DropoutRate, training)

	sum, err := tensor.Add(x, attnOut)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to add self-attention residual: %w", err)
	}
	out, err := s.Norm.Forward(sum)
	if err != nil {
		return nil, nil, err
	}
	return out, weights, nil
}

// CrossAttentionResNorm wraps multi-head cross-attention the same way:
// the query comes from the decoder stream while key and value come from the
// encoder output. The residual connection adds back the query.
type CrossAttentionResNorm struct {
	MHA         *attention.MultiHeadAttention
	Norm        *LayerNorm
	DropoutRate float64
}

// NewCrossAttentionResNorm creates the wrapped cross-attention block.
func NewCrossAttentionResNorm(modelDim, numHeads int, dropoutRate float64) (*CrossAttentionResNorm, error) {
	mha, err := attention.NewMultiHeadAttention(modelDim, numHeads)
	if err != nil {
		return nil, err
	}
	return &CrossAttentionResNorm{
		MHA:         mha,
		Norm:        NewLayerNorm(modelDim, 1e-6),
		DropoutRate: dropoutRate,
	}, nil
}

// Forward attends q over the key/value sequence, then applies dropout,
// residual add of q, and layer norm.
func (c *CrossAttentionResNorm) Forward(q, k, v, mask *tensor.Tensor, training bool, dropNHeads int) (*tensor.Tensor, *tensor.Tensor, error) {
	attnOut, weights, err := c.MHA.Forward(v, k, q, mask, training, dropNHeads)
	if err != nil {
		return nil, nil, err
	}
	attnOut = attnOut.Dropout(c.DropoutRate, training)

	sum, err := tensor.Add(attnOut, q)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to add cross-attention residual: %w", err)
	}
	out, err := c.Norm.Forward(sum)
	if err != nil {
		return nil, nil, err
	}
	return out, weights, nil
}

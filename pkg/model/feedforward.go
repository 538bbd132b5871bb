package model

import (
	"fmt"

	"melformer/pkg/tensor"
)

// PointWiseFFN is the two-layer position-wise feed-forward block:
// model_dim -> dense_hidden_units with ReLU, then back to model_dim with no
// nonlinearity. Pure function of its input.
type PointWiseFFN struct {
	D1 *Dense // (model_dim, dense_hidden_units)
	D2 *Dense // (dense_hidden_units, model_dim)
}

// NewPointWiseFFN creates the feed-forward block.
func NewPointWiseFFN(modelDim, denseHiddenUnits int) *PointWiseFFN {
	return &PointWiseFFN{
		D1: NewDense(modelDim, denseHiddenUnits),
		D2: NewDense(denseHiddenUnits, modelDim),
	}
}

// Forward computes the feed-forward transformation.
//
// Input shape: (batch, seq, model_dim); output shape: same.
func (ff *PointWiseFFN) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	hidden, err := ff.D1.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("failed to compute first feed-forward projection: %w", err)
	}
	out, err := ff.D2.Forward(hidden.ReLU())
	if err != nil {
		return nil, fmt.Errorf("failed to compute second feed-forward projection: %w", err)
	}
	return out, nil
}

// FFNResNorm wraps PointWiseFFN with dropout, a residual connection to the
// original input, and layer normalization.
type FFNResNorm struct {
	FFN         *PointWiseFFN
	Norm        *LayerNorm
	DropoutRate float64
}

// NewFFNResNorm creates the wrapped feed-forward block.
func NewFFNResNorm(modelDim, denseHiddenUnits int, dropoutRate float64) *FFNResNorm {
	return &FFNResNorm{
		FFN:         NewPointWiseFFN(modelDim, denseHiddenUnits),
		Norm:        NewLayerNorm(modelDim, 1e-6),
		DropoutRate: dropoutRate,
	}
}

// Forward applies FFN -> dropout -> residual add -> layer norm.
// Output shape equals input shape.
func (f *FFNResNorm) Forward(x *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	ffnOut, err := f.FFN.Forward(x)
	if err != nil {
		return nil, err
	}
	ffnOut = ffnOut.Dropout(f.DropoutRate, training)

	sum, err := tensor.Add(x, ffnOut)
	if err != nil {
		return nil, fmt.Errorf("failed to add feed-forward residual: %w", err)
	}
	return f.Norm.Forward(sum)
}

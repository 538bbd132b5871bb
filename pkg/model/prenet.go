package model

import (
	"fmt"

	"melformer/pkg/tensor"
)

// DecoderPrenet conditions decoder input frames before the main stack:
// two ReLU dense layers, each followed by dropout.
//
// The dropout stays active outside training mode on purpose: noise at
// inference keeps the autoregressive decoder robust to its own imperfect
// predictions. The rate is a call parameter, never stored state.
type DecoderPrenet struct {
	D1 *Dense // (input_dim, dense_hidden_units)
	D2 *Dense // (dense_hidden_units, model_dim)
}

// NewDecoderPrenet creates the prenet mapping inputDim-wide frames to
// modelDim-wide conditioned frames.
func NewDecoderPrenet(inputDim, denseHiddenUnits, modelDim int) *DecoderPrenet {
	return &DecoderPrenet{
		D1: NewDense(inputDim, denseHiddenUnits),
		D2: NewDense(denseHiddenUnits, modelDim),
	}
}

// Forward conditions the input frames.
//
// Input shape: (batch, seq, input_dim); output: (batch, seq, model_dim).
func (p *DecoderPrenet) Forward(x *tensor.Tensor, dropoutRate float64) (*tensor.Tensor, error) {
	hidden, err := p.D1.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("failed to compute first prenet projection: %w", err)
	}
	hidden = hidden.ReLU().Dropout(dropoutRate, true)

	out, err := p.D2.Forward(hidden)
	if err != nil {
		return nil, fmt.Errorf("failed to compute second prenet projection: %w", err)
	}
	return out.ReLU().Dropout(dropoutRate, true), nil
}

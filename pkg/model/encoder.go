package model

import (
	"fmt"
	"math"

	"melformer/pkg/tensor"
)

// EncoderLayer is one encoder stack entry: self-attention followed by the
// feed-forward block, each residually wrapped and normalized.
type EncoderLayer struct {
	SelfAttn *SelfAttentionResNorm
	FFN      *FFNResNorm
}

// NewEncoderLayer creates an encoder layer with the given head count.
func NewEncoderLayer(modelDim, numHeads, denseHiddenUnits int, dropoutRate float64) (*EncoderLayer, error) {
	selfAttn, err := NewSelfAttentionResNorm(modelDim, numHeads, dropoutRate)
	if err != nil {
		return nil, err
	}
	return &EncoderLayer{
		SelfAttn: selfAttn,
		FFN:      NewFFNResNorm(modelDim, denseHiddenUnits, dropoutRate),
	}, nil
}

// Forward applies self-attention then feed-forward. The layer's attention
// weights are discarded; only the decoder exposes its maps.
func (l *EncoderLayer) Forward(x, mask *tensor.Tensor, training bool, dropNHeads int) (*tensor.Tensor, error) {
	attnOut, _, err := l.SelfAttn.Forward(x, mask, training, dropNHeads)
	if err != nil {
		return nil, err
	}
	return l.FFN.Forward(attnOut, training)
}

// Encoder turns an embedded input sequence into contextual encodings.
//
// Entry treatment: scale by sqrt(model_dim), add the positional-encoding
// slice for the call-time sequence length, apply input dropout, then run
// the layer stack. Layer count and per-layer head counts are fixed at
// construction by the configuration's NumHeads list.
type Encoder struct {
	ModelDim    int
	DropoutRate float64

	PosEncoding *tensor.Tensor // (1, max_position, model_dim), immutable
	Layers      []*EncoderLayer
}

// NewEncoder constructs the encoder stack from the configuration.
func NewEncoder(config Config) (*Encoder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder config: %w", err)
	}

	layers := make([]*EncoderLayer, len(config.NumHeads))
	for i, heads := range config.NumHeads {
		layer, err := NewEncoderLayer(config.ModelDim, heads, config.DenseHiddenUnits, config.DropoutRate)
		if err != nil {
			return nil, fmt.Errorf("failed to build encoder layer %d: %w", i, err)
		}
		layers[i] = layer
	}

	return &Encoder{
		ModelDim:    config.ModelDim,
		DropoutRate: config.DropoutRate,
		PosEncoding: PositionalEncoding(config.MaxPositionEncoding, config.ModelDim),
		Layers:      layers,
	}, nil
}

// Forward encodes an input sequence.
//
// Input shape: (batch, seq, model_dim); mask blocks padded key positions.
// Output shape: (batch, seq, model_dim). The sequence length must not
// exceed the configured maximum position encoding.
func (e *Encoder) Forward(inputs, mask *tensor.Tensor, training bool, dropNHeads int) (*tensor.Tensor, error) {
	if inputs.NumDims() != 3 {
		return nil, fmt.Errorf("expected 3D input (batch, seq, model_dim), got shape %v", inputs.Shape)
	}
	seqLen := inputs.Shape[1]

	pos, err := slicePositions(e.PosEncoding, seqLen)
	if err != nil {
		return nil, err
	}

	x := inputs.Scale(math.Sqrt(float64(e.ModelDim)))
	x, err = tensor.Add(x, pos)
	if err != nil {
		return nil, fmt.Errorf("failed to add positional encoding: %w", err)
	}
	x = x.Dropout(e.DropoutRate, training)

	for i, layer := range e.Layers {
		x, err = layer.Forward(x, mask, training, dropNHeads)
		if err != nil {
			return nil, fmt.Errorf("encoder layer %d failed: %w", i+1, err)
		}
	}

	return x, nil
}

package model

import (
	"fmt"
	"math"

	"melformer/pkg/tensor"
)

// DecoderLayer is one decoder stack entry: causal self-attention over the
// target sequence (block 1), cross-attention against the encoder output
// (block 2), then the feed-forward block.
type DecoderLayer struct {
	SelfAttn  *SelfAttentionResNorm
	CrossAttn *CrossAttentionResNorm
	FFN       *FFNResNorm
}

// NewDecoderLayer creates a decoder layer with the given head count.
func NewDecoderLayer(modelDim, numHeads, denseHiddenUnits int, dropoutRate float64) (*DecoderLayer, error) {
	selfAttn, err := NewSelfAttentionResNorm(modelDim, numHeads, dropoutRate)
	if err != nil {
		return nil, err
	}
	crossAttn, err := NewCrossAttentionResNorm(modelDim, numHeads, dropoutRate)
	if err != nil {
		return nil, err
	}
	return &DecoderLayer{
		SelfAttn:  selfAttn,
		CrossAttn: crossAttn,
		FFN:       NewFFNResNorm(modelDim, denseHiddenUnits, dropoutRate),
	}, nil
}

// Forward runs both attention blocks and the feed-forward block, returning
// the layer output and both blocks' attention weights.
func (l *DecoderLayer) Forward(x, encOutput, lookAheadMask, paddingMask *tensor.Tensor, training bool, dropNHeads int) (*tensor.Tensor, *tensor.Tensor, *tensor.Tensor, error) {
	attn1, block1, err := l.SelfAttn.Forward(x, lookAheadMask, training, dropNHeads)
	if err != nil {
		return nil, nil, nil, err
	}

	attn2, block2, err := l.CrossAttn.Forward(attn1, encOutput, encOutput, paddingMask, training, dropNHeads)
	if err != nil {
		return nil, nil, nil, err
	}

	out, err := l.FFN.Forward(attn2, training)
	if err != nil {
		return nil, nil, nil, err
	}
	return out, block1, block2, nil
}

// Decoder turns prenet-conditioned target frames and the encoder output
// into decoder states, collecting every layer's attention maps for
// diagnostics.
type Decoder struct {
	ModelDim    int
	DropoutRate float64

	PosEncoding *tensor.Tensor // (1, max_position, model_dim), immutable
	Layers      []*DecoderLayer
}

// NewDecoder constructs the decoder stack from the configuration.
func NewDecoder(config Config) (*Decoder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}

	layers := make([]*DecoderLayer, len(config.NumHeads))
	for i, heads := range config.NumHeads {
		layer, err := NewDecoderLayer(config.ModelDim, heads, config.DenseHiddenUnits, config.DropoutRate)
		if err != nil {
			return nil, fmt.Errorf("failed to build decoder layer %d: %w", i, err)
		}
		layers[i] = layer
	}

	return &Decoder{
		ModelDim:    config.ModelDim,
		DropoutRate: config.DropoutRate,
		PosEncoding: PositionalEncoding(config.MaxPositionEncoding, config.ModelDim),
		Layers:      layers,
	}, nil
}

// Forward decodes the target sequence against the encoder output.
//
// Input shapes:
//   - inputs: (batch, seq_t, model_dim)
//   - encOutput: (batch, seq_s, model_dim)
//   - lookAheadMask: causal mask for self-attention
//   - paddingMask: source padding mask for cross-attention
//
// Returns the decoder states (batch, seq_t, model_dim) and a map holding
// both attention maps of every layer, keyed "decoder_layer{i}_block1" and
// "decoder_layer{i}_block2" with i starting at 1.
func (d *Decoder) Forward(inputs, encOutput, lookAheadMask, paddingMask *tensor.Tensor, training bool, dropNHeads int) (*tensor.Tensor, map[string]*tensor.Tensor, error) {
	if inputs.NumDims() != 3 {
		return nil, nil, fmt.Errorf("expected 3D input (batch, seq, model_dim), got shape %v", inputs.Shape)
	}
	seqLen := inputs.Shape[1]

	pos, err := slicePositions(d.PosEncoding, seqLen)
	if err != nil {
		return nil, nil, err
	}

	x := inputs.Scale(math.Sqrt(float64(d.ModelDim)))
	x, err = tensor.Add(x, pos)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to add positional encoding: %w", err)
	}
	x = x.Dropout(d.DropoutRate, training)

	attentionWeights := make(map[string]*tensor.Tensor, 2*len(d.Layers))
	for i, layer := range d.Layers {
		var block1, block2 *tensor.Tensor
		x, block1, block2, err = layer.Forward(x, encOutput, lookAheadMask, paddingMask, training, dropNHeads)
		if err != nil {
			return nil, nil, fmt.Errorf("decoder layer %d failed: %w", i+1, err)
		}
		attentionWeights[fmt.Sprintf("decoder_layer%d_block1", i+1)] = block1
		attentionWeights[fmt.Sprintf("decoder_layer%d_block2", i+1)] = block2
	}

	return x, attentionWeights, nil
}

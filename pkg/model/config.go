// Package model implements the acoustic-model backbone of the synthesis
// network: a transformer encoder/decoder stack with a convolutional postnet
// that turns an encoded linguistic representation into a mel-spectrogram
// plus a stop signal.
package model

import "fmt"

// Config holds the architecture hyperparameters for the encoder/decoder
// stack and the postnet.
type Config struct {
	// ModelDim is the feature width carried through the network.
	// It must be divisible by every entry of NumHeads.
	ModelDim int

	// NumHeads lists the attention head count per stacked layer, one entry
	// per layer. Heterogeneous counts across depth are allowed.
	NumHeads []int

	// DenseHiddenUnits is the hidden width of the point-wise feed-forward
	// blocks.
	DenseHiddenUnits int

	// DropoutRate applies to the residual wrappers and stack entry dropout.
	DropoutRate float64

	// MaxPositionEncoding bounds the sequence length for which positional
	// codes are precomputed. Calls with longer sequences fail.
	MaxPositionEncoding int

	// MelChannels is the output channel width of the postnet refinement.
	MelChannels int

	// ConvFilters, ConvLayers, KernelSize configure the postnet stack.
	ConvFilters int
	ConvLayers  int
	KernelSize  int

	// PostnetDropout applies inside the postnet convolution stack.
	PostnetDropout float64
}

// DefaultConfig returns the reference architecture: four layers of four
// heads over a 256-wide model with a five-layer postnet.
func DefaultConfig() Config {
	return Config{
		ModelDim:            256,
		NumHeads:            []int{4, 4, 4, 4},
		DenseHiddenUnits:    1024,
		DropoutRate:         0.1,
		MaxPositionEncoding: 1000,
		MelChannels:         80,
		ConvFilters:         256,
		ConvLayers:          5,
		KernelSize:          5,
		PostnetDropout:      0.5,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.ModelDim <= 0 {
		return fmt.Errorf("model_dim must be positive, got %d", c.ModelDim)
	}
	if len(c.NumHeads) == 0 {
		return fmt.Errorf("num_heads must contain at least one layer entry")
	}
	for i, heads := range c.NumHeads {
		if heads <= 0 {
			return fmt.Errorf("num_heads[%d] must be positive, got %d", i, heads)
		}
		if c.ModelDim%heads != 0 {
			return fmt.Errorf("model_dim (%d) must be divisible by num_heads[%d] (%d)",
				c.ModelDim, i, heads)
		}
	}
	if c.DenseHiddenUnits <= 0 {
		return fmt.Errorf("dense_hidden_units must be positive, got %d", c.DenseHiddenUnits)
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return fmt.Errorf("dropout_rate must be in [0, 1), got %g", c.DropoutRate)
	}
	if c.MaxPositionEncoding <= 0 {
		return fmt.Errorf("maximum_position_encoding must be positive, got %d", c.MaxPositionEncoding)
	}
	return nil
}

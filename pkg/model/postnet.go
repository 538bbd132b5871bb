package model

import (
	"fmt"

	"melformer/pkg/tensor"
)

// Conv1D is a causal 1-D convolution over the time axis: each output frame
// depends only on the current and earlier input frames (left padding of
// kernelSize-1 zeros).
type Conv1D struct {
	W *tensor.Tensor // (kernel, in_channels, out_channels)
	B *tensor.Tensor // (out_channels,)

	KernelSize  int
	InChannels  int
	OutChannels int
}

// NewConv1D creates a causal convolution layer.
func NewConv1D(inChannels, outChannels, kernelSize int) *Conv1D {
	fanIn := kernelSize * inChannels
	return &Conv1D{
		W:           tensor.GlorotUniform([]int{kernelSize, inChannels, outChannels}, fanIn, outChannels),
		B:           tensor.NewTensor([]int{outChannels}),
		KernelSize:  kernelSize,
		InChannels:  inChannels,
		OutChannels: outChannels,
	}
}

// Forward convolves a (batch, seq, in_channels) tensor into
// (batch, seq, out_channels).
func (c *Conv1D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.NumDims() != 3 {
		return nil, fmt.Errorf("expected 3D input (batch, seq, channels), got shape %v", x.Shape)
	}
	if x.Shape[2] != c.InChannels {
		return nil, fmt.Errorf("input channel width %d doesn't match convolution input width %d",
			x.Shape[2], c.InChannels)
	}

	batch, seq := x.Shape[0], x.Shape[1]
	result := tensor.NewTensor([]int{batch, seq, c.OutChannels})

	for b := 0; b < batch; b++ {
		for t := 0; t < seq; t++ {
			outOff := (b*seq + t) * c.OutChannels
			for tap := 0; tap < c.KernelSize; tap++ {
				// Causal alignment: tap k reads frame t-(kernel-1)+k.
				src := t - (c.KernelSize - 1) + tap
				if src < 0 {
					continue
				}
				inOff := (b*seq + src) * c.InChannels
				wOff := tap * c.InChannels * c.OutChannels
				for i := 0; i < c.InChannels; i++ {
					xv := x.Data[inOff+i]
					if xv == 0 {
						continue
					}
					row := wOff + i*c.OutChannels
					for o := 0; o < c.OutChannels; o++ {
						result.Data[outOff+o] += xv * c.W.Data[row+o]
					}
				}
			}
			for o := 0; o < c.OutChannels; o++ {
				result.Data[outOff+o] += c.B.Data[o]
			}
		}
	}

	return result, nil
}

// PostnetConvLayers is the convolutional refinement stack: n_layers-1
// causal convolutions with batch norm, tanh, and dropout, then one final
// linear causal convolution with its own batch norm mapping to the mel
// channel width.
type PostnetConvLayers struct {
	Convs    []*Conv1D    // n_layers-1 tanh convolutions
	LastConv *Conv1D      // linear activation
	Norms    []*BatchNorm // one per convolution, LastConv's included

	DropoutRate float64
}

// NewPostnetConvLayers creates the stack. outSize is the mel channel
// width of the final convolution.
func NewPostnetConvLayers(outSize, nFilters, nLayers, kernelSize int, dropoutRate float64) *PostnetConvLayers {
	convs := make([]*Conv1D, nLayers-1)
	norms := make([]*BatchNorm, nLayers)
	in := outSize
	for i := range convs {
		convs[i] = NewConv1D(in, nFilters, kernelSize)
		norms[i] = NewBatchNorm(nFilters)
		in = nFilters
	}
	norms[nLayers-1] = NewBatchNorm(outSize)
	return &PostnetConvLayers{
		Convs:       convs,
		LastConv:    NewConv1D(in, outSize, kernelSize),
		Norms:       norms,
		DropoutRate: dropoutRate,
	}
}

// Forward runs the stack over a (batch, seq, out_size) tensor.
func (p *PostnetConvLayers) Forward(x *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	var err error
	for i, conv := range p.Convs {
		if x, err = conv.Forward(x); err != nil {
			return nil, fmt.Errorf("postnet convolution %d failed: %w", i+1, err)
		}
		x = x.Tanh()
		if x, err = p.Norms[i].Forward(x, training); err != nil {
			return nil, fmt.Errorf("postnet batch norm %d failed: %w", i+1, err)
		}
		x = x.Dropout(p.DropoutRate, training)
	}

	if x, err = p.LastConv.Forward(x); err != nil {
		return nil, fmt.Errorf("final postnet convolution failed: %w", err)
	}
	return p.Norms[len(p.Norms)-1].Forward(x, training)
}

// PostnetOutput is the record produced by one Postnet forward pass.
type PostnetOutput struct {
	// MelLinear is the unmodified input.
	MelLinear *tensor.Tensor
	// FinalOutput is MelLinear plus the convolutional stack's refinement.
	FinalOutput *tensor.Tensor
	// StopProb is the 3-class stop-token logit tensor (batch, seq, 3),
	// projected from the raw input, not the refined output.
	StopProb *tensor.Tensor
}

// Postnet refines the decoder's mel output with a residual convolutional
// correction and computes stop-token logits in parallel.
type Postnet struct {
	MelChannels int

	StopLinear *Dense
	ConvStack  *PostnetConvLayers
}

// NewPostnet creates the postnet over melChannels-wide frames.
func NewPostnet(melChannels, convFilters, convLayers, kernelSize int, dropoutRate float64) *Postnet {
	return &Postnet{
		MelChannels: melChannels,
		StopLinear:  NewDense(melChannels, 3),
		ConvStack:   NewPostnetConvLayers(melChannels, convFilters, convLayers, kernelSize, dropoutRate),
	}
}

// Forward refines a (batch, seq, mel_channels) decoder output.
// FinalOutput equals the input plus the convolution stack's output exactly.
func (p *Postnet) Forward(x *tensor.Tensor, training bool) (*PostnetOutput, error) {
	if x.NumDims() != 3 {
		return nil, fmt.Errorf("expected 3D input (batch, seq, mel_channels), got shape %v", x.Shape)
	}
	if x.Shape[2] != p.MelChannels {
		return nil, fmt.Errorf("input channel width %d doesn't match postnet width %d",
			x.Shape[2], p.MelChannels)
	}

	stop, err := p.StopLinear.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stop logits: %w", err)
	}

	convOut, err := p.ConvStack.Forward(x, training)
	if err != nil {
		return nil, err
	}

	final, err := tensor.Add(x, convOut)
	if err != nil {
		return nil, fmt.Errorf("failed to add postnet residual: %w", err)
	}

	return &PostnetOutput{
		MelLinear:   x,
		FinalOutput: final,
		StopProb:    stop,
	}, nil
}

package model

import (
	"fmt"
	"math"

	"melformer/pkg/tensor"
)

// LayerNorm normalizes the last (feature) dimension to zero mean and unit
// variance, then applies a learned scale (gamma) and shift (beta).
type LayerNorm struct {
	Scale *tensor.Tensor // (dim,) - gamma
	Shift *tensor.Tensor // (dim,) - beta
	Eps   float64
}

// NewLayerNorm creates a LayerNorm with scale=1, shift=0.
func NewLayerNorm(dim int, eps float64) *LayerNorm {
	scale := tensor.NewTensor([]int{dim})
	for i := range scale.Data {
		scale.Data[i] = 1.0
	}
	return &LayerNorm{
		Scale: scale,
		Shift: tensor.NewTensor([]int{dim}),
		Eps:   eps,
	}
}

// Forward applies layer normalization. Output shape equals input shape.
func (ln *LayerNorm) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.NumDims() == 0 {
		return nil, fmt.Errorf("cannot apply layer norm to a scalar tensor")
	}
	dim := x.Shape[len(x.Shape)-1]
	if dim != len(ln.Scale.Data) {
		return nil, fmt.Errorf("input feature width %d doesn't match layer norm width %d",
			dim, len(ln.Scale.Data))
	}

	result := tensor.NewTensor(x.Shape)
	numRows := len(x.Data) / dim

	for row := 0; row < numRows; row++ {
		offset := row * dim

		mean := 0.0
		for i := 0; i < dim; i++ {
			mean += x.Data[offset+i]
		}
		mean /= float64(dim)

		variance := 0.0
		for i := 0; i < dim; i++ {
			diff := x.Data[offset+i] - mean
			variance += diff * diff
		}
		variance /= float64(dim)

		invStd := 1.0 / math.Sqrt(variance+ln.Eps)
		for i := 0; i < dim; i++ {
			norm := (x.Data[offset+i] - mean) * invStd
			result.Data[offset+i] = norm*ln.Scale.Data[i] + ln.Shift.Data[i]
		}
	}

	return result, nil
}

// BatchNorm normalizes each channel over the batch and time dimensions.
// Running mean/variance are updated only during training-mode calls and
// used verbatim at inference.
type BatchNorm struct {
	Scale *tensor.Tensor // (channels,) - gamma
	Shift *tensor.Tensor // (channels,) - beta

	RunningMean *tensor.Tensor // (channels,)
	RunningVar  *tensor.Tensor // (channels,)

	Momentum float64
	Eps      float64
}

// NewBatchNorm creates a BatchNorm over the given channel width with
// scale=1, shift=0, running mean 0 and running variance 1.
func NewBatchNorm(channels int) *BatchNorm {
	scale := tensor.NewTensor([]int{channels})
	runningVar := tensor.NewTensor([]int{channels})
	for i := 0; i < channels; i++ {
		scale.Data[i] = 1.0
		runningVar.Data[i] = 1.0
	}
	return &BatchNorm{
		Scale:       scale,
		Shift:       tensor.NewTensor([]int{channels}),
		RunningMean: tensor.NewTensor([]int{channels}),
		RunningVar:  runningVar,
		Momentum:    0.99,
		Eps:         1e-3,
	}
}

// Forward normalizes a (batch, seq, channels) tensor per channel.
//
// In training mode the batch statistics are used and folded into the
// running statistics; at inference the running statistics are used.
func (bn *BatchNorm) Forward(x *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	if x.NumDims() != 3 {
		return nil, fmt.Errorf("expected 3D input (batch, seq, channels), got shape %v", x.Shape)
	}
	channels := x.Shape[2]
	if channels != len(bn.Scale.Data) {
		return nil, fmt.Errorf("input channel width %d doesn't match batch norm width %d",
			channels, len(bn.Scale.Data))
	}

	mean := bn.RunningMean.Data
	variance := bn.RunningVar.Data

	if training {
		count := float64(x.Shape[0] * x.Shape[1])
		batchMean := make([]float64, channels)
		batchVar := make([]float64, channels)

		for i, v := range x.Data {
			batchMean[i%channels] += v
		}
		for c := 0; c < channels; c++ {
			batchMean[c] /= count
		}
		for i, v := range x.Data {
			diff := v - batchMean[i%channels]
			batchVar[i%channels] += diff * diff
		}
		for c := 0; c < channels; c++ {
			batchVar[c] /= count
		}

		for c := 0; c < channels; c++ {
			bn.RunningMean.Data[c] = bn.Momentum*bn.RunningMean.Data[c] + (1-bn.Momentum)*batchMean[c]
			bn.RunningVar.Data[c] = bn.Momentum*bn.RunningVar.Data[c] + (1-bn.Momentum)*batchVar[c]
		}
		mean = batchMean
		variance = batchVar
	}

	result := tensor.NewTensor(x.Shape)
	for i, v := range x.Data {
		c := i % channels
		norm := (v - mean[c]) / math.Sqrt(variance[c]+bn.Eps)
		result.Data[i] = norm*bn.Scale.Data[c] + bn.Shift.Data[c]
	}

	return result, nil
}

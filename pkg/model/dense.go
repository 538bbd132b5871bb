package model

import (
	"fmt"

	"melformer/pkg/tensor"
)

// Dense is a position-wise linear layer with bias, applied to the last
// dimension of its input.
type Dense struct {
	W *tensor.Tensor // (in, out)
	B *tensor.Tensor // (out,)
}

// NewDense creates a dense layer with Glorot-initialized weights and zero
// bias.
func NewDense(in, out int) *Dense {
	return &Dense{
		W: tensor.GlorotUniform([]int{in, out}, in, out),
		B: tensor.NewTensor([]int{out}),
	}
}

// Forward computes x @ W + B over the last dimension.
//
// Input shape: (..., in); output shape: (..., out).
func (d *Dense) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	in := d.W.Shape[0]
	if x.Shape[len(x.Shape)-1] != in {
		return nil, fmt.Errorf("input feature width %d doesn't match dense layer input width %d",
			x.Shape[len(x.Shape)-1], in)
	}
	out, err := tensor.Matmul(x, d.W)
	if err != nil {
		return nil, fmt.Errorf("failed to apply dense projection: %w", err)
	}
	return tensor.Add(out, d.B)
}

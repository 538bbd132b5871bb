package tensor

import "math"

// ReLU applies the rectified linear unit activation element-wise.
//
// Input: tensor of any shape
// Output: tensor of the same shape with max(0, x) applied element-wise
func (t *Tensor) ReLU() *Tensor {
	result := NewTensor(t.Shape)
	for i, v := range t.Data {
		if v > 0 {
			result.Data[i] = v
		}
	}
	return result
}

// Tanh applies the hyperbolic tangent activation element-wise.
func (t *Tensor) Tanh() *Tensor {
	result := NewTensor(t.Shape)
	for i, v := range t.Data {
		result.Data[i] = math.Tanh(v)
	}
	return result
}

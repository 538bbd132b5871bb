package model

import (
	"testing"

	"melformer/pkg/tensor"
)

func TestDenseForward(t *testing.T) {
	d := NewDense(3, 2)
	// Fix the weights for a hand-checked product.
	copy(d.W.Data, []float64{1, 0, 0, 1, 1, 1})
	copy(d.B.Data, []float64{10, 20})

	x, _ := tensor.FromSlice([]float64{1, 2, 3}, []int{1, 1, 3})
	out, err := d.Forward(x)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	// (1,2,3) @ W = (4, 5), plus bias = (14, 25).
	if out.Data[0] != 14 || out.Data[1] != 25 {
		t.Errorf("output = %v, expected [14 25]", out.Data)
	}

	if _, err := d.Forward(tensor.NewTensor([]int{1, 1, 4})); err == nil {
		t.Error("expected error for mismatched input width, got nil")
	}
}

func TestPointWiseFFNShape(t *testing.T) {
	ff := NewPointWiseFFN(16, 32)

	x := tensor.NewTensor([]int{2, 10, 16})
	out, err := ff.Forward(x)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !out.ShapeEquals(x) {
		t.Errorf("output shape = %v, expected %v", out.Shape, x.Shape)
	}
}

func TestFFNResNormShapePreserving(t *testing.T) {
	f := NewFFNResNorm(16, 32, 0.1)

	x := tensor.GlorotUniform([]int{2, 7, 16}, 16, 16)
	out, err := f.Forward(x, false)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !out.ShapeEquals(x) {
		t.Errorf("output shape = %v, expected %v", out.Shape, x.Shape)
	}
	if out.HasNaN() {
		t.Error("FFNResNorm produced NaN values")
	}
}

func TestSelfAttentionResNormShapePreserving(t *testing.T) {
	s, err := NewSelfAttentionResNorm(16, 4, 0.1)
	if err != nil {
		t.Fatalf("NewSelfAttentionResNorm failed: %v", err)
	}

	x := tensor.GlorotUniform([]int{2, 6, 16}, 16, 16)
	out, weights, err := s.Forward(x, nil, false, 0)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !out.ShapeEquals(x) {
		t.Errorf("output shape = %v, expected %v", out.Shape, x.Shape)
	}

	wantWeights := []int{2, 4, 6, 6}
	for i := range wantWeights {
		if weights.Shape[i] != wantWeights[i] {
			t.Fatalf("weights shape = %v, expected %v", weights.Shape, wantWeights)
		}
	}
}

func TestCrossAttentionResNormShapes(t *testing.T) {
	c, err := NewCrossAttentionResNorm(16, 2, 0.1)
	if err != nil {
		t.Fatalf("NewCrossAttentionResNorm failed: %v", err)
	}

	q := tensor.GlorotUniform([]int{2, 5, 16}, 16, 16)
	kv := tensor.GlorotUniform([]int{2, 9, 16}, 16, 16)

	out, weights, err := c.Forward(q, kv, kv, nil, false, 0)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	// Output follows the query length; weights span query x key lengths.
	if !out.ShapeEquals(q) {
		t.Errorf("output shape = %v, expected %v", out.Shape, q.Shape)
	}
	wantWeights := []int{2, 2, 5, 9}
	for i := range wantWeights {
		if weights.Shape[i] != wantWeights[i] {
			t.Fatalf("weights shape = %v, expected %v", weights.Shape, wantWeights)
		}
	}
}

func TestResNormInvalidHeads(t *testing.T) {
	if _, err := NewSelfAttentionResNorm(16, 5, 0.1); err == nil {
		t.Error("expected error for indivisible head count, got nil")
	}
	if _, err := NewCrossAttentionResNorm(16, 5, 0.1); err == nil {
		t.Error("expected error for indivisible head count, got nil")
	}
}

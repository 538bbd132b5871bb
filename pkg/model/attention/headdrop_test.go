package attention

import (
	"math"
	"testing"

	"melformer/pkg/tensor"
)

func onesTensor(shape []int) *tensor.Tensor {
	t := tensor.NewTensor(shape)
	for i := range t.Data {
		t.Data[i] = 1
	}
	return t
}

func TestHeadDropIdentityCases(t *testing.T) {
	input := onesTensor([]int{2, 4, 3, 5})

	out, err := HeadDrop(input, false, 2)
	if err != nil {
		t.Fatalf("HeadDrop failed: %v", err)
	}
	if !input.Equals(out, 0) {
		t.Error("HeadDrop modified input outside training mode")
	}

	out, err = HeadDrop(input, true, 0)
	if err != nil {
		t.Fatalf("HeadDrop failed: %v", err)
	}
	if !input.Equals(out, 0) {
		t.Error("HeadDrop with drop_n_heads=0 modified input")
	}
}

func TestHeadDropSingleHead(t *testing.T) {
	input := onesTensor([]int{2, 1, 3, 5})

	out, err := HeadDrop(input, true, 3)
	if err != nil {
		t.Fatalf("HeadDrop failed: %v", err)
	}
	if !input.Equals(out, 0) {
		t.Error("HeadDrop modified a single-head tensor")
	}
}

func TestHeadDropRankValidation(t *testing.T) {
	input := onesTensor([]int{2, 4, 3})
	if _, err := HeadDrop(input, true, 1); err == nil {
		t.Error("expected error for rank-3 input, got nil")
	}
}

func TestHeadDropDegenerateCount(t *testing.T) {
	input := onesTensor([]int{2, 4, 3, 5})

	if _, err := HeadDrop(input, true, 4); err == nil {
		t.Error("expected error for drop_n_heads == num_heads, got nil")
	}
	if _, err := HeadDrop(input, true, 5); err == nil {
		t.Error("expected error for drop_n_heads > num_heads, got nil")
	}
	if _, err := HeadDrop(input, true, -1); err == nil {
		t.Error("expected error for negative drop_n_heads, got nil")
	}
}

func TestHeadDropKeepCountAndRescale(t *testing.T) {
	SetHeadDropSeed(11)

	const (
		batch = 16
		heads = 4
		seqQ  = 3
		depth = 5
		dropN = 1
	)
	input := onesTensor([]int{batch, heads, seqQ, depth})

	out, err := HeadDrop(input, true, dropN)
	if err != nil {
		t.Fatalf("HeadDrop failed: %v", err)
	}

	scale := float64(heads) / float64(heads-dropN) // 4/3
	for b := 0; b < batch; b++ {
		kept := 0
		for h := 0; h < heads; h++ {
			v := out.Get([]int{b, h, 0, 0})
			switch v {
			case 0:
				// A dropped head must be zero everywhere.
				for s := 0; s < seqQ; s++ {
					for d := 0; d < depth; d++ {
						if out.Get([]int{b, h, s, d}) != 0 {
							t.Fatalf("head (%d,%d) partially dropped", b, h)
						}
					}
				}
			case scale:
				kept++
				for s := 0; s < seqQ; s++ {
					for d := 0; d < depth; d++ {
						if out.Get([]int{b, h, s, d}) != scale {
							t.Fatalf("head (%d,%d) partially rescaled", b, h)
						}
					}
				}
			default:
				t.Fatalf("unexpected value %v at head (%d,%d)", v, b, h)
			}
		}
		if kept != heads-dropN {
			t.Errorf("batch row %d kept %d heads, expected %d", b, kept, heads-dropN)
		}
	}
}

func TestHeadDropIndependentPerRow(t *testing.T) {
	SetHeadDropSeed(3)

	const batch = 32
	input := onesTensor([]int{batch, 4, 1, 1})

	out, err := HeadDrop(input, true, 1)
	if err != nil {
		t.Fatalf("HeadDrop failed: %v", err)
	}

	// With 32 independent rows the dropped head index cannot be identical
	// everywhere.
	droppedAt := func(b int) int {
		for h := 0; h < 4; h++ {
			if out.Get([]int{b, h, 0, 0}) == 0 {
				return h
			}
		}
		return -1
	}
	first := droppedAt(0)
	allSame := true
	for b := 1; b < batch; b++ {
		if droppedAt(b) != first {
			allSame = false
			break
		}
	}
	if allSame {
		t.Error("every batch row dropped the same head; permutations are shared")
	}
}

func TestHeadDropExpectedValue(t *testing.T) {
	SetHeadDropSeed(5)

	const trials = 3000
	input := onesTensor([]int{1, 4, 1, 1})

	sums := make([]float64, 4)
	for trial := 0; trial < trials; trial++ {
		out, err := HeadDrop(input, true, 1)
		if err != nil {
			t.Fatalf("HeadDrop failed: %v", err)
		}
		for h := 0; h < 4; h++ {
			sums[h] += out.Get([]int{0, h, 0, 0})
		}
	}

	// Rescaling by 4/3 compensates for the dropped head: the expectation
	// per head is the unscaled input value.
	for h := 0; h < 4; h++ {
		mean := sums[h] / trials
		if math.Abs(mean-1) > 0.05 {
			t.Errorf("head %d expected value = %v, want ~1", h, mean)
		}
	}
}

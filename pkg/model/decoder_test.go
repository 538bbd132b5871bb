package model

import (
	"fmt"
	"testing"

	"melformer/pkg/tensor"
)

func TestNewDecoder(t *testing.T) {
	dec, err := NewDecoder(testEncoderConfig())
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	if len(dec.Layers) != 2 {
		t.Errorf("decoder has %d layers, expected 2", len(dec.Layers))
	}

	bad := testEncoderConfig()
	bad.ModelDim = 0
	if _, err := NewDecoder(bad); err == nil {
		t.Error("expected error for invalid config, got nil")
	}
}

func TestDecoderForward(t *testing.T) {
	config := testEncoderConfig()
	dec, err := NewDecoder(config)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}

	// Target length 5 against encoder output length 10.
	targets := tensor.GlorotUniform([]int{2, 5, 16}, 16, 16)
	encOutput := tensor.GlorotUniform([]int{2, 10, 16}, 16, 16)
	lookAhead := LookAheadMask(5)
	padding, err := PaddingMask([]int{10, 10}, 10)
	if err != nil {
		t.Fatalf("PaddingMask failed: %v", err)
	}

	out, attnMaps, err := dec.Forward(targets, encOutput, lookAhead, padding, false, 0)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	wantOut := []int{2, 5, 16}
	for i := range wantOut {
		if out.Shape[i] != wantOut[i] {
			t.Fatalf("output shape = %v, expected %v", out.Shape, wantOut)
		}
	}
	if out.HasNaN() {
		t.Error("decoder produced NaN values")
	}

	// Exactly two attention maps per layer, keyed by 1-indexed layer number.
	if len(attnMaps) != 4 {
		t.Fatalf("attention map count = %d, expected 4", len(attnMaps))
	}
	for i := 1; i <= 2; i++ {
		for _, block := range []string{"block1", "block2"} {
			key := fmt.Sprintf("decoder_layer%d_%s", i, block)
			if _, ok := attnMaps[key]; !ok {
				t.Errorf("missing attention map %q", key)
			}
		}
	}
	if _, ok := attnMaps["decoder_layer0_block1"]; ok {
		t.Error("attention maps are 0-indexed, expected 1-indexed keys")
	}

	// Self-attention spans the target; cross-attention spans target x source.
	wantBlock1 := []int{2, 2, 5, 5}
	for i, want := range wantBlock1 {
		if attnMaps["decoder_layer1_block1"].Shape[i] != want {
			t.Fatalf("block1 shape = %v, expected %v", attnMaps["decoder_layer1_block1"].Shape, wantBlock1)
		}
	}
	wantBlock2 := []int{2, 2, 5, 10}
	for i, want := range wantBlock2 {
		if attnMaps["decoder_layer2_block2"].Shape[i] != want {
			t.Fatalf("block2 shape = %v, expected %v", attnMaps["decoder_layer2_block2"].Shape, wantBlock2)
		}
	}
}

func TestDecoderSequenceLengthBound(t *testing.T) {
	config := testEncoderConfig()
	config.MaxPositionEncoding = 6

	dec, err := NewDecoder(config)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}

	targets := tensor.NewTensor([]int{1, 7, 16})
	encOutput := tensor.NewTensor([]int{1, 10, 16})
	if _, _, err := dec.Forward(targets, encOutput, nil, nil, false, 0); err == nil {
		t.Error("expected error for sequence longer than maximum position encoding, got nil")
	}
}

func TestDecoderCausality(t *testing.T) {
	config := testEncoderConfig()
	config.DropoutRate = 0 // deterministic forward

	dec, err := NewDecoder(config)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}

	encOutput := tensor.GlorotUniform([]int{1, 8, 16}, 16, 16)
	targets := tensor.GlorotUniform([]int{1, 4, 16}, 16, 16)
	lookAhead := LookAheadMask(4)

	out1, _, err := dec.Forward(targets, encOutput, lookAhead, nil, false, 0)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	// Perturb the final target frame; earlier output frames must not move.
	perturbed := targets.Clone()
	for d := 0; d < 16; d++ {
		perturbed.Set([]int{0, 3, d}, perturbed.Get([]int{0, 3, d})+5)
	}
	out2, _, err := dec.Forward(perturbed, encOutput, lookAhead, nil, false, 0)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	for s := 0; s < 3; s++ {
		for d := 0; d < 16; d++ {
			a := out1.Get([]int{0, s, d})
			b := out2.Get([]int{0, s, d})
			if a != b {
				t.Fatalf("frame %d changed after perturbing a future frame", s)
			}
		}
	}
}

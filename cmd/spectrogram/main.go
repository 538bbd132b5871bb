// Command spectrogram runs one forward pass through the acoustic stack on
// synthetic input and prints the resulting shapes and attention diagnostics.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/exp/rand"

	"melformer/pkg/model"
	"melformer/pkg/tensor"
)

func main() {
	batchSize := flag.Int("batch", 2, "Batch size")
	srcLen := flag.Int("src-len", 32, "Source (encoder) sequence length")
	tgtLen := flag.Int("tgt-len", 24, "Target (decoder) sequence length")
	seed := flag.Uint64("seed", 42, "Random seed for weights and inputs")
	flag.Parse()

	tensor.SetInitSeed(*seed)

	config := model.DefaultConfig()

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("        Acoustic Model Forward Pass")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()
	fmt.Printf("Model Configuration:\n")
	fmt.Printf("  Model Dim: %d\n", config.ModelDim)
	fmt.Printf("  Heads Per Layer: %v\n", config.NumHeads)
	fmt.Printf("  Dense Hidden Units: %d\n", config.DenseHiddenUnits)
	fmt.Printf("  Max Position Encoding: %d\n", config.MaxPositionEncoding)
	fmt.Printf("  Mel Channels: %d\n", config.MelChannels)
	fmt.Println()

	encoder, err := model.NewEncoder(config)
	if err != nil {
		fatalf("failed to build encoder: %v", err)
	}
	decoder, err := model.NewDecoder(config)
	if err != nil {
		fatalf("failed to build decoder: %v", err)
	}
	prenet := model.NewDecoderPrenet(config.MelChannels, config.DenseHiddenUnits, config.ModelDim)
	melProj := model.NewDense(config.ModelDim, config.MelChannels)
	postnet := model.NewPostnet(config.MelChannels, config.ConvFilters, config.ConvLayers, config.KernelSize, config.PostnetDropout)

	rng := rand.New(rand.NewSource(*seed))
	src := randomTensor(rng, []int{*batchSize, *srcLen, config.ModelDim})
	tgt := randomTensor(rng, []int{*batchSize, *tgtLen, config.MelChannels})

	lengths := make([]int, *batchSize)
	for i := range lengths {
		lengths[i] = *srcLen
	}
	paddingMask, err := model.PaddingMask(lengths, *srcLen)
	if err != nil {
		fatalf("failed to build padding mask: %v", err)
	}
	lookAhead := model.LookAheadMask(*tgtLen)

	encOutput, err := encoder.Forward(src, paddingMask, false, 0)
	if err != nil {
		fatalf("encoder forward failed: %v", err)
	}
	fmt.Printf("Encoder output: %v\n", encOutput.Shape)

	conditioned, err := prenet.Forward(tgt, 0.5)
	if err != nil {
		fatalf("prenet forward failed: %v", err)
	}
	fmt.Printf("Prenet output:  %v\n", conditioned.Shape)

	decOutput, attnMaps, err := decoder.Forward(conditioned, encOutput, lookAhead, paddingMask, false, 0)
	if err != nil {
		fatalf("decoder forward failed: %v", err)
	}
	fmt.Printf("Decoder output: %v\n", decOutput.Shape)

	mel, err := melProj.Forward(decOutput)
	if err != nil {
		fatalf("mel projection failed: %v", err)
	}
	out, err := postnet.Forward(mel, false)
	if err != nil {
		fatalf("postnet forward failed: %v", err)
	}
	fmt.Printf("Mel linear:     %v\n", out.MelLinear.Shape)
	fmt.Printf("Final output:   %v\n", out.FinalOutput.Shape)
	fmt.Printf("Stop logits:    %v\n", out.StopProb.Shape)
	fmt.Println()

	fmt.Println("Decoder attention maps:")
	names := make([]string, 0, len(attnMaps))
	for name := range attnMaps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-24s %v\n", name, attnMaps[name].Shape)
	}
}

func randomTensor(rng *rand.Rand, shape []int) *tensor.Tensor {
	t := tensor.NewTensor(shape)
	for i := range t.Data {
		t.Data[i] = rng.Float64()*2 - 1
	}
	return t
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

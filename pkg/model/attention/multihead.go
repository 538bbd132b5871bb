package attention

import (
	"fmt"

	"melformer/pkg/tensor"
)

// MultiHeadAttention implements multi-head attention with head dropout and
// a query-augmented output projection.
//
// This deviates from the canonical formulation in one deliberate way: the
// recombined attention output is concatenated with the original, unprojected
// query before the final dense projection, so the output layer sees both the
// attended context and the raw query signal. The concatenation is part of
// the layer's semantics, not an optimization.
type MultiHeadAttention struct {
	NumHeads int
	ModelDim int
	Depth    int // ModelDim / NumHeads

	WQuery *tensor.Tensor // (model_dim, model_dim)
	WKey   *tensor.Tensor // (model_dim, model_dim)
	WValue *tensor.Tensor // (model_dim, model_dim)
	BQuery *tensor.Tensor // (model_dim,)
	BKey   *tensor.Tensor // (model_dim,)
	BValue *tensor.Tensor // (model_dim,)

	// Output projection over [query ++ attention]: (2*model_dim, model_dim).
	WOut *tensor.Tensor
	BOut *tensor.Tensor // (model_dim,)
}

// NewMultiHeadAttention creates a multi-head attention layer.
// modelDim must be divisible by numHeads.
func NewMultiHeadAttention(modelDim, numHeads int) (*MultiHeadAttention, error) {
	if numHeads <= 0 {
		return nil, fmt.Errorf("num_heads must be positive, got %d", numHeads)
	}
	if modelDim%numHeads != 0 {
		return nil, fmt.Errorf("model_dim (%d) must be divisible by num_heads (%d)", modelDim, numHeads)
	}

	return &MultiHeadAttention{
		NumHeads: numHeads,
		ModelDim: modelDim,
		Depth:    modelDim / numHeads,
		WQuery:   tensor.GlorotUniform([]int{modelDim, modelDim}, modelDim, modelDim),
		WKey:     tensor.GlorotUniform([]int{modelDim, modelDim}, modelDim, modelDim),
		WValue:   tensor.GlorotUniform([]int{modelDim, modelDim}, modelDim, modelDim),
		BQuery:   tensor.NewTensor([]int{modelDim}),
		BKey:     tensor.NewTensor([]int{modelDim}),
		BValue:   tensor.NewTensor([]int{modelDim}),
		WOut:     tensor.GlorotUniform([]int{2 * modelDim, modelDim}, 2*modelDim, modelDim),
		BOut:     tensor.NewTensor([]int{modelDim}),
	}, nil
}

// splitHeads reshapes (batch, seq, model_dim) into (batch, heads, seq, depth).
func (m *MultiHeadAttention) splitHeads(x *tensor.Tensor, batchSize, seqLen int) (*tensor.Tensor, error) {
	return x.Reshape([]int{batchSize, seqLen, m.NumHeads, m.Depth}).Transpose(1, 2)
}

// Forward computes attention of the query over the key/value sequence.
//
// Input shapes:
//   - value, key: (batch, seq_k, model_dim)
//   - query: (batch, seq_q, model_dim)
//   - mask: broadcastable against (batch, heads, seq_q, seq_k), or nil
//
// Returns the output (batch, seq_q, model_dim) and the attention weights
// (batch, heads, seq_q, seq_k). The weights are returned for diagnostics;
// no state is retained across calls.
func (m *MultiHeadAttention) Forward(value, key, query, mask *tensor.Tensor, training bool, dropNHeads int) (*tensor.Tensor, *tensor.Tensor, error) {
	if query.NumDims() != 3 {
		return nil, nil, fmt.Errorf("expected 3D query (batch, seq, model_dim), got shape %v", query.Shape)
	}
	batchSize, seqQ := query.Shape[0], query.Shape[1]
	seqK := key.Shape[1]

	q, err := m.project(query, m.WQuery, m.BQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to project query: %w", err)
	}
	k, err := m.project(key, m.WKey, m.BKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to project key: %w", err)
	}
	v, err := m.project(value, m.WValue, m.BValue)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to project value: %w", err)
	}

	if q, err = m.splitHeads(q, batchSize, seqQ); err != nil {
		return nil, nil, fmt.Errorf("failed to split query heads: %w", err)
	}
	if k, err = m.splitHeads(k, batchSize, seqK); err != nil {
		return nil, nil, fmt.Errorf("failed to split key heads: %w", err)
	}
	if v, err = m.splitHeads(v, batchSize, seqK); err != nil {
		return nil, nil, fmt.Errorf("failed to split value heads: %w", err)
	}

	attended, weights, err := ScaledDotProductAttention(q, k, v, mask)
	if err != nil {
		return nil, nil, err
	}

	attended, err = HeadDrop(attended, training, dropNHeads)
	if err != nil {
		return nil, nil, err
	}

	// Recombine heads: (batch, heads, seq_q, depth) -> (batch, seq_q, model_dim).
	attended, err = attended.Transpose(1, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to recombine heads: %w", err)
	}
	concat := attended.Reshape([]int{batchSize, seqQ, m.ModelDim})

	// Query augmentation: the raw query rides along into the output
	// projection.
	augmented, err := tensor.ConcatFeatures(query, concat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to concatenate query with attention output: %w", err)
	}

	output, err := m.project(augmented, m.WOut, m.BOut)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to project attention output: %w", err)
	}

	return output, weights, nil
}

// project applies a dense projection with bias.
func (m *MultiHeadAttention) project(x, w, b *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.Matmul(x, w)
	if err != nil {
		return nil, err
	}
	return tensor.Add(out, b)
}

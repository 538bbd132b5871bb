// Package tensor provides dense tensor operations for the acoustic model.
// Tensors are rank-N float64 arrays stored in a flat slice with shape and
// stride bookkeeping; matrix products are delegated to gonum.
package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Tensor represents a multi-dimensional array of float64 values.
type Tensor struct {
	Data    []float64 // Flattened data storage
	Shape   []int     // Dimensions (e.g., [batch, heads, seq, dim])
	Strides []int     // Precomputed strides for indexing
}

// NewTensor creates a new tensor with the given shape, initialized to zeros.
func NewTensor(shape []int) *Tensor {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return &Tensor{
		Data:    make([]float64, size),
		Shape:   copyShape(shape),
		Strides: computeStrides(shape),
	}
}

// FromSlice creates a tensor from existing data with the given shape.
// The data is copied. Returns an error if data size doesn't match the shape.
func FromSlice(data []float64, shape []int) (*Tensor, error) {
	expectedSize := 1
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", dim, shape)
		}
		expectedSize *= dim
	}
	if len(data) != expectedSize {
		return nil, fmt.Errorf("data size %d does not match shape %v (expected %d elements)",
			len(data), shape, expectedSize)
	}

	dataCopy := make([]float64, len(data))
	copy(dataCopy, data)

	return &Tensor{
		Data:    dataCopy,
		Shape:   copyShape(shape),
		Strides: computeStrides(shape),
	}, nil
}

// View returns a new tensor with a different shape sharing the same
// underlying data. Returns an error if total size doesn't match.
func (t *Tensor) View(newShape []int) (*Tensor, error) {
	newSize := 1
	for _, dim := range newShape {
		if dim < 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", dim, newShape)
		}
		newSize *= dim
	}
	if newSize != len(t.Data) {
		return nil, fmt.Errorf("cannot view tensor of size %d as shape %v (total size %d)",
			len(t.Data), newShape, newSize)
	}
	return &Tensor{
		Data:    t.Data,
		Shape:   copyShape(newShape),
		Strides: computeStrides(newShape),
	}, nil
}

// Reshape returns a view with a different shape (same underlying data).
// Panics on a size mismatch; use View for the error-returning form.
func (t *Tensor) Reshape(newShape []int) *Tensor {
	result, err := t.View(newShape)
	if err != nil {
		panic(err)
	}
	return result
}

// Transpose exchanges two dimensions of the tensor, copying the data into
// the new layout.
func (t *Tensor) Transpose(dim1, dim2 int) (*Tensor, error) {
	if dim1 < 0 || dim1 >= len(t.Shape) || dim2 < 0 || dim2 >= len(t.Shape) {
		return nil, fmt.Errorf("invalid transpose dimensions %d and %d for tensor with %d dimensions",
			dim1, dim2, len(t.Shape))
	}
	if dim1 == dim2 {
		return t.Clone(), nil
	}

	newShape := copyShape(t.Shape)
	newShape[dim1], newShape[dim2] = newShape[dim2], newShape[dim1]
	result := NewTensor(newShape)

	srcIndices := make([]int, len(t.Shape))
	dstIndices := make([]int, len(t.Shape))
	var walk func(pos int)
	walk = func(pos int) {
		if pos == len(t.Shape) {
			copy(dstIndices, srcIndices)
			dstIndices[dim1], dstIndices[dim2] = dstIndices[dim2], dstIndices[dim1]
			result.Data[result.FlatIndex(dstIndices)] = t.Data[t.FlatIndex(srcIndices)]
			return
		}
		for i := 0; i < t.Shape[pos]; i++ {
			srcIndices[pos] = i
			walk(pos + 1)
		}
	}
	walk(0)

	return result, nil
}

// Size returns the total number of elements in the tensor.
func (t *Tensor) Size() int {
	size := 1
	for _, dim := range t.Shape {
		size *= dim
	}
	return size
}

// NumDims returns the number of dimensions (rank) of the tensor.
func (t *Tensor) NumDims() int {
	return len(t.Shape)
}

// FlatIndex converts multi-dimensional indices to a flat index.
func (t *Tensor) FlatIndex(indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("indices length %d does not match shape dimensions %d",
			len(indices), len(t.Shape)))
	}
	idx := 0
	for i := 0; i < len(t.Shape); i++ {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d with size %d",
				indices[i], i, t.Shape[i]))
		}
		idx += indices[i] * t.Strides[i]
	}
	return idx
}

// Get retrieves a value at the specified indices.
func (t *Tensor) Get(indices []int) float64 {
	return t.Data[t.FlatIndex(indices)]
}

// Set sets a value at the specified indices.
func (t *Tensor) Set(indices []int, value float64) {
	t.Data[t.FlatIndex(indices)] = value
}

// Clone creates a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	result := NewTensor(t.Shape)
	copy(result.Data, t.Data)
	return result
}

// Equals checks if two tensors have the same shape and approximately equal values.
func (t *Tensor) Equals(other *Tensor, tolerance float64) bool {
	if !t.ShapeEquals(other) {
		return false
	}
	for i := range t.Data {
		if math.Abs(t.Data[i]-other.Data[i]) > tolerance {
			return false
		}
	}
	return true
}

// ShapeEquals checks if two tensors have the same shape.
func (t *Tensor) ShapeEquals(other *Tensor) bool {
	if len(t.Shape) != len(other.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != other.Shape[i] {
			return false
		}
	}
	return true
}

// HasNaN reports whether any element is NaN or infinite.
func (t *Tensor) HasNaN() bool {
	for _, v := range t.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// Scale multiplies all elements by a scalar.
func (t *Tensor) Scale(s float64) *Tensor {
	result := NewTensor(t.Shape)
	for i := range t.Data {
		result.Data[i] = t.Data[i] * s
	}
	return result
}

// Matmul performs matrix multiplication on the last two dimensions.
// For tensors of shape (..., m, n) and (..., n, p), returns (..., m, p).
// A 2D right operand is broadcast over the left operand's batch dimensions,
// which covers the (batch, seq, d_in) @ (d_in, d_out) projection case.
// The per-matrix products run through gonum.
func Matmul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) < 2 || len(b.Shape) < 2 {
		return nil, fmt.Errorf("matmul requires at least 2D tensors, got %dD and %dD",
			len(a.Shape), len(b.Shape))
	}

	m := a.Shape[len(a.Shape)-2]
	n := a.Shape[len(a.Shape)-1]
	p := b.Shape[len(b.Shape)-1]

	if b.Shape[len(b.Shape)-2] != n {
		return nil, fmt.Errorf("incompatible shapes for matmul: %v and %v", a.Shape, b.Shape)
	}

	// (..., m, n) @ (n, p): flatten the batch dimensions into the row
	// dimension and run a single product.
	if len(b.Shape) == 2 {
		rows := len(a.Data) / n
		resultShape := copyShape(a.Shape)
		resultShape[len(resultShape)-1] = p

		result := NewTensor(resultShape)
		am := mat.NewDense(rows, n, a.Data)
		bm := mat.NewDense(n, p, b.Data)
		rm := mat.NewDense(rows, p, result.Data)
		rm.Mul(am, bm)
		return result, nil
	}

	// Batched matmul: batch dimensions must match.
	if len(a.Shape) != len(b.Shape) {
		return nil, fmt.Errorf("incompatible shapes for batched matmul: %v and %v", a.Shape, b.Shape)
	}
	batchSize := 1
	for i := 0; i < len(a.Shape)-2; i++ {
		if a.Shape[i] != b.Shape[i] {
			return nil, fmt.Errorf("incompatible batch dimensions for matmul: %v and %v", a.Shape, b.Shape)
		}
		batchSize *= a.Shape[i]
	}

	resultShape := copyShape(a.Shape)
	resultShape[len(resultShape)-1] = p
	result := NewTensor(resultShape)

	for batch := 0; batch < batchSize; batch++ {
		am := mat.NewDense(m, n, a.Data[batch*m*n:(batch+1)*m*n])
		bm := mat.NewDense(n, p, b.Data[batch*n*p:(batch+1)*n*p])
		rm := mat.NewDense(m, p, result.Data[batch*m*p:(batch+1)*m*p])
		rm.Mul(am, bm)
	}

	return result, nil
}

// Softmax applies softmax along the last dimension.
func Softmax(t *Tensor) *Tensor {
	result := NewTensor(t.Shape)
	rowSize := t.Shape[len(t.Shape)-1]
	numRows := len(t.Data) / rowSize

	for row := 0; row < numRows; row++ {
		offset := row * rowSize

		// Subtract the row max for numerical stability.
		maxVal := math.Inf(-1)
		for i := 0; i < rowSize; i++ {
			if t.Data[offset+i] > maxVal {
				maxVal = t.Data[offset+i]
			}
		}

		sum := 0.0
		for i := 0; i < rowSize; i++ {
			e := math.Exp(t.Data[offset+i] - maxVal)
			result.Data[offset+i] = e
			sum += e
		}
		for i := 0; i < rowSize; i++ {
			result.Data[offset+i] /= sum
		}
	}

	return result
}

// Add performs element-wise addition with broadcasting.
func Add(a, b *Tensor) (*Tensor, error) {
	return elementWiseOp(a, b, func(x, y float64) float64 { return x + y })
}

// Mul performs element-wise multiplication with broadcasting.
func Mul(a, b *Tensor) (*Tensor, error) {
	return elementWiseOp(a, b, func(x, y float64) float64 { return x * y })
}

// elementWiseOp performs an element-wise operation with numpy-style
// broadcasting over trailing dimensions.
func elementWiseOp(a, b *Tensor, op func(float64, float64) float64) (*Tensor, error) {
	outShape, err := broadcastShapes(a.Shape, b.Shape)
	if err != nil {
		return nil, fmt.Errorf("cannot broadcast shapes %v and %v: %w", a.Shape, b.Shape, err)
	}

	result := NewTensor(outShape)

	indices := make([]int, len(outShape))
	var iterate func(dim int)
	iterate = func(dim int) {
		if dim == len(outShape) {
			aVal := a.Data[broadcastIndex(indices, outShape, a.Shape)]
			bVal := b.Data[broadcastIndex(indices, outShape, b.Shape)]
			result.Data[result.FlatIndex(indices)] = op(aVal, bVal)
			return
		}
		for i := 0; i < outShape[dim]; i++ {
			indices[dim] = i
			iterate(dim + 1)
		}
	}
	iterate(0)

	return result, nil
}

// broadcastShapes computes the broadcast shape of two shapes.
func broadcastShapes(a, b []int) ([]int, error) {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}

	result := make([]int, maxLen)
	for i := 0; i < maxLen; i++ {
		dimA := 1
		if i < len(a) {
			dimA = a[len(a)-1-i]
		}
		dimB := 1
		if i < len(b) {
			dimB = b[len(b)-1-i]
		}
		if dimA != dimB && dimA != 1 && dimB != 1 {
			return nil, fmt.Errorf("incompatible dimensions %d and %d", dimA, dimB)
		}
		if dimA > dimB {
			result[maxLen-1-i] = dimA
		} else {
			result[maxLen-1-i] = dimB
		}
	}

	return result, nil
}

// broadcastIndex maps output indices back to a flat index in a (possibly
// lower-rank or size-1-dimension) input tensor.
func broadcastIndex(outIndices []int, outShape, inShape []int) int {
	if len(inShape) == 0 {
		return 0
	}

	diff := len(outShape) - len(inShape)
	strides := computeStrides(inShape)

	idx := 0
	for i := 0; i < len(inShape); i++ {
		pos := outIndices[i+diff]
		if inShape[i] == 1 {
			pos = 0
		}
		idx += pos * strides[i]
	}
	return idx
}

// ConcatFeatures concatenates two tensors along the last (feature) axis.
// All leading dimensions must match.
func ConcatFeatures(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != len(b.Shape) {
		return nil, fmt.Errorf("cannot concatenate tensors of rank %d and %d", len(a.Shape), len(b.Shape))
	}
	for i := 0; i < len(a.Shape)-1; i++ {
		if a.Shape[i] != b.Shape[i] {
			return nil, fmt.Errorf("leading dimensions differ at axis %d: %v vs %v", i, a.Shape, b.Shape)
		}
	}

	aWidth := a.Shape[len(a.Shape)-1]
	bWidth := b.Shape[len(b.Shape)-1]
	outShape := copyShape(a.Shape)
	outShape[len(outShape)-1] = aWidth + bWidth

	result := NewTensor(outShape)
	rows := len(a.Data) / aWidth
	for row := 0; row < rows; row++ {
		dst := row * (aWidth + bWidth)
		copy(result.Data[dst:dst+aWidth], a.Data[row*aWidth:(row+1)*aWidth])
		copy(result.Data[dst+aWidth:dst+aWidth+bWidth], b.Data[row*bWidth:(row+1)*bWidth])
	}

	return result, nil
}

// copyShape creates a copy of a shape slice.
func copyShape(shape []int) []int {
	result := make([]int, len(shape))
	copy(result, shape)
	return result
}

// computeStrides precomputes row-major strides for a shape.
func computeStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

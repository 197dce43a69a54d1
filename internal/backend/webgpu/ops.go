//go:build windows

package webgpu

import (
	"github.com/born-ml/digits/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gomlx/exceptions"
)

// FromSlice uploads data into a new device-resident tensor.
func (b *Backend) FromSlice(data []float32, shape tensor.Shape) (*tensor.Tensor, error) {
	host, err := tensor.FromSlice(data, shape)
	if err != nil {
		return nil, err
	}
	defer host.Release()

	buffer := b.bufferFromTensor(host)
	b.activeBuffers.Add(1)
	return b.deviceResult(buffer, shape), nil
}

// MatMul performs matrix multiplication on GPU: [M, K] @ [K, N] -> [M, N].
func (b *Backend) MatMul(a, other *tensor.Tensor) *tensor.Tensor {
	m, k := require2D("matmul", a)
	kAlt, n := require2D("matmul", other)
	if k != kAlt {
		exceptions.Panicf("webgpu: matmul shape mismatch: [%d,%d] @ [%d,%d]", m, k, kAlt, n)
	}

	pipeline := b.getOrCreatePipeline("matmul", matmulShader)

	bufferA := b.bufferFromTensor(a)
	defer bufferA.Release()
	bufferB := b.bufferFromTensor(other)
	defer bufferB.Release()

	resultShape := tensor.Shape{m, n}
	resultSize := uint64(m * n * 4) //nolint:gosec // G115
	bufferResult := b.createResultBuffer(resultSize)

	//nolint:gosec // G115: Safe conversions, shape dimensions are non-negative
	bufferParams, paramsSize := b.createUniformBuffer(uint32(m), uint32(k), uint32(n))
	defer bufferParams.Release()

	b.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferA, 0, uint64(a.ByteSize())),     //nolint:gosec // G115
		wgpu.BufferBindingEntry(1, bufferB, 0, uint64(other.ByteSize())), //nolint:gosec // G115
		wgpu.BufferBindingEntry(2, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(3, bufferParams, 0, paramsSize),
	}, workgroups(n, tileSize), workgroups(m, tileSize))

	return b.deviceResult(bufferResult, resultShape)
}

// Transpose swaps the axes of a 2D tensor on GPU.
func (b *Backend) Transpose(t *tensor.Tensor) *tensor.Tensor {
	rows, cols := require2D("transpose", t)
	pipeline := b.getOrCreatePipeline("transpose", transposeShader)

	bufferInput := b.bufferFromTensor(t)
	defer bufferInput.Release()

	resultSize := uint64(t.ByteSize()) //nolint:gosec // G115
	bufferResult := b.createResultBuffer(resultSize)

	//nolint:gosec // G115: Safe conversions, shape dimensions are non-negative
	bufferParams, paramsSize := b.createUniformBuffer(uint32(rows), uint32(cols))
	defer bufferParams.Release()

	b.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferInput, 0, resultSize),
		wgpu.BufferBindingEntry(1, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(2, bufferParams, 0, paramsSize),
	}, workgroups(cols, tileSize), workgroups(rows, tileSize))

	return b.deviceResult(bufferResult, tensor.Shape{cols, rows})
}

// Add performs element-wise addition with broadcasting on GPU.
func (b *Backend) Add(a, other *tensor.Tensor) *tensor.Tensor {
	return b.runBroadcastOp("add", broadcastAddShader, a, other)
}

// Mul performs element-wise multiplication with broadcasting on GPU.
func (b *Backend) Mul(a, other *tensor.Tensor) *tensor.Tensor {
	return b.runBroadcastOp("mul", broadcastMulShader, a, other)
}

func (b *Backend) runBroadcastOp(name, code string, a, other *tensor.Tensor) *tensor.Tensor {
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), other.Shape())
	if err != nil {
		exceptions.Panicf("webgpu: %s: %v", name, err)
	}
	if len(outShape) > 2 {
		exceptions.Panicf("webgpu: %s: rank %d not supported, at most 2", name, len(outShape))
	}

	// View everything as [rows, cols].
	matrix := outShape
	if len(matrix) < 2 {
		matrix = append(tensor.Shape{1}, matrix...)
	}
	aStrides := tensor.BroadcastStrides(a.Shape(), matrix)
	bStrides := tensor.BroadcastStrides(other.Shape(), matrix)

	pipeline := b.getOrCreatePipeline(name, code)

	bufferA := b.bufferFromTensor(a)
	defer bufferA.Release()
	bufferB := b.bufferFromTensor(other)
	defer bufferB.Release()

	numElements := outShape.NumElements()
	resultSize := uint64(numElements * 4) //nolint:gosec // G115
	bufferResult := b.createResultBuffer(resultSize)

	//nolint:gosec // G115: Safe conversions, sizes and strides are non-negative
	bufferParams, paramsSize := b.createUniformBuffer(
		uint32(numElements), uint32(matrix[1]),
		uint32(aStrides[0]), uint32(aStrides[1]),
		uint32(bStrides[0]), uint32(bStrides[1]),
	)
	defer bufferParams.Release()

	b.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferA, 0, uint64(a.ByteSize())),     //nolint:gosec // G115
		wgpu.BufferBindingEntry(1, bufferB, 0, uint64(other.ByteSize())), //nolint:gosec // G115
		wgpu.BufferBindingEntry(2, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(3, bufferParams, 0, paramsSize),
	}, workgroups(numElements, workgroupSize), 1)

	return b.deviceResult(bufferResult, outShape)
}

// ReLU applies max(0, x) element-wise on GPU.
func (b *Backend) ReLU(x *tensor.Tensor) *tensor.Tensor {
	pipeline := b.getOrCreatePipeline("relu", reluShader)

	bufferInput := b.bufferFromTensor(x)
	defer bufferInput.Release()

	numElements := x.NumElements()
	resultSize := uint64(x.ByteSize()) //nolint:gosec // G115
	bufferResult := b.createResultBuffer(resultSize)

	bufferParams, paramsSize := b.createUniformBuffer(uint32(numElements)) //nolint:gosec // G115
	defer bufferParams.Release()

	b.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferInput, 0, resultSize),
		wgpu.BufferBindingEntry(1, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(2, bufferParams, 0, paramsSize),
	}, workgroups(numElements, workgroupSize), 1)

	return b.deviceResult(bufferResult, x.Shape())
}

// Softmax normalizes a 2D tensor along dim on GPU.
func (b *Backend) Softmax(x *tensor.Tensor, dim int) *tensor.Tensor {
	rows, cols := require2D("softmax", x)
	if dim < 0 {
		dim += 2
	}

	var groups, dimSize, stride int
	switch dim {
	case 0:
		groups, dimSize, stride = cols, rows, cols
	case 1:
		groups, dimSize, stride = rows, cols, 1
	default:
		exceptions.Panicf("webgpu: softmax: dimension %d out of range for tensor of rank 2", dim)
	}

	pipeline := b.getOrCreatePipeline("softmax", softmaxShader)

	bufferInput := b.bufferFromTensor(x)
	defer bufferInput.Release()

	resultSize := uint64(x.ByteSize()) //nolint:gosec // G115
	bufferResult := b.createResultBuffer(resultSize)

	//nolint:gosec // G115: Safe conversions, shape dimensions are non-negative
	bufferParams, paramsSize := b.createUniformBuffer(uint32(groups), uint32(dimSize), uint32(stride))
	defer bufferParams.Release()

	b.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferInput, 0, resultSize),
		wgpu.BufferBindingEntry(1, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(2, bufferParams, 0, paramsSize),
	}, workgroups(groups, workgroupSize), 1)

	return b.deviceResult(bufferResult, x.Shape())
}

func require2D(op string, t *tensor.Tensor) (rows, cols int) {
	shape := t.Shape()
	if len(shape) != 2 {
		exceptions.Panicf("webgpu: %s requires 2D tensors, got %v", op, shape)
	}
	return shape[0], shape[1]
}

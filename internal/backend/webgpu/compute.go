//go:build windows

package webgpu

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/born-ml/digits/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()
	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name, code string) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	// Create compute pipeline with auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, b.compileShader(name, code), "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()
	return pipeline
}

// createBuffer creates a GPU buffer and uploads initial data.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), size), data)
	buffer.Unmap()
	return buffer
}

// createUniformBuffer packs params as little-endian u32 fields into a
// uniform buffer rounded up to 16 bytes. It returns the buffer and its size.
func (b *Backend) createUniformBuffer(params ...uint32) (*wgpu.Buffer, uint64) {
	size := uint64(len(params) * 4)
	alignedSize := (size + 15) &^ 15 // Round up to 16-byte boundary

	data := make([]byte, alignedSize)
	for i, p := range params {
		binary.LittleEndian.PutUint32(data[i*4:], p)
	}
	return b.createBuffer(data, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst), alignedSize
}

// createResultBuffer allocates an uninitialized storage buffer for a kernel output.
func (b *Backend) createResultBuffer(size uint64) *wgpu.Buffer {
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	b.activeBuffers.Add(1)
	return buffer
}

// bufferFromTensor returns a storage buffer holding t's values. Tensors
// whose values are still on the device are copied GPU to GPU; host tensors
// are uploaded. The caller releases the returned buffer.
func (b *Backend) bufferFromTensor(t *tensor.Tensor) *wgpu.Buffer {
	if dev := t.DeviceData(); dev != nil && !dev.IsRealized() {
		src := (*wgpu.Buffer)(dev.BufferPtr())
		dst := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
			Size:  dev.Size(),
		})
		encoder := b.device.CreateCommandEncoder(nil)
		encoder.CopyBufferToBuffer(src, 0, dst, 0, dev.Size())
		b.queue.Submit(encoder.Finish(nil))
		return dst
	}
	return b.createBuffer(float32ToBytes(t.Data()), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
}

// dispatch binds the buffers in order and runs one compute pass.
func (b *Backend) dispatch(pipeline *wgpu.ComputePipeline, entries []wgpu.BindGroupEntry, x, y uint32) {
	bindGroup := b.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(x, y, 1)
	computePass.End()

	b.queue.Submit(encoder.Finish(nil))
}

// deviceResult wraps a result buffer into a tensor that reads back lazily.
// Ownership of buffer moves to the tensor.
func (b *Backend) deviceResult(buffer *wgpu.Buffer, shape tensor.Shape) *tensor.Tensor {
	//nolint:gosec // G115: Safe conversion, element counts are non-negative
	size := uint64(shape.NumElements() * 4)
	//nolint:gosec // G103: Required for GPU buffer tracking
	result, err := tensor.NewOnDevice(shape, tensor.WebGPU, tensor.NewDeviceData(unsafe.Pointer(buffer), size, b))
	if err != nil {
		b.ReleaseDeviceBuffer(unsafe.Pointer(buffer)) //nolint:gosec // G103
		panic(errors.WithMessage(err, "webgpu: wrapping result buffer"))
	}
	return result
}

// readBuffer reads data back from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	b.readMu.Lock()
	defer b.readMu.Unlock()

	stagingBuffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	b.queue.Submit(encoder.Finish(nil))

	if err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, errors.Wrap(err, "webgpu: failed to map staging buffer")
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	result := make([]byte, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(result, unsafe.Slice((*byte)(mappedPtr), size))
	stagingBuffer.Unmap()
	return result, nil
}

func float32ToBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func workgroups(n, size int) uint32 {
	//nolint:gosec // G115: Safe conversion, workgroup count is non-negative
	return uint32((n + size - 1) / size)
}

package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Device represents the compute device holding a tensor's data.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// liveBuffers counts buffers that were allocated and not yet freed.
var liveBuffers atomic.Int64

// LiveBuffers returns the number of tensor buffers currently alive
// process-wide. A buffer dies when the last tensor sharing it is released.
func LiveBuffers() int64 {
	return liveBuffers.Load()
}

// tensorBuffer is a reference-counted buffer shared by clones of a tensor.
// Data lives either on the host (data) or on a device (dev) until realized.
type tensorBuffer struct {
	data     []float32
	dev      *DeviceData
	refCount atomic.Int32
	mu       sync.Mutex
	freed    bool
}

func newTensorBuffer(n int, dev *DeviceData) *tensorBuffer {
	buf := &tensorBuffer{dev: dev}
	if dev == nil {
		buf.data = make([]float32, n)
	}
	buf.refCount.Store(1)
	liveBuffers.Add(1)
	return buf
}

func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

// release decrements the reference count and frees host and device memory
// when it reaches 0.
func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) != 0 {
		return
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.freed {
		return
	}
	tb.freed = true
	tb.data = nil
	if tb.dev != nil {
		tb.dev.Release()
		tb.dev = nil
	}
	liveBuffers.Add(-1)
}

// host returns the host data, reading it back from the device first if needed.
func (tb *tensorBuffer) host(n int) ([]float32, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.freed {
		return nil, ErrReleased
	}
	if tb.data == nil && tb.dev != nil {
		data, err := tb.dev.Realize()
		if err != nil {
			return nil, err
		}
		if len(data) != n {
			return nil, errors.Errorf("device readback returned %d elements, want %d", len(data), n)
		}
		tb.data = data
	}
	return tb.data, nil
}

// ErrReleased is returned when reading a tensor whose buffer was freed.
var ErrReleased = errors.New("tensor: buffer already released")

// Tensor is a dense row-major float32 tensor.
//
// Clones share one reference-counted buffer; the buffer is freed when the
// last clone calls Release.
type Tensor struct {
	buffer   *tensorBuffer
	shape    Shape
	device   Device
	released atomic.Bool
}

// New creates a zero-filled host tensor with the given shape.
func New(shape Shape, device Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid shape")
	}
	return &Tensor{
		buffer: newTensorBuffer(shape.NumElements(), nil),
		shape:  shape.Clone(),
		device: device,
	}, nil
}

// FromSlice creates a host tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, errors.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t, err := New(shape, CPU)
	if err != nil {
		return nil, err
	}
	copy(t.buffer.data, data)
	return t, nil
}

// NewOnDevice creates a tensor whose data stays in a device buffer until
// it is first read.
func NewOnDevice(shape Shape, device Device, dev *DeviceData) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid shape")
	}
	if dev == nil {
		return nil, errors.New("nil device data")
	}
	return &Tensor{
		buffer: newTensorBuffer(shape.NumElements(), dev),
		shape:  shape.Clone(),
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Device returns the tensor's compute device.
func (t *Tensor) Device() Device {
	return t.device
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (t *Tensor) ByteSize() int {
	return t.NumElements() * 4
}

// Data returns the host data of the tensor (zero-copy).
// Device data is read back first. Panics if the readback fails or the
// tensor was released.
//
// WARNING: Modifications to the returned slice modify the tensor.
func (t *Tensor) Data() []float32 {
	data, err := t.buffer.host(t.NumElements())
	if err != nil {
		panic(errors.WithMessagef(err, "tensor %v on %s", t.shape, t.device))
	}
	return data
}

// Read copies the tensor's data into a new slice the caller owns.
// Unlike Data it never panics and the result outlives Release.
func (t *Tensor) Read() ([]float32, error) {
	data, err := t.buffer.host(t.NumElements())
	if err != nil {
		return nil, errors.WithMessagef(err, "reading tensor %v on %s", t.shape, t.device)
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// DeviceData returns the not-yet-realized device storage, or nil when the
// data is on the host.
func (t *Tensor) DeviceData() *DeviceData {
	t.buffer.mu.Lock()
	defer t.buffer.mu.Unlock()
	if t.buffer.data != nil {
		return nil
	}
	return t.buffer.dev
}

// Clone creates a shallow copy sharing the same buffer.
func (t *Tensor) Clone() *Tensor {
	t.buffer.addRef()
	return &Tensor{
		buffer: t.buffer,
		shape:  t.shape.Clone(),
		device: t.device,
	}
}

// Reshape returns a clone viewing the same buffer with a new shape.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if shape.NumElements() != t.NumElements() {
		return nil, errors.Errorf("cannot reshape %v into %v", t.shape, shape)
	}
	c := t.Clone()
	c.shape = shape.Clone()
	return c, nil
}

// Release drops this tensor's reference to its buffer.
// Releasing the same tensor twice is a no-op.
func (t *Tensor) Release() {
	if t.released.Swap(true) {
		return
	}
	t.buffer.release()
}

// IsUnique returns true if this tensor is the only reference to the buffer.
func (t *Tensor) IsUnique() bool {
	return t.buffer.refCount.Load() == 1
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[float32]%v on %s", t.shape, t.device)
}

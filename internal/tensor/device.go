package tensor

import (
	"runtime"
	"sync"
	"unsafe"
)

// DeviceReader is implemented by backends whose tensors live in device memory.
type DeviceReader interface {
	// ReadDeviceBuffer copies size bytes of a device buffer to host memory.
	// bufferPtr is an unsafe.Pointer to the backend's buffer type.
	ReadDeviceBuffer(bufferPtr unsafe.Pointer, size uint64) ([]float32, error)

	// ReleaseDeviceBuffer frees the device buffer.
	ReleaseDeviceBuffer(bufferPtr unsafe.Pointer)
}

// DeviceData holds a reference to device-resident data. The data is
// transferred to the host only when first read (lazy realization), after
// which the device buffer is freed.
type DeviceData struct {
	bufferPtr unsafe.Pointer
	size      uint64
	reader    DeviceReader
	realized  bool
	mu        sync.Mutex
}

// NewDeviceData creates a DeviceData referencing a device buffer.
// The device buffer is released when garbage collected if nobody released
// it before.
func NewDeviceData(bufferPtr unsafe.Pointer, size uint64, reader DeviceReader) *DeviceData {
	d := &DeviceData{
		bufferPtr: bufferPtr,
		size:      size,
		reader:    reader,
	}
	runtime.SetFinalizer(d, func(d *DeviceData) {
		d.Release()
	})
	return d
}

// IsRealized returns whether the data has been transferred to the host.
func (d *DeviceData) IsRealized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.realized
}

// Realize transfers the data to the host and frees the device buffer.
// Safe for concurrent use; only the first call reads.
func (d *DeviceData) Realize() ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.realized {
		return nil, nil
	}
	if d.bufferPtr == nil {
		return nil, ErrReleased
	}

	data, err := d.reader.ReadDeviceBuffer(d.bufferPtr, d.size)
	if err != nil {
		return nil, err
	}
	d.realized = true

	d.reader.ReleaseDeviceBuffer(d.bufferPtr)
	d.bufferPtr = nil
	return data, nil
}

// Release frees the device buffer if it is still held.
func (d *DeviceData) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bufferPtr != nil && d.reader != nil {
		d.reader.ReleaseDeviceBuffer(d.bufferPtr)
		d.bufferPtr = nil
	}
}

// BufferPtr returns the underlying device buffer pointer, used by backends to
// chain operations without a round trip through host memory.
func (d *DeviceData) BufferPtr() unsafe.Pointer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bufferPtr
}

// Size returns the buffer size in bytes.
func (d *DeviceData) Size() uint64 {
	return d.size
}

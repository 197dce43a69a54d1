//go:build windows

package webgpu

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/digits/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Backend implements tensor operations on GPU using WebGPU.
// Results stay in device buffers until they are read.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	// Device info, nil if the adapter did not report it.
	adapterInfo *wgpu.AdapterInfoGo

	// readMu serializes staging-buffer mapping.
	readMu sync.Mutex

	activeBuffers atomic.Int64
}

var _ tensor.Backend = (*Backend)(nil)
var _ tensor.DeviceReader = (*Backend)(nil)

// New creates a new WebGPU backend.
// Returns an error wrapping ErrUnavailable if WebGPU is not available.
func New() (backend *Backend, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = errors.Wrapf(ErrUnavailable, "native library not available: %v", r)
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return nil, errors.Wrapf(ErrUnavailable, "failed to create instance: %v", instanceErr)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, errors.Wrapf(ErrUnavailable, "failed to request adapter: %v", adapterErr)
	}

	adapterInfo, infoErr := adapter.GetInfo()
	if infoErr != nil {
		klog.V(1).Infof("webgpu: adapter info unavailable: %v", infoErr)
		adapterInfo = nil
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrapf(ErrUnavailable, "failed to request device: %v", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(ErrUnavailable, "failed to get queue")
	}

	return &Backend{
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		shaders:     make(map[string]*wgpu.ShaderModule),
		pipelines:   make(map[string]*wgpu.ComputePipeline),
		adapterInfo: adapterInfo,
	}, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Name returns the backend name.
func (b *Backend) Name() string {
	if b.adapterInfo == nil {
		return displayName("", "")
	}
	return displayName(b.adapterInfo.Device, b.adapterInfo.Vendor)
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

// ActiveBuffers returns the number of result buffers still held on the GPU.
func (b *Backend) ActiveBuffers() int64 {
	return b.activeBuffers.Load()
}

// Release releases all WebGPU resources.
// Must be called when the backend is no longer needed.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.pipelines {
		p.Release()
	}
	b.pipelines = nil
	for _, s := range b.shaders {
		s.Release()
	}
	b.shaders = nil

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// ReadDeviceBuffer implements tensor.DeviceReader.
// bufferPtr must be *wgpu.Buffer.
func (b *Backend) ReadDeviceBuffer(bufferPtr unsafe.Pointer, size uint64) ([]float32, error) {
	raw, err := b.readBuffer((*wgpu.Buffer)(bufferPtr), size)
	if err != nil {
		return nil, err
	}
	return bytesToFloat32(raw), nil
}

// ReleaseDeviceBuffer implements tensor.DeviceReader.
func (b *Backend) ReleaseDeviceBuffer(bufferPtr unsafe.Pointer) {
	if buffer := (*wgpu.Buffer)(bufferPtr); buffer != nil {
		buffer.Release()
		b.activeBuffers.Add(-1)
	}
}

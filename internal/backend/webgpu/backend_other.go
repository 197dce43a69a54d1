//go:build !windows

package webgpu

import (
	"runtime"

	"github.com/born-ml/digits/internal/tensor"
	"github.com/pkg/errors"
)

// Backend is unavailable on this platform; New always fails.
type Backend struct{}

var _ tensor.Backend = (*Backend)(nil)

// New reports ErrUnavailable on platforms without the native bindings.
func New() (*Backend, error) {
	return nil, errors.Wrapf(ErrUnavailable, "no bindings for %s/%s", runtime.GOOS, runtime.GOARCH)
}

// IsAvailable always returns false on this platform.
func IsAvailable() bool { return false }

func unavailable() { panic(errors.WithStack(ErrUnavailable)) }

func (b *Backend) FromSlice([]float32, tensor.Shape) (*tensor.Tensor, error) {
	return nil, ErrUnavailable
}
func (b *Backend) Transpose(*tensor.Tensor) *tensor.Tensor { unavailable(); return nil }
func (b *Backend) MatMul(_, _ *tensor.Tensor) *tensor.Tensor { unavailable(); return nil }
func (b *Backend) Add(_, _ *tensor.Tensor) *tensor.Tensor { unavailable(); return nil }
func (b *Backend) Mul(_, _ *tensor.Tensor) *tensor.Tensor { unavailable(); return nil }
func (b *Backend) ReLU(*tensor.Tensor) *tensor.Tensor { unavailable(); return nil }
func (b *Backend) Softmax(*tensor.Tensor, int) *tensor.Tensor { unavailable(); return nil }
func (b *Backend) Name() string { return "WebGPU (unavailable)" }
func (b *Backend) Device() tensor.Device { return tensor.WebGPU }
func (b *Backend) ActiveBuffers() int64 { return 0 }
func (b *Backend) Release() {}

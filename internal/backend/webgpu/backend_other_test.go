//go:build !windows

package webgpu

import (
	"testing"

	"github.com/born-ml/digits/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnavailable(t *testing.T) {
	backend, err := New()
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, backend)
	assert.False(t, IsAvailable())
}

func TestStubPanicsWithError(t *testing.T) {
	var b Backend
	err := exceptions.TryCatch[error](func() { b.ReLU(nil) })
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = b.FromSlice([]float32{1}, tensor.Shape{1})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, tensor.WebGPU, b.Device())
}

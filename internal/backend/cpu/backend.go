// Package cpu implements the pure Go backend for dense forward passes.
package cpu

import (
	"fmt"
	"strings"

	"github.com/born-ml/digits/internal/parallel"
	"github.com/born-ml/digits/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/klauspost/cpuid/v2"
)

// CPUBackend implements tensor operations on the host with row-parallel kernels.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend sized to the machine's physical cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallelism config.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name, including the CPU brand when known.
func (cpu *CPUBackend) Name() string {
	brand := strings.TrimSpace(cpuid.CPU.BrandName)
	if brand == "" {
		return "CPU"
	}
	return fmt.Sprintf("CPU (%s)", brand)
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the number of goroutines the kernels may use.
func (cpu *CPUBackend) Workers() int {
	if !cpu.par.Enabled {
		return 1
	}
	return cpu.par.NumWorkers
}

// FromSlice copies data into a new host tensor.
func (cpu *CPUBackend) FromSlice(data []float32, shape tensor.Shape) (*tensor.Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// newResult allocates an output tensor or panics with the allocation error.
func (cpu *CPUBackend) newResult(op string, shape tensor.Shape) *tensor.Tensor {
	result, err := tensor.New(shape, cpu.device)
	if err != nil {
		exceptions.Panicf("%s: failed to create result tensor: %v", op, err)
	}
	return result
}

func require2D(op string, t *tensor.Tensor) (rows, cols int) {
	shape := t.Shape()
	if len(shape) != 2 {
		exceptions.Panicf("%s: only 2D tensors supported, got %dD %v", op, len(shape), shape)
	}
	return shape[0], shape[1]
}

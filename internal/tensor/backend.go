package tensor

// Backend defines the operations a compute backend provides for dense
// forward passes. All tensors are float32.
//
// Implementations:
//   - CPU: pure Go, row-parallel kernels
//   - WebGPU: WGSL compute shaders, results kept on the device until read
//
// Kernels panic with an error value on malformed arguments; callers validate
// shapes up front.
type Backend interface {
	// FromSlice uploads host data into a new tensor owned by the caller.
	FromSlice(data []float32, shape Shape) (*Tensor, error)

	// Transpose swaps the two axes of a 2D tensor.
	Transpose(t *Tensor) *Tensor

	// MatMul performs matrix multiplication: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *Tensor) *Tensor

	// Add and Mul are element-wise with NumPy-style broadcasting.
	Add(a, b *Tensor) *Tensor
	Mul(a, b *Tensor) *Tensor

	// ReLU applies max(0, x) element-wise.
	ReLU(t *Tensor) *Tensor

	// Softmax normalizes along dim.
	Softmax(t *Tensor, dim int) *Tensor

	// Metadata
	Name() string
	Device() Device
}

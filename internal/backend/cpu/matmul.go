package cpu

import (
	"github.com/born-ml/digits/internal/parallel"
	"github.com/born-ml/digits/internal/tensor"
	"github.com/gomlx/exceptions"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N)
// Output rows are split across workers.
func (cpu *CPUBackend) MatMul(a, b *tensor.Tensor) *tensor.Tensor {
	m, k := require2D("matmul", a)
	kAlt, n := require2D("matmul", b)
	if k != kAlt {
		exceptions.Panicf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n)
	}

	result := cpu.newResult("matmul", tensor.Shape{m, n})
	matmulFloat32(result.Data(), a.Data(), b.Data(), m, k, n, cpu.par)
	return result
}

// matmulFloat32 computes C[i,j] = sum_k A[i,k] * B[k,j].
// The i-k-j loop order keeps the inner loop on contiguous memory of B and C.
func matmulFloat32(c, a, b []float32, m, k, n int, cfg parallel.Config) {
	parallel.ForRange(m, func(start, end int) {
		for i := start; i < end; i++ {
			row := c[i*n : (i+1)*n]
			for j := range row {
				row[j] = 0
			}
			for kIdx := 0; kIdx < k; kIdx++ {
				aik := a[i*k+kIdx]
				bRow := b[kIdx*n : (kIdx+1)*n]
				for j, bv := range bRow {
					row[j] += aik * bv
				}
			}
		}
	}, cfg)
}

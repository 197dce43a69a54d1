//go:build windows

package webgpu

// WGSL compute shaders for the forward pass.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// tileSize is the 2D workgroup edge used by matmul and transpose.
const tileSize = 16

// broadcastAddShader performs element-wise addition over a rank-2 output
// whose inputs may have zero strides on broadcast axes.
const broadcastAddShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    cols: u32,
    a_row: u32,
    a_col: u32,
    b_row: u32,
    b_col: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let row = idx / params.cols;
    let col = idx % params.cols;
    result[idx] = a[row * params.a_row + col * params.a_col] + b[row * params.b_row + col * params.b_col];
}
`

// broadcastMulShader is broadcastAddShader with multiplication.
const broadcastMulShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    cols: u32,
    a_row: u32,
    a_col: u32,
    b_row: u32,
    b_col: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let row = idx / params.cols;
    let col = idx % params.cols;
    result[idx] = a[row * params.a_row + col * params.a_col] * b[row * params.b_row + col * params.b_col];
}
`

// matmulShader performs matrix multiplication: C = A @ B.
// A is [M, K], B is [K, N], C is [M, N].
const matmulShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    M: u32,  // rows of A and C
    K: u32,  // cols of A, rows of B
    N: u32,  // cols of B and C
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;

    if (row >= params.M || col >= params.N) {
        return;
    }

    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.K; k = k + 1u) {
        sum = sum + a[row * params.K + k] * b[k * params.N + col];
    }
    result[row * params.N + col] = sum;
}
`

// transposeShader transposes a 2D matrix.
const transposeShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    rows: u32,
    cols: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;

    if (row >= params.rows || col >= params.cols) {
        return;
    }
    result[col * params.rows + row] = input[row * params.cols + col];
}
`

// reluShader applies ReLU activation: result = max(0, x).
const reluShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = max(0.0, input[idx]);
    }
}
`

// softmaxShader normalizes groups of dim_size elements spaced stride apart.
// Each invocation handles one group. For a [R, C] matrix, dim 1 is
// (rows=R, dim_size=C, stride=1) and dim 0 is (rows=C, dim_size=R, stride=C).
const softmaxShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    rows: u32,
    dim_size: u32,
    stride: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.x;
    if (row >= params.rows) {
        return;
    }

    let base = (row / params.stride) * params.dim_size * params.stride + row % params.stride;

    // Find max for numerical stability
    var max_val: f32 = input[base];
    for (var i: u32 = 1u; i < params.dim_size; i = i + 1u) {
        max_val = max(max_val, input[base + i * params.stride]);
    }

    // Compute exp(x - max) and sum
    var sum: f32 = 0.0;
    for (var i: u32 = 0u; i < params.dim_size; i = i + 1u) {
        let exp_val = exp(input[base + i * params.stride] - max_val);
        result[base + i * params.stride] = exp_val;
        sum = sum + exp_val;
    }

    // Normalize
    for (var i: u32 = 0u; i < params.dim_size; i = i + 1u) {
        result[base + i * params.stride] = result[base + i * params.stride] / sum;
    }
}
`

package tensor

import (
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.True(t, s.Equal(s.Clone()))
	assert.False(t, s.Equal(Shape{2, 3}))
	assert.Error(t, Shape{2, 0}.Validate())

	m := Shape{5, 7}
	assert.Equal(t, 5, m.Rows())
	assert.Equal(t, 7, m.Cols())
	assert.Equal(t, 0, s.Rows())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"Same", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"ColumnVector", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"RowVector", Shape{1, 5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"RowTimesColumn", Shape{4, 1}, Shape{1, 6}, Shape{4, 6}, true, false},
		{"RankPadding", Shape{5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"Incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestBroadcastStrides(t *testing.T) {
	assert.Equal(t, []int{1, 0}, BroadcastStrides(Shape{3, 1}, Shape{3, 5}))
	assert.Equal(t, []int{0, 1}, BroadcastStrides(Shape{1, 5}, Shape{3, 5}))
	assert.Equal(t, []int{0, 1}, BroadcastStrides(Shape{5}, Shape{3, 5}))
	assert.Equal(t, []int{5, 1}, BroadcastStrides(Shape{3, 5}, Shape{3, 5}))
}

func TestFromSlice(t *testing.T) {
	before := LiveBuffers()
	src := []float32{1, 2, 3, 4, 5, 6}
	x, err := FromSlice(src, Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, before+1, LiveBuffers())

	src[0] = 100
	assert.Equal(t, float32(1), x.Data()[0], "FromSlice must copy")
	assert.Equal(t, 24, x.ByteSize())
	assert.Equal(t, CPU, x.Device())
	assert.Equal(t, "Tensor[float32][2 3] on CPU", x.String())

	_, err = FromSlice(src, Shape{4, 4})
	assert.Error(t, err)

	x.Release()
	assert.Equal(t, before, LiveBuffers())
}

func TestReadOutlivesRelease(t *testing.T) {
	x, err := FromSlice([]float32{1, 2, 3}, Shape{3, 1})
	require.NoError(t, err)

	out, err := x.Read()
	require.NoError(t, err)
	x.Release()

	assert.Equal(t, []float32{1, 2, 3}, out)
	_, err = x.Read()
	assert.ErrorIs(t, err, ErrReleased)
	assert.Panics(t, func() { x.Data() })
}

func TestCloneSharesBuffer(t *testing.T) {
	before := LiveBuffers()
	x, err := FromSlice([]float32{1, 2}, Shape{2})
	require.NoError(t, err)
	assert.True(t, x.IsUnique())

	c := x.Clone()
	assert.False(t, x.IsUnique())
	x.Release()
	x.Release() // second release of the same handle is ignored
	assert.Equal(t, before+1, LiveBuffers())
	assert.Equal(t, []float32{1, 2}, c.Data())

	c.Release()
	assert.Equal(t, before, LiveBuffers())
}

func TestReshape(t *testing.T) {
	x, err := FromSlice([]float32{1, 2, 3, 4}, Shape{4, 1})
	require.NoError(t, err)
	defer x.Release()

	row, err := x.Reshape(Shape{1, 4})
	require.NoError(t, err)
	defer row.Release()
	assert.Equal(t, Shape{1, 4}, row.Shape())
	assert.Equal(t, x.Data(), row.Data())

	_, err = x.Reshape(Shape{3})
	assert.Error(t, err)
}

// fakeDevice serves buffers from a map keyed by pointer.
type fakeDevice struct {
	buffers  map[unsafe.Pointer][]float32
	reads    int
	released int
	fail     bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{buffers: make(map[unsafe.Pointer][]float32)}
}

func (d *fakeDevice) put(data []float32) (unsafe.Pointer, uint64) {
	buf := append([]float32(nil), data...)
	ptr := unsafe.Pointer(&buf[0])
	d.buffers[ptr] = buf
	return ptr, uint64(len(buf) * 4)
}

func (d *fakeDevice) ReadDeviceBuffer(ptr unsafe.Pointer, _ uint64) ([]float32, error) {
	d.reads++
	if d.fail {
		return nil, errors.New("device lost")
	}
	return append([]float32(nil), d.buffers[ptr]...), nil
}

func (d *fakeDevice) ReleaseDeviceBuffer(ptr unsafe.Pointer) {
	d.released++
	delete(d.buffers, ptr)
}

func TestDeviceTensorRealizesOnce(t *testing.T) {
	dev := newFakeDevice()
	ptr, size := dev.put([]float32{7, 8, 9})
	x, err := NewOnDevice(Shape{1, 3}, WebGPU, NewDeviceData(ptr, size, dev))
	require.NoError(t, err)
	require.NotNil(t, x.DeviceData())

	first, err := x.Read()
	require.NoError(t, err)
	second, err := x.Read()
	require.NoError(t, err)

	assert.Equal(t, []float32{7, 8, 9}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, dev.reads)
	assert.Equal(t, 1, dev.released, "device buffer is freed after readback")
	assert.Nil(t, x.DeviceData())

	x.Release()
	assert.Equal(t, 1, dev.released)
}

func TestDeviceTensorReleaseWithoutRead(t *testing.T) {
	dev := newFakeDevice()
	ptr, size := dev.put([]float32{1})
	x, err := NewOnDevice(Shape{1}, WebGPU, NewDeviceData(ptr, size, dev))
	require.NoError(t, err)

	x.Release()
	assert.Equal(t, 0, dev.reads)
	assert.Equal(t, 1, dev.released)
	assert.Empty(t, dev.buffers)
}

func TestDeviceTensorReadError(t *testing.T) {
	dev := newFakeDevice()
	dev.fail = true
	ptr, size := dev.put([]float32{1, 2})
	x, err := NewOnDevice(Shape{2}, WebGPU, NewDeviceData(ptr, size, dev))
	require.NoError(t, err)
	defer x.Release()

	_, err = x.Read()
	assert.ErrorContains(t, err, "device lost")
}

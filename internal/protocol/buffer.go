package protocol

import "fmt"

// Buffer is a flat report: [kind, count, record0..., record1...]. A buffer
// is owned by one side at a time; sending it hands it over.
type Buffer struct {
	data []float64
}

// NewBuffer allocates room for capacity records of kind.
func NewBuffer(kind ReportKind, capacity int) *Buffer {
	b := &Buffer{data: make([]float64, HeaderSize, HeaderSize+capacity*kind.Stride())}
	b.data[0] = float64(kind)
	return b
}

// FromSlice wraps raw report data, as produced by Data.
func FromSlice(data []float64) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) Kind() ReportKind { return ReportKind(b.data[0]) }

func (b *Buffer) Count() int { return int(b.data[1]) }

func (b *Buffer) Stride() int { return b.Kind().Stride() }

// Record returns the slots of record i. The slice aliases the buffer.
func (b *Buffer) Record(i int) []float64 {
	stride := b.Stride()
	off := HeaderSize + i*stride
	return b.data[off : off+stride : off+stride]
}

// Reset empties the buffer and retags it, keeping its memory.
func (b *Buffer) Reset(kind ReportKind) {
	if cap(b.data) < HeaderSize {
		b.data = make([]float64, HeaderSize)
	}
	b.data = b.data[:HeaderSize]
	b.data[0] = float64(kind)
	b.data[1] = 0
}

// Append adds one record. It panics when the field count does not match
// the stride.
func (b *Buffer) Append(fields ...float64) {
	if len(fields) != b.Stride() {
		panic(fmt.Sprintf("protocol: %s record has %d fields, want %d", b.Kind(), len(fields), b.Stride()))
	}
	b.data = append(b.data, fields...)
	b.data[1]++
}

// Capacity is the number of records that fit without reallocating.
func (b *Buffer) Capacity() int {
	return (cap(b.data) - HeaderSize) / b.Stride()
}

// Grow makes room for n records, rounding the capacity up to a multiple
// of chunk records.
func (b *Buffer) Grow(n, chunk int) {
	if n <= b.Capacity() {
		return
	}
	if chunk < 1 {
		chunk = 1
	}
	records := (n + chunk - 1) / chunk * chunk
	grown := make([]float64, len(b.data), HeaderSize+records*b.Stride())
	copy(grown, b.data)
	b.data = grown
}

// Data exposes the raw slots, header included.
func (b *Buffer) Data() []float64 { return b.data }

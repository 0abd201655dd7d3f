package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Strides(t *testing.T) {
	tests := []struct {
		kind   ReportKind
		tag    int
		stride int
		name   string
	}{
		{ReportWorld, 0, 14, "world"},
		{ReportCollision, 1, 5, "collision"},
		{ReportVehicle, 2, 9, "vehicle"},
		{ReportConstraint, 3, 6, "constraint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tag, int(tt.kind))
			assert.Equal(t, tt.stride, tt.kind.Stride())
			assert.Equal(t, tt.name, tt.kind.String())
		})
	}
}

func TestSchema_Field(t *testing.T) {
	s := SchemaOf(ReportWorld)
	assert.Equal(t, 0, s.Field("id"))
	assert.Equal(t, 4, s.Field("qx"))
	assert.Equal(t, 13, s.Field("avz"))
	assert.Equal(t, -1, s.Field("missing"))
}

func TestSchemaOf_UnknownPanics(t *testing.T) {
	assert.Panics(t, func() { SchemaOf(ReportKind(9)) })
	assert.Equal(t, "ReportKind(9)", ReportKind(9).String())
}

func TestBuffer_AppendAndRecord(t *testing.T) {
	b := NewBuffer(ReportCollision, 4)
	assert.Equal(t, ReportCollision, b.Kind())
	assert.Equal(t, 0, b.Count())

	b.Append(1, 2, 0, 1, 0)
	b.Append(3, 4, 0, -1, 0)

	require.Equal(t, 2, b.Count())
	assert.Equal(t, []float64{3, 4, 0, -1, 0}, b.Record(1))
	assert.Len(t, b.Data(), HeaderSize+2*5)
	assert.Equal(t, float64(ReportCollision), b.Data()[0])
	assert.Equal(t, 2.0, b.Data()[1])
}

func TestBuffer_AppendWrongStridePanics(t *testing.T) {
	b := NewBuffer(ReportConstraint, 1)
	assert.Panics(t, func() { b.Append(1, 2, 3) })
}

func TestBuffer_RecordDoesNotLeakIntoNext(t *testing.T) {
	b := NewBuffer(ReportCollision, 2)
	b.Append(1, 2, 3, 4, 5)
	b.Append(6, 7, 8, 9, 10)

	r := b.Record(0)
	r = append(r, 99)
	assert.Equal(t, 6.0, b.Record(1)[0])
	assert.Len(t, r, 6)
}

func TestBuffer_Reset(t *testing.T) {
	b := NewBuffer(ReportWorld, 2)
	b.Append(make([]float64, 14)...)
	capBefore := cap(b.Data())

	b.Reset(ReportVehicle)

	assert.Equal(t, ReportVehicle, b.Kind())
	assert.Equal(t, 0, b.Count())
	assert.Equal(t, capBefore, cap(b.Data()))
}

func TestBuffer_GrowInChunks(t *testing.T) {
	b := NewBuffer(ReportWorld, 50)
	assert.Equal(t, 50, b.Capacity())

	b.Grow(30, 50)
	assert.Equal(t, 50, b.Capacity(), "no growth when it already fits")

	b.Append(7, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0)
	b.Grow(51, 50)
	assert.Equal(t, 100, b.Capacity())
	assert.Equal(t, 1, b.Count(), "contents survive growth")
	assert.Equal(t, 7.0, b.Record(0)[0])

	b.Grow(101, 50)
	assert.Equal(t, 150, b.Capacity())
}

func TestFromSlice(t *testing.T) {
	b := FromSlice([]float64{3, 1, 5, 6, 1, 2, 3, 0.5})
	assert.Equal(t, ReportConstraint, b.Kind())
	assert.Equal(t, []float64{5, 6, 1, 2, 3, 0.5}, b.Record(0))
}

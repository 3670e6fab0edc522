package slab

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pairShape = Shape{Fields: 3, Marker: 0}

func newTestTable(t *testing.T, shape Shape, slots int) (*Table, []byte, *bool) {
	t.Helper()
	region := AlignedBytes(shape.Size(slots))
	dirty := new(bool)
	table, err := New(region, shape, dirty)
	require.NoError(t, err)
	return table, region, dirty
}

func fillWords(vals ...uint32) func([]uint32, []float32) {
	return func(w []uint32, _ []float32) {
		copy(w, vals)
	}
}

func TestTableFirstFitUntilFull(t *testing.T) {
	table, region, dirty := newTestTable(t, pairShape, 4)

	for i := 0; i < 4; i++ {
		slot, ok := table.Add(fillWords(uint32(10+i), 1, 2))
		require.True(t, ok, "слот %d должен быть выделен", i)
		assert.Equal(t, i, slot, "слоты выделяются по возрастанию")
	}
	assert.True(t, *dirty)

	before := bytes.Clone(region)
	*dirty = false

	slot, ok := table.Add(fillWords(99, 1, 2))
	assert.False(t, ok)
	assert.Equal(t, NoSlot, slot)
	assert.Equal(t, before, region, "переполнение не должно менять таблицу")
	assert.False(t, *dirty, "переполнение не должно помечать таблицу грязной")
}

func TestTableRemoveRestoresNeverUsedBytes(t *testing.T) {
	table, region, _ := newTestTable(t, pairShape, 3)
	pristine := bytes.Clone(region)

	slot, ok := table.Add(fillWords(7, 0xdead, 0xbeef))
	require.True(t, ok)

	prev := table.Remove(slot)
	assert.Equal(t, uint32(7), prev)

	_, occupied := table.Record(slot)
	assert.False(t, occupied)
	assert.Equal(t, pristine, region)
}

func TestTableRemoveEmptySlotStillDirty(t *testing.T) {
	table, _, dirty := newTestTable(t, pairShape, 2)

	prev := table.Remove(1)
	assert.Equal(t, uint32(0), prev)
	assert.True(t, *dirty)
}

func TestTableReusesFreedSlot(t *testing.T) {
	table, _, _ := newTestTable(t, pairShape, 3)
	for i := 0; i < 3; i++ {
		_, ok := table.Add(fillWords(uint32(i+1), 0, 0))
		require.True(t, ok)
	}

	table.Remove(1)
	slot, ok := table.Add(fillWords(42, 0, 0))
	require.True(t, ok)
	assert.Equal(t, 1, slot)
}

func TestTableSlotsEarlyStop(t *testing.T) {
	table, _, _ := newTestTable(t, pairShape, 8)
	for i := 0; i < 5; i++ {
		table.Add(fillWords(uint32(i+1), 0, 0))
	}
	table.Remove(2)

	var all []int
	for slot := range table.Slots() {
		all = append(all, slot)
	}
	assert.Equal(t, []int{0, 1, 3, 4}, all)

	var firstTwo []int
	for slot := range table.Slots() {
		firstTwo = append(firstTwo, slot)
		if len(firstTwo) == 2 {
			break
		}
	}
	assert.Equal(t, []int{0, 1}, firstTwo)
	assert.Equal(t, 4, table.Len(), "последовательность можно обходить повторно")
}

func TestTableFloatMarker(t *testing.T) {
	shape := Shape{Fields: 4, Marker: 3, FloatMarker: true}
	table, _, _ := newTestTable(t, shape, 2)

	slot, ok := table.Add(func(_ []uint32, f []float32) {
		f[0], f[1], f[2], f[3] = 1, 2, 3, 0.5
	})
	require.True(t, ok)
	assert.True(t, table.Occupied(slot))

	// -0 считается пустым слотом, как и +0.
	table.FloatRecord(1)[3] = float32(math.Copysign(0, -1))
	assert.False(t, table.Occupied(1))
	assert.Equal(t, 1, table.FirstFree())
}

func TestTableZeroMarkerPanics(t *testing.T) {
	table, region, _ := newTestTable(t, pairShape, 2)
	pristine := bytes.Clone(region)

	assert.Panics(t, func() {
		table.Add(fillWords(0, 5, 6))
	})
	assert.Equal(t, pristine, region, "слот должен быть обнулён после паники")
}

func TestTableOutOfRangePanics(t *testing.T) {
	table, _, _ := newTestTable(t, pairShape, 2)

	assert.Panics(t, func() { table.Remove(2) })
	assert.Panics(t, func() { table.Record(-1) })
	assert.Panics(t, func() { table.Set(0, 3, 1) })
}

func TestNewRejectsBadRegion(t *testing.T) {
	_, err := New(AlignedBytes(10), pairShape, nil)
	assert.Error(t, err)

	_, err = New(AlignedBytes(12), Shape{Fields: 2, Marker: 2}, nil)
	assert.Error(t, err)

	misaligned := AlignedBytes(16)[1:13]
	_, err = New(misaligned, pairShape, nil)
	assert.Error(t, err)
}

func TestViewsAlias(t *testing.T) {
	b := AlignedBytes(8)
	words := Uint32s(b)
	floats := Float32s(b)

	floats[1] = 1.5
	assert.Equal(t, math.Float32bits(1.5), words[1])

	ints := Int32s(b)
	ints[0] = -1
	assert.Equal(t, uint32(math.MaxUint32), words[0])
}

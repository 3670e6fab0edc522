package world

import (
	"testing"

	"github.com/annel0/zeode/internal/slab"
	"github.com/stretchr/testify/require"
)

// testLayout маленькая раскладка, чтобы записи чанков занимали килобайты, а не мегабайты.
var testLayout = Layout{
	TerrainSize:  64,
	ObjectSlots:  4,
	BlockWidth:   4,
	BlockHeight:  32,
	BlockDepth:   4,
	LayerHeight:  16,
	LightSlots:   3,
	GeometrySize: 32,
	TrailerSlots: 4,
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(testLayout)
	require.NoError(t, err)
	return w
}

// regionSink накапливает вызовы sink в регионе, как это делал бы файл.
type regionSink struct {
	region []byte
	calls  []sinkCall
}

type sinkCall struct {
	offset int64
	size   int
}

func (r *regionSink) write(offset int64, data []byte) error {
	end := int(offset) + len(data)
	if end > len(r.region) {
		grown := slab.AlignedBytes(end)
		copy(grown, r.region)
		r.region = grown
	}
	copy(r.region[offset:], data)
	r.calls = append(r.calls, sinkCall{offset: offset, size: len(data)})
	return nil
}

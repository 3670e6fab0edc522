package storage_adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/annel0/zeode/internal/config"
	"github.com/annel0/zeode/internal/metrics"
	"github.com/annel0/zeode/internal/storage"
	"github.com/annel0/zeode/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayout = world.Layout{
	TerrainSize:  16,
	ObjectSlots:  2,
	BlockWidth:   2,
	BlockHeight:  4,
	BlockDepth:   2,
	LayerHeight:  2,
	LightSlots:   2,
	GeometrySize: 8,
	TrailerSlots: 2,
}

// recordingStore запоминает вызовы WriteAt и может возвращать ошибку
type recordingStore struct {
	*storage.MemoryRegion
	offsets []int64
	sizes   []int
	failAt  int64
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryRegion: storage.NewMemoryRegion(), failAt: -1}
}

func (r *recordingStore) WriteAt(ctx context.Context, offset int64, data []byte) error {
	if offset == r.failAt {
		return errors.New("хранилище недоступно")
	}
	r.offsets = append(r.offsets, offset)
	r.sizes = append(r.sizes, len(data))
	return r.MemoryRegion.WriteAt(ctx, offset, data)
}

func newWorld(t *testing.T, coords ...int32) *world.World {
	t.Helper()
	w, err := world.New(testLayout)
	require.NoError(t, err)
	for _, x := range coords {
		c := w.MakeChunk(x, 0)
		c.SetBlock(1, 1, 1, uint32(x+10))
	}
	return w
}

func TestNewRegionStoreBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, backend := range []string{"memory", "file", "badger"} {
		t.Run(backend, func(t *testing.T) {
			store, err := NewRegionStore(ctx, &config.StorageConfig{
				Backend:     backend,
				Path:        dir,
				Region:      "test",
				Compression: "lz4",
			})
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.WriteAt(ctx, 0, []byte{1, 2, 3, 4}))
			region, err := store.ReadRegion(ctx)
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3, 4}, region)
		})
	}

	_, err := NewRegionStore(ctx, &config.StorageConfig{Backend: "tape"})
	assert.Error(t, err)

	_, err = NewRegionStore(ctx, &config.StorageConfig{Backend: "badger", Path: dir, Compression: "gzip"})
	assert.Error(t, err)
}

func TestSinkWritesEverySection(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	w := newWorld(t, 0, 1)

	stats, err := w.Save(Sink(ctx, store))
	require.NoError(t, err)
	assert.Len(t, store.offsets, stats.Calls)
	assert.Equal(t, 2*len(world.Sections()), stats.Calls)
}

func TestRecordSinkCoalescesChunk(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	w := newWorld(t, 0, 1, 2)
	size := int64(testLayout.RecordSize())

	// Средний чанк чист: записи должны остаться на своих границах
	_, err := w.Save(Sink(ctx, storage.NewMemoryRegion()))
	require.NoError(t, err)
	c0, _ := w.Chunk(0, 0)
	c2, _ := w.Chunk(2, 0)
	c0.SetBlock(0, 0, 0, 9)
	c2.SetBlock(0, 0, 0, 9)

	rs := NewRecordSink(ctx, store, testLayout)
	_, err = w.Save(rs.Write)
	require.NoError(t, err)
	require.NoError(t, rs.Flush())

	assert.Equal(t, []int64{0, 2 * size}, store.offsets)
	assert.Equal(t, []int{int(size), int(size)}, store.sizes)
	assert.Equal(t, 2, rs.Writes())
}

func TestRecordSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryRegion()
	w := newWorld(t, 5, -5)

	rs := NewRecordSink(ctx, store, testLayout)
	_, err := w.Save(rs.Write)
	require.NoError(t, err)
	require.NoError(t, rs.Flush())

	region, err := store.ReadRegion(ctx)
	require.NoError(t, err)

	loaded, err := world.New(testLayout)
	require.NoError(t, err)
	n, err := loaded.Load(region)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c, ok := loaded.Chunk(-5, 0)
	require.True(t, ok)
	assert.Equal(t, uint32(5), c.Block(1, 1, 1))
}

func TestRecordSinkOverwritesSectionWrites(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewBadgerRegion("", "mixed", storage.CompressionSnappy)
	require.NoError(t, err)
	defer store.Close()

	w := newWorld(t, 0)
	_, err = w.Save(Sink(ctx, store))
	require.NoError(t, err)

	c, _ := w.Chunk(0, 0)
	c.SetBlock(1, 1, 1, 42)
	rs := NewRecordSink(ctx, store, testLayout)
	_, err = w.Save(rs.Write)
	require.NoError(t, err)
	require.NoError(t, rs.Flush())

	region, err := store.ReadRegion(ctx)
	require.NoError(t, err)
	require.Len(t, region, testLayout.RecordSize())
	assert.Equal(t, c.Record(), region)

	loaded, err := world.New(testLayout)
	require.NoError(t, err)
	_, err = loaded.Load(region)
	require.NoError(t, err)
	reloaded, ok := loaded.Chunk(0, 0)
	require.True(t, ok)
	assert.Equal(t, uint32(42), reloaded.Block(1, 1, 1))
}

func TestRecordSinkFlushError(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	store.failAt = 0
	w := newWorld(t, 0, 1)

	rs := NewRecordSink(ctx, store, testLayout)
	_, err := w.Save(rs.Write)
	require.Error(t, err)

	var fe *FlushError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, int64(0), fe.Offset)

	c1, _ := w.Chunk(1, 0)
	assert.True(t, c1.Dirty(), "чанк, на котором прервалось сохранение, остаётся грязным")
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewPersistenceMetrics("adapter_test", prometheus.NewRegistry())
	w := newWorld(t, 0)

	stats, err := w.Save(Instrument(Sink(ctx, storage.NewMemoryRegion()), m))
	require.NoError(t, err)
	assert.Equal(t, len(world.Sections()), stats.Calls)
}

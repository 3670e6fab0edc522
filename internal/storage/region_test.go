package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/zeode/internal/slab"
	"github.com/annel0/zeode/internal/storage_interface"
	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ storage_interface.RegionStore = (*MemoryRegion)(nil)
	_ storage_interface.RegionStore = (*FileRegion)(nil)
	_ storage_interface.RegionStore = (*BadgerRegion)(nil)
	_ storage_interface.RegionStore = (*RedisRegion)(nil)

	_ storage_interface.Syncer = (*FileRegion)(nil)
	_ storage_interface.Syncer = (*BadgerRegion)(nil)
)

func setupTestStore(t *testing.T) string {
	tempDir, err := os.MkdirTemp("", "region-store-test")
	if err != nil {
		t.Fatalf("Не удалось создать временную директорию: %v", err)
	}
	return tempDir
}

func cleanupTestStore(store storage_interface.RegionStore, tempDir string) {
	if store != nil {
		store.Close()
	}
	if tempDir != "" {
		os.RemoveAll(tempDir)
	}
}

// testRegionStore проверяет общий контракт RegionStore
func testRegionStore(t *testing.T, store storage_interface.RegionStore) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		region, err := store.ReadRegion(ctx)
		require.NoError(t, err)
		assert.Empty(t, region)
	})

	t.Run("Sparse Writes", func(t *testing.T) {
		require.NoError(t, store.WriteAt(ctx, 0, []byte{1, 2, 3, 4}))
		require.NoError(t, store.WriteAt(ctx, 12, []byte{9, 9, 9, 9}))

		region, err := store.ReadRegion(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0, 9, 9, 9, 9}, region)
		assert.True(t, slab.Aligned(region))
	})

	t.Run("Overwrite Same Offset", func(t *testing.T) {
		require.NoError(t, store.WriteAt(ctx, 12, []byte{7, 7, 7, 7}))

		region, err := store.ReadRegion(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte{7, 7, 7, 7}, region[12:16])
		assert.Equal(t, []byte{1, 2, 3, 4}, region[:4])
	})

	t.Run("Overlapping Writes", func(t *testing.T) {
		require.NoError(t, store.WriteAt(ctx, 20, []byte{1, 1, 1, 1}))
		require.NoError(t, store.WriteAt(ctx, 24, []byte{2, 2, 2, 2}))
		require.NoError(t, store.WriteAt(ctx, 20, bytes.Repeat([]byte{9}, 8)))

		region, err := store.ReadRegion(ctx)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{9}, 8), region[20:28])

		// Запись, задевающая хвост одного участка и голову другого
		require.NoError(t, store.WriteAt(ctx, 14, []byte{6, 6, 6, 6, 6, 6, 6, 6}))
		region, err = store.ReadRegion(ctx)
		require.NoError(t, err)
		require.Len(t, region, 28)
		assert.Equal(t, []byte{7, 7, 6, 6, 6, 6, 6, 6, 6, 6, 9, 9, 9, 9, 9, 9}, region[12:28])
		assert.Equal(t, []byte{1, 2, 3, 4}, region[:4])
	})

	t.Run("Canceled Context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, store.WriteAt(canceled, 0, []byte{1}), context.Canceled)
		_, err := store.ReadRegion(canceled)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Negative Offset", func(t *testing.T) {
		assert.Error(t, store.WriteAt(ctx, -4, []byte{1}))
	})

	t.Run("Closed", func(t *testing.T) {
		require.NoError(t, store.Close())
		assert.ErrorIs(t, store.WriteAt(ctx, 0, []byte{1}), storage_interface.ErrStoreClosed)
		_, err := store.ReadRegion(ctx)
		assert.ErrorIs(t, err, storage_interface.ErrStoreClosed)
	})
}

func TestMemoryRegion(t *testing.T) {
	testRegionStore(t, NewMemoryRegion())
}

func TestMemoryRegionReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRegion()
	require.NoError(t, store.WriteAt(ctx, 0, []byte{1, 2, 3, 4}))

	region, err := store.ReadRegion(ctx)
	require.NoError(t, err)
	region[0] = 42

	again, err := store.ReadRegion(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(1), again[0])
	assert.Equal(t, int64(4), store.Size())
}

func TestFileRegion(t *testing.T) {
	tempDir := setupTestStore(t)
	defer os.RemoveAll(tempDir)

	store, err := NewFileRegion(filepath.Join(tempDir, "world", "region.bin"))
	require.NoError(t, err)
	testRegionStore(t, store)
}

func TestFileRegionPersists(t *testing.T) {
	tempDir := setupTestStore(t)
	path := filepath.Join(tempDir, "region.bin")
	ctx := context.Background()

	store, err := NewFileRegion(path)
	require.NoError(t, err)
	require.NoError(t, store.WriteAt(ctx, 8, []byte{5, 6, 7, 8}))
	require.NoError(t, store.Close())

	reopened, err := NewFileRegion(path)
	require.NoError(t, err)
	defer cleanupTestStore(reopened, tempDir)

	region, err := reopened.ReadRegion(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 5, 6, 7, 8}, region)

	require.NoError(t, reopened.Sync())
	require.NoError(t, reopened.Close())
	assert.ErrorIs(t, reopened.Sync(), storage_interface.ErrStoreClosed)
}

func TestBadgerRegion(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionSnappy, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			tempDir := setupTestStore(t)
			defer os.RemoveAll(tempDir)

			store, err := NewBadgerRegion(tempDir, "overworld", c)
			require.NoError(t, err)
			testRegionStore(t, store)
		})
	}
}

func TestBadgerRegionPersists(t *testing.T) {
	tempDir := setupTestStore(t)
	ctx := context.Background()
	payload := bytes.Repeat([]byte{1, 0, 0, 0}, 1024)

	store, err := NewBadgerRegion(tempDir, "overworld", CompressionZstd)
	require.NoError(t, err)
	require.NoError(t, store.WriteAt(ctx, 0, payload))
	require.NoError(t, store.WriteAt(ctx, int64(len(payload)), []byte{2, 0, 0, 0}))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerRegion(tempDir, "overworld", CompressionNone)
	require.NoError(t, err)
	defer cleanupTestStore(reopened, tempDir)

	region, err := reopened.ReadRegion(ctx)
	require.NoError(t, err)
	require.Len(t, region, len(payload)+4)
	assert.Equal(t, payload, region[:len(payload)])
	assert.Equal(t, []byte{2, 0, 0, 0}, region[len(payload):])
}

func TestBadgerRegionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	a, err := NewBadgerRegion("", "a", CompressionNone)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.WriteAt(ctx, 0, []byte{1, 1, 1, 1}))

	b := &BadgerRegion{db: a.db, name: "b", prefix: []byte("region/b/"), logger: a.logger, isReady: true}
	region, err := b.ReadRegion(ctx)
	require.NoError(t, err)
	assert.Empty(t, region)

	require.NoError(t, a.Reset())
	region, err = a.ReadRegion(ctx)
	require.NoError(t, err)
	assert.Empty(t, region)
}

func TestBadgerRegionCorruptFrame(t *testing.T) {
	ctx := context.Background()
	store, err := NewBadgerRegion("", "broken", CompressionNone)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.WriteAt(ctx, 0, []byte{1, 2, 3, 4}))

	// Портим полезную нагрузку, не трогая контрольную сумму
	frame, err := encodeFrame(CompressionNone, []byte{1, 2, 3, 5})
	require.NoError(t, err)
	good, err := encodeFrame(CompressionNone, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	copy(frame[1:5], good[1:5])
	require.NoError(t, store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(store.key(0), frame)
	}))

	_, err = store.ReadRegion(ctx)
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestRedisRegion(t *testing.T) {
	addr := os.Getenv("ZEODE_TEST_REDIS")
	if addr == "" {
		t.Skip("ZEODE_TEST_REDIS не задан")
	}

	ctx := context.Background()
	cfg := DefaultRedisConfig()
	cfg.Addr = addr
	cfg.KeyPrefix = "zeode-test:"

	store, err := NewRedisRegion(ctx, cfg, t.Name())
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx))
	testRegionStore(t, store)
}

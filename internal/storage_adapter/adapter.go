package storage_adapter

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/annel0/zeode/internal/config"
	"github.com/annel0/zeode/internal/metrics"
	"github.com/annel0/zeode/internal/storage"
	"github.com/annel0/zeode/internal/storage_interface"
	"github.com/annel0/zeode/internal/world"
)

// NewRegionStore создаёт хранилище региона по конфигурации
func NewRegionStore(ctx context.Context, cfg *config.StorageConfig) (storage_interface.RegionStore, error) {
	region := cfg.GetRegion()

	switch backend := cfg.GetBackend(); backend {
	case "memory":
		return storage.NewMemoryRegion(), nil
	case "file":
		return storage.NewFileRegion(filepath.Join(cfg.GetPath(), region+".region"))
	case "badger":
		compression, err := storage.ParseCompression(cfg.Compression)
		if err != nil {
			return nil, err
		}
		return storage.NewBadgerRegion(filepath.Join(cfg.GetPath(), "badger"), region, compression)
	case "redis":
		return storage.NewRedisRegion(ctx, &storage.RedisConfig{
			Addr:      cfg.Redis.GetAddr(),
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: "region:",
		}, region)
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %q", backend)
	}
}

// Sink адаптирует хранилище к world.Sink: каждая секция пишется отдельным WriteAt
func Sink(ctx context.Context, store storage_interface.RegionStore) world.Sink {
	return func(offset int64, data []byte) error {
		return store.WriteAt(ctx, offset, data)
	}
}

// Instrument оборачивает sink учётом вызовов и байт в метриках
func Instrument(sink world.Sink, m *metrics.PersistenceMetrics) world.Sink {
	if m == nil {
		return sink
	}
	return func(offset int64, data []byte) error {
		err := sink(offset, data)
		m.ObserveSink(len(data), err)
		return err
	}
}

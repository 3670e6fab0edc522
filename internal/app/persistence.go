package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/zeode/internal/config"
	"github.com/annel0/zeode/internal/logging"
	"github.com/annel0/zeode/internal/metrics"
	"github.com/annel0/zeode/internal/storage_adapter"
	"github.com/annel0/zeode/internal/storage_interface"
	"github.com/annel0/zeode/internal/world"
	"github.com/prometheus/client_golang/prometheus"
)

// Persistence связывает индекс мира с хранилищем региона.
//
// Open читает регион и загружает его в World, Flush сохраняет грязные чанки.
// World не потокобезопасен: все обращения к миру, которые могут совпасть с Flush,
// нужно выполнять через Do.
type Persistence struct {
	world   *world.World
	store   storage_interface.RegionStore
	metrics *metrics.PersistenceMetrics
	logger  *logging.Logger
	mutex   sync.Mutex
	ready   bool
}

// Open загружает регион из store. Неполная запись в конце региона не считается
// фатальной: полные чанки загружаются, событие логируется и учитывается в метриках.
// m может быть nil.
func Open(ctx context.Context, layout world.Layout, store storage_interface.RegionStore, m *metrics.PersistenceMetrics) (*Persistence, error) {
	logger := logging.GetComponentLogger("app")

	w, err := world.New(layout)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	region, err := store.ReadRegion(ctx)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать регион: %w", err)
	}

	n, err := w.Load(region)
	if m != nil {
		m.ObserveLoad(n, time.Since(start), err)
	}
	switch {
	case errors.Is(err, world.ErrTruncatedRegion):
		logger.Warn("Регион загружен частично: %v", err)
	case err != nil:
		return nil, fmt.Errorf("не удалось загрузить регион: %w", err)
	}

	logger.Info("Загружено чанков: %d (%d байт)", n, len(region))

	p := &Persistence{
		world:   w,
		store:   store,
		metrics: m,
		logger:  logger,
		ready:   true,
	}
	p.updateGauges()
	return p, nil
}

// OpenFromConfig настраивает логирование, создаёт хранилище и метрики по конфигурации
// и открывает мир. reg может быть nil, тогда метрики регистрируются в глобальном регистре.
func OpenFromConfig(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*Persistence, error) {
	if err := logging.InitLogger(cfg.Logging.Dir); err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Logging.GetLevel())
	if err != nil {
		return nil, err
	}
	logging.GetLoggerManager().SetDefaultLevels(level, level)

	layout, err := cfg.WorldLayout()
	if err != nil {
		return nil, err
	}

	store, err := storage_adapter.NewRegionStore(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать хранилище: %w", err)
	}

	m := metrics.NewPersistenceMetrics(cfg.Metrics.GetNamespace(), reg)
	p, err := Open(ctx, layout, store, m)
	if err != nil {
		store.Close()
		return nil, err
	}
	return p, nil
}

// World возвращает индекс мира
func (p *Persistence) World() *world.World {
	return p.world
}

// Do выполняет fn с исключительным доступом к миру
func (p *Persistence) Do(fn func(w *world.World) error) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return fn(p.world)
}

// Flush сохраняет грязные чанки в хранилище.
// Каждый чанк отдаётся хранилищу одной записью, после записи хранилище с Sync сбрасывается на диск. При ошибке чанк, запись которого
// не дошла до хранилища, остаётся грязным и будет записан следующим Flush.
func (p *Persistence) Flush(ctx context.Context) (world.SaveStats, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.ready {
		return world.SaveStats{}, storage_interface.ErrStoreClosed
	}
	return p.flushLocked(ctx)
}

func (p *Persistence) flushLocked(ctx context.Context) (world.SaveStats, error) {
	start := time.Now()
	rs := storage_adapter.NewRecordSink(ctx, p.store, p.world.Layout())

	stats, err := p.world.Save(storage_adapter.Instrument(rs.Write, p.metrics))
	if err == nil {
		err = rs.Flush()
	}
	if syncer, ok := p.store.(storage_interface.Syncer); ok && err == nil && stats.Flushed > 0 {
		if syncErr := syncer.Sync(); syncErr != nil {
			err = fmt.Errorf("ошибка сброса хранилища: %w", syncErr)
		}
	}

	var fe *storage_adapter.FlushError
	if errors.As(err, &fe) {
		if c, ok := p.world.ChunkAt(fe.Offset); ok {
			c.MarkDirty()
		}
	}

	if p.metrics != nil {
		p.metrics.ObserveSave(stats, time.Since(start), err)
	}
	p.updateGauges()

	if err != nil {
		p.logger.Error("Ошибка сохранения мира: %v", err)
		return stats, err
	}

	if stats.Flushed > 0 {
		p.logger.Debug("Сохранено чанков: %d, записей в хранилище: %d, байт: %d", stats.Flushed, rs.Writes(), stats.Bytes)
	}
	return stats, nil
}

// Close сохраняет мир и закрывает хранилище
func (p *Persistence) Close(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.ready {
		return nil
	}

	_, flushErr := p.flushLocked(ctx)
	p.ready = false

	if err := p.store.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия хранилища: %w", err)
	}
	return flushErr
}

func (p *Persistence) updateGauges() {
	if p.metrics != nil {
		p.metrics.SetWorldState(p.world)
	}
}

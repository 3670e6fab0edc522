package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/annel0/zeode/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PersistenceMetrics инкапсулирует Prometheus-метрики загрузки и сохранения региона.
//
// Метрики:
// * saves_total{result}: counter (ok/error)
// * save_duration_seconds: histogram
// * chunks_flushed_total, chunks_skipped_total: counter
// * sink_calls_total, sink_bytes_total, sink_errors_total: counter
// * chunks_loaded_total, truncated_loads_total: counter
// * load_duration_seconds: histogram
// * dirty_chunks, region_bytes: gauge
type PersistenceMetrics struct {
	gatherer prometheus.Gatherer

	saves        *prometheus.CounterVec
	saveDuration prometheus.Histogram
	flushed      prometheus.Counter
	skipped      prometheus.Counter
	sinkCalls    prometheus.Counter
	sinkBytes    prometheus.Counter
	sinkErrors   prometheus.Counter
	loaded       prometheus.Counter
	truncated    prometheus.Counter
	loadDuration prometheus.Histogram
	dirtyChunks  prometheus.Gauge
	regionBytes  prometheus.Gauge
}

// NewPersistenceMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется глобальный регистр Prometheus.
func NewPersistenceMetrics(namespace string, reg prometheus.Registerer) *PersistenceMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	durationBuckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

	pm := &PersistenceMetrics{
		gatherer: gatherer,
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Проходов сохранения по результату.",
		}, []string{"result"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Длительность прохода сохранения.",
			Buckets:   durationBuckets,
		}),
		flushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_flushed_total",
			Help:      "Грязных чанков, записанных при сохранении.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_skipped_total",
			Help:      "Чистых чанков, пропущенных при сохранении.",
		}),
		sinkCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_calls_total",
			Help:      "Записей секций в хранилище.",
		}),
		sinkBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_bytes_total",
			Help:      "Байт, переданных в хранилище.",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Записей секций, завершившихся ошибкой.",
		}),
		loaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_loaded_total",
			Help:      "Чанков, загруженных из региона.",
		}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truncated_loads_total",
			Help:      "Загрузок региона с неполной записью в конце.",
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Длительность загрузки региона.",
			Buckets:   durationBuckets,
		}),
		dirtyChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dirty_chunks",
			Help:      "Чанков с несохранёнными изменениями.",
		}),
		regionBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_bytes",
			Help:      "Длина региона, покрытая индексом.",
		}),
	}

	reg.MustRegister(
		pm.saves, pm.saveDuration, pm.flushed, pm.skipped,
		pm.sinkCalls, pm.sinkBytes, pm.sinkErrors,
		pm.loaded, pm.truncated, pm.loadDuration,
		pm.dirtyChunks, pm.regionBytes,
	)
	return pm
}

// ObserveSink учитывает одну запись секции
func (pm *PersistenceMetrics) ObserveSink(n int, err error) {
	if err != nil {
		pm.sinkErrors.Inc()
		return
	}
	pm.sinkCalls.Inc()
	pm.sinkBytes.Add(float64(n))
}

// ObserveSave учитывает проход сохранения
func (pm *PersistenceMetrics) ObserveSave(stats world.SaveStats, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	pm.saves.WithLabelValues(result).Inc()
	pm.saveDuration.Observe(elapsed.Seconds())
	pm.flushed.Add(float64(stats.Flushed))
	pm.skipped.Add(float64(stats.Skipped))
}

// ObserveLoad учитывает загрузку региона
func (pm *PersistenceMetrics) ObserveLoad(chunks int, elapsed time.Duration, err error) {
	pm.loaded.Add(float64(chunks))
	pm.loadDuration.Observe(elapsed.Seconds())
	if errors.Is(err, world.ErrTruncatedRegion) {
		pm.truncated.Inc()
	}
}

// SetWorldState обновляет gauge состояния индекса
func (pm *PersistenceMetrics) SetWorldState(w *world.World) {
	pm.dirtyChunks.Set(float64(w.DirtyCount()))
	pm.regionBytes.Set(float64(w.RegionSize()))
}

// Handler возвращает HTTP-обработчик /metrics для регистра метрик.
func (pm *PersistenceMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.gatherer, promhttp.HandlerOpts{})
}

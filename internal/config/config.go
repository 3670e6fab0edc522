package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/annel0/zeode/internal/world"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации.
// Пустые поля означают значения по умолчанию.
type Config struct {
	Layout  LayoutConfig  `yaml:"layout"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LayoutConfig переопределяет размеры секций записи чанка.
// Нулевые поля берутся из world.DefaultLayout.
type LayoutConfig struct {
	TerrainSize  int `yaml:"terrain_size"`
	ObjectSlots  int `yaml:"object_slots"`
	BlockWidth   int `yaml:"block_width"`
	BlockHeight  int `yaml:"block_height"`
	BlockDepth   int `yaml:"block_depth"`
	LayerHeight  int `yaml:"layer_height"`
	LightSlots   int `yaml:"light_slots"`
	GeometrySize int `yaml:"geometry_size"`
	TrailerSlots int `yaml:"trailer_slots"`
}

type StorageConfig struct {
	Backend     string      `yaml:"backend"` // memory, file, badger, redis
	Path        string      `yaml:"path"`
	Region      string      `yaml:"region"`
	Compression string      `yaml:"compression"` // none, snappy, lz4, zstd (только badger)
	Redis       RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Port      int    `yaml:"port"`
}

// GetBackend возвращает тип хранилища с поддержкой fallback значений
func (s *StorageConfig) GetBackend() string {
	return getStringWithEnvFallback(s.Backend, "ZEODE_STORAGE_BACKEND", "memory")
}

// GetPath возвращает путь к данным с поддержкой fallback значений
func (s *StorageConfig) GetPath() string {
	return getStringWithEnvFallback(s.Path, "ZEODE_STORAGE_PATH", "data")
}

// GetRegion возвращает имя региона
func (s *StorageConfig) GetRegion() string {
	return getStringWithEnvFallback(s.Region, "ZEODE_REGION", "overworld")
}

// GetAddr возвращает адрес Redis с поддержкой fallback значений
func (r *RedisConfig) GetAddr() string {
	return getStringWithEnvFallback(r.Addr, "ZEODE_REDIS_ADDR", "localhost:6379")
}

// GetLevel возвращает минимальный уровень логирования
func (l *LoggingConfig) GetLevel() string {
	return getStringWithEnvFallback(l.Level, "ZEODE_LOG_LEVEL", "INFO")
}

// GetNamespace возвращает пространство имён метрик
func (m *MetricsConfig) GetNamespace() string {
	if m.Namespace != "" {
		return m.Namespace
	}
	return "zeode"
}

// GetPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (m *MetricsConfig) GetPort() int {
	return getPortWithEnvFallback(m.Port, "ZEODE_METRICS_PORT", 2112)
}

// WorldLayout собирает и проверяет раскладку чанка
func (c *Config) WorldLayout() (world.Layout, error) {
	layout := world.DefaultLayout
	override := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	override(&layout.TerrainSize, c.Layout.TerrainSize)
	override(&layout.ObjectSlots, c.Layout.ObjectSlots)
	override(&layout.BlockWidth, c.Layout.BlockWidth)
	override(&layout.BlockHeight, c.Layout.BlockHeight)
	override(&layout.BlockDepth, c.Layout.BlockDepth)
	override(&layout.LayerHeight, c.Layout.LayerHeight)
	override(&layout.LightSlots, c.Layout.LightSlots)
	override(&layout.GeometrySize, c.Layout.GeometrySize)
	override(&layout.TrailerSlots, c.Layout.TrailerSlots)

	if err := layout.Validate(); err != nil {
		return world.Layout{}, fmt.Errorf("раскладка из конфигурации: %w", err)
	}
	return layout, nil
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// getStringWithEnvFallback возвращает строку с приоритетом: config -> env -> default
func getStringWithEnvFallback(configVal, envVar, defaultVal string) string {
	if configVal != "" {
		return configVal
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultVal
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV ZEODE_CONFIG или возвращает пустую конфигурацию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ZEODE_CONFIG")
		if path == "" {
			return &Config{}, nil // конфиг не задан, используются значения по умолчанию
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать конфигурацию %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	return &cfg, nil
}

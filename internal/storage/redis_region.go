package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/annel0/zeode/internal/logging"
	"github.com/annel0/zeode/internal/slab"
	"github.com/annel0/zeode/internal/storage_interface"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки Redis для региона
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		KeyPrefix: "region:",
	}
}

// RedisRegion хранит регион одной строкой Redis.
// Каждый WriteAt выполняется через SETRANGE, чтение через GET.
// Размер региона ограничен максимальной длиной строки Redis (512 МБ).
type RedisRegion struct {
	client *redis.Client
	key    string
	logger *logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewRedisRegion подключается к Redis и проверяет соединение
func NewRedisRegion(ctx context.Context, config *RedisConfig, name string) (*RedisRegion, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", config.Addr, err)
	}

	rr := &RedisRegion{
		client: client,
		key:    config.KeyPrefix + name,
		logger: logging.GetStorageLogger(),
	}
	rr.logger.Info("Регион %s подключён к Redis %s", rr.key, config.Addr)
	return rr, nil
}

// Key возвращает ключ Redis, в котором хранится регион
func (rr *RedisRegion) Key() string {
	return rr.key
}

// WriteAt записывает данные по смещению через SETRANGE
func (rr *RedisRegion) WriteAt(ctx context.Context, offset int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("недопустимое смещение %d", offset)
	}

	rr.mu.RLock()
	defer rr.mu.RUnlock()

	if rr.closed {
		return storage_interface.ErrStoreClosed
	}
	if len(data) == 0 {
		return nil
	}

	if err := rr.client.SetRange(ctx, rr.key, offset, string(data)).Err(); err != nil {
		return fmt.Errorf("ошибка SETRANGE %s по смещению %d: %w", rr.key, offset, err)
	}
	return nil
}

// ReadRegion читает регион целиком
func (rr *RedisRegion) ReadRegion(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rr.mu.RLock()
	defer rr.mu.RUnlock()

	if rr.closed {
		return nil, storage_interface.ErrStoreClosed
	}

	data, err := rr.client.Get(ctx, rr.key).Bytes()
	if err == redis.Nil {
		return slab.AlignedBytes(0), nil // Регион ещё не записывался
	} else if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", rr.key, err)
	}

	region := slab.AlignedBytes(len(data))
	copy(region, data)
	return region, nil
}

// Reset удаляет регион из Redis
func (rr *RedisRegion) Reset(ctx context.Context) error {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	if rr.closed {
		return storage_interface.ErrStoreClosed
	}
	return rr.client.Del(ctx, rr.key).Err()
}

// Close закрывает соединение
func (rr *RedisRegion) Close() error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.closed {
		return nil
	}
	rr.closed = true
	return rr.client.Close()
}

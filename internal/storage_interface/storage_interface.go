package storage_interface

import (
	"context"
	"errors"
)

// ErrStoreClosed возвращается при обращении к закрытому хранилищу
var ErrStoreClosed = errors.New("хранилище региона закрыто")

// RegionStore определяет интерфейс хранилища региона чанков.
// Регион: плоский массив байт из подряд идущих записей чанков;
// хранилище ничего не знает о его формате.
type RegionStore interface {
	// WriteAt записывает data по абсолютному смещению, расширяя регион при необходимости
	WriteAt(ctx context.Context, offset int64, data []byte) error

	// ReadRegion возвращает весь регион целиком в буфере, выровненном на слово.
	// Для пустого хранилища возвращает пустой срез без ошибки.
	ReadRegion(ctx context.Context) ([]byte, error)

	// Close закрывает хранилище
	Close() error
}

// Syncer реализуют хранилища, которым нужен явный сброс на диск после записи
type Syncer interface {
	Sync() error
}

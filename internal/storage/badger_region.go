package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"

	"github.com/annel0/zeode/internal/logging"
	"github.com/annel0/zeode/internal/slab"
	"github.com/annel0/zeode/internal/storage_interface"
	"github.com/dgraph-io/badger/v3"
)

// BadgerRegion хранит регион в BadgerDB.
//
// Каждый вызов WriteAt сохраняется отдельным ключом region/<имя>/<смещение hex>,
// значение упаковано в кадр с контрольной суммой и, при необходимости, сжато.
// Участки в базе не пересекаются: WriteAt в той же транзакции удаляет или обрезает
// участки, которые перекрывает новая запись.
type BadgerRegion struct {
	db          *badger.DB
	name        string
	prefix      []byte
	compression Compression
	logger      *logging.Logger
	mutex       sync.RWMutex
	isReady     bool
}

// NewBadgerRegion открывает BadgerDB в каталоге dir. Пустой dir открывает базу в памяти.
func NewBadgerRegion(dir, name string, compression Compression) (*BadgerRegion, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerRegion{
		db:          db,
		name:        name,
		prefix:      []byte("region/" + name + "/"),
		compression: compression,
		logger:      logging.GetStorageLogger(),
		isReady:     true,
	}, nil
}

// Name возвращает имя региона
func (br *BadgerRegion) Name() string {
	return br.name
}

func (br *BadgerRegion) key(offset int64) []byte {
	return append(append([]byte(nil), br.prefix...), fmt.Sprintf("%016x", offset)...)
}

// WriteAt сохраняет данные по смещению
func (br *BadgerRegion) WriteAt(ctx context.Context, offset int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("недопустимое смещение %d", offset)
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()

	if !br.isReady {
		return storage_interface.ErrStoreClosed
	}
	if len(data) == 0 {
		return nil
	}

	frame, err := encodeFrame(br.compression, data)
	if err != nil {
		return fmt.Errorf("ошибка упаковки секции по смещению %d: %w", offset, err)
	}

	err = br.db.Update(func(txn *badger.Txn) error {
		if err := br.trimOverlaps(txn, offset, offset+int64(len(data))); err != nil {
			return err
		}
		return txn.Set(br.key(offset), frame)
	})
	if err != nil {
		return fmt.Errorf("ошибка записи в BadgerDB: %w", err)
	}
	return nil
}

// regionSpan участок, сохранённый под одним ключом
type regionSpan struct {
	offset int64
	data   []byte
}

// trimOverlaps убирает из [start, end) все ранее записанные участки.
// Части участков за пределами диапазона перезаписываются отдельными ключами.
func (br *BadgerRegion) trimOverlaps(txn *badger.Txn, start, end int64) error {
	var spans []regionSpan

	opts := badger.DefaultIteratorOptions
	opts.Prefix = br.prefix
	it := txn.NewIterator(opts)
	for it.Seek(br.prefix); it.ValidForPrefix(br.prefix); it.Next() {
		item := it.Item()
		offset, err := br.parseKey(item.Key())
		if err != nil {
			it.Close()
			return err
		}
		// Ключи отсортированы по смещению
		if offset >= end {
			break
		}

		frame, err := item.ValueCopy(nil)
		if err != nil {
			it.Close()
			return err
		}
		if len(frame) < frameHeaderSize {
			it.Close()
			return fmt.Errorf("участок по смещению %d: %w", offset, ErrCorruptFrame)
		}
		size := int64(binary.LittleEndian.Uint32(frame[5:9]))
		if offset+size <= start {
			continue
		}

		data, err := decodeFrame(frame)
		if err != nil {
			it.Close()
			return fmt.Errorf("участок по смещению %d: %w", offset, err)
		}
		spans = append(spans, regionSpan{offset: offset, data: data})
	}
	it.Close()

	for _, span := range spans {
		if err := txn.Delete(br.key(span.offset)); err != nil {
			return err
		}
		if span.offset < start {
			if err := br.setSpan(txn, span.offset, span.data[:start-span.offset]); err != nil {
				return err
			}
		}
		if tail := span.offset + int64(len(span.data)); tail > end {
			if err := br.setSpan(txn, end, span.data[end-span.offset:]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (br *BadgerRegion) setSpan(txn *badger.Txn, offset int64, data []byte) error {
	frame, err := encodeFrame(br.compression, data)
	if err != nil {
		return err
	}
	return txn.Set(br.key(offset), frame)
}

func (br *BadgerRegion) parseKey(key []byte) (int64, error) {
	offset, err := strconv.ParseInt(string(key[len(br.prefix):]), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректный ключ %q: %w", key, err)
	}
	return offset, nil
}

// ReadRegion собирает регион из всех сохранённых участков
func (br *BadgerRegion) ReadRegion(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()

	if !br.isReady {
		return nil, storage_interface.ErrStoreClosed
	}

	region := slab.AlignedBytes(0)
	err := br.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = br.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(br.prefix); it.ValidForPrefix(br.prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			key := item.KeyCopy(nil)
			offset, err := br.parseKey(key)
			if err != nil {
				return err
			}

			err = item.Value(func(frame []byte) error {
				data, err := decodeFrame(frame)
				if err != nil {
					br.logger.Warn("Повреждённый участок %s:\n%s", key, logging.HexDump(frame[:min(len(frame), 64)]))
					return fmt.Errorf("участок по смещению %d: %w", offset, err)
				}
				end := int(offset) + len(data)
				if end > len(region) {
					region = growAligned(region, end)
				}
				copy(region[offset:], data)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения региона %s: %w", br.name, err)
	}
	return region, nil
}

// Sync сбрасывает журнал BadgerDB на диск. Для базы в памяти ничего не делает.
func (br *BadgerRegion) Sync() error {
	br.mutex.RLock()
	defer br.mutex.RUnlock()

	if !br.isReady {
		return storage_interface.ErrStoreClosed
	}
	if br.db.Opts().InMemory {
		return nil
	}
	return br.db.Sync()
}

// Reset удаляет все участки региона
func (br *BadgerRegion) Reset() error {
	br.mutex.RLock()
	defer br.mutex.RUnlock()

	if !br.isReady {
		return storage_interface.ErrStoreClosed
	}
	if err := br.db.DropPrefix(br.prefix); err != nil {
		return fmt.Errorf("ошибка очистки региона %s: %w", br.name, err)
	}
	return nil
}

// Close закрывает базу
func (br *BadgerRegion) Close() error {
	br.mutex.Lock()
	defer br.mutex.Unlock()

	if !br.isReady {
		return nil
	}

	br.isReady = false
	return br.db.Close()
}

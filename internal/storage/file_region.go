package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/annel0/zeode/internal/slab"
	"github.com/annel0/zeode/internal/storage_interface"
)

// FileRegion хранит регион в обычном файле.
// Секции пишутся по абсолютным смещениям через WriteAt, поэтому частичное
// сохранение накладывается прямо на файл.
type FileRegion struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	closed bool
}

// NewFileRegion открывает (или создаёт) файл региона
func NewFileRegion(path string) (*FileRegion, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог региона: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть файл региона: %w", err)
	}
	return &FileRegion{file: f, path: path}, nil
}

// Path возвращает путь к файлу региона
func (fr *FileRegion) Path() string {
	return fr.path
}

// WriteAt записывает данные по смещению
func (fr *FileRegion) WriteAt(ctx context.Context, offset int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("недопустимое смещение %d", offset)
	}

	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.closed {
		return storage_interface.ErrStoreClosed
	}
	if _, err := fr.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("ошибка записи в %s по смещению %d: %w", fr.path, offset, err)
	}
	return nil
}

// ReadRegion читает файл целиком в выровненный буфер
func (fr *FileRegion) ReadRegion(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.closed {
		return nil, storage_interface.ErrStoreClosed
	}

	info, err := fr.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить размер %s: %w", fr.path, err)
	}

	region := slab.AlignedBytes(int(info.Size()))
	if _, err := io.ReadFull(io.NewSectionReader(fr.file, 0, info.Size()), region); err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", fr.path, err)
	}
	return region, nil
}

// Sync сбрасывает файл на диск
func (fr *FileRegion) Sync() error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.closed {
		return storage_interface.ErrStoreClosed
	}
	return fr.file.Sync()
}

// Close сбрасывает и закрывает файл
func (fr *FileRegion) Close() error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.closed {
		return nil
	}
	fr.closed = true

	if err := fr.file.Sync(); err != nil {
		fr.file.Close()
		return fmt.Errorf("ошибка сброса %s: %w", fr.path, err)
	}
	return fr.file.Close()
}

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/annel0/zeode/internal/slab"
	"github.com/annel0/zeode/internal/storage_interface"
)

// MemoryRegion реализует RegionStore в памяти.
// Используется в тестах и как промежуточный буфер перед блокирующей записью.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryRegion struct {
	mu     sync.RWMutex
	data   []byte
	closed bool
}

// NewMemoryRegion создаёт пустой регион в памяти
func NewMemoryRegion() *MemoryRegion {
	return &MemoryRegion{data: []byte{}}
}

// WriteAt записывает данные по смещению
func (m *MemoryRegion) WriteAt(ctx context.Context, offset int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("недопустимое смещение %d", offset)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return storage_interface.ErrStoreClosed
	}

	end := int(offset) + len(data)
	if end > len(m.data) {
		m.data = growAligned(m.data, end)
	}
	copy(m.data[offset:], data)
	return nil
}

// ReadRegion возвращает копию региона
func (m *MemoryRegion) ReadRegion(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, storage_interface.ErrStoreClosed
	}

	region := slab.AlignedBytes(len(m.data))
	copy(region, m.data)
	return region, nil
}

// Size возвращает текущую длину региона
func (m *MemoryRegion) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// Close закрывает регион
func (m *MemoryRegion) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

// growAligned возвращает выровненный буфер длиной n с содержимым buf.
// Ёмкость растёт с запасом, чтобы серия последовательных записей не копировала регион каждый раз.
func growAligned(buf []byte, n int) []byte {
	if n <= cap(buf) {
		return buf[:n]
	}
	newCap := 2 * cap(buf)
	if newCap < n {
		newCap = n
	}
	grown := slab.AlignedBytes(newCap)
	copy(grown, buf)
	return grown[:n]
}

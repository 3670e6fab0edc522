package world

import (
	"errors"
	"fmt"
	"iter"

	"github.com/annel0/zeode/internal/logging"
	"github.com/annel0/zeode/internal/slab"
	"github.com/annel0/zeode/internal/vec"
)

var (
	// ErrTruncatedRegion регион содержит неполную запись в конце. Полные записи при этом загружены.
	ErrTruncatedRegion = errors.New("регион обрезан: неполная запись чанка")
	// ErrMisalignedRegion регион не выровнен на границу слова.
	ErrMisalignedRegion = errors.New("регион не выровнен на границу слова")
	// ErrLayoutMismatch раскладка чанка не совпадает с раскладкой мира.
	ErrLayoutMismatch = errors.New("раскладка чанка не совпадает")
)

// Sink получает участки региона при сохранении: абсолютное смещение и байты секции.
// data указывает на память чанка и действительна только во время вызова.
type Sink func(offset int64, data []byte) error

// SaveStats итоги одного прохода сохранения.
type SaveStats struct {
	Flushed int   // Записано грязных чанков
	Skipped int   // Пропущено чистых чанков
	Holes   int   // Пропущено позиций удалённых чанков
	Calls   int   // Вызовов Sink
	Bytes   int64 // Передано байт
	Size    int64 // Смещение после последней записи: покрытая длина региона
}

// World индекс чанков мира.
//
// Чанки адресуются тороидальным ключом (vec.Vec2.Key). Кроме карты ключей индекс хранит
// порядок записей: позиция чанка в порядке определяет смещение его записи в регионе.
// Удаление оставляет пустую позицию, поэтому смещения остальных чанков не сдвигаются.
// World не потокобезопасен: все вызовы должны выполняться из одного потока.
type World struct {
	layout Layout
	index  map[uint32]int // ключ -> позиция в order
	order  []*Chunk       // nil на месте удалённых чанков
	logger *logging.Logger
}

// New создаёт пустой индекс с указанной раскладкой.
func New(layout Layout) (*World, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &World{
		layout: layout,
		index:  make(map[uint32]int),
		logger: logging.GetWorldLogger(),
	}, nil
}

// Layout возвращает раскладку мира.
func (w *World) Layout() Layout { return w.layout }

// Len возвращает количество чанков в индексе.
func (w *World) Len() int { return len(w.index) }

// RegionSize возвращает длину региона, который покрывает текущий порядок записей.
func (w *World) RegionSize() int64 {
	return int64(len(w.order)) * int64(w.layout.RecordSize())
}

// DirtyCount возвращает количество чанков с несохранёнными изменениями.
func (w *World) DirtyCount() int {
	n := 0
	for c := range w.Chunks() {
		if c.dirty {
			n++
		}
	}
	return n
}

// Load разбирает регион из подряд идущих записей чанков и добавляет их в индекс.
// Чанки ссылаются на память region без копирования и после загрузки считаются чистыми.
// Возвращает количество загруженных чанков. Если в конце региона осталась неполная запись,
// она отбрасывается и возвращается ошибка, оборачивающая ErrTruncatedRegion.
func (w *World) Load(region []byte) (int, error) {
	if !slab.Aligned(region) {
		return 0, ErrMisalignedRegion
	}

	recordSize := w.layout.RecordSize()
	n := len(region) / recordSize
	for i := 0; i < n; i++ {
		start, end := i*recordSize, (i+1)*recordSize
		c, err := WrapChunk(w.layout, region[start:end:end])
		if err != nil {
			return i, fmt.Errorf("чанк %d в регионе: %w", i, err)
		}
		// Чанк чист, только если его байты уже лежат на его позиции в регионе.
		if pos := w.insert(c); pos != i {
			c.dirty = true
		}
	}

	if rest := len(region) - n*recordSize; rest != 0 {
		w.logger.Warn("Регион обрезан: %d байт после %d полных чанков отброшено", rest, n)
		return n, fmt.Errorf("%w: %d байт после %d чанков", ErrTruncatedRegion, rest, n)
	}

	w.logger.Debug("Загружено %d чанков (%d байт)", n, len(region))
	return n, nil
}

// Save передаёт в sink секции грязных чанков в порядке индекса.
//
// Для грязного чанка sink вызывается для каждой секции в порядке формата, смещение
// растёт на размер секции, после чего флаг снимается. Чистый чанк и удалённая позиция
// сдвигают смещение на полный размер записи без вызова sink. Поэтому смещения абсолютны:
// частичное сохранение можно накладывать прямо на ранее записанный регион.
// Ошибка sink прерывает проход; текущий чанк остаётся грязным.
func (w *World) Save(sink Sink) (SaveStats, error) {
	var stats SaveStats
	recordSize := int64(w.layout.RecordSize())
	var offset int64

	for _, c := range w.order {
		switch {
		case c == nil:
			stats.Holes++
			offset += recordSize
			continue
		case !c.dirty:
			stats.Skipped++
			offset += recordSize
			continue
		}

		for _, s := range sectionOrder {
			data := c.Section(s)
			if err := sink(offset, data); err != nil {
				stats.Size = offset
				return stats, fmt.Errorf("сохранение чанка %v, секция %s, смещение %d: %w", c.pos, s, offset, err)
			}
			stats.Calls++
			stats.Bytes += int64(len(data))
			offset += int64(len(data))
		}
		c.clean()
		stats.Flushed++
	}

	stats.Size = offset
	w.logger.Debug("Сохранено чанков: %d, пропущено: %d, байт: %d", stats.Flushed, stats.Skipped, stats.Bytes)
	return stats, nil
}

// Chunk возвращает чанк по координатам.
func (w *World) Chunk(x, z int32) (*Chunk, bool) {
	pos, ok := w.index[vec.Vec2{X: x, Z: z}.Key()]
	if !ok {
		return nil, false
	}
	return w.order[pos], true
}

// ChunkAt возвращает чанк, запись которого покрывает смещение offset в регионе.
func (w *World) ChunkAt(offset int64) (*Chunk, bool) {
	if offset < 0 {
		return nil, false
	}
	pos := offset / int64(w.layout.RecordSize())
	if pos >= int64(len(w.order)) || w.order[pos] == nil {
		return nil, false
	}
	return w.order[pos], true
}

// AddChunk добавляет готовый чанк (в том числе ранее удалённый из другого индекса)
// и помечает его грязным. Чанк с тем же ключом молча заменяется, новый чанк занимает
// его позицию в регионе. Повторное добавление того же чанка ничего не меняет.
func (w *World) AddChunk(c *Chunk) error {
	if c.layout != w.layout {
		return fmt.Errorf("%w: чанк %v", ErrLayoutMismatch, c.pos)
	}
	if cur, ok := w.Chunk(c.pos.X, c.pos.Z); ok && cur == c {
		return nil
	}
	w.insert(c)
	// Байты чанка ещё не лежат на его позиции в регионе.
	c.dirty = true
	return nil
}

// MakeChunk создаёт пустой чанк и добавляет его в индекс.
func (w *World) MakeChunk(x, z int32) *Chunk {
	c, err := NewChunk(w.layout, x, z)
	if err != nil {
		// раскладка проверена в New
		panic(err)
	}
	w.insert(c)
	return c
}

// RemoveChunk удаляет чанк из индекса и возвращает его.
// Позиция чанка в регионе не переиспользуется и не уплотняется.
func (w *World) RemoveChunk(x, z int32) (*Chunk, bool) {
	key := vec.Vec2{X: x, Z: z}.Key()
	pos, ok := w.index[key]
	if !ok {
		return nil, false
	}
	c := w.order[pos]
	w.order[pos] = nil
	delete(w.index, key)
	return c, true
}

// Chunks перечисляет чанки в порядке индекса.
func (w *World) Chunks() iter.Seq[*Chunk] {
	return func(yield func(*Chunk) bool) {
		for _, c := range w.order {
			if c == nil {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// Objects перечисляет объекты всех чанков в порядке индекса.
func (w *World) Objects() iter.Seq2[*Chunk, Object] {
	return func(yield func(*Chunk, Object) bool) {
		for c := range w.Chunks() {
			for o := range c.Objects() {
				if !yield(c, o) {
					return
				}
			}
		}
	}
}

// Blocks перечисляет непустые блоки всех чанков в порядке индекса.
func (w *World) Blocks() iter.Seq2[*Chunk, BlockCell] {
	return func(yield func(*Chunk, BlockCell) bool) {
		for c := range w.Chunks() {
			for b := range c.Blocks() {
				if !yield(c, b) {
					return
				}
			}
		}
	}
}

// Lights перечисляет источники света всех чанков в порядке индекса.
func (w *World) Lights() iter.Seq2[*Chunk, Light] {
	return func(yield func(*Chunk, Light) bool) {
		for c := range w.Chunks() {
			for l := range c.Lights() {
				if !yield(c, l) {
					return
				}
			}
		}
	}
}

// insert кладёт чанк в индекс и возвращает его позицию.
// Заменяющий чанк помечается грязным: на его позиции в регионе лежат чужие байты.
func (w *World) insert(c *Chunk) int {
	key := c.pos.Key()
	if pos, ok := w.index[key]; ok {
		if w.order[pos] != c {
			c.dirty = true
		}
		w.order[pos] = c
		return pos
	}
	pos := len(w.order)
	w.index[key] = pos
	w.order = append(w.order, c)
	return pos
}

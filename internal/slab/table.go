// Package slab реализует таблицы записей фиксированной ёмкости поверх байтового участка.
//
// Каждая запись занимает Shape.Fields 32-битных слов. Одно из слов (маркер) определяет
// занятость слота: нулевое значение означает пустой слот. Формат хранения совпадает
// с форматом на диске, поэтому таблица работает напрямую с участком региона без копирования.
package slab

import (
	"fmt"
	"iter"
)

// NoSlot возвращается, когда свободного слота нет.
const NoSlot = -1

// Shape описывает раскладку одной записи.
type Shape struct {
	Fields      int  // Количество 32-битных слов в записи
	Marker      int  // Индекс слова-маркера занятости
	FloatMarker bool // Маркер хранит f32; слот пуст при +0 и -0
}

// Size возвращает размер таблицы в байтах.
func (s Shape) Size(slots int) int {
	return s.Fields * slots * WordSize
}

func (s Shape) validate() error {
	if s.Fields <= 0 {
		return fmt.Errorf("slab: некорректное число полей %d", s.Fields)
	}
	if s.Marker < 0 || s.Marker >= s.Fields {
		return fmt.Errorf("slab: индекс маркера %d вне записи из %d полей", s.Marker, s.Fields)
	}
	return nil
}

// Table таблица записей фиксированной ёмкости.
// Слова и f32-представление смотрят на одну и ту же память.
type Table struct {
	shape  Shape
	slots  int
	words  []uint32
	floats []float32
	dirty  *bool // флаг владельца; может быть nil
}

// New создаёт таблицу поверх region. Длина region должна быть кратна размеру записи.
// dirty выставляется в true при каждой мутации.
func New(region []byte, shape Shape, dirty *bool) (*Table, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}
	recordSize := shape.Fields * WordSize
	if len(region)%recordSize != 0 {
		return nil, fmt.Errorf("slab: длина участка %d не кратна размеру записи %d", len(region), recordSize)
	}
	if !Aligned(region) {
		return nil, fmt.Errorf("slab: участок не выровнен на границу слова")
	}

	return &Table{
		shape:  shape,
		slots:  len(region) / recordSize,
		words:  Uint32s(region),
		floats: Float32s(region),
		dirty:  dirty,
	}, nil
}

// Cap возвращает ёмкость таблицы в слотах.
func (t *Table) Cap() int {
	return t.slots
}

// Shape возвращает раскладку записи.
func (t *Table) Shape() Shape {
	return t.shape
}

// Words возвращает все слова таблицы (zero-copy).
func (t *Table) Words() []uint32 {
	return t.words
}

// Floats возвращает f32-представление таблицы (zero-copy).
func (t *Table) Floats() []float32 {
	return t.floats
}

// Occupied сообщает, занят ли слот.
func (t *Table) Occupied(slot int) bool {
	base := t.base(slot)
	return t.occupiedAt(base)
}

func (t *Table) occupiedAt(base int) bool {
	if t.shape.FloatMarker {
		return t.floats[base+t.shape.Marker] != 0
	}
	return t.words[base+t.shape.Marker] != 0
}

// FirstFree возвращает индекс первого свободного слота или NoSlot.
func (t *Table) FirstFree() int {
	for slot, base := 0, 0; slot < t.slots; slot, base = slot+1, base+t.shape.Fields {
		if !t.occupiedAt(base) {
			return slot
		}
	}
	return NoSlot
}

// Add занимает первый свободный слот и заполняет его через fill.
// fill получает слова и f32-представление одной записи. Если после fill маркер
// остался нулевым, слот обнуляется и вызывается panic: нулевой маркер зарезервирован.
// При заполненной таблице возвращает (NoSlot, false) и ничего не меняет.
func (t *Table) Add(fill func(words []uint32, floats []float32)) (int, bool) {
	slot := t.FirstFree()
	if slot == NoSlot {
		return NoSlot, false
	}

	base := slot * t.shape.Fields
	end := base + t.shape.Fields
	fill(t.words[base:end:end], t.floats[base:end:end])

	if !t.occupiedAt(base) {
		clear(t.words[base:end])
		panic(fmt.Sprintf("slab: нулевой маркер занятости в слоте %d", slot))
	}

	t.touch()
	return slot, true
}

// Record возвращает слова записи в слоте (zero-copy) и признак занятости.
func (t *Table) Record(slot int) ([]uint32, bool) {
	base := t.base(slot)
	end := base + t.shape.Fields
	return t.words[base:end:end], t.occupiedAt(base)
}

// FloatRecord возвращает f32-представление записи в слоте.
func (t *Table) FloatRecord(slot int) []float32 {
	base := t.base(slot)
	end := base + t.shape.Fields
	return t.floats[base:end:end]
}

// Set записывает одно слово записи и помечает владельца грязным.
func (t *Table) Set(slot, field int, v uint32) {
	if field < 0 || field >= t.shape.Fields {
		panic(fmt.Sprintf("slab: поле %d вне записи из %d полей", field, t.shape.Fields))
	}
	t.words[t.base(slot)+field] = v
	t.touch()
}

// Remove обнуляет все поля слота и возвращает прежнее слово-маркер.
// Повторный вызов на пустом слоте допустим и тоже помечает владельца грязным.
func (t *Table) Remove(slot int) uint32 {
	base := t.base(slot)
	prev := t.words[base+t.shape.Marker]
	clear(t.words[base : base+t.shape.Fields])
	t.touch()
	return prev
}

// Slots перечисляет занятые слоты по возрастанию.
// Последовательность ленивая и может обходиться повторно.
func (t *Table) Slots() iter.Seq[int] {
	return func(yield func(int) bool) {
		for slot, base := 0, 0; slot < t.slots; slot, base = slot+1, base+t.shape.Fields {
			if !t.occupiedAt(base) {
				continue
			}
			if !yield(slot) {
				return
			}
		}
	}
}

// Len возвращает количество занятых слотов.
func (t *Table) Len() int {
	n := 0
	for range t.Slots() {
		n++
	}
	return n
}

func (t *Table) base(slot int) int {
	if slot < 0 || slot >= t.slots {
		panic(fmt.Sprintf("slab: слот %d вне диапазона [0,%d)", slot, t.slots))
	}
	return slot * t.shape.Fields
}

func (t *Table) touch() {
	if t.dirty != nil {
		*t.dirty = true
	}
}

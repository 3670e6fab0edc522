package world

import (
	"fmt"
	"iter"
	"math"

	"github.com/annel0/zeode/internal/slab"
	"github.com/annel0/zeode/internal/vec"
)

// Transform трансформация объекта: позиция, поворот (кватернион), масштаб.
type Transform [TransformFields]float32

// Object запись таблицы объектов. Slot заполняется при чтении.
type Object struct {
	Slot      int
	ID        uint32
	Transform Transform
	Aux       uint32
}

// Light запись таблицы источников света. Slot заполняется при чтении.
type Light struct {
	Slot      int
	X, Y, Z   float32
	Intensity float32
}

// Chunk участок мира фиксированной раскладки.
//
// Все секции чанка нарезаны из одного непрерывного участка памяти (записи),
// формат которого совпадает с форматом региона. Любая мутация помечает чанк
// грязным; флаг снимается только успешным сохранением в World.Save.
// Chunk не потокобезопасен.
type Chunk struct {
	pos    vec.Vec2
	layout Layout

	record   []byte
	header   []int32
	terrain  []byte
	objects  *slab.Table
	blocks   *BlockGrid
	lights   *slab.Table
	geometry []byte
	trailer  *slab.Table

	dirty bool
}

// NewChunk создаёт чанк со свежей обнулённой записью.
// Новый чанк ещё не сохранён, поэтому сразу считается грязным.
func NewChunk(layout Layout, x, z int32) (*Chunk, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return NewChunkIn(layout, x, z, slab.AlignedBytes(layout.RecordSize()))
}

// NewChunkIn создаёт чанк поверх переданной записи, записывая в неё заголовок.
// Содержимое остальных секций сохраняется как есть. Чанк считается грязным.
func NewChunkIn(layout Layout, x, z int32, record []byte) (*Chunk, error) {
	c, err := bindChunk(layout, record)
	if err != nil {
		return nil, err
	}
	c.header[0], c.header[1] = x, z
	c.pos = vec.Vec2{X: x, Z: z}
	c.dirty = true
	return c, nil
}

// WrapChunk связывает чанк с уже заполненной записью (zero-copy) и читает
// координаты из её заголовка. Чанк считается чистым.
func WrapChunk(layout Layout, record []byte) (*Chunk, error) {
	c, err := bindChunk(layout, record)
	if err != nil {
		return nil, err
	}
	c.pos = vec.Vec2{X: c.header[0], Z: c.header[1]}
	return c, nil
}

func bindChunk(layout Layout, record []byte) (*Chunk, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if len(record) != layout.RecordSize() {
		return nil, fmt.Errorf("%w: запись %d байт, ожидалось %d", ErrLayoutMismatch, len(record), layout.RecordSize())
	}
	if !slab.Aligned(record) {
		return nil, ErrMisalignedRegion
	}

	c := &Chunk{layout: layout, record: record}
	c.header = slab.Int32s(c.Section(SectionHeader))
	c.terrain = c.Section(SectionTerrain)
	c.blocks = newBlockGrid(layout, c.Section(SectionBlocks), &c.dirty)
	c.geometry = c.Section(SectionGeometry)

	var err error
	if c.objects, err = slab.New(c.Section(SectionObjects), objectShape, &c.dirty); err != nil {
		return nil, fmt.Errorf("таблица объектов: %w", err)
	}
	if c.lights, err = slab.New(c.Section(SectionLight), lightShape, &c.dirty); err != nil {
		return nil, fmt.Errorf("таблица света: %w", err)
	}
	if c.trailer, err = slab.New(c.Section(SectionTrailer), trailerShape, &c.dirty); err != nil {
		return nil, fmt.Errorf("набор меток: %w", err)
	}
	return c, nil
}

// X возвращает координату чанка по X.
func (c *Chunk) X() int32 { return c.pos.X }

// Z возвращает координату чанка по Z.
func (c *Chunk) Z() int32 { return c.pos.Z }

// Pos возвращает координаты чанка.
func (c *Chunk) Pos() vec.Vec2 { return c.pos }

// Layout возвращает раскладку чанка.
func (c *Chunk) Layout() Layout { return c.layout }

// Dirty сообщает, есть ли несохранённые изменения.
func (c *Chunk) Dirty() bool { return c.dirty }

// MarkDirty помечает чанк грязным. Нужен после записи через сырые буферы.
func (c *Chunk) MarkDirty() { c.dirty = true }

// Section возвращает байты секции внутри записи (zero-copy).
func (c *Chunk) Section(s Section) []byte {
	off := c.layout.SectionOffset(s)
	end := off + c.layout.SectionSize(s)
	return c.record[off:end:end]
}

// Record возвращает всю запись чанка (zero-copy).
func (c *Chunk) Record() []byte { return c.record }

// TerrainBuffer возвращает непрозрачные данные ландшафта.
func (c *Chunk) TerrainBuffer() []byte { return c.terrain }

// ObjectBuffer возвращает таблицу объектов как слова.
func (c *Chunk) ObjectBuffer() []uint32 { return c.objects.Words() }

// ObjectFloats возвращает таблицу объектов как f32 (та же память, что ObjectBuffer).
func (c *Chunk) ObjectFloats() []float32 { return c.objects.Floats() }

// BlockBuffer возвращает ячейки сетки блоков.
func (c *Chunk) BlockBuffer() []uint32 { return c.blocks.Cells() }

// LightBuffer возвращает таблицу света как f32.
func (c *Chunk) LightBuffer() []float32 { return c.lights.Floats() }

// GeometryBuffer возвращает непрозрачные данные геометрии.
func (c *Chunk) GeometryBuffer() []byte { return c.geometry }

// TrailerBuffer возвращает слоты набора меток.
func (c *Chunk) TrailerBuffer() []uint32 { return c.trailer.Words() }

// Grid возвращает сетку блоков.
func (c *Chunk) Grid() *BlockGrid { return c.blocks }

// --- Объекты ---

// AddObject добавляет объект в первый свободный слот.
// id не может быть нулём. При заполненной таблице возвращает (slab.NoSlot, false).
func (c *Chunk) AddObject(id uint32, tr Transform, aux uint32) (int, bool) {
	return c.objects.Add(func(w []uint32, f []float32) {
		w[0] = id
		copy(f[1:1+TransformFields], tr[:])
		w[1+TransformFields] = aux
	})
}

// RemoveObject освобождает слот и возвращает прежний id.
func (c *Chunk) RemoveObject(slot int) uint32 {
	return c.objects.Remove(slot)
}

// Object возвращает объект в слоте.
func (c *Chunk) Object(slot int) (Object, bool) {
	w, ok := c.objects.Record(slot)
	if !ok {
		return Object{}, false
	}
	return c.objectAt(slot, w), true
}

// ObjectID возвращает id объекта в слоте (0 для пустого).
func (c *Chunk) ObjectID(slot int) uint32 {
	w, _ := c.objects.Record(slot)
	return w[0]
}

// ObjectTransform возвращает копию трансформации объекта в слоте.
func (c *Chunk) ObjectTransform(slot int) Transform {
	var tr Transform
	copy(tr[:], c.objects.FloatRecord(slot)[1:1+TransformFields])
	return tr
}

// SetObjectAux перезаписывает дополнительное поле объекта.
func (c *Chunk) SetObjectAux(slot int, aux uint32) {
	c.objects.Set(slot, 1+TransformFields, aux)
}

// Objects перечисляет занятые слоты объектов по возрастанию.
func (c *Chunk) Objects() iter.Seq[Object] {
	return func(yield func(Object) bool) {
		for slot := range c.objects.Slots() {
			w, _ := c.objects.Record(slot)
			if !yield(c.objectAt(slot, w)) {
				return
			}
		}
	}
}

// ObjectCount возвращает количество занятых слотов объектов.
func (c *Chunk) ObjectCount() int { return c.objects.Len() }

func (c *Chunk) objectAt(slot int, w []uint32) Object {
	o := Object{Slot: slot, ID: w[0], Aux: w[1+TransformFields]}
	copy(o.Transform[:], c.objects.FloatRecord(slot)[1:1+TransformFields])
	return o
}

// --- Свет ---

// AddLight добавляет источник света. intensity не может быть нулём.
func (c *Chunk) AddLight(x, y, z, intensity float32) (int, bool) {
	return c.lights.Add(func(_ []uint32, f []float32) {
		f[0], f[1], f[2], f[3] = x, y, z, intensity
	})
}

// RemoveLight освобождает слот и возвращает прежнюю интенсивность.
func (c *Chunk) RemoveLight(slot int) float32 {
	return math.Float32frombits(c.lights.Remove(slot))
}

// Light возвращает источник света в слоте.
func (c *Chunk) Light(slot int) (Light, bool) {
	if !c.lights.Occupied(slot) {
		return Light{}, false
	}
	return c.lightAt(slot), true
}

// Lights перечисляет занятые слоты света по возрастанию.
func (c *Chunk) Lights() iter.Seq[Light] {
	return func(yield func(Light) bool) {
		for slot := range c.lights.Slots() {
			if !yield(c.lightAt(slot)) {
				return
			}
		}
	}
}

func (c *Chunk) lightAt(slot int) Light {
	f := c.lights.FloatRecord(slot)
	return Light{Slot: slot, X: f[0], Y: f[1], Z: f[2], Intensity: f[3]}
}

// --- Блоки ---

// Block возвращает id блока по локальным координатам.
func (c *Chunk) Block(x, y, z int) uint32 { return c.blocks.Get(x, y, z) }

// SetBlock записывает id блока.
func (c *Chunk) SetBlock(x, y, z int, id uint32) { c.blocks.Set(x, y, z, id) }

// ClearBlock обнуляет блок и возвращает прежний id.
func (c *Chunk) ClearBlock(x, y, z int) uint32 { return c.blocks.Clear(x, y, z) }

// Blocks перечисляет непустые блоки в порядке хранения.
func (c *Chunk) Blocks() iter.Seq[BlockCell] { return c.blocks.All() }

// --- Метки ---

// AddTrailer добавляет метку в первый свободный слот. Дубликаты допускаются.
func (c *Chunk) AddTrailer(tag uint32) (int, bool) {
	return c.trailer.Add(func(w []uint32, _ []float32) {
		w[0] = tag
	})
}

// RemoveTrailer освобождает слот метки и возвращает прежнее значение.
// Как и любая мутация, помечает чанк грязным.
func (c *Chunk) RemoveTrailer(slot int) uint32 {
	return c.trailer.Remove(slot)
}

// HasTrailer проверяет наличие метки. Ноль меткой не является.
func (c *Chunk) HasTrailer(tag uint32) bool {
	if tag == 0 {
		return false
	}
	for _, v := range c.trailer.Words() {
		if v == tag {
			return true
		}
	}
	return false
}

// Trailers перечисляет занятые слоты меток: слот и значение.
func (c *Chunk) Trailers() iter.Seq2[int, uint32] {
	return func(yield func(int, uint32) bool) {
		words := c.trailer.Words()
		for slot := range c.trailer.Slots() {
			if !yield(slot, words[slot]) {
				return
			}
		}
	}
}

func (c *Chunk) clean() { c.dirty = false }

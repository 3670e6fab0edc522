package world

import (
	"errors"
	"fmt"

	"github.com/annel0/zeode/internal/slab"
)

// Размеры записей в 32-битных словах.
const (
	HeaderFields    = 2          // i32 x, i32 z
	TransformFields = 10         // f32[10] трансформация объекта
	ObjectFields    = 1 + 10 + 1 // id, трансформация, aux
	LightFields     = 4          // x, y, z, intensity
	TrailerFields   = 1

	HeaderSize = HeaderFields * slab.WordSize
)

// Раскладки таблиц чанка.
var (
	objectShape  = slab.Shape{Fields: ObjectFields, Marker: 0}
	lightShape   = slab.Shape{Fields: LightFields, Marker: 3, FloatMarker: true}
	trailerShape = slab.Shape{Fields: TrailerFields, Marker: 0}
)

// ErrInvalidLayout возвращается при некорректных параметрах раскладки.
var ErrInvalidLayout = errors.New("некорректная раскладка чанка")

// Layout задаёт фиксированные размеры всех секций записи чанка.
// Раскладка неизменна на всё время жизни мира и должна совпадать
// у всех, кто читает и пишет один и тот же регион.
type Layout struct {
	TerrainSize  int // Байт непрозрачных данных ландшафта
	ObjectSlots  int // Слотов в таблице объектов
	BlockWidth   int // Размер сетки блоков по X
	BlockHeight  int // Размер сетки блоков по Y
	BlockDepth   int // Размер сетки блоков по Z
	LayerHeight  int // Высота вертикального подслоя сетки
	LightSlots   int // Слотов в таблице источников света
	GeometrySize int // Байт непрозрачных данных геометрии
	TrailerSlots int // Слотов в наборе меток
}

// DefaultLayout раскладка по умолчанию.
var DefaultLayout = Layout{
	TerrainSize:  256 * 1024,
	ObjectSlots:  64 * 64,
	BlockWidth:   16,
	BlockHeight:  128,
	BlockDepth:   16,
	LayerHeight:  16,
	LightSlots:   1024,
	GeometrySize: 1024 * 1024,
	TrailerSlots: 32,
}

// Section идентифицирует секцию записи чанка.
type Section int

const (
	SectionHeader Section = iota
	SectionTerrain
	SectionObjects
	SectionBlocks
	SectionLight
	SectionGeometry
	SectionTrailer

	sectionCount
)

// sectionOrder порядок секций в записи. Он общий для Load и Save и является частью формата.
var sectionOrder = [sectionCount]Section{
	SectionHeader,
	SectionTerrain,
	SectionObjects,
	SectionBlocks,
	SectionLight,
	SectionGeometry,
	SectionTrailer,
}

// String возвращает имя секции.
func (s Section) String() string {
	switch s {
	case SectionHeader:
		return "header"
	case SectionTerrain:
		return "terrain"
	case SectionObjects:
		return "objects"
	case SectionBlocks:
		return "blocks"
	case SectionLight:
		return "light"
	case SectionGeometry:
		return "geometry"
	case SectionTrailer:
		return "trailer"
	default:
		return "unknown"
	}
}

// Validate проверяет раскладку.
func (l Layout) Validate() error {
	switch {
	case l.TerrainSize < 0 || l.GeometrySize < 0:
		return fmt.Errorf("%w: отрицательный размер непрозрачной секции", ErrInvalidLayout)
	case l.TerrainSize%slab.WordSize != 0 || l.GeometrySize%slab.WordSize != 0:
		return fmt.Errorf("%w: размеры terrain/geometry должны быть кратны %d", ErrInvalidLayout, slab.WordSize)
	case l.ObjectSlots < 0 || l.LightSlots < 0 || l.TrailerSlots < 0:
		return fmt.Errorf("%w: отрицательная ёмкость таблицы", ErrInvalidLayout)
	case l.BlockWidth <= 0 || l.BlockHeight <= 0 || l.BlockDepth <= 0:
		return fmt.Errorf("%w: пустая сетка блоков %dx%dx%d", ErrInvalidLayout, l.BlockWidth, l.BlockHeight, l.BlockDepth)
	case l.LayerHeight <= 0 || l.BlockHeight%l.LayerHeight != 0:
		return fmt.Errorf("%w: высота %d не делится на подслои по %d", ErrInvalidLayout, l.BlockHeight, l.LayerHeight)
	}
	return nil
}

// SectionSize возвращает размер секции в байтах.
func (l Layout) SectionSize(s Section) int {
	switch s {
	case SectionHeader:
		return HeaderSize
	case SectionTerrain:
		return l.TerrainSize
	case SectionObjects:
		return objectShape.Size(l.ObjectSlots)
	case SectionBlocks:
		return l.BlockWidth * l.BlockHeight * l.BlockDepth * slab.WordSize
	case SectionLight:
		return lightShape.Size(l.LightSlots)
	case SectionGeometry:
		return l.GeometrySize
	case SectionTrailer:
		return trailerShape.Size(l.TrailerSlots)
	default:
		panic(fmt.Sprintf("world: неизвестная секция %d", s))
	}
}

// SectionOffset возвращает смещение секции от начала записи чанка.
func (l Layout) SectionOffset(s Section) int {
	offset := 0
	for _, cur := range sectionOrder {
		if cur == s {
			return offset
		}
		offset += l.SectionSize(cur)
	}
	panic(fmt.Sprintf("world: неизвестная секция %d", s))
}

// RecordSize возвращает полный размер записи одного чанка.
func (l Layout) RecordSize() int {
	size := 0
	for _, s := range sectionOrder {
		size += l.SectionSize(s)
	}
	return size
}

// Sections возвращает секции в порядке их следования в записи.
func Sections() []Section {
	return sectionOrder[:]
}

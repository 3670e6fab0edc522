package world

import (
	"fmt"
	"iter"

	"github.com/annel0/zeode/internal/slab"
)

// BlockCell непустая ячейка сетки блоков.
type BlockCell struct {
	ID      uint32
	X, Y, Z int
}

// BlockGrid плотная трёхмерная сетка идентификаторов блоков.
// Ноль означает отсутствие блока.
type BlockGrid struct {
	width       int
	height      int
	depth       int
	layerHeight int
	layerStride int
	rowStride   int // width*layerHeight: шаг по Z внутри подслоя

	cells []uint32
	dirty *bool
}

func newBlockGrid(l Layout, region []byte, dirty *bool) *BlockGrid {
	return &BlockGrid{
		width:       l.BlockWidth,
		height:      l.BlockHeight,
		depth:       l.BlockDepth,
		layerHeight: l.LayerHeight,
		layerStride: l.LayerStride(),
		rowStride:   l.BlockWidth * l.LayerHeight,
		cells:       slab.Uint32s(region),
		dirty:       dirty,
	}
}

// Dims возвращает размеры сетки.
func (g *BlockGrid) Dims() (width, height, depth int) {
	return g.width, g.height, g.depth
}

// Cells возвращает ячейки сетки в порядке хранения (zero-copy).
func (g *BlockGrid) Cells() []uint32 {
	return g.cells
}

// Index возвращает линейное смещение ячейки.
func (g *BlockGrid) Index(x, y, z int) int {
	if x < 0 || x >= g.width || y < 0 || y >= g.height || z < 0 || z >= g.depth {
		panic(fmt.Sprintf("world: координаты блока (%d,%d,%d) вне сетки %dx%dx%d",
			x, y, z, g.width, g.height, g.depth))
	}
	layer, yIn := splitY(y, g.layerHeight)
	return layer*g.layerStride + x + yIn*g.width + z*g.rowStride
}

// Coords обратное преобразование к Index.
func (g *BlockGrid) Coords(i int) (x, y, z int) {
	layer := i / g.layerStride
	rest := i - layer*g.layerStride
	z = rest / g.rowStride
	rest -= z * g.rowStride
	yIn := rest / g.width
	x = rest - yIn*g.width
	return x, layer*g.layerHeight + yIn, z
}

// Get возвращает идентификатор блока.
func (g *BlockGrid) Get(x, y, z int) uint32 {
	return g.cells[g.Index(x, y, z)]
}

// Set записывает идентификатор блока.
func (g *BlockGrid) Set(x, y, z int, id uint32) {
	g.cells[g.Index(x, y, z)] = id
	g.touch()
}

// Clear обнуляет ячейку и возвращает прежнее значение.
func (g *BlockGrid) Clear(x, y, z int) uint32 {
	i := g.Index(x, y, z)
	prev := g.cells[i]
	g.cells[i] = 0
	g.touch()
	return prev
}

// All перечисляет непустые ячейки в порядке хранения.
func (g *BlockGrid) All() iter.Seq[BlockCell] {
	return func(yield func(BlockCell) bool) {
		for i, id := range g.cells {
			if id == 0 {
				continue
			}
			x, y, z := g.Coords(i)
			if !yield(BlockCell{ID: id, X: x, Y: y, Z: z}) {
				return
			}
		}
	}
}

func (g *BlockGrid) touch() {
	if g.dirty != nil {
		*g.dirty = true
	}
}

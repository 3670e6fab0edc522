package world

// Сетка блоков по вертикали разбита на подслои одинаковой высоты (LayerHeight, по умолчанию 16).
// Каждый подслой хранится в сетке непрерывным блоком длиной width*LayerHeight*depth,
// внутри подслоя X меняется быстрее всего, затем Y, затем Z.
//
// Схема индексации зафиксирована форматом и не должна меняться после записи регионов:
//   offset = layer*layerStride + x + yIn*width + z*width*LayerHeight

// splitY раскладывает высоту на номер подслоя и высоту внутри подслоя.
func splitY(y, layerHeight int) (layer, yIn int) {
	layer = y / layerHeight
	return layer, y - layer*layerHeight
}

// LayerCount возвращает количество вертикальных подслоёв в раскладке.
func (l Layout) LayerCount() int {
	return l.BlockHeight / l.LayerHeight
}

// LayerStride возвращает количество ячеек в одном подслое.
func (l Layout) LayerStride() int {
	return l.BlockWidth * l.LayerHeight * l.BlockDepth
}

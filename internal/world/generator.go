package world

import (
	"math/rand"

	"github.com/annel0/zeode/internal/slab"
	"github.com/annel0/zeode/internal/util"
)

// Идентификаторы блоков, которые ставит генератор
const (
	BlockStone uint32 = 1
	BlockDirt  uint32 = 2
	BlockGrass uint32 = 3
	BlockSand  uint32 = 4
	BlockWater uint32 = 5
)

// Идентификаторы растительности в таблице объектов
const (
	ObjectTree   uint32 = 100
	ObjectBush   uint32 = 101
	ObjectCactus uint32 = 102
)

// TrailerGenerated метка чанка, заполненного генератором
const TrailerGenerated uint32 = 0x47454E31 // "GEN1"

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeDesert
	BiomeForest
	BiomeWater
)

// WorldGenerator заполняет чанки ландшафтом, растительностью и светом
type WorldGenerator struct {
	Seed          int64   // Сид для генерации шума
	NoiseScale    float64 // Масштаб основного шума (высота)
	BiomeScale    float64 // Масштаб шума биомов
	ForestDensity float64 // Вероятность дерева на колонку в лесу
	SeaLevel      float64 // Доля высоты сетки, ниже которой вода

	height *util.Noise
	biome  *util.Noise
}

// NewWorldGenerator создаёт новый генератор мира
func NewWorldGenerator(seed int64) *WorldGenerator {
	return &WorldGenerator{
		Seed:          seed,
		NoiseScale:    0.05, // Настройка сглаженности ландшафта
		BiomeScale:    0.02, // Настройка размера биомов
		ForestDensity: 0.15,
		SeaLevel:      0.3,
		height:        util.NewNoise(seed),
		biome:         util.NewNoise(seed + 42),
	}
}

// GenerateChunk заполняет чанк: колонки блоков по шуму высоты, карту высот
// в секции terrain (по u32 на колонку, сколько поместится), растительность в таблице
// объектов и один источник рассеянного света. Чанк помечается меткой TrailerGenerated.
func (wg *WorldGenerator) GenerateChunk(c *Chunk) {
	width, height, depth := c.Grid().Dims()

	// Локальный генератор случайных чисел для детерминированности
	chunkSeed := wg.Seed + int64(c.X())*31 + int64(c.Z())*17
	rng := rand.New(rand.NewSource(chunkSeed))

	heights := slab.Uint32s(c.TerrainBuffer())
	seaLevel := int(wg.SeaLevel * float64(height))

	for z := 0; z < depth; z++ {
		for x := 0; x < width; x++ {
			globalX := float64(int(c.X())*width + x)
			globalZ := float64(int(c.Z())*depth + z)

			h := wg.height.Noise2D(globalX*wg.NoiseScale, globalZ*wg.NoiseScale)
			top := min(1+int(h*float64(height-2)), height-1)
			biome := wg.getBiomeType(top, seaLevel, wg.biome.Noise2D(globalX*wg.BiomeScale, globalZ*wg.BiomeScale))

			wg.fillColumn(c, x, z, top, seaLevel, biome)

			if col := x + z*width; col < len(heights) {
				heights[col] = uint32(top)
			}

			wg.placeVegetation(c, x, top, z, biome, rng)
		}
	}

	c.AddLight(float32(width)/2, float32(height), float32(depth)/2, 1)
	if !c.HasTrailer(TrailerGenerated) {
		c.AddTrailer(TrailerGenerated)
	}
	c.MarkDirty()
}

// fillColumn заполняет колонку от дна до top включительно и воду до уровня моря.
// Дно колонки всегда камень.
func (wg *WorldGenerator) fillColumn(c *Chunk, x, z, top, seaLevel int, biome BiomeType) {
	for y := 0; y <= top; y++ {
		var id uint32
		switch {
		case y == top:
			id = wg.getSurfaceBlock(biome)
		case y == 0 || y < top-3:
			id = BlockStone
		default:
			id = BlockDirt
		}
		c.SetBlock(x, y, z, id)
	}
	for y := top + 1; y <= seaLevel; y++ {
		c.SetBlock(x, y, z, BlockWater)
	}
}

// placeVegetation ставит растительность на поверхность колонки
func (wg *WorldGenerator) placeVegetation(c *Chunk, x, top, z int, biome BiomeType, rng *rand.Rand) {
	var id uint32
	switch {
	case biome == BiomeForest && rng.Float64() < wg.ForestDensity:
		id = ObjectTree
	case biome == BiomePlains && rng.Float64() < wg.ForestDensity/5:
		id = ObjectBush
	case biome == BiomeDesert && rng.Float64() < 0.02:
		id = ObjectCactus
	default:
		return
	}

	scale := float32(0.8 + rng.Float64()*0.4)
	tr := Transform{
		float32(x) + 0.5, float32(top + 1), float32(z) + 0.5, // позиция
		0, 0, 0, 1, // кватернион
		scale, scale, scale,
	}
	// Таблица может быть заполнена: растительность тогда просто не ставится
	c.AddObject(id, tr, uint32(biome))
}

// getSurfaceBlock возвращает верхний блок колонки для биома
func (wg *WorldGenerator) getSurfaceBlock(biome BiomeType) uint32 {
	switch biome {
	case BiomeDesert, BiomeWater:
		return BlockSand
	default:
		return BlockGrass
	}
}

// getBiomeType определяет тип биома по высоте и значению шума биомов
func (wg *WorldGenerator) getBiomeType(top, seaLevel int, biomeValue float64) BiomeType {
	if top < seaLevel {
		return BiomeWater
	}
	switch {
	case biomeValue < 0.35:
		return BiomeDesert
	case biomeValue > 0.65:
		return BiomeForest
	default:
		return BiomePlains
	}
}

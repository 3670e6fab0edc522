package vec

import "fmt"

// KeyModulus модуль тороидальной адресации чанков по каждой оси.
const KeyModulus = 1 << 16

// Vec2 координаты чанка на плоскости XZ
type Vec2 struct {
	X, Z int32
}

// Key упаковывает координаты в ключ индекса.
// Каждая ось берётся по модулю 65536 (отрицательные координаты тоже),
// поэтому координаты, отличающиеся на кратное 65536, дают один и тот же ключ.
func (v Vec2) Key() uint32 {
	return uint32(uint16(v.X)) | uint32(uint16(v.Z))<<16
}

// Wrapped возвращает координаты, приведённые к диапазону [0, 65536)
func (v Vec2) Wrapped() (x, z int) {
	return int(uint16(v.X)), int(uint16(v.Z))
}

// FromKey восстанавливает приведённые координаты из ключа
func FromKey(key uint32) Vec2 {
	return Vec2{X: int32(key & 0xFFFF), Z: int32(key >> 16)}
}

// String возвращает строковое представление
func (v Vec2) String() string {
	return fmt.Sprintf("(%d,%d)", v.X, v.Z)
}

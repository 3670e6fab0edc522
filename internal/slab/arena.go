package slab

import (
	"fmt"
	"unsafe"
)

// WordSize размер одного слова таблицы в байтах (u32/f32/i32).
const WordSize = 4

// AlignedBytes выделяет обнулённый байтовый участок длиной n, выровненный на 8 байт.
// Все типизированные представления (Uint32s, Float32s, Int32s) требуют выравнивания на слово,
// поэтому регионы чанков выделяются только через эту функцию.
func AlignedBytes(n int) []byte {
	if n == 0 {
		return []byte{}
	}
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), n)
}

// Aligned сообщает, можно ли строить словные представления поверх b.
func Aligned(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&b[0]))%WordSize == 0
}

// Uint32s возвращает представление b как []uint32 без копирования.
// Длина b должна быть кратна WordSize, а начало выровнено на слово.
func Uint32s(b []byte) []uint32 {
	if len(b) == 0 {
		return []uint32{}
	}
	mustView(b)
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/WordSize)
}

// Float32s возвращает представление b как []float32 без копирования.
func Float32s(b []byte) []float32 {
	if len(b) == 0 {
		return []float32{}
	}
	mustView(b)
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/WordSize)
}

// Int32s возвращает представление b как []int32 без копирования.
func Int32s(b []byte) []int32 {
	if len(b) == 0 {
		return []int32{}
	}
	mustView(b)
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/WordSize)
}

func mustView(b []byte) {
	if len(b)%WordSize != 0 {
		panic(fmt.Sprintf("slab: длина участка %d не кратна %d", len(b), WordSize))
	}
	if !Aligned(b) {
		panic("slab: участок не выровнен на границу слова")
	}
}

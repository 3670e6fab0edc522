package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression алгоритм сжатия значений в хранилище
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionLZ4
	CompressionZstd
)

// frameHeaderSize: кодек (1) + crc32 несжатых данных (4) + длина несжатых данных (4)
const frameHeaderSize = 1 + 4 + 4

// maxFramePayload ограничивает длину несжатых данных в одном кадре
const maxFramePayload = 256 * 1024 * 1024

// ErrCorruptFrame возвращается, если кадр повреждён или контрольная сумма не совпала
var ErrCorruptFrame = errors.New("повреждённый кадр данных")

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// ParseCompression разбирает имя алгоритма. Пустая строка означает отсутствие сжатия.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("неизвестный алгоритм сжатия: %q", name)
	}
}

// String возвращает имя алгоритма
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// zstdCodec возвращает общие кодировщик и декодировщик zstd.
// EncodeAll/DecodeAll безопасны для параллельного использования.
func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// encodeFrame упаковывает data в кадр: codec | crc32 | длина | полезная нагрузка.
// Если сжатие не уменьшает данные, кадр сохраняется без сжатия.
func encodeFrame(c Compression, data []byte) ([]byte, error) {
	payload, used, err := compress(c, data)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = byte(used)
	binary.LittleEndian.PutUint32(frame[1:5], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(frame[5:9], uint32(len(data)))
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// decodeFrame распаковывает кадр и проверяет контрольную сумму.
func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: кадр %d байт", ErrCorruptFrame, len(frame))
	}
	c := Compression(frame[0])
	sum := binary.LittleEndian.Uint32(frame[1:5])
	size := int(binary.LittleEndian.Uint32(frame[5:9]))
	if size > maxFramePayload {
		return nil, fmt.Errorf("%w: длина %d", ErrCorruptFrame, size)
	}

	data, err := decompress(c, frame[frameHeaderSize:], size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: длина %d, ожидалось %d", ErrCorruptFrame, len(data), size)
	}
	if crc32.ChecksumIEEE(data) != sum {
		return nil, fmt.Errorf("%w: контрольная сумма не совпала", ErrCorruptFrame)
	}
	return data, nil
}

func compress(c Compression, data []byte) ([]byte, Compression, error) {
	var out []byte
	if len(data) == 0 {
		return data, CompressionNone, nil
	}
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionSnappy:
		out = snappy.Encode(nil, data)
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, c, fmt.Errorf("ошибка сжатия lz4: %w", err)
		}
		// n == 0: данные несжимаемы
		if n == 0 {
			return data, CompressionNone, nil
		}
		out = buf[:n]
	case CompressionZstd:
		enc, _, err := zstdCodec()
		if err != nil {
			return nil, c, fmt.Errorf("ошибка инициализации zstd: %w", err)
		}
		out = enc.EncodeAll(data, nil)
	default:
		return nil, c, fmt.Errorf("неизвестный алгоритм сжатия: %d", c)
	}

	if len(out) >= len(data) {
		return data, CompressionNone, nil
	}
	return out, c, nil
}

func decompress(c Compression, payload []byte, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionSnappy:
		return snappy.Decode(nil, payload)
	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	case CompressionZstd:
		_, dec, err := zstdCodec()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(payload, make([]byte, 0, size))
	default:
		return nil, fmt.Errorf("неизвестный кодек %d", c)
	}
}

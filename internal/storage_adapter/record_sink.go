package storage_adapter

import (
	"context"
	"fmt"

	"github.com/annel0/zeode/internal/slab"
	"github.com/annel0/zeode/internal/storage_interface"
	"github.com/annel0/zeode/internal/world"
)

// FlushError сообщает, что запись чанка по смещению Offset не дошла до хранилища.
// Чанк к этому моменту уже мог быть помечен чистым, его нужно снова пометить грязным.
type FlushError struct {
	Offset int64
	Err    error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("запись чанка по смещению %d: %v", e.Offset, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// RecordSink собирает секции одного чанка в буфер и отдаёт хранилищу одной записью.
//
// World.Save передаёт секции грязного чанка подряд, поэтому запись чанка целиком
// непрерывна. Буфер сбрасывается, когда начинается следующая запись, и при Flush.
// Границы записей в хранилище всегда совпадают с границами чанков.
type RecordSink struct {
	ctx        context.Context
	store      storage_interface.RegionStore
	recordSize int64

	buf     []byte
	start   int64
	pending bool
	writes  int
}

// NewRecordSink создаёт буферизующий sink для раскладки layout
func NewRecordSink(ctx context.Context, store storage_interface.RegionStore, layout world.Layout) *RecordSink {
	return &RecordSink{
		ctx:        ctx,
		store:      store,
		recordSize: int64(layout.RecordSize()),
		buf:        slab.AlignedBytes(layout.RecordSize())[:0],
	}
}

// Write принимает одну секцию. Подходит как world.Sink.
func (rs *RecordSink) Write(offset int64, data []byte) error {
	if rs.pending && (offset%rs.recordSize == 0 || offset != rs.start+int64(len(rs.buf))) {
		if err := rs.Flush(); err != nil {
			return err
		}
	}
	if !rs.pending {
		rs.start = offset
		rs.buf = rs.buf[:0]
		rs.pending = true
	}
	rs.buf = append(rs.buf, data...)
	return nil
}

// Flush отдаёт накопленную запись хранилищу
func (rs *RecordSink) Flush() error {
	if !rs.pending {
		return nil
	}
	rs.pending = false
	if err := rs.store.WriteAt(rs.ctx, rs.start, rs.buf); err != nil {
		return &FlushError{Offset: rs.start, Err: err}
	}
	rs.writes++
	return nil
}

// Writes возвращает количество записей, отданных хранилищу
func (rs *RecordSink) Writes() int {
	return rs.writes
}

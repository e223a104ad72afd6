// Package mempool provides sized buffer pools for the raster passes of the
// native detection engine.
package mempool

import "sync"

// pool hands out zeroed slices of at least the requested length, bucketed by
// size class.
type pool[T any] struct {
	classes sync.Map // size class -> *sync.Pool
}

// sizeClass rounds n up to the next multiple of 1024, with 1024 as minimum.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func (p *pool[T]) forClass(cls int) *sync.Pool {
	sp, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return sp.(*sync.Pool)
}

func (p *pool[T]) get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp := p.forClass(cls).Get().(*[]T)
	buf := *bp
	if cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func (p *pool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	// Only full buckets go back; smaller capacities belong to no class.
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		return
	}
	buf = buf[:cap(buf)]
	p.forClass(cls).Put(&buf)
}

var (
	float64s pool[float64]
	bools    pool[bool]
	bytes    pool[uint8]
)

// Float64s returns a zeroed []float64 of length n. Return it with PutFloat64s.
func Float64s(n int) []float64 { return float64s.get(n) }

// PutFloat64s returns a buffer obtained from Float64s. Nil is ignored.
func PutFloat64s(buf []float64) { float64s.put(buf) }

// Bools returns a zeroed []bool of length n. Return it with PutBools.
func Bools(n int) []bool { return bools.get(n) }

// PutBools returns a buffer obtained from Bools. Nil is ignored.
func PutBools(buf []bool) { bools.put(buf) }

// Bytes returns a zeroed []uint8 of length n. Return it with PutBytes.
func Bytes(n int) []uint8 { return bytes.get(n) }

// PutBytes returns a buffer obtained from Bytes. Nil is ignored.
func PutBytes(buf []uint8) { bytes.put(buf) }

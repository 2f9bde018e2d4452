package arithcode

import (
	"io"
	"math"
)

// flushBlock is the amount of finished output handed to the writer at once.
// The encoder always keeps at least this many bytes buffered so a carry can
// still ripple back into them.
const flushBlock = 4096

// Encoder compresses data using adaptive range coding.
//
// Output is buffered; write errors are sticky and reported by Done and Err.
type Encoder struct {
	output io.Writer
	buf    []byte
	base   uint32 // lower bound of the current interval
	length uint32 // size of the current interval
	err    error
}

// NewEncoder creates a new range encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{buf: make([]byte, 0, 2*flushBlock)}
	e.Init(w)
	return e
}

// Init starts a fresh interval writing to w, discarding any unfinished state.
func (e *Encoder) Init(w io.Writer) {
	e.output = w
	e.buf = e.buf[:0]
	e.base = 0
	e.length = maxLength
	e.err = nil
}

// Err returns the first write error encountered.
func (e *Encoder) Err() error { return e.err }

// EncodeBit encodes bit (0 or 1) with the model m and updates m.
func (e *Encoder) EncodeBit(m *BitModel, bit uint32) {
	x := m.bit0Prob * (e.length >> bitLengthShift)
	if bit == 0 {
		e.length = x
		m.bit0Count++
	} else {
		initBase := e.base
		e.base += x
		e.length -= x
		if initBase > e.base {
			e.propagateCarry()
		}
	}
	if e.length < minLength {
		e.renormalize()
	}

	m.bitsUntilUpdate--
	if m.bitsUntilUpdate == 0 {
		m.update()
	}
}

// EncodeSymbol encodes sym with the model m and updates m.
// It panics when sym is outside the model's alphabet.
func (e *Encoder) EncodeSymbol(m *SymbolModel, sym uint32) {
	if sym >= m.symbols {
		panic("arithcode: symbol out of range")
	}

	initBase := e.base
	if sym == m.lastSymbol {
		x := m.distribution[sym] * (e.length >> symbolLengthShift)
		e.base += x
		e.length -= x
	} else {
		e.length >>= symbolLengthShift
		x := m.distribution[sym] * e.length
		e.base += x
		e.length = m.distribution[sym+1]*e.length - x
	}
	if initBase > e.base {
		e.propagateCarry()
	}
	if e.length < minLength {
		e.renormalize()
	}

	m.symbolCount[sym]++
	m.symbolsUntilUpdate--
	if m.symbolsUntilUpdate == 0 {
		m.update()
	}
}

// WriteBit writes a raw bit with probability 1/2.
func (e *Encoder) WriteBit(bit uint32) {
	e.writeRaw(1, bit)
}

// WriteBits writes the low n bits of sym without modelling, 0 < n <= 32.
// Fields wider than 19 bits are split so the multiply cannot overflow.
func (e *Encoder) WriteBits(n uint32, sym uint32) {
	if n > 19 {
		e.WriteShort(uint16(sym))
		sym >>= 16
		n -= 16
	}
	e.writeRaw(n, sym)
}

// WriteByte writes a raw byte. It never fails; errors surface through Err.
func (e *Encoder) WriteByte(b byte) error {
	e.writeRaw(8, uint32(b))
	return nil
}

// WriteShort writes a raw 16-bit value.
func (e *Encoder) WriteShort(v uint16) {
	e.writeRaw(16, uint32(v))
}

// WriteInt writes a raw 32-bit value as two shorts, low half first.
func (e *Encoder) WriteInt(v uint32) {
	e.WriteShort(uint16(v))
	e.WriteShort(uint16(v >> 16))
}

// WriteInt64 writes a raw 64-bit value as two ints, low half first.
func (e *Encoder) WriteInt64(v uint64) {
	e.WriteInt(uint32(v))
	e.WriteInt(uint32(v >> 32))
}

// WriteFloat writes the IEEE 754 bits of f.
func (e *Encoder) WriteFloat(f float32) {
	e.WriteInt(math.Float32bits(f))
}

// WriteDouble writes the IEEE 754 bits of f.
func (e *Encoder) WriteDouble(f float64) {
	e.WriteInt64(math.Float64bits(f))
}

func (e *Encoder) writeRaw(n uint32, sym uint32) {
	initBase := e.base
	e.length >>= n
	e.base += sym * e.length
	if initBase > e.base {
		e.propagateCarry()
	}
	if e.length < minLength {
		e.renormalize()
	}
}

// Done finalizes the interval and flushes all buffered output.
//
// It emits enough bytes that a decoder, which primes itself with four bytes
// of lookahead, consumes exactly the bytes written by the encoder.
func (e *Encoder) Done() error {
	initBase := e.base
	anotherByte := true
	if e.length > 2*minLength {
		e.base += minLength
		e.length = minLength >> 1
	} else {
		e.base += minLength >> 1
		e.length = minLength >> 9
		anotherByte = false
	}
	if initBase > e.base {
		e.propagateCarry()
	}
	e.renormalize()

	e.buf = append(e.buf, 0, 0)
	if anotherByte {
		e.buf = append(e.buf, 0)
	}
	e.write(e.buf)
	e.buf = e.buf[:0]
	return e.err
}

func (e *Encoder) propagateCarry() {
	i := len(e.buf) - 1
	for i >= 0 && e.buf[i] == 0xFF {
		e.buf[i] = 0
		i--
	}
	if i < 0 {
		panic("arithcode: carry propagated into flushed output")
	}
	e.buf[i]++
}

func (e *Encoder) renormalize() {
	for {
		e.buf = append(e.buf, byte(e.base>>24))
		e.base <<= 8
		e.length <<= 8
		if e.length >= minLength {
			break
		}
	}
	if len(e.buf) >= 2*flushBlock {
		e.write(e.buf[:flushBlock])
		n := copy(e.buf, e.buf[flushBlock:])
		e.buf = e.buf[:n]
	}
}

func (e *Encoder) write(p []byte) {
	if e.err != nil || len(p) == 0 {
		return
	}
	_, e.err = e.output.Write(p)
}

package arithcode

import (
	"errors"
	"io"
	"math"
)

// ErrCorrupt is reported when a raw field decodes to a value that could not
// have been written by an Encoder.
var ErrCorrupt = errors.New("arithcode: corrupt input")

// Decoder decompresses data produced by Encoder.
//
// Read errors are sticky: after the first failure the decoder keeps
// shifting in zero bytes and Err reports the failure.
type Decoder struct {
	input  io.ByteReader
	value  uint32 // offset of the code value from the interval base
	length uint32 // size of the current interval
	err    error
}

// NewDecoder creates a new range decoder reading from r.
func NewDecoder(r io.ByteReader) (*Decoder, error) {
	d := &Decoder{}
	if err := d.Init(r); err != nil {
		return nil, err
	}
	return d, nil
}

// Init starts decoding a fresh interval from r by priming four bytes of
// lookahead.
func (d *Decoder) Init(r io.ByteReader) error {
	d.input = r
	d.err = nil
	d.length = maxLength
	d.value = 0
	for i := 0; i < 4; i++ {
		d.value = d.value<<8 | uint32(d.readByte())
	}
	return d.err
}

// Err returns the first error encountered while decoding.
func (d *Decoder) Err() error { return d.err }

// Done ends decoding of the current interval. The decoder needs no trailing
// bytes, so it only reports the sticky error.
func (d *Decoder) Done() error {
	d.input = nil
	return d.err
}

// DecodeBit decodes a bit with the model m and updates m.
func (d *Decoder) DecodeBit(m *BitModel) uint32 {
	x := m.bit0Prob * (d.length >> bitLengthShift)
	var bit uint32
	if d.value < x {
		d.length = x
		m.bit0Count++
	} else {
		bit = 1
		d.value -= x
		d.length -= x
	}
	if d.length < minLength {
		d.renormalize()
	}

	m.bitsUntilUpdate--
	if m.bitsUntilUpdate == 0 {
		m.update()
	}
	return bit
}

// DecodeSymbol decodes a symbol with the model m and updates m.
func (d *Decoder) DecodeSymbol(m *SymbolModel) uint32 {
	m.prepareDecoding()

	var sym, x uint32
	y := d.length
	if m.decoderTable != nil {
		d.length >>= symbolLengthShift
		dv := d.value / d.length
		t := dv >> m.tableShift
		if t > m.tableSize {
			t = m.tableSize
			d.fail(ErrCorrupt)
		}
		sym = m.decoderTable[t]
		n := m.decoderTable[t+1] + 1
		for n > sym+1 {
			k := (sym + n) >> 1
			if m.distribution[k] > dv {
				n = k
			} else {
				sym = k
			}
		}
		x = m.distribution[sym] * d.length
		if sym != m.lastSymbol {
			y = m.distribution[sym+1] * d.length
		}
	} else {
		// bisection using only multiplications
		d.length >>= symbolLengthShift
		n := m.symbols
		k := n >> 1
		for {
			z := d.length * m.distribution[k]
			if z > d.value {
				n = k
				y = z
			} else {
				sym = k
				x = z
			}
			k = (sym + n) >> 1
			if k == sym {
				break
			}
		}
	}

	d.value -= x
	d.length = y - x
	if d.length < minLength {
		d.renormalize()
	}

	m.symbolCount[sym]++
	m.symbolsUntilUpdate--
	if m.symbolsUntilUpdate == 0 {
		m.update()
	}
	return sym
}

// ReadBit reads a raw bit.
func (d *Decoder) ReadBit() uint32 {
	return d.readRaw(1)
}

// ReadBits reads n raw bits, 0 < n <= 32.
func (d *Decoder) ReadBits(n uint32) uint32 {
	if n > 19 {
		lo := uint32(d.ReadShort())
		hi := d.readRaw(n - 16)
		return hi<<16 | lo
	}
	return d.readRaw(n)
}

// ReadByte reads a raw byte.
func (d *Decoder) ReadByte() (byte, error) {
	b := byte(d.readRaw(8))
	return b, d.err
}

// ReadShort reads a raw 16-bit value.
func (d *Decoder) ReadShort() uint16 {
	return uint16(d.readRaw(16))
}

// ReadInt reads a raw 32-bit value written by WriteInt.
func (d *Decoder) ReadInt() uint32 {
	lo := uint32(d.ReadShort())
	hi := uint32(d.ReadShort())
	return hi<<16 | lo
}

// ReadInt64 reads a raw 64-bit value written by WriteInt64.
func (d *Decoder) ReadInt64() uint64 {
	lo := uint64(d.ReadInt())
	hi := uint64(d.ReadInt())
	return hi<<32 | lo
}

// ReadFloat reads a float32 written by WriteFloat.
func (d *Decoder) ReadFloat() float32 {
	return math.Float32frombits(d.ReadInt())
}

// ReadDouble reads a float64 written by WriteDouble.
func (d *Decoder) ReadDouble() float64 {
	return math.Float64frombits(d.ReadInt64())
}

func (d *Decoder) readRaw(n uint32) uint32 {
	d.length >>= n
	sym := d.value / d.length
	d.value -= d.length * sym
	if d.length < minLength {
		d.renormalize()
	}
	if sym >= 1<<n {
		d.fail(ErrCorrupt)
		sym &= 1<<n - 1
	}
	return sym
}

func (d *Decoder) renormalize() {
	for {
		d.value = d.value<<8 | uint32(d.readByte())
		d.length <<= 8
		if d.length >= minLength {
			break
		}
	}
}

func (d *Decoder) readByte() byte {
	if d.err != nil || d.input == nil {
		return 0
	}
	b, err := d.input.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.fail(err)
		return 0
	}
	return b
}

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

package codec

import (
	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/intcomp"
	"github.com/egonelbre/exp-laz-compression/las"
)

func lo(v uint16) int32 { return int32(v & 0xFF) }
func hi(v uint16) int32 { return int32(v >> 8) }

// rgbChanged returns a mask with one bit per byte of the three channels
// that differs between a and b, low byte of red first.
func rgbChanged(a, b *[3]uint16) uint32 {
	var mask uint32
	for i := range a {
		mask |= boolBit(lo(a[i]) != lo(b[i])) << (2 * i)
		mask |= boolBit(hi(a[i]) != hi(b[i])) << (2*i + 1)
	}
	return mask
}

var rgbV1Options = intcomp.Options{Bits: 8, Contexts: 6}

type rgb12V1Encoder struct {
	enc      *arithcode.Encoder
	byteUsed *arithcode.SymbolModel
	ic       *intcomp.Compressor
	last     [3]uint16
}

func newRGB12V1Encoder(enc *arithcode.Encoder, _ las.Item) Encoder {
	return &rgb12V1Encoder{
		enc:      enc,
		byteUsed: arithcode.NewSymbolModel(64),
		ic:       intcomp.NewCompressor(enc, rgbV1Options),
	}
}

func (c *rgb12V1Encoder) Init(p *las.Point) {
	c.byteUsed.Init()
	c.ic.Init()
	c.last = p.RGB
}

func (c *rgb12V1Encoder) Encode(p *las.Point) {
	changed := rgbChanged(&c.last, &p.RGB)
	c.enc.EncodeSymbol(c.byteUsed, changed)
	for i := range p.RGB {
		if changed&(1<<(2*i)) != 0 {
			c.ic.Compress(lo(c.last[i]), lo(p.RGB[i]), uint32(2*i))
		}
		if changed&(1<<(2*i+1)) != 0 {
			c.ic.Compress(hi(c.last[i]), hi(p.RGB[i]), uint32(2*i+1))
		}
	}
	c.last = p.RGB
}

type rgb12V1Decoder struct {
	dec      *arithcode.Decoder
	byteUsed *arithcode.SymbolModel
	ic       *intcomp.Decompressor
	last     [3]uint16
}

func newRGB12V1Decoder(dec *arithcode.Decoder, _ las.Item) Decoder {
	return &rgb12V1Decoder{
		dec:      dec,
		byteUsed: arithcode.NewSymbolModel(64),
		ic:       intcomp.NewDecompressor(dec, rgbV1Options),
	}
}

func (c *rgb12V1Decoder) Init(p *las.Point) {
	c.byteUsed.Init()
	c.ic.Init()
	c.last = p.RGB
}

func (c *rgb12V1Decoder) Decode(p *las.Point) {
	changed := c.dec.DecodeSymbol(c.byteUsed)
	for i := range c.last {
		l, h := lo(c.last[i]), hi(c.last[i])
		if changed&(1<<(2*i)) != 0 {
			l = c.ic.Decompress(l, uint32(2*i))
		}
		if changed&(1<<(2*i+1)) != 0 {
			h = c.ic.Decompress(h, uint32(2*i+1))
		}
		c.last[i] = uint16(h&0xFF)<<8 | uint16(l&0xFF)
	}
	p.RGB = c.last
}

// rgbColored is set in the v2 mask when green or blue differ from red.
const rgbColored = 1 << 6

type rgb12V2 struct {
	byteUsed *arithcode.SymbolModel
	diff     [6]*arithcode.SymbolModel // indexed like the mask bits
	last     [3]uint16
}

func newRGB12V2() rgb12V2 {
	s := rgb12V2{byteUsed: arithcode.NewSymbolModel(128)}
	for i := range s.diff {
		s.diff[i] = arithcode.NewSymbolModel(256)
	}
	return s
}

func (s *rgb12V2) init(p *las.Point) {
	s.byteUsed.Init()
	for _, m := range s.diff {
		m.Init()
	}
	s.last = p.RGB
}

type rgb12V2Encoder struct {
	rgb12V2
	enc *arithcode.Encoder
}

func newRGB12V2Encoder(enc *arithcode.Encoder, _ las.Item) Encoder {
	return &rgb12V2Encoder{rgb12V2: newRGB12V2(), enc: enc}
}

func (c *rgb12V2Encoder) Init(p *las.Point) { c.init(p) }

func (c *rgb12V2Encoder) Encode(p *las.Point) {
	last, rgb := &c.last, &p.RGB

	changed := rgbChanged(last, rgb)
	if lo(rgb[0]) != lo(rgb[1]) || lo(rgb[0]) != lo(rgb[2]) ||
		hi(rgb[0]) != hi(rgb[1]) || hi(rgb[0]) != hi(rgb[2]) {
		changed |= rgbColored
	}
	c.enc.EncodeSymbol(c.byteUsed, changed)

	var diffLo, diffHi int32
	if changed&(1<<0) != 0 {
		diffLo = lo(rgb[0]) - lo(last[0])
		c.enc.EncodeSymbol(c.diff[0], fold(diffLo))
	}
	if changed&(1<<1) != 0 {
		diffHi = hi(rgb[0]) - hi(last[0])
		c.enc.EncodeSymbol(c.diff[1], fold(diffHi))
	}
	if changed&rgbColored != 0 {
		if changed&(1<<2) != 0 {
			corr := lo(rgb[1]) - clampByte(diffLo+lo(last[1]))
			c.enc.EncodeSymbol(c.diff[2], fold(corr))
		}
		if changed&(1<<4) != 0 {
			diffLo = (diffLo + lo(rgb[1]) - lo(last[1])) / 2
			corr := lo(rgb[2]) - clampByte(diffLo+lo(last[2]))
			c.enc.EncodeSymbol(c.diff[4], fold(corr))
		}
		if changed&(1<<3) != 0 {
			corr := hi(rgb[1]) - clampByte(diffHi+hi(last[1]))
			c.enc.EncodeSymbol(c.diff[3], fold(corr))
		}
		if changed&(1<<5) != 0 {
			diffHi = (diffHi + hi(rgb[1]) - hi(last[1])) / 2
			corr := hi(rgb[2]) - clampByte(diffHi+hi(last[2]))
			c.enc.EncodeSymbol(c.diff[5], fold(corr))
		}
	}
	c.last = p.RGB
}

type rgb12V2Decoder struct {
	rgb12V2
	dec *arithcode.Decoder
}

func newRGB12V2Decoder(dec *arithcode.Decoder, _ las.Item) Decoder {
	return &rgb12V2Decoder{rgb12V2: newRGB12V2(), dec: dec}
}

func (c *rgb12V2Decoder) Init(p *las.Point) { c.init(p) }

// decodeByte decodes a residual with model i against pred.
func (c *rgb12V2Decoder) decodeByte(i int, pred int32) int32 {
	return int32(fold(int32(c.dec.DecodeSymbol(c.diff[i])) + pred))
}

func (c *rgb12V2Decoder) Decode(p *las.Point) {
	last := &c.last
	changed := c.dec.DecodeSymbol(c.byteUsed)

	var rgb [3]uint16
	r0, r1 := lo(last[0]), hi(last[0])
	if changed&(1<<0) != 0 {
		r0 = c.decodeByte(0, lo(last[0]))
	}
	if changed&(1<<1) != 0 {
		r1 = c.decodeByte(1, hi(last[0]))
	}
	rgb[0] = uint16(r1)<<8 | uint16(r0)

	if changed&rgbColored == 0 {
		rgb[1], rgb[2] = rgb[0], rgb[0]
		*last = rgb
		p.RGB = rgb
		return
	}

	diff := r0 - lo(last[0])
	g0, b0 := lo(last[1]), lo(last[2])
	if changed&(1<<2) != 0 {
		g0 = c.decodeByte(2, clampByte(diff+lo(last[1])))
	}
	if changed&(1<<4) != 0 {
		diff = (diff + g0 - lo(last[1])) / 2
		b0 = c.decodeByte(4, clampByte(diff+lo(last[2])))
	}

	diff = r1 - hi(last[0])
	g1, b1 := hi(last[1]), hi(last[2])
	if changed&(1<<3) != 0 {
		g1 = c.decodeByte(3, clampByte(diff+hi(last[1])))
	}
	if changed&(1<<5) != 0 {
		diff = (diff + g1 - hi(last[1])) / 2
		b1 = c.decodeByte(5, clampByte(diff+hi(last[2])))
	}

	rgb[1] = uint16(g1)<<8 | uint16(g0)
	rgb[2] = uint16(b1)<<8 | uint16(b0)
	*last = rgb
	p.RGB = rgb
}

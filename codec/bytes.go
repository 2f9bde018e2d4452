package codec

import (
	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/intcomp"
	"github.com/egonelbre/exp-laz-compression/las"
)

// Extra bytes are coded position by position against the same position of
// the last point. The point must carry at least item.Size extra bytes.

type byteV1Encoder struct {
	ic   *intcomp.Compressor
	last []byte
}

func newByteV1Encoder(enc *arithcode.Encoder, item las.Item) Encoder {
	return &byteV1Encoder{
		ic:   intcomp.NewCompressor(enc, intcomp.Options{Bits: 8, Contexts: uint32(item.Size)}),
		last: make([]byte, item.Size),
	}
}

func (c *byteV1Encoder) Init(p *las.Point) {
	c.ic.Init()
	copy(c.last, p.ExtraBytes)
}

func (c *byteV1Encoder) Encode(p *las.Point) {
	for i, b := range p.ExtraBytes[:len(c.last)] {
		c.ic.Compress(int32(c.last[i]), int32(b), uint32(i))
	}
	copy(c.last, p.ExtraBytes)
}

type byteV1Decoder struct {
	ic   *intcomp.Decompressor
	last []byte
}

func newByteV1Decoder(dec *arithcode.Decoder, item las.Item) Decoder {
	return &byteV1Decoder{
		ic:   intcomp.NewDecompressor(dec, intcomp.Options{Bits: 8, Contexts: uint32(item.Size)}),
		last: make([]byte, item.Size),
	}
}

func (c *byteV1Decoder) Init(p *las.Point) {
	c.ic.Init()
	copy(c.last, p.ExtraBytes)
}

func (c *byteV1Decoder) Decode(p *las.Point) {
	for i, b := range c.last {
		c.last[i] = uint8(c.ic.Decompress(int32(b), uint32(i)))
	}
	p.ExtraBytes = las.GrowExtraBytes(p.ExtraBytes, len(c.last))
	copy(p.ExtraBytes, c.last)
}

type byteV2 struct {
	models []*arithcode.SymbolModel
	last   []byte
}

func newByteV2(n uint16) byteV2 {
	s := byteV2{
		models: make([]*arithcode.SymbolModel, n),
		last:   make([]byte, n),
	}
	for i := range s.models {
		s.models[i] = arithcode.NewSymbolModel(256)
	}
	return s
}

func (s *byteV2) init(p *las.Point) {
	for _, m := range s.models {
		m.Init()
	}
	copy(s.last, p.ExtraBytes)
}

type byteV2Encoder struct {
	byteV2
	enc *arithcode.Encoder
}

func newByteV2Encoder(enc *arithcode.Encoder, item las.Item) Encoder {
	return &byteV2Encoder{byteV2: newByteV2(item.Size), enc: enc}
}

func (c *byteV2Encoder) Init(p *las.Point) { c.init(p) }

func (c *byteV2Encoder) Encode(p *las.Point) {
	for i, b := range p.ExtraBytes[:len(c.last)] {
		c.enc.EncodeSymbol(c.models[i], fold(int32(b)-int32(c.last[i])))
	}
	copy(c.last, p.ExtraBytes)
}

type byteV2Decoder struct {
	byteV2
	dec *arithcode.Decoder
}

func newByteV2Decoder(dec *arithcode.Decoder, item las.Item) Decoder {
	return &byteV2Decoder{byteV2: newByteV2(item.Size), dec: dec}
}

func (c *byteV2Decoder) Init(p *las.Point) { c.init(p) }

func (c *byteV2Decoder) Decode(p *las.Point) {
	for i, b := range c.last {
		c.last[i] = uint8(fold(int32(c.dec.DecodeSymbol(c.models[i])) + int32(b)))
	}
	p.ExtraBytes = las.GrowExtraBytes(p.ExtraBytes, len(c.last))
	copy(p.ExtraBytes, c.last)
}

package codec

import (
	"math"

	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/intcomp"
	"github.com/egonelbre/exp-laz-compression/las"
)

// Offset symbols of the wavepacket codec.
const (
	offsetSame     = 0 // same offset as the last point
	offsetNext     = 1 // packet follows the last packet
	offsetDelta    = 2 // 32-bit delta predicted from the last delta
	offsetFull     = 3 // raw 64-bit offset
	offsetSymbols  = 4
	wavepacketBits = 32
)

var wavepacketXYZ = intcomp.Options{Bits: wavepacketBits, Contexts: 3}

// wavepacket13V1 codes the waveform descriptor. The descriptor index is
// modelled on its own; the remaining fields are predicted from the last
// point.
type wavepacket13V1 struct {
	packetIndex *arithcode.SymbolModel
	offsetDiff  [offsetSymbols]*arithcode.SymbolModel

	last       las.Wavepacket
	lastDiff   int32
	lastSymbol uint32
}

func newWavepacket13V1() wavepacket13V1 {
	s := wavepacket13V1{packetIndex: arithcode.NewSymbolModel(256)}
	for i := range s.offsetDiff {
		s.offsetDiff[i] = arithcode.NewSymbolModel(offsetSymbols)
	}
	return s
}

func (s *wavepacket13V1) init(p *las.Point) {
	s.lastDiff = 0
	s.lastSymbol = 0
	s.packetIndex.Init()
	for _, m := range s.offsetDiff {
		m.Init()
	}
	s.last = p.Wavepacket
}

func f32(f float32) int32 { return int32(math.Float32bits(f)) }

func fromF32(v int32) float32 { return math.Float32frombits(uint32(v)) }

type wavepacket13V1Encoder struct {
	wavepacket13V1
	enc *arithcode.Encoder

	icOffsetDiff  *intcomp.Compressor
	icPacketSize  *intcomp.Compressor
	icReturnPoint *intcomp.Compressor
	icXYZ         *intcomp.Compressor
}

func newWavepacket13V1Encoder(enc *arithcode.Encoder, _ las.Item) Encoder {
	single := intcomp.Options{Bits: wavepacketBits, Contexts: 1}
	return &wavepacket13V1Encoder{
		wavepacket13V1: newWavepacket13V1(),
		enc:            enc,
		icOffsetDiff:   intcomp.NewCompressor(enc, single),
		icPacketSize:   intcomp.NewCompressor(enc, single),
		icReturnPoint:  intcomp.NewCompressor(enc, single),
		icXYZ:          intcomp.NewCompressor(enc, wavepacketXYZ),
	}
}

func (c *wavepacket13V1Encoder) Init(p *las.Point) {
	c.icOffsetDiff.Init()
	c.icPacketSize.Init()
	c.icReturnPoint.Init()
	c.icXYZ.Init()
	c.init(p)
}

func (c *wavepacket13V1Encoder) Encode(p *las.Point) {
	w, last := &p.Wavepacket, &c.last

	c.enc.EncodeSymbol(c.packetIndex, uint32(w.Index))

	diff64 := int64(w.Offset - last.Offset)
	sym := uint32(offsetFull)
	if fits32(diff64) {
		switch {
		case diff64 == 0:
			sym = offsetSame
		// LASzip compares against the size cast to int32, so sizes of 2^31
		// and more with a backwards jump encode differently there
		case diff64 == int64(last.PacketSize):
			sym = offsetNext
		default:
			sym = offsetDelta
		}
	}
	c.enc.EncodeSymbol(c.offsetDiff[c.lastSymbol], sym)
	switch sym {
	case offsetDelta:
		c.icOffsetDiff.Compress(c.lastDiff, int32(diff64), 0)
		c.lastDiff = int32(diff64)
	case offsetFull:
		c.enc.WriteInt64(w.Offset)
	}
	c.lastSymbol = sym

	c.icPacketSize.Compress(int32(last.PacketSize), int32(w.PacketSize), 0)
	c.icReturnPoint.Compress(f32(last.ReturnPoint), f32(w.ReturnPoint), 0)
	c.icXYZ.Compress(f32(last.X), f32(w.X), 0)
	c.icXYZ.Compress(f32(last.Y), f32(w.Y), 1)
	c.icXYZ.Compress(f32(last.Z), f32(w.Z), 2)

	*last = *w
}

type wavepacket13V1Decoder struct {
	wavepacket13V1
	dec *arithcode.Decoder

	icOffsetDiff  *intcomp.Decompressor
	icPacketSize  *intcomp.Decompressor
	icReturnPoint *intcomp.Decompressor
	icXYZ         *intcomp.Decompressor
}

func newWavepacket13V1Decoder(dec *arithcode.Decoder, _ las.Item) Decoder {
	single := intcomp.Options{Bits: wavepacketBits, Contexts: 1}
	return &wavepacket13V1Decoder{
		wavepacket13V1: newWavepacket13V1(),
		dec:            dec,
		icOffsetDiff:   intcomp.NewDecompressor(dec, single),
		icPacketSize:   intcomp.NewDecompressor(dec, single),
		icReturnPoint:  intcomp.NewDecompressor(dec, single),
		icXYZ:          intcomp.NewDecompressor(dec, wavepacketXYZ),
	}
}

func (c *wavepacket13V1Decoder) Init(p *las.Point) {
	c.icOffsetDiff.Init()
	c.icPacketSize.Init()
	c.icReturnPoint.Init()
	c.icXYZ.Init()
	c.init(p)
}

func (c *wavepacket13V1Decoder) Decode(p *las.Point) {
	last := &c.last
	var w las.Wavepacket

	w.Index = uint8(c.dec.DecodeSymbol(c.packetIndex))

	c.lastSymbol = c.dec.DecodeSymbol(c.offsetDiff[c.lastSymbol])
	switch c.lastSymbol {
	case offsetSame:
		w.Offset = last.Offset
	case offsetNext:
		w.Offset = last.Offset + uint64(last.PacketSize)
	case offsetDelta:
		c.lastDiff = c.icOffsetDiff.Decompress(c.lastDiff, 0)
		w.Offset = last.Offset + uint64(int64(c.lastDiff))
	default:
		w.Offset = c.dec.ReadInt64()
	}

	w.PacketSize = uint32(c.icPacketSize.Decompress(int32(last.PacketSize), 0))
	w.ReturnPoint = fromF32(c.icReturnPoint.Decompress(f32(last.ReturnPoint), 0))
	w.X = fromF32(c.icXYZ.Decompress(f32(last.X), 0))
	w.Y = fromF32(c.icXYZ.Decompress(f32(last.Y), 1))
	w.Z = fromF32(c.icXYZ.Decompress(f32(last.Z), 2))

	*last = w
	p.Wavepacket = w
}

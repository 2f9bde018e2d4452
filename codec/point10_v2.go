package codec

import (
	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/intcomp"
	"github.com/egonelbre/exp-laz-compression/las"
)

const (
	v2ChangedFlags     = 1 << 5
	v2ChangedIntensity = 1 << 4
	v2ChangedClass     = 1 << 3
	v2ChangedScanAngle = 1 << 2
	v2ChangedUserData  = 1 << 1
	v2ChangedSource    = 1 << 0
)

var (
	point10V2Intensity = intcomp.Options{Bits: 16, Contexts: 4}
	point10V2Source    = intcomp.Options{Bits: 16, Contexts: 1}
	point10V2DX        = intcomp.Options{Bits: 32, Contexts: 2}
	point10V2DY        = intcomp.Options{Bits: 32, Contexts: 22}
	point10V2Z         = intcomp.Options{Bits: 32, Contexts: 20}
)

// point10V2 holds the state shared by the v2 encoder and decoder.
// Predictions are kept per return class m (16) and return level l (8).
type point10V2 struct {
	changedValues  *arithcode.SymbolModel
	scanAngle      [2]*arithcode.SymbolModel
	bitByte        byteModels
	classification byteModels
	userData       byteModels

	last          las.Point
	lastIntensity [16]uint16
	lastXDiff     [16]median5
	lastYDiff     [16]median5
	lastHeight    [8]int32
}

func newPoint10V2() point10V2 {
	return point10V2{
		changedValues: arithcode.NewSymbolModel(64),
		scanAngle:     [2]*arithcode.SymbolModel{arithcode.NewSymbolModel(256), arithcode.NewSymbolModel(256)},
	}
}

func (s *point10V2) init(p *las.Point) {
	for i := range s.lastXDiff {
		s.lastXDiff[i].init()
		s.lastYDiff[i].init()
		s.lastIntensity[i] = 0
	}
	s.lastHeight = [8]int32{}

	s.changedValues.Init()
	s.scanAngle[0].Init()
	s.scanAngle[1].Init()
	s.bitByte.init()
	s.classification.init()
	s.userData.init()
	copyPoint10(&s.last, p)
}

// yContext selects the dy context from the number of returns and the
// bit length class of dx.
func yContext(n uint8, kBits uint32) uint32 {
	if kBits < 20 {
		return boolBit(n == 1) + kBits&^1
	}
	return boolBit(n == 1) + 20
}

// zContext selects the z context from the number of returns and the mean
// bit length class of dx and dy.
func zContext(n uint8, kBits uint32) uint32 {
	if kBits < 18 {
		return boolBit(n == 1) + kBits&^1
	}
	return boolBit(n == 1) + 18
}

func intensityContext(m uint8) uint32 {
	if m < 3 {
		return uint32(m)
	}
	return 3
}

type point10V2Encoder struct {
	point10V2
	enc *arithcode.Encoder

	icIntensity     *intcomp.Compressor
	icPointSourceID *intcomp.Compressor
	icDX, icDY, icZ *intcomp.Compressor
}

func newPoint10V2Encoder(enc *arithcode.Encoder, _ las.Item) Encoder {
	return &point10V2Encoder{
		point10V2:       newPoint10V2(),
		enc:             enc,
		icIntensity:     intcomp.NewCompressor(enc, point10V2Intensity),
		icPointSourceID: intcomp.NewCompressor(enc, point10V2Source),
		icDX:            intcomp.NewCompressor(enc, point10V2DX),
		icDY:            intcomp.NewCompressor(enc, point10V2DY),
		icZ:             intcomp.NewCompressor(enc, point10V2Z),
	}
}

func (c *point10V2Encoder) Init(p *las.Point) {
	c.icIntensity.Init()
	c.icPointSourceID.Init()
	c.icDX.Init()
	c.icDY.Init()
	c.icZ.Init()
	c.init(p)
}

func (c *point10V2Encoder) Encode(p *las.Point) {
	last := &c.last
	r, n := p.ReturnNumber(), p.NumberOfReturns()
	m := returnMap[n][r]
	l := returnLevel[n][r]

	var changed uint32
	changed |= boolBit(last.Flags != p.Flags) << 5
	changed |= boolBit(c.lastIntensity[m] != p.Intensity) << 4
	changed |= boolBit(last.Classification != p.Classification) << 3
	changed |= boolBit(last.ScanAngleRank != p.ScanAngleRank) << 2
	changed |= boolBit(last.UserData != p.UserData) << 1
	changed |= boolBit(last.PointSourceID != p.PointSourceID)
	c.enc.EncodeSymbol(c.changedValues, changed)

	if changed&v2ChangedFlags != 0 {
		c.enc.EncodeSymbol(c.bitByte.get(last.Flags), uint32(p.Flags))
	}
	if changed&v2ChangedIntensity != 0 {
		c.icIntensity.Compress(int32(c.lastIntensity[m]), int32(p.Intensity), intensityContext(m))
		c.lastIntensity[m] = p.Intensity
	}
	if changed&v2ChangedClass != 0 {
		c.enc.EncodeSymbol(c.classification.get(last.Classification), uint32(p.Classification))
	}
	if changed&v2ChangedScanAngle != 0 {
		diff := int32(uint8(p.ScanAngleRank)) - int32(uint8(last.ScanAngleRank))
		c.enc.EncodeSymbol(c.scanAngle[p.ScanDirectionFlag()], fold(diff))
	}
	if changed&v2ChangedUserData != 0 {
		c.enc.EncodeSymbol(c.userData.get(last.UserData), uint32(p.UserData))
	}
	if changed&v2ChangedSource != 0 {
		c.icPointSourceID.Compress(int32(last.PointSourceID), int32(p.PointSourceID), 0)
	}

	median := c.lastXDiff[m].get()
	diff := p.X - last.X
	c.icDX.Compress(median, diff, boolBit(n == 1))
	c.lastXDiff[m].add(diff)

	kBits := c.icDX.K()
	median = c.lastYDiff[m].get()
	diff = p.Y - last.Y
	c.icDY.Compress(median, diff, yContext(n, kBits))
	c.lastYDiff[m].add(diff)

	kBits = (c.icDX.K() + c.icDY.K()) / 2
	c.icZ.Compress(c.lastHeight[l], p.Z, zContext(n, kBits))
	c.lastHeight[l] = p.Z

	copyPoint10(last, p)
}

type point10V2Decoder struct {
	point10V2
	dec *arithcode.Decoder

	icIntensity     *intcomp.Decompressor
	icPointSourceID *intcomp.Decompressor
	icDX, icDY, icZ *intcomp.Decompressor
}

func newPoint10V2Decoder(dec *arithcode.Decoder, _ las.Item) Decoder {
	return &point10V2Decoder{
		point10V2:       newPoint10V2(),
		dec:             dec,
		icIntensity:     intcomp.NewDecompressor(dec, point10V2Intensity),
		icPointSourceID: intcomp.NewDecompressor(dec, point10V2Source),
		icDX:            intcomp.NewDecompressor(dec, point10V2DX),
		icDY:            intcomp.NewDecompressor(dec, point10V2DY),
		icZ:             intcomp.NewDecompressor(dec, point10V2Z),
	}
}

func (c *point10V2Decoder) Init(p *las.Point) {
	c.icIntensity.Init()
	c.icPointSourceID.Init()
	c.icDX.Init()
	c.icDY.Init()
	c.icZ.Init()
	c.init(p)
}

func (c *point10V2Decoder) Decode(p *las.Point) {
	last := &c.last

	changed := c.dec.DecodeSymbol(c.changedValues)

	if changed&v2ChangedFlags != 0 {
		last.Flags = uint8(c.dec.DecodeSymbol(c.bitByte.get(last.Flags)))
	}
	r, n := last.ReturnNumber(), last.NumberOfReturns()
	m := returnMap[n][r]
	l := returnLevel[n][r]

	if changed&v2ChangedIntensity != 0 {
		c.lastIntensity[m] = uint16(c.icIntensity.Decompress(int32(c.lastIntensity[m]), intensityContext(m)))
	}
	last.Intensity = c.lastIntensity[m]

	if changed&v2ChangedClass != 0 {
		last.Classification = uint8(c.dec.DecodeSymbol(c.classification.get(last.Classification)))
	}
	if changed&v2ChangedScanAngle != 0 {
		sym := c.dec.DecodeSymbol(c.scanAngle[last.ScanDirectionFlag()])
		last.ScanAngleRank = int8(uint8(fold(int32(sym) + int32(uint8(last.ScanAngleRank)))))
	}
	if changed&v2ChangedUserData != 0 {
		last.UserData = uint8(c.dec.DecodeSymbol(c.userData.get(last.UserData)))
	}
	if changed&v2ChangedSource != 0 {
		last.PointSourceID = uint16(c.icPointSourceID.Decompress(int32(last.PointSourceID), 0))
	}

	median := c.lastXDiff[m].get()
	diff := c.icDX.Decompress(median, boolBit(n == 1))
	last.X += diff
	c.lastXDiff[m].add(diff)

	median = c.lastYDiff[m].get()
	kBits := c.icDX.K()
	diff = c.icDY.Decompress(median, yContext(n, kBits))
	last.Y += diff
	c.lastYDiff[m].add(diff)

	kBits = (c.icDX.K() + c.icDY.K()) / 2
	last.Z = c.icZ.Decompress(c.lastHeight[l], zContext(n, kBits))
	c.lastHeight[l] = last.Z

	copyPoint10(p, last)
}

package codec

import (
	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/intcomp"
	"github.com/egonelbre/exp-laz-compression/las"
)

// returnMap assigns one of 16 classes to each (number of returns, return
// number) combination.
var returnMap = [8][8]uint8{
	{15, 14, 13, 12, 11, 10, 9, 8},
	{14, 0, 1, 3, 6, 10, 10, 9},
	{13, 1, 2, 4, 7, 11, 11, 10},
	{12, 3, 4, 5, 8, 12, 12, 11},
	{11, 6, 7, 8, 9, 13, 13, 12},
	{10, 10, 11, 12, 13, 14, 14, 13},
	{9, 10, 11, 12, 13, 14, 15, 14},
	{8, 9, 10, 11, 12, 13, 14, 15},
}

// returnLevel is the distance between the return number and the last
// return of the pulse.
var returnLevel = [8][8]uint8{
	{0, 1, 2, 3, 4, 5, 6, 7},
	{1, 0, 1, 2, 3, 4, 5, 6},
	{2, 1, 0, 1, 2, 3, 4, 5},
	{3, 2, 1, 0, 1, 2, 3, 4},
	{4, 3, 2, 1, 0, 1, 2, 3},
	{5, 4, 3, 2, 1, 0, 1, 2},
	{6, 5, 4, 3, 2, 1, 0, 1},
	{7, 6, 5, 4, 3, 2, 1, 0},
}

// copyPoint10 copies the fields stored by the POINT10 item.
func copyPoint10(dst, src *las.Point) {
	dst.X, dst.Y, dst.Z = src.X, src.Y, src.Z
	dst.Intensity = src.Intensity
	dst.Flags = src.Flags
	dst.Classification = src.Classification
	dst.ScanAngleRank = src.ScanAngleRank
	dst.UserData = src.UserData
	dst.PointSourceID = src.PointSourceID
}

// median3 returns the median of the three values.
func median3(v *[3]int32) int32 {
	if v[0] < v[1] {
		if v[1] < v[2] {
			return v[1]
		} else if v[0] < v[2] {
			return v[2]
		}
		return v[0]
	}
	if v[0] < v[2] {
		return v[0]
	} else if v[1] < v[2] {
		return v[2]
	}
	return v[1]
}

// median5 tracks an approximate running median of the last five values.
// It keeps the values sorted and alternates on which side new values are
// inserted.
type median5 struct {
	values [5]int32
	high   bool
}

func (m *median5) init() {
	*m = median5{high: true}
}

func (m *median5) get() int32 { return m.values[2] }

func (m *median5) add(v int32) {
	vs := &m.values
	if m.high {
		if v < vs[2] {
			vs[4] = vs[3]
			vs[3] = vs[2]
			if v < vs[0] {
				vs[2] = vs[1]
				vs[1] = vs[0]
				vs[0] = v
			} else if v < vs[1] {
				vs[2] = vs[1]
				vs[1] = v
			} else {
				vs[2] = v
			}
		} else {
			if v < vs[3] {
				vs[4] = vs[3]
				vs[3] = v
			} else {
				vs[4] = v
			}
			m.high = false
		}
		return
	}

	if vs[2] < v {
		vs[0] = vs[1]
		vs[1] = vs[2]
		if vs[4] < v {
			vs[2] = vs[3]
			vs[3] = vs[4]
			vs[4] = v
		} else if vs[3] < v {
			vs[2] = vs[3]
			vs[3] = v
		} else {
			vs[2] = v
		}
	} else {
		if vs[1] < v {
			vs[0] = vs[1]
			vs[1] = v
		} else {
			vs[0] = v
		}
		m.high = true
	}
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// point10V1 holds the models shared by the v1 encoder and decoder.
type point10V1 struct {
	changedValues  *arithcode.SymbolModel
	bitByte        byteModels
	classification byteModels
	userData       byteModels

	last      las.Point
	lastXDiff [3]int32
	lastYDiff [3]int32
	lastIncr  int
}

const (
	v1ChangedIntensity = 1 << 5
	v1ChangedFlags     = 1 << 4
	v1ChangedClass     = 1 << 3
	v1ChangedScanAngle = 1 << 2
	v1ChangedUserData  = 1 << 1
	v1ChangedSource    = 1 << 0
)

var (
	point10V1DX        = intcomp.Options{Bits: 32, Contexts: 1}
	point10V1DY        = intcomp.Options{Bits: 32, Contexts: 20}
	point10V1Z         = intcomp.Options{Bits: 32, Contexts: 20}
	point10V1Intensity = intcomp.Options{Bits: 16, Contexts: 1}
	point10V1ScanAngle = intcomp.Options{Bits: 8, Contexts: 2}
	point10V1Source    = intcomp.Options{Bits: 16, Contexts: 1}
)

func (s *point10V1) init(p *las.Point) {
	s.lastXDiff = [3]int32{}
	s.lastYDiff = [3]int32{}
	s.lastIncr = 0
	s.changedValues.Init()
	s.bitByte.init()
	s.classification.init()
	s.userData.init()
	copyPoint10(&s.last, p)
}

func (s *point10V1) record(xDiff, yDiff int32, p *las.Point) {
	s.lastXDiff[s.lastIncr] = xDiff
	s.lastYDiff[s.lastIncr] = yDiff
	s.lastIncr++
	if s.lastIncr > 2 {
		s.lastIncr = 0
	}
	copyPoint10(&s.last, p)
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

type point10V1Encoder struct {
	point10V1
	enc *arithcode.Encoder

	icDX, icDY, icZ *intcomp.Compressor
	icIntensity     *intcomp.Compressor
	icScanAngle     *intcomp.Compressor
	icPointSourceID *intcomp.Compressor
}

func newPoint10V1Encoder(enc *arithcode.Encoder, _ las.Item) Encoder {
	return &point10V1Encoder{
		point10V1:       point10V1{changedValues: arithcode.NewSymbolModel(64)},
		enc:             enc,
		icDX:            intcomp.NewCompressor(enc, point10V1DX),
		icDY:            intcomp.NewCompressor(enc, point10V1DY),
		icZ:             intcomp.NewCompressor(enc, point10V1Z),
		icIntensity:     intcomp.NewCompressor(enc, point10V1Intensity),
		icScanAngle:     intcomp.NewCompressor(enc, point10V1ScanAngle),
		icPointSourceID: intcomp.NewCompressor(enc, point10V1Source),
	}
}

func (c *point10V1Encoder) Init(p *las.Point) {
	c.icDX.Init()
	c.icDY.Init()
	c.icZ.Init()
	c.icIntensity.Init()
	c.icScanAngle.Init()
	c.icPointSourceID.Init()
	c.init(p)
}

func (c *point10V1Encoder) Encode(p *las.Point) {
	last := &c.last

	medianX := median3(&c.lastXDiff)
	medianY := median3(&c.lastYDiff)
	xDiff := p.X - last.X
	yDiff := p.Y - last.Y

	c.icDX.Compress(medianX, xDiff, 0)
	kBits := c.icDX.K()
	c.icDY.Compress(medianY, yDiff, min32(kBits, 19))
	kBits = (kBits + c.icDY.K()) / 2
	c.icZ.Compress(last.Z, p.Z, min32(kBits, 19))

	var changed uint32
	changed |= boolBit(last.Intensity != p.Intensity) << 5
	changed |= boolBit(last.Flags != p.Flags) << 4
	changed |= boolBit(last.Classification != p.Classification) << 3
	changed |= boolBit(last.ScanAngleRank != p.ScanAngleRank) << 2
	changed |= boolBit(last.UserData != p.UserData) << 1
	changed |= boolBit(last.PointSourceID != p.PointSourceID)
	c.enc.EncodeSymbol(c.changedValues, changed)

	if changed&v1ChangedIntensity != 0 {
		c.icIntensity.Compress(int32(last.Intensity), int32(p.Intensity), 0)
	}
	if changed&v1ChangedFlags != 0 {
		c.enc.EncodeSymbol(c.bitByte.get(last.Flags), uint32(p.Flags))
	}
	if changed&v1ChangedClass != 0 {
		c.enc.EncodeSymbol(c.classification.get(last.Classification), uint32(p.Classification))
	}
	if changed&v1ChangedScanAngle != 0 {
		c.icScanAngle.Compress(int32(uint8(last.ScanAngleRank)), int32(uint8(p.ScanAngleRank)), boolBit(kBits < 3))
	}
	if changed&v1ChangedUserData != 0 {
		c.enc.EncodeSymbol(c.userData.get(last.UserData), uint32(p.UserData))
	}
	if changed&v1ChangedSource != 0 {
		c.icPointSourceID.Compress(int32(last.PointSourceID), int32(p.PointSourceID), 0)
	}

	c.record(xDiff, yDiff, p)
}

type point10V1Decoder struct {
	point10V1
	dec *arithcode.Decoder

	icDX, icDY, icZ *intcomp.Decompressor
	icIntensity     *intcomp.Decompressor
	icScanAngle     *intcomp.Decompressor
	icPointSourceID *intcomp.Decompressor
}

func newPoint10V1Decoder(dec *arithcode.Decoder, _ las.Item) Decoder {
	return &point10V1Decoder{
		point10V1:       point10V1{changedValues: arithcode.NewSymbolModel(64)},
		dec:             dec,
		icDX:            intcomp.NewDecompressor(dec, point10V1DX),
		icDY:            intcomp.NewDecompressor(dec, point10V1DY),
		icZ:             intcomp.NewDecompressor(dec, point10V1Z),
		icIntensity:     intcomp.NewDecompressor(dec, point10V1Intensity),
		icScanAngle:     intcomp.NewDecompressor(dec, point10V1ScanAngle),
		icPointSourceID: intcomp.NewDecompressor(dec, point10V1Source),
	}
}

func (c *point10V1Decoder) Init(p *las.Point) {
	c.icDX.Init()
	c.icDY.Init()
	c.icZ.Init()
	c.icIntensity.Init()
	c.icScanAngle.Init()
	c.icPointSourceID.Init()
	c.init(p)
}

func (c *point10V1Decoder) Decode(p *las.Point) {
	last := &c.last

	medianX := median3(&c.lastXDiff)
	medianY := median3(&c.lastYDiff)

	xDiff := c.icDX.Decompress(medianX, 0)
	p.X = last.X + xDiff
	kBits := c.icDX.K()
	yDiff := c.icDY.Decompress(medianY, min32(kBits, 19))
	p.Y = last.Y + yDiff
	kBits = (kBits + c.icDY.K()) / 2
	p.Z = c.icZ.Decompress(last.Z, min32(kBits, 19))

	changed := c.dec.DecodeSymbol(c.changedValues)

	p.Intensity = last.Intensity
	if changed&v1ChangedIntensity != 0 {
		p.Intensity = uint16(c.icIntensity.Decompress(int32(last.Intensity), 0))
	}
	p.Flags = last.Flags
	if changed&v1ChangedFlags != 0 {
		p.Flags = uint8(c.dec.DecodeSymbol(c.bitByte.get(last.Flags)))
	}
	p.Classification = last.Classification
	if changed&v1ChangedClass != 0 {
		p.Classification = uint8(c.dec.DecodeSymbol(c.classification.get(last.Classification)))
	}
	p.ScanAngleRank = last.ScanAngleRank
	if changed&v1ChangedScanAngle != 0 {
		p.ScanAngleRank = int8(c.icScanAngle.Decompress(int32(uint8(last.ScanAngleRank)), boolBit(kBits < 3)))
	}
	p.UserData = last.UserData
	if changed&v1ChangedUserData != 0 {
		p.UserData = uint8(c.dec.DecodeSymbol(c.userData.get(last.UserData)))
	}
	p.PointSourceID = last.PointSourceID
	if changed&v1ChangedSource != 0 {
		p.PointSourceID = uint16(c.icPointSourceID.Decompress(int32(last.PointSourceID), 0))
	}

	c.record(xDiff, yDiff, p)
}

package codec

import (
	"math"

	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/intcomp"
	"github.com/egonelbre/exp-laz-compression/las"
)

// GPS time is coded on the IEEE 754 bit pattern of the double, read as a
// signed 64-bit integer. Consecutive times of a survey differ by small
// integers in that representation.

// fits32 reports whether the 64-bit difference survives a round trip
// through int32.
func fits32(diff int64) bool {
	return diff == int64(int32(diff))
}

// quantize rounds f half away from zero. The result is computed in 64 bits
// so ratios beyond the int32 range cannot wrap. LASzip rounds into int32
// here, so streams differ from its output when |f| >= 2^31.
func quantize(f float32) int64 {
	if f >= 0 {
		return int64(f + 0.5)
	}
	return int64(f - 0.5)
}

const (
	gpsV1MultiMax = 512
	gpsV1Same     = gpsV1MultiMax - 1 // unchanged time
	gpsV1Full     = gpsV1MultiMax - 2 // raw 64-bit time
	gpsV1Extreme  = gpsV1MultiMax - 3 // largest multiplier
)

var gpsTimeV1Options = intcomp.Options{Bits: 32, Contexts: 6}

// gpsTime11V1 predicts each time from a single running difference.
type gpsTime11V1 struct {
	multi    *arithcode.SymbolModel
	zeroDiff *arithcode.SymbolModel
	lastDiff int32
	extremes int32
	last     int64
}

func newGPSTime11V1() gpsTime11V1 {
	return gpsTime11V1{
		multi:    arithcode.NewSymbolModel(gpsV1MultiMax),
		zeroDiff: arithcode.NewSymbolModel(3),
	}
}

func (s *gpsTime11V1) init(p *las.Point) {
	s.lastDiff = 0
	s.extremes = 0
	s.multi.Init()
	s.zeroDiff.Init()
	s.last = int64(math.Float64bits(p.GPSTime))
}

// countExtreme counts a poorly predicted difference and adopts diff as the
// new prediction after more than three in a row.
func (s *gpsTime11V1) countExtreme(diff int32) {
	s.extremes++
	if s.extremes > 3 {
		s.lastDiff = diff
		s.extremes = 0
	}
}

type gpsTime11V1Encoder struct {
	gpsTime11V1
	enc *arithcode.Encoder
	ic  *intcomp.Compressor
}

func newGPSTime11V1Encoder(enc *arithcode.Encoder, _ las.Item) Encoder {
	return &gpsTime11V1Encoder{
		gpsTime11V1: newGPSTime11V1(),
		enc:         enc,
		ic:          intcomp.NewCompressor(enc, gpsTimeV1Options),
	}
}

func (c *gpsTime11V1Encoder) Init(p *las.Point) {
	c.ic.Init()
	c.init(p)
}

func (c *gpsTime11V1Encoder) Encode(p *las.Point) {
	this := int64(math.Float64bits(p.GPSTime))

	if c.lastDiff == 0 {
		if this == c.last {
			c.enc.EncodeSymbol(c.zeroDiff, 0)
			return
		}
		diff64 := this - c.last
		if diff := int32(diff64); fits32(diff64) {
			c.enc.EncodeSymbol(c.zeroDiff, 1)
			c.ic.Compress(0, diff, 0)
			c.lastDiff = diff
		} else {
			c.enc.EncodeSymbol(c.zeroDiff, 2)
			c.enc.WriteInt64(uint64(this))
		}
		c.last = this
		return
	}

	if this == c.last {
		c.enc.EncodeSymbol(c.multi, gpsV1Same)
		return
	}

	diff64 := this - c.last
	c.last = this
	if !fits32(diff64) {
		c.enc.EncodeSymbol(c.multi, gpsV1Full)
		c.enc.WriteInt64(uint64(this))
		return
	}

	diff := int32(diff64)
	// LASzip truncates into int32 here; ratios of 2^31 and more encode differently
	multi := int64(float32(diff)/float32(c.lastDiff) + 0.5)
	if multi >= gpsV1Extreme {
		multi = gpsV1Extreme
	} else if multi <= 0 {
		multi = 0
	}
	c.enc.EncodeSymbol(c.multi, uint32(multi))

	m := int32(multi)
	switch {
	case m == 1:
		c.ic.Compress(c.lastDiff, diff, 1)
		c.lastDiff = diff
		c.extremes = 0
	case m == 0:
		c.ic.Compress(c.lastDiff/4, diff, 2)
		c.countExtreme(diff)
	case m < 10:
		c.ic.Compress(m*c.lastDiff, diff, 3)
	case m < 50:
		c.ic.Compress(m*c.lastDiff, diff, 4)
	default:
		c.ic.Compress(m*c.lastDiff, diff, 5)
		if m == gpsV1Extreme {
			c.countExtreme(diff)
		}
	}
}

type gpsTime11V1Decoder struct {
	gpsTime11V1
	dec *arithcode.Decoder
	ic  *intcomp.Decompressor
}

func newGPSTime11V1Decoder(dec *arithcode.Decoder, _ las.Item) Decoder {
	return &gpsTime11V1Decoder{
		gpsTime11V1: newGPSTime11V1(),
		dec:         dec,
		ic:          intcomp.NewDecompressor(dec, gpsTimeV1Options),
	}
}

func (c *gpsTime11V1Decoder) Init(p *las.Point) {
	c.ic.Init()
	c.init(p)
}

func (c *gpsTime11V1Decoder) Decode(p *las.Point) {
	if c.lastDiff == 0 {
		switch c.dec.DecodeSymbol(c.zeroDiff) {
		case 1:
			c.lastDiff = c.ic.Decompress(0, 0)
			c.last += int64(c.lastDiff)
		case 2:
			c.last = int64(c.dec.ReadInt64())
		}
		p.GPSTime = math.Float64frombits(uint64(c.last))
		return
	}

	multi := c.dec.DecodeSymbol(c.multi)
	switch {
	case multi < gpsV1Full:
		m := int32(multi)
		var diff int32
		switch {
		case m == 1:
			diff = c.ic.Decompress(c.lastDiff, 1)
			c.lastDiff = diff
			c.extremes = 0
		case m == 0:
			diff = c.ic.Decompress(c.lastDiff/4, 2)
			c.countExtreme(diff)
		case m < 10:
			diff = c.ic.Decompress(m*c.lastDiff, 3)
		case m < 50:
			diff = c.ic.Decompress(m*c.lastDiff, 4)
		default:
			diff = c.ic.Decompress(m*c.lastDiff, 5)
			if m == gpsV1Extreme {
				c.countExtreme(diff)
			}
		}
		c.last += int64(diff)
	case multi == gpsV1Full:
		c.last = int64(c.dec.ReadInt64())
	}
	p.GPSTime = math.Float64frombits(uint64(c.last))
}

const (
	gpsV2Multi      = 500
	gpsV2MultiMinus = -10
	gpsV2Unchanged  = gpsV2Multi - gpsV2MultiMinus + 1 // 511
	gpsV2CodeFull   = gpsV2Multi - gpsV2MultiMinus + 2 // 512, 513..515 switch sequence
	gpsV2Total      = gpsV2Multi - gpsV2MultiMinus + 6

	gpsV2ZeroSame     = 0
	gpsV2ZeroFits     = 1
	gpsV2ZeroNew      = 2 // 3..5 switch sequence
	gpsV2ZeroSymbols  = 6
	gpsV2Sequences    = 4
	gpsV2SequenceMask = gpsV2Sequences - 1
)

var gpsTimeV2Options = intcomp.Options{Bits: 32, Contexts: 9}

// gpsTime11V2 tracks up to four interleaved time sequences, such as the
// pulses of several scanners merged into one file.
type gpsTime11V2 struct {
	multi    *arithcode.SymbolModel
	zeroDiff *arithcode.SymbolModel

	last, next int
	times      [gpsV2Sequences]int64
	diffs      [gpsV2Sequences]int32
	extremes   [gpsV2Sequences]int32
}

func newGPSTime11V2() gpsTime11V2 {
	return gpsTime11V2{
		multi:    arithcode.NewSymbolModel(gpsV2Total),
		zeroDiff: arithcode.NewSymbolModel(gpsV2ZeroSymbols),
	}
}

func (s *gpsTime11V2) init(p *las.Point) {
	s.last, s.next = 0, 0
	s.times = [gpsV2Sequences]int64{int64(math.Float64bits(p.GPSTime))}
	s.diffs = [gpsV2Sequences]int32{}
	s.extremes = [gpsV2Sequences]int32{}
	s.multi.Init()
	s.zeroDiff.Init()
}

func (s *gpsTime11V2) countExtreme(diff int32) {
	s.extremes[s.last]++
	if s.extremes[s.last] > 3 {
		s.diffs[s.last] = diff
		s.extremes[s.last] = 0
	}
}

// otherSequence returns the distance 1..3 to another sequence whose time is
// within 32 bits of t, or 0 when there is none.
func (s *gpsTime11V2) otherSequence(t int64) int {
	for i := 1; i < gpsV2Sequences; i++ {
		if fits32(t - s.times[(s.last+i)&gpsV2SequenceMask]) {
			return i
		}
	}
	return 0
}

// startSequence makes the next slot current with a zero difference.
func (s *gpsTime11V2) startSequence() {
	s.next = (s.next + 1) & gpsV2SequenceMask
	s.last = s.next
	s.diffs[s.last] = 0
	s.extremes[s.last] = 0
}

type gpsTime11V2Encoder struct {
	gpsTime11V2
	enc *arithcode.Encoder
	ic  *intcomp.Compressor
}

func newGPSTime11V2Encoder(enc *arithcode.Encoder, _ las.Item) Encoder {
	return &gpsTime11V2Encoder{
		gpsTime11V2: newGPSTime11V2(),
		enc:         enc,
		ic:          intcomp.NewCompressor(enc, gpsTimeV2Options),
	}
}

func (c *gpsTime11V2Encoder) Init(p *las.Point) {
	c.ic.Init()
	c.init(p)
}

// Encode codes the time against the current sequence. A switch to another
// sequence emits a switch symbol and codes the time again against that
// sequence, which then always fits.
func (c *gpsTime11V2Encoder) Encode(p *las.Point) {
	this := int64(math.Float64bits(p.GPSTime))
	for !c.encode(this) {
	}
}

// encode reports false when it switched sequences and the time still
// needs to be coded.
func (c *gpsTime11V2Encoder) encode(this int64) bool {
	lastTime := c.times[c.last]
	lastDiff := c.diffs[c.last]

	if lastDiff == 0 {
		if this == lastTime {
			c.enc.EncodeSymbol(c.zeroDiff, gpsV2ZeroSame)
			return true
		}
		diff64 := this - lastTime
		if fits32(diff64) {
			c.enc.EncodeSymbol(c.zeroDiff, gpsV2ZeroFits)
			c.ic.Compress(0, int32(diff64), 0)
			c.diffs[c.last] = int32(diff64)
			c.extremes[c.last] = 0
		} else {
			if i := c.otherSequence(this); i != 0 {
				c.enc.EncodeSymbol(c.zeroDiff, uint32(gpsV2ZeroNew+i))
				c.last = (c.last + i) & gpsV2SequenceMask
				return false
			}
			c.enc.EncodeSymbol(c.zeroDiff, gpsV2ZeroNew)
			c.encodeFull(lastTime, this)
		}
		c.times[c.last] = this
		return true
	}

	if this == lastTime {
		c.enc.EncodeSymbol(c.multi, gpsV2Unchanged)
		return true
	}

	diff64 := this - lastTime
	if !fits32(diff64) {
		if i := c.otherSequence(this); i != 0 {
			c.enc.EncodeSymbol(c.multi, uint32(gpsV2CodeFull+i))
			c.last = (c.last + i) & gpsV2SequenceMask
			return false
		}
		c.enc.EncodeSymbol(c.multi, gpsV2CodeFull)
		c.encodeFull(lastTime, this)
		c.times[c.last] = this
		return true
	}

	diff := int32(diff64)
	multi := quantize(float32(diff) / float32(lastDiff))
	switch {
	case multi == 1:
		c.enc.EncodeSymbol(c.multi, 1)
		c.ic.Compress(lastDiff, diff, 1)
		c.extremes[c.last] = 0
	case multi > 0 && multi < gpsV2Multi:
		m := int32(multi)
		c.enc.EncodeSymbol(c.multi, uint32(m))
		if m < 10 {
			c.ic.Compress(m*lastDiff, diff, 2)
		} else {
			c.ic.Compress(m*lastDiff, diff, 3)
		}
	case multi > 0:
		c.enc.EncodeSymbol(c.multi, gpsV2Multi)
		c.ic.Compress(gpsV2Multi*lastDiff, diff, 4)
		c.countExtreme(diff)
	case multi < 0 && multi > gpsV2MultiMinus:
		m := int32(multi)
		c.enc.EncodeSymbol(c.multi, uint32(gpsV2Multi-m))
		c.ic.Compress(m*lastDiff, diff, 5)
	case multi < 0:
		c.enc.EncodeSymbol(c.multi, gpsV2Multi-gpsV2MultiMinus)
		c.ic.Compress(gpsV2MultiMinus*lastDiff, diff, 6)
		c.countExtreme(diff)
	default:
		c.enc.EncodeSymbol(c.multi, 0)
		c.ic.Compress(0, diff, 7)
		c.countExtreme(diff)
	}
	c.times[c.last] = this
	return true
}

// encodeFull starts a new sequence at this: the high half is predicted from
// the previous sequence, the low half is written raw.
func (c *gpsTime11V2Encoder) encodeFull(lastTime, this int64) {
	c.ic.Compress(int32(uint64(lastTime)>>32), int32(uint64(this)>>32), 8)
	c.enc.WriteInt(uint32(this))
	c.startSequence()
}

type gpsTime11V2Decoder struct {
	gpsTime11V2
	dec *arithcode.Decoder
	ic  *intcomp.Decompressor
}

func newGPSTime11V2Decoder(dec *arithcode.Decoder, _ las.Item) Decoder {
	return &gpsTime11V2Decoder{
		gpsTime11V2: newGPSTime11V2(),
		dec:         dec,
		ic:          intcomp.NewDecompressor(dec, gpsTimeV2Options),
	}
}

func (c *gpsTime11V2Decoder) Init(p *las.Point) {
	c.ic.Init()
	c.init(p)
}

func (c *gpsTime11V2Decoder) Decode(p *las.Point) {
	for !c.decode() {
	}
	p.GPSTime = math.Float64frombits(uint64(c.times[c.last]))
}

func (c *gpsTime11V2Decoder) decode() bool {
	if c.diffs[c.last] == 0 {
		sym := c.dec.DecodeSymbol(c.zeroDiff)
		switch {
		case sym == gpsV2ZeroFits:
			c.diffs[c.last] = c.ic.Decompress(0, 0)
			c.times[c.last] += int64(c.diffs[c.last])
			c.extremes[c.last] = 0
		case sym == gpsV2ZeroNew:
			c.decodeFull()
		case sym > gpsV2ZeroNew:
			c.last = (c.last + int(sym-gpsV2ZeroNew)) & gpsV2SequenceMask
			return false
		}
		return true
	}

	lastDiff := c.diffs[c.last]
	sym := c.dec.DecodeSymbol(c.multi)
	switch {
	case sym == 1:
		c.times[c.last] += int64(c.ic.Decompress(lastDiff, 1))
		c.extremes[c.last] = 0
	case sym < gpsV2Unchanged:
		var diff int32
		switch {
		case sym == 0:
			diff = c.ic.Decompress(0, 7)
			c.countExtreme(diff)
		case sym < 10:
			diff = c.ic.Decompress(int32(sym)*lastDiff, 2)
		case sym < gpsV2Multi:
			diff = c.ic.Decompress(int32(sym)*lastDiff, 3)
		case sym == gpsV2Multi:
			diff = c.ic.Decompress(gpsV2Multi*lastDiff, 4)
			c.countExtreme(diff)
		default:
			m := gpsV2Multi - int32(sym)
			if m > gpsV2MultiMinus {
				diff = c.ic.Decompress(m*lastDiff, 5)
			} else {
				diff = c.ic.Decompress(gpsV2MultiMinus*lastDiff, 6)
				c.countExtreme(diff)
			}
		}
		c.times[c.last] += int64(diff)
	case sym == gpsV2CodeFull:
		c.decodeFull()
	case sym > gpsV2CodeFull:
		c.last = (c.last + int(sym-gpsV2CodeFull)) & gpsV2SequenceMask
		return false
	}
	return true
}

func (c *gpsTime11V2Decoder) decodeFull() {
	high := c.ic.Decompress(int32(uint64(c.times[c.last])>>32), 8)
	low := c.dec.ReadInt()
	c.startSequence()
	c.times[c.last] = int64(uint64(uint32(high))<<32 | uint64(low))
}

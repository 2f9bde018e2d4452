// Package intcomp codes integers as residuals against a prediction.
//
// A residual is folded into the configured range, classified by its bit
// length k, and coded as k plus the position of the residual inside its
// 2^k sized bucket. Both steps use adaptive models, so residuals that are
// repeatedly small cost very little.
package intcomp

import (
	"math"

	"github.com/egonelbre/exp-laz-compression/arithcode"
)

// Options configures the shape of a compressor. The encoding and decoding
// side must use identical options.
type Options struct {
	// Bits is the width of the coded values, 1..32.
	Bits uint32
	// Contexts is the number of independent models for k.
	Contexts uint32
	// BitsHigh bounds the size of the bucket models; larger buckets code
	// their low bits raw.
	BitsHigh uint32
	// Range overrides Bits for fields whose value range is not a power of two.
	Range uint32
}

// DefaultOptions returns 16-bit values with a single context.
func DefaultOptions() Options {
	return Options{Bits: 16, Contexts: 1, BitsHigh: 8}
}

// shape holds the values derived from Options and the models shared by
// Compressor and Decompressor.
type shape struct {
	contexts  uint32
	bitsHigh  uint32
	corrBits  uint32
	corrRange uint32
	corrMin   int32
	corrMax   int32

	k uint32

	kModels     []*arithcode.SymbolModel // per context
	zeroOrOne   *arithcode.BitModel      // k == 0
	bucketModel []*arithcode.SymbolModel // indexed by k, [0] unused
}

func newShape(opts Options) shape {
	if opts.Contexts == 0 {
		opts.Contexts = 1
	}
	if opts.BitsHigh == 0 {
		opts.BitsHigh = 8
	}

	s := shape{contexts: opts.Contexts, bitsHigh: opts.BitsHigh}
	switch {
	case opts.Range != 0:
		s.corrRange = opts.Range
		for r := opts.Range; r != 0; r >>= 1 {
			s.corrBits++
		}
		if s.corrRange == 1<<(s.corrBits-1) {
			s.corrBits--
		}
		s.corrMin = -int32(s.corrRange / 2)
		s.corrMax = s.corrMin + int32(s.corrRange-1)
	case opts.Bits > 0 && opts.Bits < 32:
		s.corrBits = opts.Bits
		s.corrRange = 1 << opts.Bits
		s.corrMin = -int32(s.corrRange / 2)
		s.corrMax = s.corrMin + int32(s.corrRange-1)
	default:
		s.corrBits = 32
		s.corrRange = 0
		s.corrMin = math.MinInt32
		s.corrMax = math.MaxInt32
	}

	s.kModels = make([]*arithcode.SymbolModel, s.contexts)
	for i := range s.kModels {
		s.kModels[i] = arithcode.NewSymbolModel(int(s.corrBits + 1))
	}
	s.zeroOrOne = arithcode.NewBitModel()
	s.bucketModel = make([]*arithcode.SymbolModel, s.corrBits+1)
	for i := uint32(1); i <= s.corrBits; i++ {
		if i <= s.bitsHigh {
			s.bucketModel[i] = arithcode.NewSymbolModel(1 << i)
		} else {
			s.bucketModel[i] = arithcode.NewSymbolModel(1 << s.bitsHigh)
		}
	}
	return s
}

// Init resets every model. It is called at the start of each chunk.
func (s *shape) Init() {
	for _, m := range s.kModels {
		m.Init()
	}
	s.zeroOrOne.Init()
	for _, m := range s.bucketModel[1:] {
		m.Init()
	}
	s.k = 0
}

// K returns the bit length class of the last coded residual. Callers use it
// to pick contexts for correlated fields.
func (s *shape) K() uint32 { return s.k }

// Compressor codes values against predictions through an Encoder.
type Compressor struct {
	shape
	enc *arithcode.Encoder
}

// NewCompressor creates a compressor writing through enc.
func NewCompressor(enc *arithcode.Encoder, opts Options) *Compressor {
	return &Compressor{shape: newShape(opts), enc: enc}
}

// Compress codes real as a residual from pred using the models of context.
func (c *Compressor) Compress(pred, real int32, context uint32) {
	corr := real - pred
	if corr < c.corrMin {
		corr += int32(c.corrRange)
	} else if corr > c.corrMax {
		corr -= int32(c.corrRange)
	}
	c.writeCorrector(corr, c.kModels[context])
}

func (c *Compressor) writeCorrector(corr int32, kModel *arithcode.SymbolModel) {
	// find the tightest interval [-(2^k - 1), 2^k] that contains corr
	var c1 uint32
	if corr <= 0 {
		c1 = uint32(-corr)
	} else {
		c1 = uint32(corr - 1)
	}
	c.k = 0
	for c1 != 0 {
		c1 >>= 1
		c.k++
	}

	c.enc.EncodeSymbol(kModel, c.k)

	if c.k == 0 {
		// corr is 0 or 1
		c.enc.EncodeBit(c.zeroOrOne, uint32(corr))
		return
	}
	if c.k == 32 {
		// only corrMin lands here and k alone identifies it
		return
	}

	// translate corr into [0, 2^k - 1]
	if corr < 0 {
		corr += 1<<c.k - 1
	} else {
		corr--
	}
	if c.k <= c.bitsHigh {
		c.enc.EncodeSymbol(c.bucketModel[c.k], uint32(corr))
		return
	}

	// model the high bits, write the low bits raw
	k1 := c.k - c.bitsHigh
	low := uint32(corr) & (1<<k1 - 1)
	high := uint32(corr) >> k1
	c.enc.EncodeSymbol(c.bucketModel[c.k], high)
	c.enc.WriteBits(k1, low)
}

// Decompressor reverses Compressor through a Decoder.
type Decompressor struct {
	shape
	dec *arithcode.Decoder
}

// NewDecompressor creates a decompressor reading through dec.
func NewDecompressor(dec *arithcode.Decoder, opts Options) *Decompressor {
	return &Decompressor{shape: newShape(opts), dec: dec}
}

// Decompress returns the value coded against pred in context.
func (d *Decompressor) Decompress(pred int32, context uint32) int32 {
	real := pred + d.readCorrector(d.kModels[context])
	if real < 0 {
		real += int32(d.corrRange)
	} else if uint32(real) >= d.corrRange && d.corrRange != 0 {
		real -= int32(d.corrRange)
	}
	return real
}

func (d *Decompressor) readCorrector(kModel *arithcode.SymbolModel) int32 {
	d.k = d.dec.DecodeSymbol(kModel)
	if d.k == 0 {
		return int32(d.dec.DecodeBit(d.zeroOrOne))
	}
	if d.k >= 32 {
		return d.corrMin
	}

	var corr int32
	if d.k <= d.bitsHigh {
		corr = int32(d.dec.DecodeSymbol(d.bucketModel[d.k]))
	} else {
		k1 := d.k - d.bitsHigh
		high := d.dec.DecodeSymbol(d.bucketModel[d.k])
		low := d.dec.ReadBits(k1)
		corr = int32(high<<k1 | low)
	}

	// translate corr back into its interval
	if corr >= 1<<(d.k-1) {
		corr++
	} else {
		corr -= 1<<d.k - 1
	}
	return corr
}

// Package arithcode implements the adaptive range coder used by LAZ point
// compression together with its binary and n-ary probability models.
//
// The coder keeps a 32-bit interval [base, base+length). Every operation that
// narrows the interval, and every model update, is part of the wire format:
// an encoder and a decoder stay in sync only when both see exactly the same
// sequence of model operations.
package arithcode

const (
	minLength uint32 = 0x01000000 // renormalize when length drops below 2^24
	maxLength uint32 = 0xFFFFFFFF

	bitLengthShift = 13 // BitModel probability precision
	bitMaxCount    = 1 << bitLengthShift

	symbolLengthShift = 15 // SymbolModel distribution precision
	symbolMaxCount    = 1 << symbolLengthShift

	// MinSymbols and MaxSymbols bound the alphabet size of a SymbolModel.
	MinSymbols = 2
	MaxSymbols = 1 << 11
)

// BitModel is an adaptive probability for a binary decision.
type BitModel struct {
	bit0Prob        uint32 // probability of 0 scaled to 2^13
	bit0Count       uint32
	bitCount        uint32
	updateCycle     uint32
	bitsUntilUpdate uint32
}

// NewBitModel returns an equiprobable bit model.
func NewBitModel() *BitModel {
	m := &BitModel{}
	m.Init()
	return m
}

// Init resets the model to equiprobable with frequent updates.
func (m *BitModel) Init() {
	m.bit0Count = 1
	m.bitCount = 2
	m.bit0Prob = 1 << (bitLengthShift - 1)
	m.updateCycle = 4
	m.bitsUntilUpdate = 4
}

func (m *BitModel) update() {
	// halve counts when the threshold is reached
	m.bitCount += m.updateCycle
	if m.bitCount > bitMaxCount {
		m.bitCount = (m.bitCount + 1) >> 1
		m.bit0Count = (m.bit0Count + 1) >> 1
		if m.bit0Count == m.bitCount {
			m.bitCount++
		}
	}

	scale := uint32(0x80000000) / m.bitCount
	m.bit0Prob = (m.bit0Count * scale) >> (31 - bitLengthShift)

	m.updateCycle = (5 * m.updateCycle) >> 2
	if m.updateCycle > 64 {
		m.updateCycle = 64
	}
	m.bitsUntilUpdate = m.updateCycle
}

// SymbolModel is an adaptive cumulative distribution over an alphabet of
// 2..2048 symbols.
//
// The decoder lookup table for alphabets larger than 16 symbols is only
// built once the model is first used for decoding, so encoder-side models
// never pay for it. The distribution itself is identical on both sides.
type SymbolModel struct {
	symbols    uint32
	lastSymbol uint32

	distribution []uint32
	symbolCount  []uint32

	decoderTable []uint32
	tableSize    uint32
	tableShift   uint32

	totalCount         uint32
	updateCycle        uint32
	symbolsUntilUpdate uint32
}

// NewSymbolModel returns an initialized model for the given alphabet size.
// It panics when symbols is outside [MinSymbols, MaxSymbols].
func NewSymbolModel(symbols int) *SymbolModel {
	if symbols < MinSymbols || symbols > MaxSymbols {
		panic("arithcode: symbol model alphabet size out of range")
	}
	m := &SymbolModel{
		symbols:      uint32(symbols),
		lastSymbol:   uint32(symbols - 1),
		distribution: make([]uint32, symbols),
		symbolCount:  make([]uint32, symbols),
	}
	m.Init()
	return m
}

// SymbolCount returns the alphabet size.
func (m *SymbolModel) SymbolCount() int { return int(m.symbols) }

// Init resets all symbol counts to one.
func (m *SymbolModel) Init() {
	m.totalCount = 0
	m.updateCycle = m.symbols
	for k := range m.symbolCount {
		m.symbolCount[k] = 1
	}

	m.update()
	m.updateCycle = (m.symbols + 6) >> 1
	m.symbolsUntilUpdate = m.updateCycle
}

func (m *SymbolModel) update() {
	// halve counts when the threshold is reached
	m.totalCount += m.updateCycle
	if m.totalCount > symbolMaxCount {
		m.totalCount = 0
		for n := range m.symbolCount {
			m.symbolCount[n] = (m.symbolCount[n] + 1) >> 1
			m.totalCount += m.symbolCount[n]
		}
	}

	var sum uint32
	scale := uint32(0x80000000) / m.totalCount
	for k := range m.distribution {
		m.distribution[k] = (scale * sum) >> (31 - symbolLengthShift)
		sum += m.symbolCount[k]
	}
	if m.decoderTable != nil {
		m.fillDecoderTable()
	}

	m.updateCycle = (5 * m.updateCycle) >> 2
	maxCycle := (m.symbols + 6) << 3
	if m.updateCycle > maxCycle {
		m.updateCycle = maxCycle
	}
	m.symbolsUntilUpdate = m.updateCycle
}

// prepareDecoding allocates the lookup table the first time a large model is
// used by a decoder.
func (m *SymbolModel) prepareDecoding() {
	if m.symbols <= 16 || m.decoderTable != nil {
		return
	}
	tableBits := uint32(3)
	for m.symbols > 1<<(tableBits+2) {
		tableBits++
	}
	m.tableSize = 1 << tableBits
	m.tableShift = symbolLengthShift - tableBits
	m.decoderTable = make([]uint32, m.tableSize+2)
	m.fillDecoderTable()
}

func (m *SymbolModel) fillDecoderTable() {
	var s uint32
	for k := uint32(0); k < m.symbols; k++ {
		w := m.distribution[k] >> m.tableShift
		for s < w {
			s++
			m.decoderTable[s] = k - 1
		}
	}
	m.decoderTable[0] = 0
	for s <= m.tableSize {
		s++
		m.decoderTable[s] = m.symbols - 1
	}
}

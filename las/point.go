// Package las describes LAS point records and the items they are built from.
package las

// Point is a single LAS point record. Which fields are meaningful depends
// on the items of the point format; unused fields are left untouched by
// the codecs.
type Point struct {
	X, Y, Z int32

	Intensity uint16
	// Flags packs the return number (bits 0-2), the number of returns
	// (bits 3-5), the scan direction flag (bit 6) and the edge of flight
	// line flag (bit 7).
	Flags          uint8
	Classification uint8
	ScanAngleRank  int8
	UserData       uint8
	PointSourceID  uint16

	GPSTime float64

	RGB [3]uint16
	NIR uint16

	Wavepacket Wavepacket

	ExtraBytes []byte
}

// Wavepacket references a waveform record of the point.
type Wavepacket struct {
	Index       uint8
	Offset      uint64
	PacketSize  uint32
	ReturnPoint float32
	X, Y, Z     float32
}

// ReturnNumber returns the return number, 0..7.
func (p *Point) ReturnNumber() uint8 { return p.Flags & 7 }

// NumberOfReturns returns the number of returns of the pulse, 0..7.
func (p *Point) NumberOfReturns() uint8 { return p.Flags >> 3 & 7 }

// ScanDirectionFlag returns the scan direction bit.
func (p *Point) ScanDirectionFlag() uint8 { return p.Flags >> 6 & 1 }

// EdgeOfFlightLine returns the edge of flight line bit.
func (p *Point) EdgeOfFlightLine() uint8 { return p.Flags >> 7 }

// SetReturns sets the return number and number of returns; both are
// truncated to three bits.
func (p *Point) SetReturns(number, count uint8) {
	p.Flags = p.Flags&0xC0 | count&7<<3 | number&7
}

// SetScanFlags sets the scan direction and edge of flight line bits.
func (p *Point) SetScanFlags(scanDirection, edge bool) {
	p.Flags &= 0x3F
	if scanDirection {
		p.Flags |= 1 << 6
	}
	if edge {
		p.Flags |= 1 << 7
	}
}

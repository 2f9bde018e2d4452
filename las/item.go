package las

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ItemType identifies a group of fields inside a point record.
// The numbering follows the LASzip item descriptor.
type ItemType uint16

// Item types.
const (
	ItemByte         ItemType = 0
	ItemPoint10      ItemType = 6
	ItemGPSTime11    ItemType = 7
	ItemRGB12        ItemType = 8
	ItemWavepacket13 ItemType = 9
	ItemRGBNIR14     ItemType = 11
)

var itemNames = map[ItemType]string{
	ItemByte:         "BYTE",
	ItemPoint10:      "POINT10",
	ItemGPSTime11:    "GPSTIME11",
	ItemRGB12:        "RGB12",
	ItemWavepacket13: "WAVEPACKET13",
	ItemRGBNIR14:     "RGBNIR14",
}

func (t ItemType) String() string {
	if name, ok := itemNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ItemType(%d)", uint16(t))
}

// Fixed item sizes in bytes.
const (
	Point10Size      = 20
	GPSTime11Size    = 8
	RGB12Size        = 6
	Wavepacket13Size = 29
	RGBNIR14Size     = 8
)

// Item is one entry of a point format descriptor.
type Item struct {
	Type    ItemType
	Size    uint16
	Version uint16
}

func (it Item) String() string {
	return fmt.Sprintf("%v[%d]v%d", it.Type, it.Size, it.Version)
}

var (
	ErrUnknownItem       = errors.New("las: unknown item type")
	ErrItemSize          = errors.New("las: item size does not match type")
	ErrUnknownFormat     = errors.New("las: unknown point data format")
	ErrRecordLength      = errors.New("las: record length too short for point format")
	ErrExtraBytesMissing = errors.New("las: point has fewer extra bytes than the item")
)

// Validate checks that the item has a known type and a matching size.
func (it Item) Validate() error {
	var want uint16
	switch it.Type {
	case ItemByte:
		if it.Size == 0 {
			return fmt.Errorf("%v: %w", it, ErrItemSize)
		}
		return nil
	case ItemPoint10:
		want = Point10Size
	case ItemGPSTime11:
		want = GPSTime11Size
	case ItemRGB12:
		want = RGB12Size
	case ItemWavepacket13:
		want = Wavepacket13Size
	case ItemRGBNIR14:
		want = RGBNIR14Size
	default:
		return fmt.Errorf("%v: %w", it, ErrUnknownItem)
	}
	if it.Size != want {
		return fmt.Errorf("%v: %w", it, ErrItemSize)
	}
	return nil
}

// RecordSize returns the total number of bytes of a record made of items.
func RecordSize(items []Item) int {
	n := 0
	for _, it := range items {
		n += int(it.Size)
	}
	return n
}

// Items returns the item descriptor of a LAS 1.0-1.3 point data format
// (0..5) for records of recordLength bytes. Bytes beyond the standard
// fields become a single BYTE item. Wavepacket items are only defined at
// version 1, so version is capped for them.
func Items(format uint8, recordLength uint16, version uint16) ([]Item, error) {
	var types []ItemType
	switch format {
	case 0:
		types = []ItemType{ItemPoint10}
	case 1:
		types = []ItemType{ItemPoint10, ItemGPSTime11}
	case 2:
		types = []ItemType{ItemPoint10, ItemRGB12}
	case 3:
		types = []ItemType{ItemPoint10, ItemGPSTime11, ItemRGB12}
	case 4:
		types = []ItemType{ItemPoint10, ItemGPSTime11, ItemWavepacket13}
	case 5:
		types = []ItemType{ItemPoint10, ItemGPSTime11, ItemRGB12, ItemWavepacket13}
	default:
		return nil, fmt.Errorf("format %d: %w", format, ErrUnknownFormat)
	}

	items := make([]Item, 0, len(types)+1)
	size := 0
	for _, t := range types {
		it := Item{Type: t, Version: version}
		switch t {
		case ItemPoint10:
			it.Size = Point10Size
		case ItemGPSTime11:
			it.Size = GPSTime11Size
		case ItemRGB12:
			it.Size = RGB12Size
		case ItemWavepacket13:
			it.Size = Wavepacket13Size
			if version > 1 {
				it.Version = 1
			}
		}
		size += int(it.Size)
		items = append(items, it)
	}

	if int(recordLength) < size {
		return nil, fmt.Errorf("format %d with %d bytes: %w", format, recordLength, ErrRecordLength)
	}
	if extra := int(recordLength) - size; extra > 0 {
		items = append(items, Item{Type: ItemByte, Size: uint16(extra), Version: version})
	}
	return items, nil
}

// Pack writes the item's fields of p into b in LAS byte order.
// b must hold at least it.Size bytes.
func (it Item) Pack(p *Point, b []byte) error {
	b = b[:it.Size]
	switch it.Type {
	case ItemPoint10:
		binary.LittleEndian.PutUint32(b[0:], uint32(p.X))
		binary.LittleEndian.PutUint32(b[4:], uint32(p.Y))
		binary.LittleEndian.PutUint32(b[8:], uint32(p.Z))
		binary.LittleEndian.PutUint16(b[12:], p.Intensity)
		b[14] = p.Flags
		b[15] = p.Classification
		b[16] = uint8(p.ScanAngleRank)
		b[17] = p.UserData
		binary.LittleEndian.PutUint16(b[18:], p.PointSourceID)
	case ItemGPSTime11:
		binary.LittleEndian.PutUint64(b, math.Float64bits(p.GPSTime))
	case ItemRGB12:
		for i, c := range p.RGB {
			binary.LittleEndian.PutUint16(b[2*i:], c)
		}
	case ItemRGBNIR14:
		for i, c := range p.RGB {
			binary.LittleEndian.PutUint16(b[2*i:], c)
		}
		binary.LittleEndian.PutUint16(b[6:], p.NIR)
	case ItemWavepacket13:
		w := &p.Wavepacket
		b[0] = w.Index
		binary.LittleEndian.PutUint64(b[1:], w.Offset)
		binary.LittleEndian.PutUint32(b[9:], w.PacketSize)
		binary.LittleEndian.PutUint32(b[13:], math.Float32bits(w.ReturnPoint))
		binary.LittleEndian.PutUint32(b[17:], math.Float32bits(w.X))
		binary.LittleEndian.PutUint32(b[21:], math.Float32bits(w.Y))
		binary.LittleEndian.PutUint32(b[25:], math.Float32bits(w.Z))
	case ItemByte:
		if len(p.ExtraBytes) < len(b) {
			return ErrExtraBytesMissing
		}
		copy(b, p.ExtraBytes)
	default:
		return fmt.Errorf("%v: %w", it, ErrUnknownItem)
	}
	return nil
}

// Unpack reads the item's fields of p from b.
func (it Item) Unpack(p *Point, b []byte) error {
	b = b[:it.Size]
	switch it.Type {
	case ItemPoint10:
		p.X = int32(binary.LittleEndian.Uint32(b[0:]))
		p.Y = int32(binary.LittleEndian.Uint32(b[4:]))
		p.Z = int32(binary.LittleEndian.Uint32(b[8:]))
		p.Intensity = binary.LittleEndian.Uint16(b[12:])
		p.Flags = b[14]
		p.Classification = b[15]
		p.ScanAngleRank = int8(b[16])
		p.UserData = b[17]
		p.PointSourceID = binary.LittleEndian.Uint16(b[18:])
	case ItemGPSTime11:
		p.GPSTime = math.Float64frombits(binary.LittleEndian.Uint64(b))
	case ItemRGB12:
		for i := range p.RGB {
			p.RGB[i] = binary.LittleEndian.Uint16(b[2*i:])
		}
	case ItemRGBNIR14:
		for i := range p.RGB {
			p.RGB[i] = binary.LittleEndian.Uint16(b[2*i:])
		}
		p.NIR = binary.LittleEndian.Uint16(b[6:])
	case ItemWavepacket13:
		w := &p.Wavepacket
		w.Index = b[0]
		w.Offset = binary.LittleEndian.Uint64(b[1:])
		w.PacketSize = binary.LittleEndian.Uint32(b[9:])
		w.ReturnPoint = math.Float32frombits(binary.LittleEndian.Uint32(b[13:]))
		w.X = math.Float32frombits(binary.LittleEndian.Uint32(b[17:]))
		w.Y = math.Float32frombits(binary.LittleEndian.Uint32(b[21:]))
		w.Z = math.Float32frombits(binary.LittleEndian.Uint32(b[25:]))
	case ItemByte:
		p.ExtraBytes = GrowExtraBytes(p.ExtraBytes, len(b))
		copy(p.ExtraBytes, b)
	default:
		return fmt.Errorf("%v: %w", it, ErrUnknownItem)
	}
	return nil
}

// GrowExtraBytes returns b resized to n bytes, reusing its storage when
// possible.
func GrowExtraBytes(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	grown := make([]byte, n)
	copy(grown, b)
	return grown
}

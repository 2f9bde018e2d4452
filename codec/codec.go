// Package codec implements the per-item predictive codecs of LAZ point
// compression.
//
// Every codec keeps the last point it has seen. Init seeds that state from
// the first point of a chunk, which the pipeline stores raw; afterwards
// each point is coded against the state and then becomes the new state.
package codec

import (
	"errors"
	"fmt"

	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/las"
)

// ErrUnsupportedItem is returned for item type and version combinations
// that have no codec.
var ErrUnsupportedItem = errors.New("codec: unsupported item type or version")

// Encoder compresses one item of each point.
type Encoder interface {
	// Init seeds the codec state from the first point of a chunk.
	Init(p *las.Point)
	// Encode codes p against the state and updates the state.
	Encode(p *las.Point)
}

// Decoder decompresses one item of each point.
type Decoder interface {
	// Init seeds the codec state from the first point of a chunk.
	Init(p *las.Point)
	// Decode fills the item's fields of p and updates the state.
	Decode(p *las.Point)
}

// Version describes the codec of one item type at one version.
type Version struct {
	Type        las.ItemType
	Version     uint16
	Description string
	NewEncoder  func(enc *arithcode.Encoder, item las.Item) Encoder
	NewDecoder  func(dec *arithcode.Decoder, item las.Item) Decoder
}

// Versions is a table of all compressed item codecs.
var Versions = []Version{
	{
		Type:        las.ItemPoint10,
		Version:     1,
		Description: "3-sample median xy, z from last point, changed-flags mask",
		NewEncoder:  newPoint10V1Encoder,
		NewDecoder:  newPoint10V1Decoder,
	},
	{
		Type:        las.ItemPoint10,
		Version:     2,
		Description: "5-sample median per return class, z per return level",
		NewEncoder:  newPoint10V2Encoder,
		NewDecoder:  newPoint10V2Decoder,
	},
	{
		Type:        las.ItemGPSTime11,
		Version:     1,
		Description: "single time sequence with multiplier prediction",
		NewEncoder:  newGPSTime11V1Encoder,
		NewDecoder:  newGPSTime11V1Decoder,
	},
	{
		Type:        las.ItemGPSTime11,
		Version:     2,
		Description: "four interleaved time sequences with multiplier prediction",
		NewEncoder:  newGPSTime11V2Encoder,
		NewDecoder:  newGPSTime11V2Decoder,
	},
	{
		Type:        las.ItemRGB12,
		Version:     1,
		Description: "per byte changed mask and residuals",
		NewEncoder:  newRGB12V1Encoder,
		NewDecoder:  newRGB12V1Decoder,
	},
	{
		Type:        las.ItemRGB12,
		Version:     2,
		Description: "cross channel delta prediction",
		NewEncoder:  newRGB12V2Encoder,
		NewDecoder:  newRGB12V2Decoder,
	},
	{
		Type:        las.ItemWavepacket13,
		Version:     1,
		Description: "offset continuation and residual fields",
		NewEncoder:  newWavepacket13V1Encoder,
		NewDecoder:  newWavepacket13V1Decoder,
	},
	{
		Type:        las.ItemWavepacket13,
		Version:     2,
		Description: "same coding as version 1",
		NewEncoder:  newWavepacket13V1Encoder,
		NewDecoder:  newWavepacket13V1Decoder,
	},
	{
		Type:        las.ItemByte,
		Version:     1,
		Description: "integer residual per byte",
		NewEncoder:  newByteV1Encoder,
		NewDecoder:  newByteV1Decoder,
	},
	{
		Type:        las.ItemByte,
		Version:     2,
		Description: "folded byte delta per position",
		NewEncoder:  newByteV2Encoder,
		NewDecoder:  newByteV2Decoder,
	},
}

// Lookup returns the codec for item.
func Lookup(item las.Item) (*Version, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	for i := range Versions {
		v := &Versions[i]
		if v.Type == item.Type && v.Version == item.Version {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%v: %w", item, ErrUnsupportedItem)
}

// NewEncoder creates the compressed encoder for item.
func NewEncoder(enc *arithcode.Encoder, item las.Item) (Encoder, error) {
	v, err := Lookup(item)
	if err != nil {
		return nil, err
	}
	return v.NewEncoder(enc, item), nil
}

// NewDecoder creates the compressed decoder for item.
func NewDecoder(dec *arithcode.Decoder, item las.Item) (Decoder, error) {
	v, err := Lookup(item)
	if err != nil {
		return nil, err
	}
	return v.NewDecoder(dec, item), nil
}

// byteModels is a set of 256-symbol models selected by the previous value
// of a byte. Models are created on first use.
type byteModels [256]*arithcode.SymbolModel

func (m *byteModels) get(context uint8) *arithcode.SymbolModel {
	if m[context] == nil {
		m[context] = arithcode.NewSymbolModel(256)
	}
	return m[context]
}

func (m *byteModels) init() {
	for _, model := range m {
		if model != nil {
			model.Init()
		}
	}
}

// fold maps a byte difference into 0..255.
func fold(n int32) uint32 {
	if n < 0 {
		return uint32(n + 256)
	}
	if n > 255 {
		return uint32(n - 256)
	}
	return uint32(n)
}

func clampByte(n int32) int32 {
	if n <= 0 {
		return 0
	}
	if n >= 255 {
		return 255
	}
	return n
}

// Package lazindex stores the chunk layout of a compressed point stream as
// a small protobuf message, so tools can cache it next to the stream and
// seek without reading the stream's own chunk table.
package lazindex

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/egonelbre/exp-laz-compression/las"
	"github.com/egonelbre/exp-laz-compression/laszip"
)

// ErrInvalid is returned when a decoded index is inconsistent.
var ErrInvalid = errors.New("lazindex: invalid index")

// Index describes the items and chunks of a stream.
type Index struct {
	Items      []las.Item
	Compressor laszip.Compressor
	ChunkSize  uint32
	Chunks     []laszip.ChunkEntry
}

// FromReader returns the index of the chunks known to r.
func FromReader(r *laszip.Reader) *Index {
	opts := r.Options()
	return &Index{
		Items:      append([]las.Item(nil), r.Items()...),
		Compressor: opts.Compressor,
		ChunkSize:  opts.ChunkSize,
		Chunks:     r.ChunkTable(),
	}
}

// FromWriter returns the index of the chunks written by w.
func FromWriter(w *laszip.Writer) *Index {
	opts := w.Options()
	return &Index{
		Items:      append([]las.Item(nil), w.Items()...),
		Compressor: opts.Compressor,
		ChunkSize:  opts.ChunkSize,
		Chunks:     w.ChunkTable(),
	}
}

// Options returns the reader and writer options described by the index.
func (idx *Index) Options() *laszip.Options {
	return &laszip.Options{Compressor: idx.Compressor, ChunkSize: idx.ChunkSize}
}

// Count returns the number of points in all chunks.
func (idx *Index) Count() uint64 {
	var n uint64
	for _, c := range idx.Chunks {
		n += uint64(c.PointCount)
	}
	return n
}

func (idx *Index) message() *dynamicpb.Message {
	msg := dynamicpb.NewMessage(indexMessage)
	fields := indexMessage.Fields()
	itemFields := itemMessage.Fields()

	items := msg.Mutable(fields.ByNumber(indexItems)).List()
	for _, it := range idx.Items {
		m := dynamicpb.NewMessage(itemMessage)
		m.Set(itemFields.ByNumber(itemType), protoreflect.ValueOfUint32(uint32(it.Type)))
		m.Set(itemFields.ByNumber(itemSize), protoreflect.ValueOfUint32(uint32(it.Size)))
		m.Set(itemFields.ByNumber(itemVersion), protoreflect.ValueOfUint32(uint32(it.Version)))
		items.Append(protoreflect.ValueOfMessage(m))
	}

	msg.Set(fields.ByNumber(indexCompressor), protoreflect.ValueOfUint32(uint32(idx.Compressor)))
	msg.Set(fields.ByNumber(indexChunkSize), protoreflect.ValueOfUint32(idx.ChunkSize))

	if len(idx.Chunks) > 0 {
		counts := msg.Mutable(fields.ByNumber(indexPointCounts)).List()
		lengths := msg.Mutable(fields.ByNumber(indexByteLengths)).List()
		for _, c := range idx.Chunks {
			counts.Append(protoreflect.ValueOfUint32(c.PointCount))
			lengths.Append(protoreflect.ValueOfUint32(c.ByteLength))
		}
	}
	return msg
}

// Marshal encodes the index. The encoding is deterministic.
func Marshal(idx *Index) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(idx.message())
}

// MarshalJSON encodes the index as protobuf JSON, for inspection.
func (idx *Index) MarshalJSON() ([]byte, error) {
	return protojson.MarshalOptions{UseProtoNames: true}.Marshal(idx.message())
}

// Unmarshal decodes an index written by Marshal.
func Unmarshal(data []byte) (*Index, error) {
	msg := dynamicpb.NewMessage(indexMessage)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("lazindex: %w", err)
	}
	fields := indexMessage.Fields()
	itemFields := itemMessage.Fields()

	idx := &Index{
		Compressor: laszip.Compressor(msg.Get(fields.ByNumber(indexCompressor)).Uint()),
		ChunkSize:  uint32(msg.Get(fields.ByNumber(indexChunkSize)).Uint()),
	}

	items := msg.Get(fields.ByNumber(indexItems)).List()
	for i := 0; i < items.Len(); i++ {
		m := items.Get(i).Message()
		typ := m.Get(itemFields.ByNumber(itemType)).Uint()
		size := m.Get(itemFields.ByNumber(itemSize)).Uint()
		version := m.Get(itemFields.ByNumber(itemVersion)).Uint()
		if typ > math.MaxUint16 || size > math.MaxUint16 || version > math.MaxUint16 {
			return nil, fmt.Errorf("item %d: field out of range: %w", i, ErrInvalid)
		}
		it := las.Item{
			Type:    las.ItemType(typ),
			Size:    uint16(size),
			Version: uint16(version),
		}
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w: %w", i, ErrInvalid, err)
		}
		idx.Items = append(idx.Items, it)
	}

	counts := msg.Get(fields.ByNumber(indexPointCounts)).List()
	lengths := msg.Get(fields.ByNumber(indexByteLengths)).List()
	if counts.Len() != lengths.Len() {
		return nil, fmt.Errorf("%d point counts for %d chunks: %w", counts.Len(), lengths.Len(), ErrInvalid)
	}
	for i := 0; i < counts.Len(); i++ {
		idx.Chunks = append(idx.Chunks, laszip.ChunkEntry{
			PointCount: uint32(counts.Get(i).Uint()),
			ByteLength: uint32(lengths.Get(i).Uint()),
		})
	}
	return idx, nil
}

package laszip

import (
	"errors"
	"fmt"
	"io"

	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/bytestream"
	"github.com/egonelbre/exp-laz-compression/intcomp"
)

// ChunkEntry describes one chunk of a chunked stream.
type ChunkEntry struct {
	PointCount uint32
	ByteLength uint32
}

const chunkTableVersion = 0

// chunkTableOptions codes point counts in context 0 and byte lengths in
// context 1, each against the previous entry.
var chunkTableOptions = intcomp.Options{Bits: 32, Contexts: 2}

// writeChunkTable writes the table header and the coded entries at the
// current position of out.
func writeChunkTable(out bytestream.Writer, enc *arithcode.Encoder, entries []ChunkEntry) error {
	if err := bytestream.WriteUint32(out, chunkTableVersion); err != nil {
		return err
	}
	if err := bytestream.WriteUint32(out, uint32(len(entries))); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	enc.Init(out)
	ic := intcomp.NewCompressor(enc, chunkTableOptions)
	ic.Init()
	var prev ChunkEntry
	for _, e := range entries {
		ic.Compress(int32(prev.PointCount), int32(e.PointCount), 0)
		ic.Compress(int32(prev.ByteLength), int32(e.ByteLength), 1)
		prev = e
	}
	return enc.Done()
}

// readChunkTable reads a table written by writeChunkTable at the current
// position of in.
func readChunkTable(in bytestream.Reader) ([]ChunkEntry, error) {
	version, err := bytestream.ReadUint32(in)
	if err != nil {
		return nil, fmt.Errorf("chunk table header: %w", eofIsUnexpected(err))
	}
	if version != chunkTableVersion {
		return nil, fmt.Errorf("version %d: %w", version, ErrCorruptChunkTable)
	}
	count, err := bytestream.ReadUint32(in)
	if err != nil {
		return nil, fmt.Errorf("chunk table header: %w", eofIsUnexpected(err))
	}
	if count == 0 {
		return nil, nil
	}

	dec, err := arithcode.NewDecoder(in)
	if err != nil {
		return nil, fmt.Errorf("chunk table: %w", err)
	}
	ic := intcomp.NewDecompressor(dec, chunkTableOptions)
	ic.Init()

	// the count comes from the stream, so grow instead of trusting it
	entries := make([]ChunkEntry, 0, min(count, 1<<16))
	var prev ChunkEntry
	for i := uint32(0); i < count; i++ {
		e := ChunkEntry{
			PointCount: uint32(ic.Decompress(int32(prev.PointCount), 0)),
			ByteLength: uint32(ic.Decompress(int32(prev.ByteLength), 1)),
		}
		if err := dec.Err(); err != nil {
			return nil, fmt.Errorf("chunk table entry %d: %w", i, err)
		}
		if e.PointCount == 0 || e.ByteLength == 0 {
			return nil, fmt.Errorf("chunk %d is empty: %w", i, ErrCorruptChunkTable)
		}
		entries = append(entries, e)
		prev = e
	}
	if err := dec.Done(); err != nil {
		return nil, fmt.Errorf("chunk table: %w", err)
	}
	return entries, nil
}

func eofIsUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

package laszip

import (
	"fmt"

	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/bytestream"
	"github.com/egonelbre/exp-laz-compression/codec"
	"github.com/egonelbre/exp-laz-compression/las"
)

// Writer compresses point records into a bytestream.Writer.
//
// A Writer is not safe for concurrent use. Independent writers share no
// state and may run in parallel.
type Writer struct {
	opts   Options
	format format

	out      bytestream.Writer
	enc      *arithcode.Encoder
	encoders []codec.Encoder
	record   []byte

	tableStart int64 // position of the front offset, -1 when not seekable
	chunkStart int64
	chunkCount uint32
	chunks     []ChunkEntry
	done       bool
}

// NewWriter creates a writer for records made of items.
// Options nil means DefaultOptions().
func NewWriter(items []las.Item, opts *Options) (*Writer, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	f, err := newFormat(items, o)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		opts:   o,
		format: f,
		record: make([]byte, f.size),
	}
	if o.Compressor != CompressorNone {
		w.enc = arithcode.NewEncoder(nil)
		for _, item := range f.items {
			c, err := codec.NewEncoder(w.enc, item)
			if err != nil {
				return nil, err
			}
			w.encoders = append(w.encoders, c)
		}
	}
	return w, nil
}

// Options returns the normalized options of the writer.
func (w *Writer) Options() Options { return w.opts }

// Items returns the item list of the records.
func (w *Writer) Items() []las.Item { return w.format.items }

// Init starts a new stream on out. Chunked streams begin with the
// chunk table offset, which Done fills in when out is seekable.
func (w *Writer) Init(out bytestream.Writer) error {
	w.out = out
	w.chunkCount = 0
	w.chunks = w.chunks[:0]
	w.done = false
	w.tableStart = -1

	if !w.opts.chunked() {
		return nil
	}
	if out.Seekable() {
		w.tableStart = out.Tell()
	}
	if err := bytestream.WriteInt64(out, w.tableStart); err != nil {
		return fmt.Errorf("chunk table offset: %w", err)
	}
	return nil
}

// Write appends p to the stream.
func (w *Writer) Write(p *las.Point) error {
	if w.out == nil || w.done {
		return ErrNotInitialized
	}
	if len(p.ExtraBytes) < w.format.extra {
		return las.ErrExtraBytesMissing
	}

	if w.opts.Compressor == CompressorNone {
		if err := w.format.pack(p, w.record); err != nil {
			return err
		}
		_, err := w.out.Write(w.record)
		return err
	}

	if w.opts.chunked() && !w.opts.variable() && w.chunkCount == w.opts.ChunkSize {
		if err := w.finishChunk(); err != nil {
			return err
		}
	}

	if w.chunkCount == 0 {
		// the first point of a chunk is stored raw and seeds the codecs
		w.chunkStart = w.out.Tell()
		if err := w.format.pack(p, w.record); err != nil {
			return err
		}
		if _, err := w.out.Write(w.record); err != nil {
			return err
		}
		for _, c := range w.encoders {
			c.Init(p)
		}
		w.enc.Init(w.out)
	} else {
		for _, c := range w.encoders {
			c.Encode(p)
		}
	}
	w.chunkCount++
	return w.enc.Err()
}

// Chunk closes the current chunk. It is only allowed with
// VariableChunkSize and does nothing when the chunk is empty.
func (w *Writer) Chunk() error {
	if w.out == nil || w.done {
		return ErrNotInitialized
	}
	if !w.opts.variable() {
		return ErrFixedChunkSize
	}
	if w.chunkCount == 0 {
		return nil
	}
	return w.finishChunk()
}

func (w *Writer) finishChunk() error {
	if err := w.enc.Done(); err != nil {
		return err
	}
	w.chunks = append(w.chunks, ChunkEntry{
		PointCount: w.chunkCount,
		ByteLength: uint32(w.out.Tell() - w.chunkStart),
	})
	w.chunkCount = 0
	return nil
}

// Done finishes the stream: it closes the last chunk, writes the chunk
// table and flushes out. The writer can be reused with Init.
func (w *Writer) Done() error {
	if w.out == nil || w.done {
		return ErrNotInitialized
	}
	w.done = true

	switch {
	case w.opts.Compressor == CompressorNone:
	case w.opts.chunked():
		if w.chunkCount > 0 {
			if err := w.finishChunk(); err != nil {
				return err
			}
		}
		if err := w.writeChunkTable(); err != nil {
			return fmt.Errorf("chunk table: %w", err)
		}
	default:
		if w.chunkCount > 0 {
			if err := w.enc.Done(); err != nil {
				return err
			}
		}
	}
	return w.out.Flush()
}

func (w *Writer) writeChunkTable() error {
	pos := w.out.Tell()
	if w.tableStart >= 0 {
		if err := w.out.Seek(w.tableStart); err != nil {
			return err
		}
		if err := bytestream.WriteInt64(w.out, pos); err != nil {
			return err
		}
		if err := w.out.Seek(pos); err != nil {
			return err
		}
	}

	if err := writeChunkTable(w.out, w.enc, w.chunks); err != nil {
		return err
	}

	if w.tableStart < 0 {
		// readers find the table through the last eight bytes
		return bytestream.WriteInt64(w.out, pos)
	}
	return nil
}

// ChunkTable returns the chunks written so far.
func (w *Writer) ChunkTable() []ChunkEntry {
	return append([]ChunkEntry(nil), w.chunks...)
}

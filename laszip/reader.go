package laszip

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/bytestream"
	"github.com/egonelbre/exp-laz-compression/codec"
	"github.com/egonelbre/exp-laz-compression/las"
)

// Reader decompresses point records from a bytestream.Reader.
//
// The reader keeps a chunk table of every chunk it knows about: either the
// table stored in the stream or the chunks it has decoded so far. Seek uses
// it to jump to the chunk holding the target point.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	opts   Options
	format format

	in       bytestream.Reader
	dec      *arithcode.Decoder
	decoders []codec.Decoder
	record   []byte
	scratch  las.Point

	pointStart int64
	chunks     []ChunkEntry // completed chunks
	starts     []int64      // chunk offsets, at least one more than chunks
	totals     []uint64     // points before each chunk in chunks, plus the sum
	tabled     bool         // chunks holds the whole stream

	current   int    // chunk being read
	chunkRead uint64 // points read from the current chunk
	inChunk   bool   // the decoder holds an open chunk
	next      uint64 // index of the next point
}

// NewReader creates a reader for records made of items.
// Options nil means DefaultOptions().
func NewReader(items []las.Item, opts *Options) (*Reader, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	f, err := newFormat(items, o)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		opts:   o,
		format: f,
		record: make([]byte, f.size),
	}
	if o.Compressor != CompressorNone {
		r.dec = &arithcode.Decoder{}
		for _, item := range f.items {
			c, err := codec.NewDecoder(r.dec, item)
			if err != nil {
				return nil, err
			}
			r.decoders = append(r.decoders, c)
		}
	}
	return r, nil
}

// Options returns the normalized options of the reader.
func (r *Reader) Options() Options { return r.opts }

// Items returns the item list of the records.
func (r *Reader) Items() []las.Item { return r.format.items }

// Init attaches the reader to in. For chunked streams it loads the chunk
// table, falling back to rebuilding it while reading when the table cannot
// be reached.
func (r *Reader) Init(in bytestream.Reader) error {
	r.in = in
	r.chunks = r.chunks[:0]
	r.starts = r.starts[:0]
	r.totals = append(r.totals[:0], 0)
	r.tabled = false
	r.current = 0
	r.chunkRead = 0
	r.inChunk = false
	r.next = 0

	if r.opts.chunked() {
		if err := r.loadChunkTable(); err != nil {
			r.in = nil
			return err
		}
	}
	r.pointStart = in.Tell()
	if len(r.starts) == 0 {
		r.starts = append(r.starts, r.pointStart)
	}
	return nil
}

func (r *Reader) loadChunkTable() error {
	in := r.in
	tableStart, err := bytestream.ReadInt64(in)
	if err != nil {
		return fmt.Errorf("chunk table offset: %w", eofIsUnexpected(err))
	}
	chunksStart := in.Tell()

	// the writer never got to write the table, or we cannot reach it;
	// variable sized chunks then need UseChunkTable before reading
	if tableStart+8 == chunksStart || !in.Seekable() {
		return nil
	}

	if tableStart == -1 {
		if err := in.SeekEnd(8); err != nil {
			return fmt.Errorf("chunk table offset: %w", err)
		}
		if tableStart, err = bytestream.ReadInt64(in); err != nil {
			return fmt.Errorf("chunk table offset: %w", eofIsUnexpected(err))
		}
	}
	if tableStart < chunksStart {
		return fmt.Errorf("offset %d: %w", tableStart, ErrCorruptChunkTable)
	}
	if err := in.Seek(tableStart); err != nil {
		return fmt.Errorf("chunk table: %w", err)
	}

	entries, err := readChunkTable(in)
	if err != nil {
		return err
	}

	pos := chunksStart
	r.starts = append(r.starts, pos)
	for _, e := range entries {
		pos += int64(e.ByteLength)
		if pos > tableStart {
			return fmt.Errorf("chunks overrun the table: %w", ErrCorruptChunkTable)
		}
		r.addChunk(e, pos)
	}
	r.tabled = true

	return in.Seek(chunksStart)
}

// addChunk records a completed chunk and the start of the one after it.
func (r *Reader) addChunk(e ChunkEntry, nextStart int64) {
	r.chunks = append(r.chunks, e)
	r.totals = append(r.totals, r.totals[len(r.totals)-1]+uint64(e.PointCount))
	r.starts = append(r.starts, nextStart)
}

// chunkLength returns the number of points in chunk i.
func (r *Reader) chunkLength(i int) uint64 {
	if i < len(r.chunks) {
		return uint64(r.chunks[i].PointCount)
	}
	if !r.opts.chunked() {
		return math.MaxUint64
	}
	return uint64(r.opts.ChunkSize)
}

// UseChunkTable installs a chunk table kept outside the stream, such as a
// cached index, when Init could not load the stream's own table. It must be
// called before the first Read.
func (r *Reader) UseChunkTable(entries []ChunkEntry) error {
	if r.in == nil {
		return ErrNotInitialized
	}
	if !r.opts.chunked() {
		return fmt.Errorf("%v: %w", r.opts.Compressor, ErrUnsupportedCompressor)
	}
	if r.tabled || r.next != 0 || r.inChunk {
		return ErrChunkTableLoaded
	}

	pos := r.starts[0]
	r.chunks = r.chunks[:0]
	r.starts = r.starts[:1]
	r.totals = r.totals[:1]
	for i, e := range entries {
		if e.PointCount == 0 || e.ByteLength == 0 {
			return fmt.Errorf("chunk %d is empty: %w", i, ErrCorruptChunkTable)
		}
		pos += int64(e.ByteLength)
		r.addChunk(e, pos)
	}
	r.tabled = true
	return nil
}

// Count returns the number of points in the stream, when the chunk table
// is known.
func (r *Reader) Count() (uint64, bool) {
	if !r.tabled {
		return 0, false
	}
	return r.totals[len(r.totals)-1], true
}

// Read decodes the next point into p. It returns io.EOF after the last
// point when the length of the stream is known.
func (r *Reader) Read(p *las.Point) error {
	if r.in == nil {
		return ErrNotInitialized
	}

	if r.opts.Compressor == CompressorNone {
		if err := r.readRecord(p); err != nil {
			return err
		}
		r.next++
		return nil
	}

	if r.opts.variable() && !r.tabled {
		return ErrVariableChunkNeedsTable
	}
	if n, ok := r.Count(); ok && r.next >= n {
		return io.EOF
	}

	if r.inChunk && r.chunkRead == r.chunkLength(r.current) {
		if err := r.finishChunk(); err != nil {
			return err
		}
	}

	if !r.inChunk {
		if err := r.readRecord(p); err != nil {
			return err
		}
		for _, c := range r.decoders {
			c.Init(p)
		}
		if err := r.dec.Init(r.in); err != nil {
			return fmt.Errorf("point %d: %w", r.next, err)
		}
		r.inChunk = true
		r.chunkRead = 1
		r.next++
		return nil
	}

	for _, c := range r.decoders {
		c.Decode(p)
	}
	if err := r.dec.Err(); err != nil {
		return fmt.Errorf("point %d: %w", r.next, err)
	}
	r.chunkRead++
	r.next++
	return nil
}

func (r *Reader) readRecord(p *las.Point) error {
	if _, err := io.ReadFull(r.in, r.record); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("point %d: %w", r.next, err)
	}
	return r.format.unpack(p, r.record)
}

// finishChunk closes the current chunk and checks that the next one starts
// where the chunk table says.
func (r *Reader) finishChunk() error {
	if err := r.dec.Done(); err != nil {
		return fmt.Errorf("chunk %d: %w", r.current, err)
	}
	r.inChunk = false

	here := r.in.Tell()
	if r.current == len(r.chunks) {
		r.addChunk(ChunkEntry{
			PointCount: uint32(r.chunkRead),
			ByteLength: uint32(here - r.starts[r.current]),
		}, here)
	}
	r.current++
	r.chunkRead = 0

	if r.starts[r.current] != here {
		return fmt.Errorf("chunk %d at offset %d, expected %d: %w", r.current, here, r.starts[r.current], ErrChunkMismatch)
	}
	return nil
}

// Seek positions the reader so that the next Read returns point target.
//
// Within a chunk the reader decodes forward from the chunk start. Targets
// past the known chunks are reached by decoding forward from the last known
// chunk, which extends the table. A non-seekable source only supports
// targets at or after the next point.
func (r *Reader) Seek(target uint64) error {
	if r.in == nil {
		return ErrNotInitialized
	}
	if n, ok := r.Count(); ok && target > n {
		return fmt.Errorf("point %d of %d: %w", target, n, ErrSeekRange)
	}
	if !r.in.Seekable() {
		if target < r.next {
			return ErrSeekUnsupported
		}
		return r.skip(target)
	}

	if r.opts.Compressor == CompressorNone {
		if err := r.in.Seek(r.pointStart + int64(target)*int64(r.format.size)); err != nil {
			return err
		}
		r.next = target
		return nil
	}

	// find the chunk holding target among the completed chunks
	chunk := sort.Search(len(r.chunks), func(i int) bool {
		return r.totals[i+1] > target
	})
	if chunk == len(r.chunks) {
		chunk = len(r.starts) - 1
	}

	if chunk != r.current || target < r.next {
		if err := r.in.Seek(r.starts[chunk]); err != nil {
			return err
		}
		r.current = chunk
		r.chunkRead = 0
		r.inChunk = false
		r.next = r.totals[chunk]
	}

	return r.skip(target)
}

// skip decodes points until the next Read returns point target.
func (r *Reader) skip(target uint64) error {
	for r.next < target {
		if err := r.Read(&r.scratch); err != nil {
			return fmt.Errorf("seek to point %d: %w", target, err)
		}
	}
	return nil
}

// ChunkTable returns the chunks known to the reader: the whole table when
// the stream has one, otherwise the chunks decoded so far.
func (r *Reader) ChunkTable() []ChunkEntry {
	return append([]ChunkEntry(nil), r.chunks...)
}

// Done releases the input. It reports a pending decoder error.
func (r *Reader) Done() error {
	if r.in == nil {
		return ErrNotInitialized
	}
	var err error
	if r.inChunk {
		err = r.dec.Done()
	}
	r.inChunk = false
	r.in = nil
	return err
}

package laszip

import (
	"fmt"
	"math"
)

// Compressor selects how points are stored.
type Compressor uint16

// Compressors, numbered as in the LASzip header record.
const (
	// CompressorNone stores raw records.
	CompressorNone Compressor = 0
	// CompressorPointwise codes all points with one coder; random access
	// replays the stream from the first point.
	CompressorPointwise Compressor = 1
	// CompressorPointwiseChunked restarts the coder every chunk and
	// records the chunks in a chunk table.
	CompressorPointwiseChunked Compressor = 2
	// CompressorLayeredChunked is the LAS 1.4 layered format. It is
	// recognized but not supported.
	CompressorLayeredChunked Compressor = 3
)

func (c Compressor) String() string {
	switch c {
	case CompressorNone:
		return "none"
	case CompressorPointwise:
		return "pointwise"
	case CompressorPointwiseChunked:
		return "pointwise-chunked"
	case CompressorLayeredChunked:
		return "layered-chunked"
	}
	return fmt.Sprintf("Compressor(%d)", uint16(c))
}

const (
	// DefaultChunkSize is the number of points per chunk used by LASzip.
	DefaultChunkSize = 50000
	// VariableChunkSize lets the writer close chunks with Writer.Chunk.
	VariableChunkSize = math.MaxUint32
)

// Options configures a Writer or Reader. Both sides of a stream must use the
// same options.
type Options struct {
	Compressor Compressor
	// ChunkSize is the number of points per chunk for
	// CompressorPointwiseChunked. Zero means DefaultChunkSize.
	ChunkSize uint32
}

// DefaultOptions returns chunked compression with DefaultChunkSize.
func DefaultOptions() *Options {
	return &Options{
		Compressor: CompressorPointwiseChunked,
		ChunkSize:  DefaultChunkSize,
	}
}

// normalize fills defaults and checks the compressor.
func (opts *Options) normalize() (Options, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	switch o.Compressor {
	case CompressorNone, CompressorPointwise:
		o.ChunkSize = 0
	case CompressorPointwiseChunked:
		if o.ChunkSize == 0 {
			o.ChunkSize = DefaultChunkSize
		}
	default:
		return o, fmt.Errorf("%v: %w", o.Compressor, ErrUnsupportedCompressor)
	}
	return o, nil
}

func (o *Options) chunked() bool { return o.Compressor == CompressorPointwiseChunked }

func (o *Options) variable() bool { return o.chunked() && o.ChunkSize == VariableChunkSize }

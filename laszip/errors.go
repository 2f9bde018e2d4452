package laszip

import "errors"

// Package errors.
var (
	ErrUnsupportedCompressor   = errors.New("laszip: unsupported compressor")
	ErrNoItems                 = errors.New("laszip: point format has no items")
	ErrNotInitialized          = errors.New("laszip: Init has not been called")
	ErrChunkMismatch           = errors.New("laszip: chunk does not start at its recorded offset")
	ErrSeekUnsupported         = errors.New("laszip: stream does not support random access")
	ErrSeekRange               = errors.New("laszip: seek target beyond the last point")
	ErrCorruptChunkTable       = errors.New("laszip: corrupt chunk table")
	ErrVariableChunkNeedsTable = errors.New("laszip: variable sized chunks require a chunk table")
	ErrChunkTableLoaded        = errors.New("laszip: chunk table already known")
	ErrFixedChunkSize          = errors.New("laszip: explicit chunks need variable chunk size")
)

// Package bytestream provides the byte channels consumed by the point
// reader and writer: buffered, position tracking, and optionally seekable.
package bytestream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// ErrNotSeekable is returned by Seek on a stream without random access.
var ErrNotSeekable = errors.New("bytestream: stream is not seekable")

// Writer is a sequential byte sink with an optional absolute seek.
type Writer interface {
	io.Writer
	io.ByteWriter
	// Tell returns the absolute position of the next byte written.
	Tell() int64
	// Seekable reports whether Seek is supported.
	Seekable() bool
	// Seek moves the write position to pos.
	Seek(pos int64) error
	// Flush writes out any buffered data.
	Flush() error
}

// Reader is a sequential byte source with an optional absolute seek.
type Reader interface {
	io.Reader
	io.ByteReader
	// Tell returns the absolute position of the next byte read.
	Tell() int64
	// Seekable reports whether Seek and SeekEnd are supported.
	Seekable() bool
	// Seek moves the read position to pos.
	Seek(pos int64) error
	// SeekEnd moves the read position to distance bytes before the end.
	SeekEnd(distance int64) error
}

type writer struct {
	buf    *bufio.Writer
	seeker io.WriteSeeker
	pos    int64
}

// NewWriter wraps w. When w implements io.WriteSeeker the writer is
// seekable and positions are absolute offsets of w; otherwise positions
// count the bytes written since NewWriter.
func NewWriter(w io.Writer) (Writer, error) {
	sw := &writer{buf: bufio.NewWriter(w)}
	if seeker, ok := w.(io.WriteSeeker); ok {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		sw.seeker = seeker
		sw.pos = pos
	}
	return sw, nil
}

func (w *writer) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	w.pos += int64(n)
	return n, err
}

func (w *writer) WriteByte(b byte) error {
	if err := w.buf.WriteByte(b); err != nil {
		return err
	}
	w.pos++
	return nil
}

func (w *writer) Tell() int64    { return w.pos }
func (w *writer) Seekable() bool { return w.seeker != nil }
func (w *writer) Flush() error   { return w.buf.Flush() }

func (w *writer) Seek(pos int64) error {
	if w.seeker == nil {
		return ErrNotSeekable
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if _, err := w.seeker.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	w.pos = pos
	return nil
}

type reader struct {
	buf    *bufio.Reader
	source io.Reader
	seeker io.ReadSeeker
	pos    int64
}

// NewReader wraps r. When r implements io.ReadSeeker the reader is
// seekable and positions are absolute offsets of r; otherwise positions
// count the bytes read since NewReader.
func NewReader(r io.Reader) (Reader, error) {
	sr := &reader{buf: bufio.NewReader(r), source: r}
	if seeker, ok := r.(io.ReadSeeker); ok {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		sr.seeker = seeker
		sr.pos = pos
	}
	return sr, nil
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.buf.Read(p)
	r.pos += int64(n)
	return n, err
}

func (r *reader) ReadByte() (byte, error) {
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, err
	}
	r.pos++
	return b, nil
}

func (r *reader) Tell() int64    { return r.pos }
func (r *reader) Seekable() bool { return r.seeker != nil }

func (r *reader) Seek(pos int64) error {
	if r.seeker == nil {
		return ErrNotSeekable
	}
	if _, err := r.seeker.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	r.buf.Reset(r.seeker)
	r.pos = pos
	return nil
}

func (r *reader) SeekEnd(distance int64) error {
	if r.seeker == nil {
		return ErrNotSeekable
	}
	pos, err := r.seeker.Seek(-distance, io.SeekEnd)
	if err != nil {
		return err
	}
	r.buf.Reset(r.seeker)
	r.pos = pos
	return nil
}

// ReadUint32 reads a little-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadInt64 reads a little-endian int64.
func ReadInt64(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// WriteUint32 writes a little-endian uint32.
func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteInt64 writes a little-endian int64.
func WriteInt64(w io.Writer, v int64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	_, err := w.Write(b[:])
	return err
}

package bytestream

import (
	"errors"
	"io"
)

var errNegativePosition = errors.New("bytestream: negative position")

// Buffer is an in-memory file: it can be written, seeked and read back.
type Buffer struct {
	data []byte
	pos  int64
}

// NewBuffer returns a Buffer holding data, positioned at the start.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the size of the contents.
func (b *Buffer) Len() int { return len(b.data) }

func (b *Buffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.data)) {
		if end > int64(cap(b.data)) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:end]
		}
	}
	copy(b.data[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *Buffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = b.pos + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, errors.New("bytestream: invalid whence")
	}
	if pos < 0 {
		return 0, errNegativePosition
	}
	b.pos = pos
	return pos, nil
}

package laszip

import (
	"fmt"

	"github.com/egonelbre/exp-laz-compression/codec"
	"github.com/egonelbre/exp-laz-compression/las"
)

// format is the validated item list of a point record.
type format struct {
	items []las.Item
	size  int // record size in bytes
	extra int // bytes of the BYTE item, 0 when absent
}

func newFormat(items []las.Item, opts Options) (format, error) {
	if len(items) == 0 {
		return format{}, ErrNoItems
	}
	f := format{items: append([]las.Item(nil), items...)}
	for _, item := range items {
		if opts.Compressor == CompressorNone {
			if err := item.Validate(); err != nil {
				return format{}, err
			}
		} else if _, err := codec.Lookup(item); err != nil {
			return format{}, fmt.Errorf("%v: %w", opts.Compressor, err)
		}
		if item.Type == las.ItemByte {
			f.extra += int(item.Size)
		}
		f.size += int(item.Size)
	}
	return f, nil
}

func (f *format) pack(p *las.Point, b []byte) error {
	for _, item := range f.items {
		if err := item.Pack(p, b); err != nil {
			return err
		}
		b = b[item.Size:]
	}
	return nil
}

func (f *format) unpack(p *las.Point, b []byte) error {
	for _, item := range f.items {
		if err := item.Unpack(p, b); err != nil {
			return err
		}
		b = b[item.Size:]
	}
	return nil
}

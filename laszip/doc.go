/*
Package laszip streams LAS point records through the item codecs and
splits the compressed stream into independently decodable chunks.

A chunked stream starts with an 8-byte offset of the chunk table, followed
by the chunks and finally the chunk table:

	int64  chunk table offset, or -1 when the writer could not seek back
	chunk  first point raw, remaining points range coded
	...
	uint32 version (0)
	uint32 chunk count
	...    range coded (point count, byte length) pairs
	int64  chunk table offset, only when the front offset is -1

The chunk table lets a Reader jump to any chunk. Without it the reader
still decodes sequentially and rebuilds the table as it goes.

Typical use:

	items, _ := las.Items(3, 34, 2)
	w, err := laszip.NewWriter(items, nil)
	...
	out, _ := bytestream.NewWriter(file)
	w.Init(out)
	for i := range points {
		w.Write(&points[i])
	}
	w.Done()
*/
package laszip

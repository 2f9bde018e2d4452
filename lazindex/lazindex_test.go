package lazindex

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/egonelbre/exp-laz-compression/bytestream"
	"github.com/egonelbre/exp-laz-compression/las"
	"github.com/egonelbre/exp-laz-compression/laszip"
)

func testPoints(n int) []las.Point {
	rng := rand.New(rand.NewSource(1))
	points := make([]las.Point, n)
	for i := range points {
		p := &points[i]
		p.X, p.Y, p.Z = int32(i*3), int32(rng.Intn(100)), int32(rng.Intn(10))
		p.Intensity = uint16(rng.Intn(300))
		p.SetReturns(1, 1)
		p.GPSTime = 100 + float64(i)*0.001
	}
	return points
}

// writeStream compresses points with variable chunks of chunk points to a
// sink without seeking, so the chunk table is only found at the end.
func writeStream(t *testing.T, items []las.Item, points []las.Point, chunk int) ([]byte, *laszip.Writer) {
	t.Helper()
	w, err := laszip.NewWriter(items, &laszip.Options{
		Compressor: laszip.CompressorPointwiseChunked,
		ChunkSize:  laszip.VariableChunkSize,
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	out, err := bytestream.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Init(out); err != nil {
		t.Fatal(err)
	}
	for i := range points {
		if err := w.Write(&points[i]); err != nil {
			t.Fatal(err)
		}
		if (i+1)%chunk == 0 {
			if err := w.Chunk(); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := w.Done(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), w
}

func TestRoundtrip(t *testing.T) {
	items, _ := las.Items(1, 31, 2)
	points := testPoints(1000)
	for i := range points {
		points[i].ExtraBytes = []byte{1, 2, byte(i)}
	}

	_, w := writeStream(t, items, points, 128)
	idx := FromWriter(w)
	if len(idx.Chunks) != 8 {
		t.Fatalf("Expected 8 chunks, got %d", len(idx.Chunks))
	}
	if idx.Count() != 1000 {
		t.Errorf("Expected 1000 points, got %d", idx.Count())
	}

	data, err := Marshal(idx)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("index of %d chunks -> %d bytes", len(idx.Chunks), len(data))

	again, err := Marshal(idx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("Marshal is not deterministic")
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(idx, got) {
		t.Errorf("Roundtrip mismatch:\nexpected %+v\ngot      %+v", idx, got)
	}
}

func TestEmpty(t *testing.T) {
	idx := &Index{
		Items:      []las.Item{{Type: las.ItemPoint10, Size: las.Point10Size, Version: 1}},
		Compressor: laszip.CompressorPointwise,
	}
	data, err := Marshal(idx)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(idx, got) {
		t.Errorf("Roundtrip mismatch:\nexpected %+v\ngot      %+v", idx, got)
	}
}

// TestSequentialSeek uses a cached index to read a stream that only
// supports sequential access and has variable sized chunks.
func TestSequentialSeek(t *testing.T) {
	items, _ := las.Items(1, 28, 1)
	points := testPoints(500)
	stream, w := writeStream(t, items, points, 70)

	data, err := Marshal(FromWriter(w))
	if err != nil {
		t.Fatal(err)
	}
	idx, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}

	r, err := laszip.NewReader(idx.Items, idx.Options())
	if err != nil {
		t.Fatal(err)
	}
	in, err := bytestream.NewReader(bytes.NewBuffer(stream))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Init(in); err != nil {
		t.Fatal(err)
	}
	if err := r.UseChunkTable(idx.Chunks); err != nil {
		t.Fatal(err)
	}
	if n, ok := r.Count(); !ok || n != 500 {
		t.Fatalf("Count() = %d, %v", n, ok)
	}

	const start = 120
	if err := r.Seek(start); err != nil {
		t.Fatalf("Seek(%d): %v", start, err)
	}

	var p las.Point
	for i := start; i < len(points); i++ {
		if err := r.Read(&p); err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if p.X != points[i].X || p.GPSTime != points[i].GPSTime {
			t.Fatalf("Point %d differs", i)
		}
	}
	if err := r.Seek(0); !errors.Is(err, laszip.ErrSeekUnsupported) {
		t.Errorf("Expected ErrSeekUnsupported for a backward seek, got %v", err)
	}

	if !reflect.DeepEqual(FromReader(r), idx) {
		t.Error("Reader index differs from the cached index")
	}
}

func TestJSON(t *testing.T) {
	idx := &Index{
		Items:      []las.Item{{Type: las.ItemPoint10, Size: las.Point10Size, Version: 2}},
		Compressor: laszip.CompressorPointwiseChunked,
		ChunkSize:  laszip.DefaultChunkSize,
		Chunks:     []laszip.ChunkEntry{{PointCount: 50000, ByteLength: 700000}, {PointCount: 12, ByteLength: 200}},
	}
	data, err := json.Marshal(idx)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"items", "compressor", "chunk_size", "point_counts", "byte_lengths"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Missing %q in %s", key, data)
		}
	}
}

func TestInvalid(t *testing.T) {
	// two point counts, one byte length
	var b []byte
	b = protowire.AppendTag(b, indexPointCounts, protowire.BytesType)
	b = protowire.AppendBytes(b, protowire.AppendVarint(protowire.AppendVarint(nil, 10), 20))
	b = protowire.AppendTag(b, indexByteLengths, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	if _, err := Unmarshal(b); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid for mismatched chunks, got %v", err)
	}

	// POINT10 with a wrong size
	var item []byte
	item = protowire.AppendTag(item, itemType, protowire.VarintType)
	item = protowire.AppendVarint(item, uint64(las.ItemPoint10))
	item = protowire.AppendTag(item, itemSize, protowire.VarintType)
	item = protowire.AppendVarint(item, 19)
	b = protowire.AppendTag(nil, indexItems, protowire.BytesType)
	b = protowire.AppendBytes(b, item)
	_, err := Unmarshal(b)
	if !errors.Is(err, ErrInvalid) || !errors.Is(err, las.ErrItemSize) {
		t.Errorf("Expected ErrInvalid and ErrItemSize, got %v", err)
	}

	// a size that would wrap to a valid POINT10 size as uint16
	item = protowire.AppendTag(nil, itemType, protowire.VarintType)
	item = protowire.AppendVarint(item, uint64(las.ItemPoint10))
	item = protowire.AppendTag(item, itemSize, protowire.VarintType)
	item = protowire.AppendVarint(item, 1<<16+las.Point10Size)
	item = protowire.AppendTag(item, itemVersion, protowire.VarintType)
	item = protowire.AppendVarint(item, 2)
	b = protowire.AppendTag(nil, indexItems, protowire.BytesType)
	b = protowire.AppendBytes(b, item)
	if _, err := Unmarshal(b); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid for an oversized item size, got %v", err)
	}

	if _, err := Unmarshal([]byte{0xFF}); err == nil {
		t.Error("Expected error for garbage input")
	}
}

package codec

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/egonelbre/exp-laz-compression/arithcode"
	"github.com/egonelbre/exp-laz-compression/las"
)

// randomPoints fills every field with noise, including values the
// predictors handle worst.
func randomPoints(rng *rand.Rand, n, extra int) []las.Point {
	points := make([]las.Point, n)
	for i := range points {
		p := &points[i]
		p.X = int32(rng.Uint32())
		p.Y = int32(rng.Uint32())
		p.Z = int32(rng.Uint32())
		p.Intensity = uint16(rng.Uint32())
		p.Flags = uint8(rng.Uint32())
		p.Classification = uint8(rng.Uint32())
		p.ScanAngleRank = int8(rng.Uint32())
		p.UserData = uint8(rng.Uint32())
		p.PointSourceID = uint16(rng.Uint32())
		p.GPSTime = math.Float64frombits(rng.Uint64())
		for c := range p.RGB {
			p.RGB[c] = uint16(rng.Uint32())
		}
		p.Wavepacket = las.Wavepacket{
			Index:       uint8(rng.Uint32()),
			Offset:      rng.Uint64(),
			PacketSize:  rng.Uint32(),
			ReturnPoint: math.Float32frombits(rng.Uint32()),
			X:           math.Float32frombits(rng.Uint32()),
			Y:           math.Float32frombits(rng.Uint32()),
			Z:           math.Float32frombits(rng.Uint32()),
		}
		p.ExtraBytes = make([]byte, extra)
		rng.Read(p.ExtraBytes)
	}
	return points
}

// surveyPoints imitates an airborne scan: multiple returns per pulse,
// slowly drifting coordinates, two interleaved flight lines for the time
// stamps, mostly gray colors and contiguous waveform packets.
func surveyPoints(rng *rand.Rand, n, extra int) []las.Point {
	points := make([]las.Point, n)
	x, y, z := int32(500000), int32(4200000), int32(12000)
	times := [2]float64{302000.25, 911000.75}
	offset := uint64(1 << 20)
	var ret, count uint8
	for i := range points {
		p := &points[i]
		if ret >= count {
			ret, count = 0, uint8(1+rng.Intn(4))
			x += int32(rng.Intn(200) - 50)
			y += int32(rng.Intn(20) - 10)
		}
		ret++
		p.SetReturns(ret, count)
		p.SetScanFlags(i/500%2 == 1, rng.Intn(1000) == 0)

		z += int32(rng.Intn(41) - 20)
		p.X, p.Y, p.Z = x+int32(ret), y, z
		p.Intensity = uint16(200 + rng.Intn(100)/int(ret))
		p.Classification = uint8(1 + rng.Intn(2))
		p.ScanAngleRank = int8(i/100%60 - 30)
		p.UserData = uint8(i / 3000)
		p.PointSourceID = uint16(7 + i/1000)

		line := i / 50 % 2
		if ret == 1 {
			times[line] += 0.00001 * float64(1+rng.Intn(3))
		}
		if rng.Intn(2000) == 0 {
			times[line] += 1000
		}
		p.GPSTime = times[line]

		gray := uint16(rng.Intn(3) * 257)
		p.RGB = [3]uint16{gray, gray, gray}
		if rng.Intn(4) == 0 {
			p.RGB[1] += uint16(rng.Intn(512))
			p.RGB[2] = uint16(rng.Intn(65536))
		}

		size := uint32(256)
		if rng.Intn(50) == 0 {
			offset += uint64(rng.Intn(10000))
		}
		if rng.Intn(5000) == 0 {
			offset += 1 << 40
		}
		p.Wavepacket = las.Wavepacket{
			Index:       1,
			Offset:      offset,
			PacketSize:  size,
			ReturnPoint: float32(ret) * 12.5,
			X:           0.0001 * float32(rng.Intn(10)),
			Y:           -0.0002,
			Z:           0.5,
		}
		if ret == 1 {
			offset += uint64(size)
		}

		p.ExtraBytes = make([]byte, extra)
		for k := range p.ExtraBytes {
			p.ExtraBytes[k] = byte(i/(k+1)) + byte(rng.Intn(2))
		}
	}
	return points
}

func itemFor(v *Version, extra int) las.Item {
	item := las.Item{Type: v.Type, Version: v.Version}
	switch v.Type {
	case las.ItemByte:
		item.Size = uint16(extra)
	case las.ItemPoint10:
		item.Size = las.Point10Size
	case las.ItemGPSTime11:
		item.Size = las.GPSTime11Size
	case las.ItemRGB12:
		item.Size = las.RGB12Size
	case las.ItemWavepacket13:
		item.Size = las.Wavepacket13Size
	}
	return item
}

func encodeItems(t testing.TB, item las.Item, points []las.Point) []byte {
	t.Helper()

	var buf bytes.Buffer
	enc := arithcode.NewEncoder(&buf)
	c, err := NewEncoder(enc, item)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	c.Init(&points[0])
	for i := range points[1:] {
		c.Encode(&points[1+i])
	}
	if err := enc.Done(); err != nil {
		t.Fatalf("Done failed: %v", err)
	}
	return buf.Bytes()
}

func decodeItems(t testing.TB, item las.Item, first *las.Point, data []byte, n int) []las.Point {
	t.Helper()

	r := bytes.NewReader(data)
	dec, err := arithcode.NewDecoder(r)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	c, err := NewDecoder(dec, item)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}

	points := make([]las.Point, n)
	points[0] = *first
	c.Init(first)
	for i := 1; i < n; i++ {
		c.Decode(&points[i])
	}
	if err := dec.Done(); err != nil {
		t.Fatalf("Decoder failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Decoder left %d unread bytes", r.Len())
	}
	return points
}

// equalItem compares the fields of item through their record encoding.
func equalItem(t *testing.T, item las.Item, expected, got *las.Point) bool {
	t.Helper()
	a := make([]byte, item.Size)
	b := make([]byte, item.Size)
	if err := item.Pack(expected, a); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if err := item.Pack(got, b); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	return bytes.Equal(a, b)
}

func TestRoundtrip(t *testing.T) {
	const n, extra = 4000, 5

	sources := []struct {
		name     string
		generate func(*rand.Rand, int, int) []las.Point
	}{
		{"random", randomPoints},
		{"survey", surveyPoints},
	}

	for _, v := range Versions {
		item := itemFor(&v, extra)
		for _, source := range sources {
			t.Run(item.String()+"/"+source.name, func(t *testing.T) {
				points := source.generate(rand.New(rand.NewSource(7)), n, extra)
				data := encodeItems(t, item, points)
				t.Logf("%d points -> %d bytes (%.2f bytes/item)", n, len(data), float64(len(data))/n)

				decoded := decodeItems(t, item, &points[0], data, n)
				for i := range points {
					if !equalItem(t, item, &points[i], &decoded[i]) {
						t.Fatalf("Point %d differs:\nexpected %+v\ngot      %+v", i, points[i], decoded[i])
					}
				}
			})
		}
	}
}

func TestSurveyCompresses(t *testing.T) {
	const n, extra = 5000, 2
	points := surveyPoints(rand.New(rand.NewSource(3)), n, extra)
	for _, v := range Versions {
		item := itemFor(&v, extra)
		data := encodeItems(t, item, points)
		if raw := n * int(item.Size); len(data) >= raw {
			t.Errorf("%v: %d bytes not smaller than raw %d", item, len(data), raw)
		}
	}
}

func TestSinglePoint(t *testing.T) {
	points := surveyPoints(rand.New(rand.NewSource(1)), 1, 3)
	for _, v := range Versions {
		item := itemFor(&v, 3)
		data := encodeItems(t, item, points)
		if len(data) != 4 {
			t.Errorf("%v: expected 4 bytes for a lone point, got %d", item, len(data))
		}
		decodeItems(t, item, &points[0], data, 1)
	}
}

func TestInitResetsState(t *testing.T) {
	points := surveyPoints(rand.New(rand.NewSource(11)), 1000, 4)
	for _, v := range Versions {
		item := itemFor(&v, 4)

		var buf bytes.Buffer
		enc := arithcode.NewEncoder(&buf)
		c, err := NewEncoder(enc, item)
		if err != nil {
			t.Fatal(err)
		}

		var chunks [2][]byte
		for k := range chunks {
			buf.Reset()
			enc.Init(&buf)
			c.Init(&points[0])
			for i := range points[1:] {
				c.Encode(&points[1+i])
			}
			if err := enc.Done(); err != nil {
				t.Fatal(err)
			}
			chunks[k] = bytes.Clone(buf.Bytes())
		}
		if !bytes.Equal(chunks[0], chunks[1]) {
			t.Errorf("%v: second chunk encoded differently", item)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		item las.Item
		err  error
	}{
		{las.Item{Type: las.ItemPoint10, Size: las.Point10Size, Version: 1}, nil},
		{las.Item{Type: las.ItemPoint10, Size: las.Point10Size, Version: 2}, nil},
		{las.Item{Type: las.ItemPoint10, Size: las.Point10Size, Version: 3}, ErrUnsupportedItem},
		{las.Item{Type: las.ItemWavepacket13, Size: las.Wavepacket13Size, Version: 2}, nil},
		{las.Item{Type: las.ItemWavepacket13, Size: las.Wavepacket13Size, Version: 3}, ErrUnsupportedItem},
		{las.Item{Type: las.ItemRGBNIR14, Size: las.RGBNIR14Size, Version: 2}, ErrUnsupportedItem},
		{las.Item{Type: las.ItemByte, Size: 3, Version: 2}, nil},
		{las.Item{Type: las.ItemRGB12, Size: 8, Version: 2}, las.ErrItemSize},
		{las.Item{Type: 42, Size: 1, Version: 1}, las.ErrUnknownItem},
	}
	for _, test := range tests {
		_, err := Lookup(test.item)
		if test.err == nil {
			if err != nil {
				t.Errorf("%v: unexpected error %v", test.item, err)
			}
			continue
		}
		if !errors.Is(err, test.err) {
			t.Errorf("%v: expected %v, got %v", test.item, test.err, err)
		}
	}
}

func TestByteModelsLazy(t *testing.T) {
	points := surveyPoints(rand.New(rand.NewSource(5)), 300, 0)
	for i := range points {
		points[i].Classification = 2
	}

	var buf bytes.Buffer
	enc := arithcode.NewEncoder(&buf)
	c := newPoint10V2Encoder(enc, las.Item{Type: las.ItemPoint10, Size: las.Point10Size, Version: 2}).(*point10V2Encoder)
	c.Init(&points[0])
	for i := range points[1:] {
		c.Encode(&points[1+i])
	}

	used := 0
	for _, m := range c.classification {
		if m != nil {
			used++
		}
	}
	if used != 0 {
		t.Errorf("Expected no classification models for constant class, got %d", used)
	}
}

func TestMedian5(t *testing.T) {
	var m median5
	m.init()
	if m.get() != 0 {
		t.Fatalf("Expected 0 after init, got %d", m.get())
	}
	for _, v := range []int32{5, 5, 5, 5, 5} {
		m.add(v)
	}
	if m.get() != 5 {
		t.Errorf("Expected 5, got %d", m.get())
	}
	for _, v := range []int32{-3, -3, -3, -3, -3} {
		m.add(v)
	}
	if m.get() != -3 {
		t.Errorf("Expected -3, got %d", m.get())
	}
}

func TestMedian3(t *testing.T) {
	tests := []struct {
		in       [3]int32
		expected int32
	}{
		{[3]int32{1, 2, 3}, 2},
		{[3]int32{3, 2, 1}, 2},
		{[3]int32{2, 3, 1}, 2},
		{[3]int32{2, 1, 3}, 2},
		{[3]int32{1, 3, 2}, 2},
		{[3]int32{3, 1, 2}, 2},
		{[3]int32{7, 7, 1}, 7},
	}
	for _, test := range tests {
		if got := median3(&test.in); got != test.expected {
			t.Errorf("median3(%v) = %d, expected %d", test.in, got, test.expected)
		}
	}
}

func TestFold(t *testing.T) {
	for a := int32(0); a < 256; a++ {
		for b := int32(0); b < 256; b++ {
			sym := fold(b - a)
			if sym > 255 {
				t.Fatalf("fold(%d) = %d out of range", b-a, sym)
			}
			if got := int32(fold(int32(sym) + a)); got != b {
				t.Fatalf("unfold(%d + %d) = %d, expected %d", sym, a, got, b)
			}
		}
	}
}

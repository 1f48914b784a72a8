package codec

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot5enko/extent-store/bits"
	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/compression"
	"github.com/dot5enko/extent-store/extent"
	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

func encodeCell(p Provider, c cell.Cell) []byte {
	w := bits.NewGrowingBuffer(nil, binary.LittleEndian)
	p.WriteCell(&w, c)
	return w.Bytes()
}

func decodeCell(t *testing.T, p Provider, buf []byte) cell.Cell {
	t.Helper()
	c, err := p.ReadCell(bits.NewReader(bytes.NewReader(buf), binary.LittleEndian))
	require.NoError(t, err)
	return c
}

func sampleCells() []cell.Cell {
	return []cell.Cell{
		cell.Bool(true),
		cell.Bool(false),
		cell.Int(0),
		cell.Int(7),
		cell.Int(300),
		cell.Int(70000),
		cell.Int(1 << 40),
		cell.Int(-5),
		cell.Double(3.25),
		cell.Double(0),
		cell.DateTime(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)),
		cell.String("hello"),
		cell.String(""),
		cell.Blob([]byte{0, 1, 2, 0xff}),
		cell.Blob(nil),
		cell.Null(cell.AffinityBool),
		cell.Null(cell.AffinityInt64),
		cell.Null(cell.AffinityDateTime),
		cell.Null(cell.AffinityString),
		cell.Null(cell.AffinityBlob),
	}
}

func TestCellRoundTrip(t *testing.T) {
	for _, p := range []Provider{Basic(), Compressed()} {
		for _, c := range sampleCells() {
			got := decodeCell(t, p, encodeCell(p, c))
			assert.Equal(t, c.Affinity(), got.Affinity(), "v%d %s", p.Version(), c)
			assert.Equal(t, c.IsNull(), got.IsNull(), "v%d %s", p.Version(), c)
			assert.True(t, cell.Equal(c, got), "v%d: %s != %s", p.Version(), c, got)
		}
	}
}

func TestBasicKeepsAstralStrings(t *testing.T) {
	c := cell.String("smile \U0001F600")
	got := decodeCell(t, Basic(), encodeCell(Basic(), c))
	assert.Equal(t, "smile \U0001F600", got.ValueString())
}

func TestCompressedDropsHighBytes(t *testing.T) {
	c := cell.String("\U0001F600")
	got := decodeCell(t, Compressed(), encodeCell(Compressed(), c))

	// U+1F600 is the pair D83D DE00; only the low bytes 3D and 00 are kept
	assert.NotEqual(t, c.ValueString(), got.ValueString())
	assert.Equal(t, "=\x00", got.ValueString())

	latin := decodeCell(t, Compressed(), encodeCell(Compressed(), cell.String("Ā")))
	assert.Equal(t, "\x00", latin.RawString())
}

func TestCompressedScalarWidth(t *testing.T) {
	for _, tc := range []struct {
		cell cell.Cell
		size int
	}{
		{cell.Int(0), 2},
		{cell.Int(200), 3},
		{cell.Int(0xffff), 4},
		{cell.Int(0x10000), 6},
		{cell.Int(-1), 10},
		{cell.Null(cell.AffinityInt64), 1},
		{cell.Bool(true), 2},
	} {
		assert.Len(t, encodeCell(Compressed(), tc.cell), tc.size, "%s", tc.cell)
	}

	// the basic format always spends 8 bytes after the two header bytes
	assert.Len(t, encodeCell(Basic(), cell.Int(0)), 10)
	assert.Len(t, encodeCell(Basic(), cell.Null(cell.AffinityInt64)), 2)
}

func TestBasicStringsAreBigEndianPairs(t *testing.T) {
	buf := encodeCell(Basic(), cell.String("A"))
	assert.Equal(t, []byte{byte(cell.AffinityString), 0, 1, 0, 0, 0, 0, 'A'}, buf)
}

func TestForVersion(t *testing.T) {
	p, err := ForVersion(VersionBasic)
	require.NoError(t, err)
	assert.Equal(t, VersionBasic, p.Version())

	p, err = ForVersion(VersionCompressed)
	require.NoError(t, err)
	assert.Equal(t, VersionCompressed, p.Version())

	_, err = ForVersion(9)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	assert.ErrorIs(t, err, cell.ErrFormat)

	_, err = Decode([]byte{9, 0, 1, 2, 3})
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Basic().ReadCell(bits.NewReader(bytes.NewReader([]byte{42, 0}), binary.LittleEndian))
	assert.ErrorIs(t, err, cell.ErrFormat)

	// a string that claims more units than the buffer holds
	_, err = Basic().ReadCell(bits.NewReader(bytes.NewReader([]byte{byte(cell.AffinityString), 0, 9, 0, 0, 0}), binary.LittleEndian))
	assert.ErrorIs(t, err, cell.ErrFormat)

	_, err = Compressed().ReadCell(bits.NewReader(bytes.NewReader([]byte{byte(cell.AffinityInt64), 3}), binary.LittleEndian))
	assert.ErrorIs(t, err, cell.ErrFormat)

	// a blob length far past the payload fails before allocating it
	_, err = Basic().ReadCell(bits.NewReader(bytes.NewReader([]byte{byte(cell.AffinityBlob), 0, 0xff, 0xff, 0xff, 0xff, 1}), binary.LittleEndian))
	assert.ErrorIs(t, err, cell.ErrFormat)

	_, err = Decode([]byte{VersionCompressed})
	assert.ErrorIs(t, err, cell.ErrFormat)

	_, err = Decode([]byte{VersionCompressed, byte(compression.StateNone), 1, 2})
	assert.ErrorIs(t, err, cell.ErrFormat)
}

func testExtent(t *testing.T) *extent.Extent {
	t.Helper()
	s := schema.MustParse("id int not null, name string.16, score double, seen date, raw blob.8, ok bool")
	e := extent.New(schema.NewExtentHeader(t.TempDir(), "sample", int64(s.RecordDiskCost()*10)), s)

	at := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, e.Add(record.Of(cell.Int(1), cell.String("one"), cell.Double(1.5), cell.DateTime(at), cell.Blob([]byte{1}), cell.Bool(true))))
	require.NoError(t, e.Add(record.Of(cell.Int(2), cell.Null(cell.AffinityString), cell.Double(-2), cell.Null(cell.AffinityDateTime), cell.Blob(nil), cell.Bool(false))))
	require.NoError(t, e.Add(record.Of(cell.Int(3), cell.String(""), cell.Null(cell.AffinityDouble), cell.DateTime(at.Add(time.Hour)), cell.Null(cell.AffinityBlob), cell.Null(cell.AffinityBool))))
	e.SetSortBy(schema.Key{schema.Desc(0)})
	return e
}

func TestExtentFrameRoundTrip(t *testing.T) {
	for _, p := range []Provider{Basic(), Compressed()} {
		for _, state := range []compression.State{compression.StateNone, compression.StateLz4, compression.StateZstd} {
			e := testExtent(t)

			buf, err := Encode(nil, p, state, e)
			require.NoError(t, err)
			assert.Equal(t, p.Version(), buf[0])
			assert.Equal(t, uint8(state), buf[1])

			frame, err := Decode(buf)
			require.NoError(t, err, "v%d %s", p.Version(), state)
			assert.Equal(t, state, frame.State)

			got, err := frame.Extent()
			require.NoError(t, err)

			assert.Equal(t, extent.Persisted, got.State())
			assert.Equal(t, e.Header().Name, got.Header().Name)
			assert.Equal(t, e.Header().Path(), got.Header().Path())
			assert.WithinDuration(t, e.Header().Timestamp, got.Header().Timestamp, time.Microsecond)
			assert.True(t, e.Columns().Equal(got.Columns()))
			assert.Equal(t, e.Columns().String(), got.Columns().String())
			assert.True(t, e.SortBy().EqualStrong(got.SortBy()))
			assert.Equal(t, e.Capacity(), got.Capacity())

			require.Equal(t, e.Count(), got.Count())
			for i := 0; i < e.Count(); i++ {
				assert.True(t, e.Record(i).Equal(got.Record(i)), "v%d %s row %d: %s", p.Version(), state, i, got.Record(i))
			}

			_, err = frame.Table(nil)
			assert.ErrorIs(t, err, cell.ErrFormat)
		}
	}
}

func TestEncodeReusesScratch(t *testing.T) {
	e := testExtent(t)
	scratch := make([]byte, 0, 16)

	first, err := Encode(scratch, Compressed(), compression.StateNone, e)
	require.NoError(t, err)
	second, err := Encode(scratch, Compressed(), compression.StateNone, e)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTableFrameRoundTrip(t *testing.T) {
	s := schema.MustParse("id int, name string.16")
	h := schema.NewTableHeader(t.TempDir(), "events", 4096)
	refs := []record.Record{
		record.Of(cell.Int(0), cell.Int(2)),
		record.Of(cell.Int(1), cell.Int(1)),
	}
	table, err := extent.LoadTable(h, s, schema.BuildKey(0), refs, nil)
	require.NoError(t, err)

	buf, err := Encode(nil, Compressed(), compression.StateLz4, table)
	require.NoError(t, err)

	frame, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, schema.KindTable, frame.Header().Kind)
	assert.Equal(t, int64(3), frame.Header().AggregateRecordCount)

	got, err := frame.Table(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ExtentCount())
	assert.Equal(t, int64(3), got.RecordCount())
	assert.True(t, got.SortBy().EqualStrong(schema.BuildKey(0)))

	_, err = frame.Extent()
	assert.ErrorIs(t, err, cell.ErrFormat)
}

func TestReadExtentAndTable(t *testing.T) {
	e := testExtent(t)
	w := bits.NewGrowingBuffer(nil, binary.LittleEndian)
	Basic().WriteExtent(&w, e)

	got, err := Basic().ReadExtent(bits.NewReader(bytes.NewReader(w.Bytes()), binary.LittleEndian))
	require.NoError(t, err)
	assert.Equal(t, e.Count(), got.Count())

	_, err = Basic().ReadTable(bits.NewReader(bytes.NewReader(w.Bytes()), binary.LittleEndian), nil)
	assert.ErrorIs(t, err, cell.ErrFormat)
}

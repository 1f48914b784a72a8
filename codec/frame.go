package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/davecgh/go-spew/spew"

	"github.com/dot5enko/extent-store/bits"
	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/compression"
	"github.com/dot5enko/extent-store/extent"
	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

// FramePrefixSize is the version byte followed by the compression state byte.
const FramePrefixSize = 2

// dumped bytes of an undecodable payload
const dumpLimit = 64

// Encode serializes data into a file image: [version][state][payload]. dst is
// used as scratch space for the uncompressed payload and may be nil.
func Encode(dst []byte, p Provider, state compression.State, data extent.TabularData) ([]byte, error) {
	if cap(dst) == 0 {
		dst = make([]byte, 0, 4096)
	}
	w := bits.NewGrowingBuffer(dst[:0], binary.LittleEndian)

	switch x := data.(type) {
	case *extent.Extent:
		p.WriteExtent(&w, x)
	case *extent.Table:
		p.WriteTable(&w, x)
	default:
		return nil, fmt.Errorf("cannot encode %T: %w", data, cell.ErrFormat)
	}

	payload, err := compression.Compress(state, w.Bytes())
	if err != nil {
		return nil, err
	}

	out := make([]byte, FramePrefixSize+len(payload))
	out[0] = p.Version()
	out[1] = uint8(state)
	copy(out[FramePrefixSize:], payload)
	return out, nil
}

// Frame is a decoded file image.
type Frame struct {
	Version byte
	State   compression.State
	Meta    Meta
	Rows    []record.Record
}

// Decode reads a file image produced by Encode with any known version.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < FramePrefixSize {
		return nil, fmt.Errorf("frame of %d bytes: %w", len(buf), cell.ErrFormat)
	}

	p, err := ForVersion(buf[0])
	if err != nil {
		return nil, err
	}

	state := compression.State(buf[1])
	payload, err := compression.Decompress(state, buf[FramePrefixSize:])
	if err != nil {
		slog.Debug("undecodable frame", "version", buf[0], "state", state.String(), "dump", spew.Sdump(head(buf)))
		return nil, fmt.Errorf("frame payload: %w (%w)", err, cell.ErrFormat)
	}

	r := bits.NewReader(bytes.NewReader(payload), binary.LittleEndian)
	meta, err := p.ReadHeaderCollection(r)
	if err != nil {
		slog.Debug("undecodable payload", "version", buf[0], "dump", spew.Sdump(head(payload)))
		return nil, err
	}
	rows, err := p.ReadRecordCollection(r)
	if err != nil {
		return nil, fmt.Errorf("records of %s: %w", meta.Header.Path(), err)
	}

	return &Frame{Version: buf[0], State: state, Meta: meta, Rows: rows}, nil
}

func head(b []byte) []byte {
	return b[:min(len(b), dumpLimit)]
}

func (f *Frame) Header() schema.Header {
	return f.Meta.Header
}

// Extent builds the persisted extent held by the frame.
func (f *Frame) Extent() (*extent.Extent, error) {
	return f.Meta.extent(f.Rows)
}

// Table builds the table held by the frame, paging its extents through store.
func (f *Frame) Table(store extent.Store) (*extent.Table, error) {
	return f.Meta.table(f.Rows, store)
}

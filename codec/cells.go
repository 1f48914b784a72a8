package codec

import (
	"fmt"
	"unicode/utf16"

	"github.com/dot5enko/extent-store/bits"
	"github.com/dot5enko/extent-store/cell"
)

const nullFlag = 0x80

func readAffinity(b byte) (cell.Affinity, error) {
	a := cell.Affinity(b)
	if !a.Valid() {
		return 0, fmt.Errorf("cell affinity %d: %w", b, cell.ErrFormat)
	}
	return a, nil
}

func readBlob(r *bits.BitsReader) (cell.Cell, error) {
	n, err := r.ReadU32()
	if err != nil {
		return cell.Cell{}, truncated("blob length", err)
	}
	payload, err := r.ReadBytes(int(n))
	if err != nil {
		return cell.Cell{}, truncated("blob payload", err)
	}
	return cell.Blob(payload), nil
}

func writeBlob(w *bits.BitWriter, c cell.Cell) {
	payload := c.RawBlob()
	w.PutUint32(uint32(len(payload)))
	w.Write(payload)
}

// v1: [affinity][null] then the payload of a non-null cell.
type basicCells struct{}

func (basicCells) version() byte { return VersionBasic }

func (basicCells) writeCell(w *bits.BitWriter, c cell.Cell) {
	w.WriteByte(uint8(c.Affinity()))
	w.PutBool(c.IsNull())
	if c.IsNull() {
		return
	}

	switch c.Affinity() {
	case cell.AffinityBool:
		w.PutBool(c.ValueBool())
	case cell.AffinityString:
		units := utf16.Encode([]rune(c.RawString()))
		w.PutUint32(uint32(len(units)))
		for _, u := range units {
			w.WriteByte(uint8(u >> 8))
			w.WriteByte(uint8(u))
		}
	case cell.AffinityBlob:
		writeBlob(w, c)
	default:
		w.PutUint64(c.Bits())
	}
}

func (basicCells) readCell(r *bits.BitsReader) (cell.Cell, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return cell.Cell{}, truncated("cell affinity", err)
	}
	a, err := readAffinity(tag)
	if err != nil {
		return cell.Cell{}, err
	}

	null, err := r.ReadBool()
	if err != nil {
		return cell.Cell{}, truncated("cell null flag", err)
	}
	if null {
		return cell.Null(a), nil
	}

	switch a {
	case cell.AffinityBool:
		v, err := r.ReadBool()
		if err != nil {
			return cell.Cell{}, truncated("bool", err)
		}
		return cell.Bool(v), nil
	case cell.AffinityString:
		n, err := r.ReadU32()
		if err != nil {
			return cell.Cell{}, truncated("string length", err)
		}
		payload, err := r.ReadBytes(2 * int(n))
		if err != nil {
			return cell.Cell{}, truncated("string payload", err)
		}
		units := make([]uint16, n)
		for i := range units {
			units[i] = uint16(payload[2*i])<<8 | uint16(payload[2*i+1])
		}
		return cell.String(string(utf16.Decode(units))), nil
	case cell.AffinityBlob:
		return readBlob(r)
	}

	raw, err := r.ReadU64()
	if err != nil {
		return cell.Cell{}, truncated(a.String(), err)
	}
	return cell.FromBits(a, raw), nil
}

// v2: [affinity|null] then the payload. Scalars store a length token and only
// the low bytes that are set; strings keep the low byte of each UTF-16 unit.
type compressedCells struct{}

func (compressedCells) version() byte { return VersionCompressed }

// scalarWidth is the smallest of 0, 1, 2, 4, 8 bytes that holds raw.
func scalarWidth(raw uint64) int {
	switch {
	case raw == 0:
		return 0
	case raw <= 0xff:
		return 1
	case raw <= 0xffff:
		return 2
	case raw <= 0xffffffff:
		return 4
	}
	return 8
}

func (compressedCells) writeCell(w *bits.BitWriter, c cell.Cell) {
	tag := uint8(c.Affinity())
	if c.IsNull() {
		w.WriteByte(tag | nullFlag)
		return
	}
	w.WriteByte(tag)

	switch c.Affinity() {
	case cell.AffinityBool:
		w.PutBool(c.ValueBool())
	case cell.AffinityString:
		units := utf16.Encode([]rune(c.RawString()))
		w.PutUint32(uint32(len(units)))
		for _, u := range units {
			w.WriteByte(uint8(u))
		}
	case cell.AffinityBlob:
		writeBlob(w, c)
	default:
		raw := c.Bits()
		n := scalarWidth(raw)
		w.WriteByte(uint8(n))
		w.PutUintN(raw, n)
	}
}

func (compressedCells) readCell(r *bits.BitsReader) (cell.Cell, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return cell.Cell{}, truncated("cell tag", err)
	}
	a, err := readAffinity(tag &^ nullFlag)
	if err != nil {
		return cell.Cell{}, err
	}
	if tag&nullFlag != 0 {
		return cell.Null(a), nil
	}

	switch a {
	case cell.AffinityBool:
		v, err := r.ReadBool()
		if err != nil {
			return cell.Cell{}, truncated("bool", err)
		}
		return cell.Bool(v), nil
	case cell.AffinityString:
		n, err := r.ReadU32()
		if err != nil {
			return cell.Cell{}, truncated("string length", err)
		}
		payload, err := r.ReadBytes(int(n))
		if err != nil {
			return cell.Cell{}, truncated("string payload", err)
		}
		units := make([]uint16, n)
		for i, b := range payload {
			units[i] = uint16(b)
		}
		return cell.String(string(utf16.Decode(units))), nil
	case cell.AffinityBlob:
		return readBlob(r)
	}

	width, err := r.ReadU8()
	if err != nil {
		return cell.Cell{}, truncated("scalar width", err)
	}
	switch width {
	case 0, 1, 2, 4, 8:
	default:
		return cell.Cell{}, fmt.Errorf("scalar width %d: %w", width, cell.ErrFormat)
	}

	raw, err := r.ReadUintN(int(width))
	if err != nil {
		return cell.Cell{}, truncated(a.String(), err)
	}
	return cell.FromBits(a, raw), nil
}

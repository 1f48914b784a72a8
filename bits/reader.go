package bits

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var (
	ErrEOF          = errors.New("end of file")
	ErrReadMismatch = errors.New("read size mismatch")
)

const MaxBinReaderBufferSize = 8

type BitsReader struct {
	readBuffer [MaxBinReaderBufferSize]byte

	buf   io.Reader
	order binary.ByteOrder
}

func NewReader(buf io.Reader, order binary.ByteOrder) *BitsReader {
	return &BitsReader{buf: buf, order: order}
}

func (r *BitsReader) readNextBytesIntoReadBuffer(size int) error {
	readBytes, err := io.ReadFull(r.buf, r.readBuffer[:size])

	if err == io.EOF {
		return ErrEOF
	}

	if readBytes != size {
		return ErrReadMismatch
	}

	return err
}

func (r *BitsReader) ReadU8() (uint8, error) {
	err := r.readNextBytesIntoReadBuffer(1)

	if err != nil {
		return 0, err
	}

	return r.readBuffer[0], err
}

func (r *BitsReader) ReadBool() (bool, error) {
	u, err := r.ReadU8()
	return u != 0, err
}

func (r *BitsReader) ReadU16() (uint16, error) {

	err := r.readNextBytesIntoReadBuffer(2)

	if err != nil {
		return 0, err
	}

	v := r.order.Uint16(r.readBuffer[:2])
	return v, err
}

func (r *BitsReader) ReadU32() (uint32, error) {
	readErr := r.readNextBytesIntoReadBuffer(4)
	if readErr != nil {
		return 0, readErr
	}
	v := r.order.Uint32(r.readBuffer[:4])
	return v, nil
}

func (r *BitsReader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *BitsReader) ReadU64() (uint64, error) {

	readErr := r.readNextBytesIntoReadBuffer(8)
	if readErr != nil {
		return 0, readErr
	}

	v := r.order.Uint64(r.readBuffer[:8])
	return v, nil
}

func (r *BitsReader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *BitsReader) ReadF64() (float64, error) {
	u, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// ReadUintN reads the n low bytes of a 64 bit pattern, n in [0, 8]. The
// missing high bytes are zero.
func (r *BitsReader) ReadUintN(n int) (uint64, error) {
	if n < 0 || n > 8 {
		return 0, ErrReadMismatch
	}
	if n == 0 {
		return 0, nil
	}

	readErr := r.readNextBytesIntoReadBuffer(n)
	if readErr != nil {
		return 0, readErr
	}

	clear(r.readBuffer[n:])

	if r.order == binary.BigEndian {
		var v uint64
		for _, b := range r.readBuffer[:n] {
			v = v<<8 | uint64(b)
		}
		return v, nil
	}

	return r.order.Uint64(r.readBuffer[:8]), nil
}

// sized is a source that knows how many unread bytes it holds, like
// *bytes.Reader.
type sized interface {
	Len() int
}

// ReadBytes reads exactly n bytes into a fresh slice. Lengths come from file
// content, so n is checked against what the source still holds before
// anything is allocated.
func (r *BitsReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrReadMismatch
	}

	if s, ok := r.buf.(sized); ok {
		if n > s.Len() {
			return nil, ErrReadMismatch
		}
		out := make([]byte, n)
		if _, err := io.ReadFull(r.buf, out); err != nil {
			return nil, ErrReadMismatch
		}
		return out, nil
	}

	// unknown size: grow with the data instead of trusting n
	out, err := io.ReadAll(io.LimitReader(r.buf, int64(n)))
	if err != nil {
		return nil, err
	}
	if len(out) != n {
		if len(out) == 0 {
			return nil, ErrEOF
		}
		return nil, ErrReadMismatch
	}
	return out, nil
}

package compression

import (
	"bytes"
	"errors"
	"fmt"
)

// State is the byte stored after the version tag of every file. It names the
// algorithm the payload was compressed with.
type State uint8

const (
	StateNone State = 0
	StateLz4  State = 1
	StateZstd State = 2
)

var ErrUnknownState = errors.New("unknown compression state")

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateLz4:
		return "lz4"
	case StateZstd:
		return "zstd"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func ParseState(name string) (State, error) {
	switch name {
	case "", "none":
		return StateNone, nil
	case "lz4":
		return StateLz4, nil
	case "zstd":
		return StateZstd, nil
	}
	return StateNone, fmt.Errorf("`%s`: %w", name, ErrUnknownState)
}

// Compress encodes src with the algorithm named by state. StateNone returns
// src as is.
func Compress(state State, src []byte) ([]byte, error) {
	switch state {
	case StateNone:
		return src, nil
	case StateLz4:
		var out bytes.Buffer
		if err := CompressLz4(src, &out); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return out.Bytes(), nil
	case StateZstd:
		return CompressZstd(src), nil
	}
	return nil, fmt.Errorf("compress with %s: %w", state, ErrUnknownState)
}

func Decompress(state State, src []byte) ([]byte, error) {
	switch state {
	case StateNone:
		return src, nil
	case StateLz4:
		out, err := DecompressLz4(src)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil
	case StateZstd:
		out, err := DecompressZstd(src)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("decompress with %s: %w", state, ErrUnknownState)
}

// Package compress provides the block compression used by persisted records.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm of a block.
type Type uint8

const (
	// None stores blocks uncompressed.
	None Type = 0
	// LZ4 is fast block compression, good for scratch data.
	LZ4 Type = 1
	// ZSTD gives a better ratio, good for final outputs.
	ZSTD Type = 2
)

// String returns the name of the compression type.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(t))
	}
}

// ParseType returns the compression type for a name.
func ParseType(name string) (Type, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("unknown compression %q", name)
	}
}

var (
	// ErrCorrupt is returned when a block cannot be decoded.
	ErrCorrupt = errors.New("corrupt compressed block")

	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// headerSize is the size of the block header.
// Format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// A CompressedSize of 0 means the data is stored uncompressed.
const headerSize = 8

// Encode compresses data into a self-describing block. Data that does not
// shrink below 90% of its size is stored raw.
func Encode(data []byte, t Type) ([]byte, error) {
	var (
		packed []byte
		err    error
	)
	switch t {
	case None:
	case LZ4:
		packed, err = encodeLZ4(data)
	case ZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("unsupported compression %s", t)
	}
	if err != nil {
		return nil, err
	}

	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*0.9 {
		out := make([]byte, headerSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[headerSize:], data)
		return out, nil
	}

	out := make([]byte, headerSize+len(packed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))
	copy(out[headerSize:], packed)
	return out, nil
}

func encodeLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // Incompressible
	}
	return dst[:n], nil
}

// Decode reverses Encode.
func Decode(block []byte, t Type) ([]byte, error) {
	if len(block) < headerSize {
		return nil, fmt.Errorf("%w: block too small for header", ErrCorrupt)
	}
	rawSize := binary.LittleEndian.Uint32(block[0:])
	packedSize := binary.LittleEndian.Uint32(block[4:])

	if packedSize == 0 {
		if uint64(len(block)) < headerSize+uint64(rawSize) {
			return nil, fmt.Errorf("%w: truncated raw block", ErrCorrupt)
		}
		return block[headerSize : headerSize+rawSize], nil
	}
	if uint64(len(block)) < headerSize+uint64(packedSize) {
		return nil, fmt.Errorf("%w: truncated block", ErrCorrupt)
	}
	packed := block[headerSize : headerSize+packedSize]
	out := make([]byte, rawSize)

	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(packed, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(n) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(packed, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed block with compression %s", ErrCorrupt, t)
	}
}

package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/kpagg/internal/compress"
)

const (
	// MagicNumber identifies kpagg records (ASCII: "KPA0").
	MagicNumber = 0x4b504130
	// Version is the current record format version.
	Version = 0x00010000

	// HeaderSize is the encoded size of Header.
	HeaderSize = 32
)

// Kind identifies the record type.
type Kind uint8

const (
	KindCorrespondences Kind = 1
	KindKeypointSet     Kind = 2
	KindMatchArray      Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindCorrespondences:
		return "correspondences"
	case KindKeypointSet:
		return "keypoints"
	case KindMatchArray:
		return "matches"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidKind    = errors.New("unexpected record kind")
	ErrTruncated      = errors.New("truncated record")
)

// Header is the fixed header of every record.
type Header struct {
	Magic       uint32
	Version     uint32
	Kind        Kind
	Compression compress.Type
	Count       uint64
	PayloadSize uint32
	Checksum    uint32
}

func (h *Header) marshal(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], h.Magic)
	binary.LittleEndian.PutUint32(dst[4:], h.Version)
	dst[8] = byte(h.Kind)
	dst[9] = byte(h.Compression)
	dst[10], dst[11] = 0, 0
	binary.LittleEndian.PutUint64(dst[12:], h.Count)
	binary.LittleEndian.PutUint32(dst[20:], h.PayloadSize)
	binary.LittleEndian.PutUint32(dst[24:], h.Checksum)
	clear(dst[28:HeaderSize])
}

// ReadHeader parses and validates the header of a record.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), HeaderSize)
	}
	h := &Header{
		Magic:       binary.LittleEndian.Uint32(data[0:]),
		Version:     binary.LittleEndian.Uint32(data[4:]),
		Kind:        Kind(data[8]),
		Compression: compress.Type(data[9]),
		Count:       binary.LittleEndian.Uint64(data[12:]),
		PayloadSize: binary.LittleEndian.Uint32(data[20:]),
		Checksum:    binary.LittleEndian.Uint32(data[24:]),
	}
	if h.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, h.Version)
	}
	return h, nil
}

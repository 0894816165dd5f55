package persistence

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/internal/compress"
	"github.com/hupe1980/kpagg/internal/hash"
)

// EncodeCorrespondences encodes the correspondences of a pair.
func EncodeCorrespondences(c *core.Correspondences, comp compress.Type) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	n := c.Len()
	buf := make([]byte, 0, n*20)
	buf = appendKeypoints(buf, c.Keypoints0)
	buf = appendKeypoints(buf, c.Keypoints1)
	buf = appendFloat32s(buf, c.Scores)
	return seal(KindCorrespondences, uint64(n), buf, comp)
}

// DecodeCorrespondences decodes a record written by EncodeCorrespondences.
func DecodeCorrespondences(data []byte) (*core.Correspondences, error) {
	n, payload, err := open(data, KindCorrespondences, 20)
	if err != nil {
		return nil, err
	}
	return &core.Correspondences{
		Keypoints0: readKeypoints(payload[0:], n),
		Keypoints1: readKeypoints(payload[n*8:], n),
		Scores:     readFloat32s(payload[n*16:], n),
	}, nil
}

// EncodeKeypointSet encodes the canonical keypoint set of an image.
func EncodeKeypointSet(s *core.KeypointSet, comp compress.Type) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n := s.Len()
	buf := make([]byte, 0, n*12)
	buf = appendKeypoints(buf, s.Keypoints)
	buf = appendFloat32s(buf, s.Scores)
	return seal(KindKeypointSet, uint64(n), buf, comp)
}

// DecodeKeypointSet decodes a record written by EncodeKeypointSet.
func DecodeKeypointSet(data []byte) (*core.KeypointSet, error) {
	n, payload, err := open(data, KindKeypointSet, 12)
	if err != nil {
		return nil, err
	}
	return &core.KeypointSet{
		Keypoints: readKeypoints(payload[0:], n),
		Scores:    readFloat32s(payload[n*8:], n),
	}, nil
}

// EncodeMatchArray encodes the match array of a pair.
func EncodeMatchArray(m *core.MatchArray, comp compress.Type) ([]byte, error) {
	if len(m.Matches) != len(m.Scores) {
		return nil, fmt.Errorf("%w: matches=%d scores=%d", core.ErrLengthMismatch, len(m.Matches), len(m.Scores))
	}
	n := m.Len()
	buf := make([]byte, 0, n*8)
	for _, j := range m.Matches {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(j))
	}
	buf = appendFloat32s(buf, m.Scores)
	return seal(KindMatchArray, uint64(n), buf, comp)
}

// DecodeMatchArray decodes a record written by EncodeMatchArray.
func DecodeMatchArray(data []byte) (*core.MatchArray, error) {
	n, payload, err := open(data, KindMatchArray, 8)
	if err != nil {
		return nil, err
	}
	m := &core.MatchArray{
		Matches: make([]int32, n),
		Scores:  readFloat32s(payload[n*4:], n),
	}
	for i := range m.Matches {
		m.Matches[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return m, nil
}

func seal(kind Kind, count uint64, payload []byte, comp compress.Type) ([]byte, error) {
	block, err := compress.Encode(payload, comp)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", kind, err)
	}
	h := Header{
		Magic:       MagicNumber,
		Version:     Version,
		Kind:        kind,
		Compression: comp,
		Count:       count,
		PayloadSize: uint32(len(block)),
		Checksum:    hash.CRC32C(block),
	}
	out := make([]byte, HeaderSize+len(block))
	h.marshal(out)
	copy(out[HeaderSize:], block)
	return out, nil
}

// open validates a record and returns its entry count and raw payload.
func open(data []byte, kind Kind, entrySize int) (int, []byte, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return 0, nil, err
	}
	if h.Kind != kind {
		return 0, nil, fmt.Errorf("%w: want %s, got %s", ErrInvalidKind, kind, h.Kind)
	}
	if uint64(len(data)-HeaderSize) < uint64(h.PayloadSize) {
		return 0, nil, fmt.Errorf("%w: payload has %d of %d bytes", ErrTruncated, len(data)-HeaderSize, h.PayloadSize)
	}
	block := data[HeaderSize : HeaderSize+int(h.PayloadSize)]
	if sum := hash.CRC32C(block); sum != h.Checksum {
		return 0, nil, &ChecksumMismatchError{Expected: h.Checksum, Actual: sum}
	}
	payload, err := compress.Decode(block, h.Compression)
	if err != nil {
		return 0, nil, err
	}
	if h.Count > uint64(len(payload)/entrySize) || uint64(len(payload)) != h.Count*uint64(entrySize) {
		return 0, nil, fmt.Errorf("%w: %d entries need %d bytes, payload has %d", ErrTruncated, h.Count, h.Count*uint64(entrySize), len(payload))
	}
	return int(h.Count), payload, nil
}

func appendKeypoints(buf []byte, kps []core.Keypoint) []byte {
	for _, p := range kps {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(p.X))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(p.Y))
	}
	return buf
}

func appendFloat32s(buf []byte, vs []float32) []byte {
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func readKeypoints(src []byte, n int) []core.Keypoint {
	kps := make([]core.Keypoint, n)
	for i := range kps {
		kps[i].X = math.Float32frombits(binary.LittleEndian.Uint32(src[i*8:]))
		kps[i].Y = math.Float32frombits(binary.LittleEndian.Uint32(src[i*8+4:]))
	}
	return kps
}

func readFloat32s(src []byte, n int) []float32 {
	vs := make([]float32, n)
	for i := range vs {
		vs[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return vs
}

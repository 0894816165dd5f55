// Package persistence implements the binary record format for correspondences,
// keypoint sets and match arrays.
//
// Every record starts with a fixed 32-byte little-endian header:
//
//	Magic       uint32  "KPA0"
//	Version     uint32
//	Kind        uint8   1=Correspondences 2=KeypointSet 3=MatchArray
//	Compression uint8   see internal/compress
//	Padding     [2]byte
//	Count       uint64  number of entries
//	PayloadSize uint32  size of the (compressed) payload
//	Checksum    uint32  CRC32C of the (compressed) payload
//	Reserved    [4]byte
//
// The payload is column-oriented: all keypoints of a column, then the scores.
// Keypoints are stored as x,y float32 pairs and match indices as int32.
package persistence

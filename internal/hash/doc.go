// Package hash provides the CRC32-Castagnoli checksums that protect persisted
// records and run checkpoints.
//
// One-shot:
//
//	sum := hash.CRC32C(data)
//
// Streaming, e.g. when fingerprinting a pair plan:
//
//	h := hash.NewCRC32C()
//	h.Write(key0)
//	h.Write(key1)
//	sum := h.Sum32()
package hash

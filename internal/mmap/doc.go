// Package mmap maps record files read-only into memory.
//
// The local blob store opens correspondence and keypoint records through a
// Mapping and decodes them in place:
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	rec, err := persistence.DecodeCorrespondences(m.Bytes())
//
// Unix uses mmap(2) and madvise(2); Windows uses CreateFileMapping and
// MapViewOfFile, where Advise is a no-op.
package mmap

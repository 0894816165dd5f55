// Package codec encodes the JSON documents of a run: checkpoints and reports.
//
// Checkpoints record the name of the codec that wrote them, so a run can be
// resumed even after the default codec changes.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for newly written documents.
var Default Codec = GoJSON{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustByName is like ByName but returns an error naming the unknown codec.
func MustByName(name string) (Codec, error) {
	c, ok := ByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}
	return c, nil
}

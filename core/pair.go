package core

import "strings"

// PairSeparator joins the two image names of a pair key.
const PairSeparator = "/"

// Pair is an image pair as listed by the caller.
type Pair struct {
	Name0 string
	Name1 string
}

// Key returns the storage key of the pair in its listed direction.
func (p Pair) Key() string { return PairKey(p.Name0, p.Name1) }

// Reverse returns the pair with both sides swapped.
func (p Pair) Reverse() Pair { return Pair{Name0: p.Name1, Name1: p.Name0} }

// Unordered returns the pair with the lexicographically smaller name first.
func (p Pair) Unordered() Pair {
	if p.Name1 < p.Name0 {
		return p.Reverse()
	}
	return p
}

// PairKey builds the storage key of an ordered pair.
// Separators inside image names are replaced by "-" so the key splits back
// into exactly two names.
func PairKey(name0, name1 string) string {
	return strings.ReplaceAll(name0, PairSeparator, "-") + PairSeparator + strings.ReplaceAll(name1, PairSeparator, "-")
}

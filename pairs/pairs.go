// Package pairs reads, writes and generates image pair lists.
//
// A pair list holds one pair per line, the two image names separated by
// whitespace. The first name is the query.
package pairs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hupe1980/kpagg/core"
)

// Parse reads a pair list. Pairs are grouped by query in order of first
// appearance; blank lines and lines starting with '#' are ignored.
func Parse(r io.Reader) ([]core.Pair, error) {
	var (
		queries []string
		refs    = make(map[string][]string)
	)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 names, got %d", line, len(fields))
		}
		q, ref := fields[0], fields[1]
		if _, ok := refs[q]; !ok {
			queries = append(queries, q)
		}
		refs[q] = append(refs[q], ref)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	var out []core.Pair
	for _, q := range queries {
		for _, ref := range refs[q] {
			out = append(out, core.Pair{Name0: q, Name1: ref})
		}
	}
	return out, nil
}

// ReadFile parses the pair list at path.
func ReadFile(path string) ([]core.Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Write writes one pair per line.
func Write(w io.Writer, pairs []core.Pair) error {
	bw := bufio.NewWriter(w)
	for _, p := range pairs {
		if _, err := fmt.Fprintf(bw, "%s %s\n", p.Name0, p.Name1); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes a pair list to path.
func WriteFile(path string, pairs []core.Pair) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, pairs); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Dedupe drops self pairs and repeated unordered pairs, keeping the first
// listed direction.
func Dedupe(pairs []core.Pair) []core.Pair {
	seen := make(map[core.Pair]struct{}, len(pairs))
	out := make([]core.Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Name0 == p.Name1 {
			continue
		}
		u := p.Unordered()
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Images returns the distinct image names of pairs in first-seen order.
func Images(pairs []core.Pair) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range pairs {
		for _, name := range []string{p.Name0, p.Name1} {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	return out
}

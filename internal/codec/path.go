package codec

import (
	"encoding/json"
	"strings"
)

// Path is a dotted signal identifier compared case-insensitively. Two paths
// are equal iff their lowercase folds are equal; Fold is also what callers
// should use as a map key, since Path itself carries the original casing.
type Path struct {
	raw string
}

// NewPath wraps a raw path string.
func NewPath(raw string) Path {
	return Path{raw: raw}
}

// String returns the path as originally supplied.
func (p Path) String() string {
	return p.raw
}

// Fold returns the lowercase form used for equality, hashing, and indexing.
func (p Path) Fold() string {
	return strings.ToLower(p.raw)
}

// Equal reports whether two paths fold to the same lowercase string.
func (p Path) Equal(other Path) bool {
	return p.Fold() == other.Fold()
}

func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.raw)
}

func (p *Path) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	p.raw = s
	return nil
}

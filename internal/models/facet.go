package models

import (
	"encoding/json"
	"fmt"
)

// FacetValue is one body and its document count.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FacetCount maps body names to counts and remembers insertion order, so renderers can list
// bodies in the order the engine returned them. It encodes to JSON as an array of FacetValue.
type FacetCount struct {
	keys   []string
	counts map[string]int
}

// NewFacetCount builds a FacetCount from values in order. Later duplicates overwrite the count
// but keep the first position.
func NewFacetCount(values ...FacetValue) FacetCount {
	fc := FacetCount{counts: make(map[string]int, len(values))}
	for _, v := range values {
		fc.set(v.Value, v.Count)
	}
	return fc
}

func (fc *FacetCount) set(key string, count int) {
	if fc.counts == nil {
		fc.counts = make(map[string]int)
	}
	if _, ok := fc.counts[key]; !ok {
		fc.keys = append(fc.keys, key)
	}
	fc.counts[key] = count
}

// Get returns the count for key and whether key is present.
func (fc FacetCount) Get(key string) (int, bool) {
	c, ok := fc.counts[key]
	return c, ok
}

// Keys returns the bodies in insertion order.
func (fc FacetCount) Keys() []string {
	return append([]string(nil), fc.keys...)
}

// Len returns the number of bodies.
func (fc FacetCount) Len() int {
	return len(fc.keys)
}

// Total returns the sum of all counts.
func (fc FacetCount) Total() int {
	total := 0
	for _, c := range fc.counts {
		total += c
	}
	return total
}

// Values returns the entries in insertion order.
func (fc FacetCount) Values() []FacetValue {
	out := make([]FacetValue, 0, len(fc.keys))
	for _, k := range fc.keys {
		out = append(out, FacetValue{Value: k, Count: fc.counts[k]})
	}
	return out
}

// Clone returns an independent copy.
func (fc FacetCount) Clone() FacetCount {
	return NewFacetCount(fc.Values()...)
}

// Equal reports whether both maps hold the same bodies, counts and order.
func (fc FacetCount) Equal(o FacetCount) bool {
	if len(fc.keys) != len(o.keys) {
		return false
	}
	for i, k := range fc.keys {
		if o.keys[i] != k || o.counts[k] != fc.counts[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the facet map as an ordered array.
func (fc FacetCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(fc.Values())
}

// UnmarshalJSON decodes an ordered array of FacetValue.
func (fc *FacetCount) UnmarshalJSON(data []byte) error {
	var values []FacetValue
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to decode facet counts: %w", err)
	}
	*fc = NewFacetCount(values...)
	return nil
}

// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package values

import (
	"strings"
)

// HashEntry is a single key/value pair of a hash.
type HashEntry struct {
	Key   Value
	Value Value
}

// Hash is an insertion-ordered mapping of value to value. Key equality
// follows Equals, so string keys are case-insensitive.
type Hash struct {
	entries []HashEntry
	index   map[string]int
}

// NewHash returns an empty hash.
func NewHash() *Hash {
	return &Hash{index: make(map[string]int)}
}

// Len returns the number of entries.
func (h *Hash) Len() int {
	return len(h.entries)
}

// Entries returns the entries in insertion order. The returned slice is the
// hash's own backing storage and must not be modified.
func (h *Hash) Entries() []HashEntry {
	return h.entries
}

// Set inserts or replaces the value for key. Replacement keeps the key's
// original position.
func (h *Hash) Set(key, value Value) {
	k := canonicalKey(key)
	if i, ok := h.index[k]; ok {
		h.entries[i].Value = value
		return
	}
	h.index[k] = len(h.entries)
	h.entries = append(h.entries, HashEntry{Key: key, Value: value})
}

// Get returns the value for key and whether it was present.
func (h *Hash) Get(key Value) (Value, bool) {
	if i, ok := h.index[canonicalKey(key)]; ok {
		return h.entries[i].Value, true
	}
	return nil, false
}

// Merge returns a new hash containing the entries of h followed by those of
// other; keys present in both take other's value.
func (h *Hash) Merge(other *Hash) *Hash {
	result := NewHash()
	for _, e := range h.entries {
		result.Set(e.Key, e.Value)
	}
	for _, e := range other.entries {
		result.Set(e.Key, e.Value)
	}
	return result
}

func (h *Hash) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range h.entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.Key.String())
		b.WriteString(" => ")
		b.WriteString(e.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

// canonicalKey produces a type-tagged lookup key consistent with Equals:
// strings fold case, integers and floats of equal numeric value collide.
func canonicalKey(v Value) string {
	switch v := Deref(v).(type) {
	case Undef:
		return "u:"
	case Default:
		return "d:"
	case Boolean:
		return "b:" + v.String()
	case Integer:
		return "n:" + Float(v).String()
	case Float:
		return "n:" + v.String()
	case String:
		return "s:" + strings.ToLower(string(v))
	case *Regexp:
		return "r:" + v.Pattern
	case *Array:
		parts := make([]string, len(v.Elements))
		for i, e := range v.Elements {
			parts[i] = canonicalKey(e)
		}
		return "a:[" + strings.Join(parts, ",") + "]"
	case *Hash:
		parts := make([]string, 0, v.Len())
		for _, e := range v.Entries() {
			parts = append(parts, canonicalKey(e.Key)+"="+canonicalKey(e.Value))
		}
		return "h:{" + strings.Join(parts, ",") + "}"
	case Type:
		return "t:" + v.String()
	default:
		return "?:" + v.String()
	}
}

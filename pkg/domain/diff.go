package domain

import (
	"reflect"
	"sort"
)

// KeyDiff lists the keys that differ between two versions of a collection.
type KeyDiff struct {
	Added   []string `json:"added,omitempty"`
	Updated []string `json:"updated,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// DiffKeys compares two keyed collections.
// If old is nil, every key in next is reported as added (initial load).
func DiffKeys[T any](old, next map[string]T) KeyDiff {
	var d KeyDiff

	// Added or modified
	for k, newVal := range next {
		oldVal, exists := old[k]
		if !exists {
			d.Added = append(d.Added, k)
		} else if !reflect.DeepEqual(oldVal, newVal) {
			d.Updated = append(d.Updated, k)
		}
	}

	// Deletions
	for k := range old {
		if _, exists := next[k]; !exists {
			d.Removed = append(d.Removed, k)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Updated)
	sort.Strings(d.Removed)
	return d
}

// Keys returns every key touched by the diff.
func (d KeyDiff) Keys() []string {
	out := make([]string, 0, len(d.Added)+len(d.Updated)+len(d.Removed))
	out = append(out, d.Added...)
	out = append(out, d.Updated...)
	return append(out, d.Removed...)
}

// IsEmpty checks if the diff contains any changes.
func (d KeyDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Package snapshot holds the wire model streamed to cache viewers: an ordered
// list of display-only cache entries, how it is decoded and how it is rendered.
package snapshot

// CacheEntry is one displayable row. All fields are opaque strings; expiry is
// formatted by the producer and never interpreted here.
type CacheEntry struct {
	Key    string `json:"key" jsonschema:"required,description=Cache key"`
	Value  string `json:"value" jsonschema:"required,description=Display value"`
	Expiry string `json:"expiry" jsonschema:"required,description=Remaining lifetime as formatted by the producer"`
}

// Snapshot is the complete ordered set of entries carried by one message.
// A new Snapshot replaces the previous one; it is never merged or re-sorted.
type Snapshot []CacheEntry

// Clone returns a copy that shares no backing array with s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

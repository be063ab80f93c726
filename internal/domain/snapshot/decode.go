package snapshot

import (
	"fmt"

	"github.com/tidwall/gjson"
)

var entryFields = [...]string{"key", "value", "expiry"}

// Decode validates payload and returns the snapshot it carries. The payload
// must be a JSON array of objects whose key, value and expiry members are
// strings; other members are ignored. Any violation returns an error wrapping
// ErrMalformedMessage and a nil snapshot, never a partial one.
func Decode(payload []byte) (Snapshot, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrMalformedMessage)
	}

	doc := gjson.ParseBytes(payload)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: payload must be a JSON array, got %s", ErrMalformedMessage, describe(doc))
	}

	out := make(Snapshot, 0, 8)
	var decodeErr error
	index := 0
	doc.ForEach(func(_, item gjson.Result) bool {
		entry, err := decodeEntry(item)
		if err != nil {
			decodeErr = fmt.Errorf("%w: entry %d: %v", ErrMalformedMessage, index, err)
			return false
		}
		out = append(out, entry)
		index++
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	return out, nil
}

func decodeEntry(item gjson.Result) (CacheEntry, error) {
	if !item.IsObject() {
		return CacheEntry{}, fmt.Errorf("must be an object, got %s", describe(item))
	}

	var values [len(entryFields)]string
	for i, field := range entryFields {
		member := item.Get(field)
		if !member.Exists() {
			return CacheEntry{}, fmt.Errorf("missing %q", field)
		}
		if member.Type != gjson.String {
			return CacheEntry{}, fmt.Errorf("%q must be a string, got %s", field, describe(member))
		}
		values[i] = member.Str
	}

	return CacheEntry{Key: values[0], Value: values[1], Expiry: values[2]}, nil
}

func describe(r gjson.Result) string {
	switch {
	case r.IsArray():
		return "array"
	case r.IsObject():
		return "object"
	case r.Type == gjson.Null:
		return "null"
	case r.Type == gjson.True, r.Type == gjson.False:
		return "bool"
	case r.Type == gjson.Number:
		return "number"
	case r.Type == gjson.String:
		return "string"
	default:
		return "unknown"
	}
}

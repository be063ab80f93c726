package cacheitem

import (
	"errors"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)

func TestNewValidates(t *testing.T) {
	if _, err := New("  ", "v", time.Second, baseTime); !errors.Is(err, ErrKeyRequired) {
		t.Fatalf("New(blank key) error = %v, want ErrKeyRequired", err)
	}
	if _, err := New("a", "v", 0, baseTime); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("New(ttl=0) error = %v, want ErrInvalidTTL", err)
	}

	item, err := New(" a ", "1", 30*time.Second, baseTime)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if item.Key != "a" || !item.ExpiresAt.Equal(baseTime.Add(30*time.Second)) {
		t.Fatalf("New() = %+v", item)
	}
}

func TestExpiryBoundary(t *testing.T) {
	item := Item{Key: "a", ExpiresAt: baseTime}
	if item.IsExpired(baseTime.Add(-time.Nanosecond)) {
		t.Fatalf("item expired before deadline")
	}
	if !item.IsExpired(baseTime) {
		t.Fatalf("item should expire at deadline")
	}
	if got := item.Remaining(baseTime.Add(time.Minute)); got != 0 {
		t.Fatalf("Remaining() after deadline = %v, want 0", got)
	}
}

func TestEntry(t *testing.T) {
	item := Item{Key: "a", Value: "1", ExpiresAt: baseTime.Add(30 * time.Second)}
	entry := item.Entry(baseTime.Add(200 * time.Millisecond))
	if entry.Key != "a" || entry.Value != "1" || entry.Expiry != "30s" {
		t.Fatalf("Entry() = %+v", entry)
	}
}

func TestFormatRemaining(t *testing.T) {
	testCases := []struct {
		input time.Duration
		want  string
	}{
		{input: 30 * time.Second, want: "30s"},
		{input: 90*time.Second + 400*time.Millisecond, want: "1m30s"},
		{input: -time.Second, want: "0s"},
		{input: 0, want: "0s"},
	}

	for _, testCase := range testCases {
		if got := FormatRemaining(testCase.input); got != testCase.want {
			t.Fatalf("FormatRemaining(%v) = %q, want %q", testCase.input, got, testCase.want)
		}
	}
}

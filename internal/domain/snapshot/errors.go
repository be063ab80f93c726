package snapshot

import "errors"

var (
	// ErrMalformedMessage marks a payload that is not a valid snapshot. It is
	// local to one message: the message is dropped and the held snapshot kept.
	ErrMalformedMessage = errors.New("malformed snapshot message")

	// ErrConnection marks a stream that failed to open or closed unexpectedly.
	// It is terminal for that connection.
	ErrConnection = errors.New("snapshot stream connection failed")
)

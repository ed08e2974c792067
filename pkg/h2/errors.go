package h2

import "fmt"

// ConnectionError invalidates the whole connection. It is delivered once
// through OnError with stream 0, after which the codec refuses further
// input.
type ConnectionError struct {
	Code   ErrorCode
	Reason string
}

func (e *ConnectionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("connection error: %s", e.Code)
	}
	return fmt.Sprintf("connection error: %s: %s", e.Code, e.Reason)
}

// StreamError is local to one request or response. It is delivered
// through OnError with the offending stream id and newTxn set; parsing
// continues.
type StreamError struct {
	StreamID   uint32
	StatusCode int
	Reason     string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error: stream=%d status=%d: %s", e.StreamID, e.StatusCode, e.Reason)
}

func newStreamError(streamID uint32, reason string) *StreamError {
	return &StreamError{StreamID: streamID, StatusCode: 400, Reason: reason}
}

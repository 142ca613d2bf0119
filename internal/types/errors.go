package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrTranscriptUnavailable means the video has no usable captions.
	ErrTranscriptUnavailable = errors.New("transcript unavailable")

	// ErrSearchUnavailable means every search lookup failed.
	ErrSearchUnavailable = errors.New("search unavailable")
)

// ReasoningError reports an unreachable reasoning service or output that
// could not be parsed into the expected shape.
type ReasoningError struct {
	Op  string
	Err error
}

func (e *ReasoningError) Error() string {
	return fmt.Sprintf("reasoning %s: %v", e.Op, e.Err)
}

func (e *ReasoningError) Unwrap() error { return e.Err }

// ClipExtractionError covers stream resolution, transcode and timeout
// failures of a partial clip fetch.
type ClipExtractionError struct {
	VideoID string
	Range   TimeRange
	Stage   string
	Err     error
}

func (e *ClipExtractionError) Error() string {
	return fmt.Sprintf("extract clip %s [%s] (%s): %v", e.VideoID, e.Range, e.Stage, e.Err)
}

func (e *ClipExtractionError) Unwrap() error { return e.Err }

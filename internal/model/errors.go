package model

import "errors"

var (
	// ErrDetectorUnavailable means a category's detector is missing, failed or timed out.
	ErrDetectorUnavailable = errors.New("detector unavailable")
	// ErrOCRTimeout means text extraction did not finish within its deadline.
	ErrOCRTimeout = errors.New("ocr timeout")
	// ErrOCRFailure means the OCR engine returned an error.
	ErrOCRFailure = errors.New("ocr failure")
	// ErrCorruptFrame means a frame could not be decoded or has no pixels.
	ErrCorruptFrame = errors.New("corrupt frame")
	// ErrFlushFailed means session statistics could not be persisted.
	ErrFlushFailed = errors.New("stats flush failed")
	// ErrStreamDeactivated is returned for work cut short by stream deactivation.
	ErrStreamDeactivated = errors.New("stream deactivated")
	// ErrProfileNotFound is returned by profile stores for unknown names.
	ErrProfileNotFound = errors.New("profile not found")
)

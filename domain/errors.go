package domain

import "errors"

var (
	// ErrNotFound indicates a missing input such as a corpus directory or an audio file.
	ErrNotFound = errors.New("not found")

	// ErrUpstream indicates a generation, embedding or transcription backend failed.
	ErrUpstream = errors.New("upstream failure")

	// ErrEmptyResult indicates an operation finished without producing output.
	ErrEmptyResult = errors.New("empty result")
)

package models

import (
	"fmt"
)

// FormatError reports a missing required column or an unparsable value
// in the source file
type FormatError struct {
	Column  string
	Line    int
	Value   string
	Message string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("format error at line %d, column %q (value %q): %s", e.Line, e.Column, e.Value, e.Message)
	}
	return fmt.Sprintf("format error in column %q: %s", e.Column, e.Message)
}

// IsTransient returns false as a malformed file stays malformed
func (e *FormatError) IsTransient() bool {
	return false
}

// EmptyDatasetError reports that a stage was left without any rows
type EmptyDatasetError struct {
	Stage string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("empty dataset after stage %s", e.Stage)
}

// IsTransient returns false
func (e *EmptyDatasetError) IsTransient() bool {
	return false
}

// NetworkError reports a failed download of the upstream source
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsTransient returns true; the pipeline never retries but callers may
func (e *NetworkError) IsTransient() bool {
	return true
}

// StageError wraps a failure with the pipeline stage it happened in and the
// size of the table at that point
type StageError struct {
	Stage   string
	Rows    int
	Regions int
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (rows=%d, regions=%d): %v", e.Stage, e.Rows, e.Regions, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ValidationError represents a rejected query parameter
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// IsTransient returns false as validation errors are not transient
func (e *ValidationError) IsTransient() bool {
	return false
}

package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPoolExhausted is returned when every proxy endpoint stayed in cooldown
	// past the acquire timeout.
	ErrPoolExhausted = errors.New("proxy pool exhausted")
	// ErrFetchFailed is returned when all fetch attempts for a page failed.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrParseFailure marks a response whose structure no longer matches what
	// the adapter expects.
	ErrParseFailure = errors.New("parse failure")
	// ErrOracleUnavailable means the scoring oracle could not be reached or did
	// not answer in time.
	ErrOracleUnavailable = errors.New("scoring oracle unavailable")
	// ErrConfigInvalid is returned for configuration or query errors that make a
	// run impossible.
	ErrConfigInvalid = errors.New("invalid configuration")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Blocked reports whether the status is an explicit rate-limit or bot-block signal.
func (e *HTTPError) Blocked() bool {
	return e.StatusCode == 429 || e.StatusCode == 403
}

// FetchError is returned by the fetch executor once retries are exhausted.
type FetchError struct {
	Source string
	Cause  error // last error observed
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrFetchFailed, e.Source, e.Cause)
}

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

func (e *FetchError) Unwrap() error { return e.Cause }

// ParseError reports schema drift in a source response. Sample holds the head
// of the offending body.
type ParseError struct {
	Source string
	Sample string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrParseFailure, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrParseFailure, e.Source)
}

func (e *ParseError) Is(target error) bool { return target == ErrParseFailure }

func (e *ParseError) Unwrap() error { return e.Err }

const sampleSize = 200

// NewParseError builds a ParseError keeping a short sample of body.
func NewParseError(source string, body []byte, err error) *ParseError {
	sample := body
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	return &ParseError{Source: source, Sample: string(sample), Err: err}
}

package services

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyCV means there is no CV text to analyse; the provider is never called.
	ErrEmptyCV = errors.New("CV text is empty")
	// ErrNoText is returned when a document has no extractable text layer.
	ErrNoText = errors.New("no text content found in document")
	// ErrUnsupportedDocument is returned for uploads that are not PDF, DOCX or plain text.
	ErrUnsupportedDocument = errors.New("unsupported document type")
	// ErrEmptyResponse is returned when the provider answers without any text,
	// typically because a safety filter suppressed the output.
	ErrEmptyResponse = errors.New("provider returned no text")
	// ErrShutdown is the cancellation cause of jobs interrupted by a worker stop.
	ErrShutdown = errors.New("worker shutting down")
)

// ProviderError is a failed call to the text-generation provider, reduced to
// the HTTP-ish status the provider reported.
type ProviderError struct {
	Code    int
	Status  string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("provider error %d (%s): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports a rate-limit, quota or overload condition worth retrying.
func (e *ProviderError) Transient() bool {
	switch {
	case e.Code == http.StatusTooManyRequests, e.Code == http.StatusServiceUnavailable:
		return true
	case e.Status == "RESOURCE_EXHAUSTED", e.Status == "UNAVAILABLE":
		return true
	}
	return false
}

// IsTransient classifies err into the transient/permanent split used by the
// retry loop.
func IsTransient(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient()
	}
	return false
}

// GenerationError aborts an analysis when one of the chained generation
// calls produced a diagnostic instead of content.
type GenerationError struct {
	Step       string
	Diagnostic string
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Step, e.Diagnostic)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

package models

import "fmt"

// InvalidInputError is a client mistake, such as uploading a non-PDF file.
type InvalidInputError struct {
	Filename string
	Reason   string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Filename, e.Reason)
}

// ExtractionError means the PDF could not be read.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %q: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UpstreamError is a failed or malformed completion API response. Body holds
// whatever the upstream returned, for diagnostics.
type UpstreamError struct {
	Body string
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return "upstream error: " + e.Body
	}
	return fmt.Sprintf("upstream error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

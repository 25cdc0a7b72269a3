package downloader

import (
	"regexp"
	"strings"
)

const (
	NetworkIssueMessage   = "Temporary network issue. Please try again in a few seconds."
	GenericFailureMessage = "Download failed. The video may be unavailable."
)

// ErrorKind classifies why an extraction failed.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindUnavailable ErrorKind = "unavailable"
	KindUnsupported ErrorKind = "unsupported"
	KindUnknown     ErrorKind = "unknown"
)

// ExtractionError is returned by every Extractor on failure. Message is the
// raw engine text and may still carry terminal colors or an "ERROR: " prefix.
type ExtractionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

var (
	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	resolveSignatures = []string{"getaddrinfo failed", "Failed to resolve"}
)

// Normalize turns a raw extractor message into text fit for the form.
func Normalize(raw string) string {
	cleaned := ansiEscape.ReplaceAllString(raw, "")
	cleaned = strings.TrimPrefix(cleaned, "ERROR: ")
	cleaned = strings.TrimSpace(cleaned)

	for _, sig := range resolveSignatures {
		if strings.Contains(cleaned, sig) {
			return NetworkIssueMessage
		}
	}
	if cleaned == "" {
		return GenericFailureMessage
	}
	return cleaned
}

// UserMessage maps an extraction failure to its form text, preferring the
// classified kind over the message wording.
func (e *ExtractionError) UserMessage() string {
	if e.Kind == KindNetwork {
		return NetworkIssueMessage
	}
	return Normalize(e.Message)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job id is unknown to the store
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyFinalized is returned when finalizing a job that is no longer ongoing
	ErrJobAlreadyFinalized = errors.New("job already finalized")

	// ErrStoreNotFound is recorded for visits referencing an unknown store
	ErrStoreNotFound = errors.New(StoreNotFoundMessage)

	// ErrInvalidDimensions is returned when a decoded image reports no usable size
	ErrInvalidDimensions = errors.New("Invalid image dimensions")
)

// ResolveErrorKind classifies image resolution failures
type ResolveErrorKind string

const (
	ResolveErrorFetch      ResolveErrorKind = "fetch"
	ResolveErrorStatus     ResolveErrorKind = "status"
	ResolveErrorDecode     ResolveErrorKind = "decode"
	ResolveErrorDimensions ResolveErrorKind = "dimensions"
	ResolveErrorInternal   ResolveErrorKind = "internal"
)

// ResolveError describes why an image URL could not be turned into a metric
type ResolveError struct {
	Kind       ResolveErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *ResolveError) Error() string {
	return "Image processing error: " + e.detail()
}

func (e *ResolveError) detail() string {
	switch e.Kind {
	case ResolveErrorStatus:
		return fmt.Sprintf("Failed to download image. Status: %d", e.StatusCode)
	case ResolveErrorDimensions:
		return ErrInvalidDimensions.Error()
	case ResolveErrorFetch:
		return fmt.Sprintf("Failed to download image: %v", e.Err)
	case ResolveErrorDecode:
		return fmt.Sprintf("Input buffer contains unsupported image format: %v", e.Err)
	default:
		return fmt.Sprintf("internal fault: %v", e.Err)
	}
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// NewResolveError creates a ResolveError for url
func NewResolveError(kind ResolveErrorKind, url string, err error) *ResolveError {
	return &ResolveError{Kind: kind, URL: url, Err: err}
}

// IsResolveKind reports whether err is a ResolveError of the given kind
func IsResolveKind(err error, kind ResolveErrorKind) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidResourceDescriptor is the sentinel matched by errors.Is for any
	// source URL that does not name a staging file.
	ErrInvalidResourceDescriptor = errors.New("invalid resource descriptor")

	// ErrNoBody is returned by a fetcher when the transport produced no retrievable body.
	ErrNoBody = errors.New("response has no body")
)

// InvalidResourceDescriptorError represents a source URL from which no usable
// filename could be derived.
type InvalidResourceDescriptorError struct {
	URL    string // The raw source URL
	Reason string // Human-readable explanation of why no filename was derived
}

func (e *InvalidResourceDescriptorError) Error() string {
	return fmt.Sprintf("invalid resource descriptor %q: %s", e.URL, e.Reason)
}

func (e *InvalidResourceDescriptorError) Unwrap() error {
	return ErrInvalidResourceDescriptor
}

// NetworkError represents transport failures while fetching a resource, including
// non-2xx responses and connection errors.
type NetworkError struct {
	Operation  string // The operation that failed (e.g., "fetch")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	APIMessage string // Error message from the remote end or network layer
	Err        error  // Underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.APIMessage)
	}

	return fmt.Sprintf("network error during %s: %s", e.Operation, e.APIMessage)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StorageError represents a failure reported by the object store.
type StorageError struct {
	Operation string // The store operation that failed (e.g., "put_object")
	Bucket    string
	Key       string
	Err       error // Underlying error, passed through from the store client
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("object store error during %s for s3://%s/%s", e.Operation, e.Bucket, e.Key)
	}

	return fmt.Sprintf("object store error during %s for s3://%s/%s: %v", e.Operation, e.Bucket, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

package upload

import (
	"context"
	"errors"
	"fmt"
)

// Meta identifies the download a set of files came from.
type Meta struct {
	GID  string
	Name string
}

// Backend ships a finished download's files to one destination.
// Implementations must tolerate concurrent Upload calls for distinct
// downloads and re-uploads of the same files after a partial failure.
type Backend interface {
	Name() string
	Upload(ctx context.Context, files []string, meta Meta) error
	Validate() error
}

// BackendError carries a retryability verdict for a failed upload.
type BackendError struct {
	Backend   string
	Permanent bool
	Err       error
}

func (e *BackendError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s upload failed (%s): %v", e.Backend, kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying, such as a missing source file
// or a rejected credential.
func Permanent(backend string, err error) error {
	return &BackendError{Backend: backend, Permanent: true, Err: err}
}

// Transient marks err as retryable.
func Transient(backend string, err error) error {
	return &BackendError{Backend: backend, Err: err}
}

// IsPermanent reports whether err was classified permanent. Unclassified
// errors count as transient so the attempt ceiling decides.
func IsPermanent(err error) bool {
	var backendErr *BackendError
	return errors.As(err, &backendErr) && backendErr.Permanent
}

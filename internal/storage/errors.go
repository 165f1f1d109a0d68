package storage

import (
	"errors"
	"fmt"
)

// ErrArtifactIO indicates a trial artifact could not be opened, written or closed.
var ErrArtifactIO = errors.New("storage: artifact i/o failed")

// ArtifactError wraps a filesystem error with the artifact it concerns.
type ArtifactError struct {
	Op   string
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

func (e *ArtifactError) Is(target error) bool { return target == ErrArtifactIO }

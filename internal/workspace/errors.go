package workspace

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrRecursiveImport means the source is the data root, the target, or an
	// ancestor of either.
	ErrRecursiveImport = errors.New("recursive import")

	// ErrAlreadyExists means the destination path is already occupied.
	ErrAlreadyExists = errors.New("destination already exists")

	// ErrCopyFailed is matched by every *CopyError.
	ErrCopyFailed = errors.New("copy failed")

	// ErrChecksumMismatch is reported when post-copy verification finds a
	// destination file whose content differs from its source.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// CopyError carries the proximate cause of a failed item: which step failed,
// on which path, and the native error.
type CopyError struct {
	Op   string
	Path string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrCopyFailed) match any CopyError.
func (e *CopyError) Is(target error) bool {
	return target == ErrCopyFailed
}

package mergeodf

import (
	"errors"
	"fmt"

	"github.com/OSSII/oxool-module-mergeodf/odf"
)

// Sentinel errors for merge failure conditions. The first three are
// session-fatal; the rest mark per-placeholder failures that the binder
// reports as diagnostics while the merge continues.
var (
	ErrTemplateIO       = odf.ErrIO
	ErrTemplateFormat   = odf.ErrFormat
	ErrRepack           = odf.ErrRepack
	ErrDescriptorFormat = errors.New("mergeodf: malformed placeholder descriptor")
	ErrDataShape        = errors.New("mergeodf: group value is not a sequence")
	ErrEncoding         = errors.New("mergeodf: embedded file data is not valid base64")
)

// MergeError represents an error that occurred during a specific merge
// operation. It wraps an underlying error and includes the operation name
// for context.
type MergeError struct {
	Op  string // operation name, e.g. "Extract", "Repack"
	Err error  // underlying error
}

func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mergeodf.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("mergeodf.%s: unknown error", e.Op)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// newMergeError creates a new MergeError wrapping the given error with
// operation context.
func newMergeError(op string, err error) *MergeError {
	return &MergeError{Op: op, Err: err}
}

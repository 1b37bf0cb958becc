// errors.go: structured error handling for transtable operations.
//
// Configuration and allocation errors use github.com/agilira/go-errors for
// rich context, error codes, and retryable/severity metadata: configuration
// errors are rejected before entering the core, allocation failure is
// fatal, and probe/write are infallible and never return an error at all.
//
// Copyright (c) 2025 Corvid Chess contributors
// SPDX-License-Identifier: MPL-2.0
package transtable

import (
	goerrors "errors"
	"fmt"
	"os"

	errors "github.com/agilira/go-errors"
)

// Error codes for transtable operations.
const (
	ErrCodeInvalidSize  errors.ErrorCode = "TRANSTABLE_INVALID_SIZE"
	ErrCodeSizeOverflow errors.ErrorCode = "TRANSTABLE_SIZE_OVERFLOW"
	ErrCodeAllocFailed  errors.ErrorCode = "TRANSTABLE_ALLOC_FAILED"
	ErrCodeInvalidDepth errors.ErrorCode = "TRANSTABLE_INVALID_DEPTH"
)

const (
	msgInvalidSize  = "invalid table size: megabytes must be greater than 0"
	msgSizeOverflow = "table size overflows cluster addressing"
	msgAllocFailed  = "failed to allocate transposition table memory"
	msgInvalidDepth = "save depth out of the representable range"
)

// NewErrInvalidSize reports a non-positive table size, rejected before the
// core ever attempts to allocate.
func NewErrInvalidSize(mb int) error {
	return errors.NewWithContext(ErrCodeInvalidSize, msgInvalidSize, map[string]interface{}{
		"provided_mb":      mb,
		"minimum_required": 1,
	})
}

// NewErrSizeOverflow reports a table size whose cluster count is zero or
// whose cluster_count times the in-memory Cluster size (goClusterSize)
// overflows a uint64.
func NewErrSizeOverflow(mb int) error {
	return errors.NewWithContext(ErrCodeSizeOverflow, msgSizeOverflow, map[string]interface{}{
		"provided_mb": mb,
	})
}

// NewErrAllocFailed wraps an allocator failure with the size that was
// requested. This is fatal: no useful search can proceed without a
// transposition table, so the library marks it severity "critical" and
// leaves the decision to terminate the process to the caller -- except
// via FatalAllocError, which makes that decision explicit for callers
// that want an abort-with-diagnostic behavior.
func NewErrAllocFailed(mb int, clusterCount uint64, cause error) error {
	return errors.Wrap(cause, ErrCodeAllocFailed, msgAllocFailed).
		WithContext("requested_mb", mb).
		WithContext("cluster_count", clusterCount).
		WithSeverity("critical")
}

// NewErrInvalidDepth reports a save depth outside
// (DepthEntryOffset, DepthEntryOffset+256). The core clamps and continues
// rather than returning this to a caller (probe/write are infallible);
// it exists so tests and Logger implementations have a stable code to
// match on.
func NewErrInvalidDepth(depth int) error {
	return errors.NewWithContext(ErrCodeInvalidDepth, msgInvalidDepth, map[string]interface{}{
		"provided_depth": depth,
		"min_exclusive":  DepthEntryOffset,
		"max_exclusive":  DepthEntryOffset + 256,
	})
}

// FatalAllocError logs err via log at Error severity, writes a diagnostic
// to the standard error stream, and terminates the process. It is never
// called automatically by Resize; callers that want that fatal behavior
// call it themselves from the error Resize returns.
func FatalAllocError(log Logger, err error) {
	if log == nil {
		log = NoOpLogger{}
	}
	log.Error("transtable: fatal allocation failure, terminating", "error", err)
	fmt.Fprintln(os.Stderr, "transtable: fatal:", err)
	os.Exit(1)
}

// IsAllocFailed reports whether err is an allocation failure.
func IsAllocFailed(err error) bool {
	return errors.HasCode(err, ErrCodeAllocFailed)
}

// IsInvalidSize reports whether err is an invalid-size configuration error.
func IsInvalidSize(err error) bool {
	return errors.HasCode(err, ErrCodeInvalidSize) || errors.HasCode(err, ErrCodeSizeOverflow)
}

// GetErrorCode extracts the error code from err, if any.
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

package spreadsheet

import "fmt"

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// InvalidArgument indicates client specified an invalid argument, such as a
	// malformed cell label.
	InvalidArgument AppErrorCode = 3

	// OutOfRange means operation was attempted past the valid range, e.g. a
	// cell outside the grid or grid dimensions past the configured limits.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not cell evaluation
// errors, which are recorded on the cell)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func outOfBounds(addr Address, rows, columns int) *AppError {
	return NewApplicationError(OutOfRange,
		fmt.Sprintf("cell %s (row %d, column %d) is outside the %dx%d grid",
			addr, addr.Row, addr.Column, rows, columns))
}

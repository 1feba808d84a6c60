package repositories

import "fmt"

// PrintOrderErrorCode enumerates failure reasons for print job mutations.
type PrintOrderErrorCode string

const (
	// PrintOrderErrorUnknown represents an unspecified failure.
	PrintOrderErrorUnknown PrintOrderErrorCode = "print_order_unknown"
	// PrintOrderErrorInvalidState indicates the print job's status forbids the operation.
	PrintOrderErrorInvalidState PrintOrderErrorCode = "print_order_invalid_state"
	// PrintOrderErrorInvalidInput indicates the caller supplied invalid arguments.
	PrintOrderErrorInvalidInput PrintOrderErrorCode = "print_order_invalid_input"
)

// PrintOrderError wraps print job failures with machine readable codes.
type PrintOrderError struct {
	Op      string
	Code    PrintOrderErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PrintOrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *PrintOrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewPrintOrderError constructs a typed print order error.
func NewPrintOrderError(code PrintOrderErrorCode, message string, err error) *PrintOrderError {
	if message == "" {
		message = string(code)
	}
	return &PrintOrderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

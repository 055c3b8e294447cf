package domain

import (
	"errors"
	"fmt"
)

// --- Sentinel Errors (specific, fixed error instances) ---
var (
	// Test-setup errors (fatal for the test that hit them, never retried)
	ErrAccountNotResolved = errors.New("account fixture not found in directory")
	ErrConfigSourceInit   = errors.New("configuration source could not be constructed")

	// System / configuration errors
	ErrPoolCreation         = errors.New("failed to create new ants dispatch pool")
	ErrTaskSubmissionToPool = errors.New("failed to submit report to dispatch pool")
)

// --- Custom Error Structs (can wrap underlying errors) ---

// ErrDataProcessing wraps errors that occur while parsing or building outcome
// payloads. It implies the issue is with the data itself, not with an
// external system.
type ErrDataProcessing struct {
	Stage string // e.g., "unmarshal_outcome_report", "marshal_outcome_report", "parse_timezone"
	Suite string // Optional, if relevant to the stage
	Err   error
}

func NewErrDataProcessing(stage, suite string, cause error) *ErrDataProcessing {
	return &ErrDataProcessing{Stage: stage, Suite: suite, Err: cause}
}
func (e *ErrDataProcessing) Error() string {
	if e.Suite != "" {
		return fmt.Sprintf("data processing failed at stage '%s' for suite '%s': %v", e.Stage, e.Suite, e.Err)
	}
	return fmt.Sprintf("data processing failed at stage '%s': %v", e.Stage, e.Err)
}
func (e *ErrDataProcessing) Unwrap() error { return e.Err }

// ErrExternalService wraps errors from external services like the NATS
// publisher or the Redis stores. These might be transient and could warrant a
// retry (Nack on the reporter side).
type ErrExternalService struct {
	Service string // e.g., "NATS_publisher", "Redis_dedup", "Redis_account_directory"
	Err     error
}

func NewErrExternalService(service string, cause error) *ErrExternalService {
	return &ErrExternalService{Service: service, Err: cause}
}
func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service '%s' operation failed: %v", e.Service, e.Err)
}
func (e *ErrExternalService) Unwrap() error { return e.Err }

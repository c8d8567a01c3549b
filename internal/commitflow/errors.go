package commitflow

import (
	"errors"
	"fmt"
)

const (
	stepErrorTemplateConstant           = "commit workflow failed after %s: %v"
	targetBranchRequiredMessageConstant = "target branch required"
	messageRequiredMessageConstant      = "commit message required"
	dependenciesMissingMessageConstant  = "commit workflow dependencies missing object service"
	negativeRetryLimitMessageConstant   = "conflict retry limit cannot be negative"
)

var (
	// ErrTargetBranchRequired indicates the request did not name a branch to commit to.
	ErrTargetBranchRequired = errors.New(targetBranchRequiredMessageConstant)
	// ErrMessageRequired indicates the request carried a blank commit message.
	ErrMessageRequired = errors.New(messageRequiredMessageConstant)
	// ErrServiceNotConfigured indicates the workflow was constructed without an object service.
	ErrServiceNotConfigured = errors.New(dependenciesMissingMessageConstant)
	// ErrNegativeRetryLimit indicates an invalid ConflictRetryLimit option.
	ErrNegativeRetryLimit = errors.New(negativeRetryLimitMessageConstant)
)

// StepError reports the last state the workflow reached before failing.
type StepError struct {
	LastState State
	Cause     error
}

// Error describes the failure.
func (stepError StepError) Error() string {
	return fmt.Sprintf(stepErrorTemplateConstant, stepError.LastState, stepError.Cause)
}

// Unwrap exposes the underlying failure so callers can match gitdata error kinds.
func (stepError StepError) Unwrap() error {
	return stepError.Cause
}

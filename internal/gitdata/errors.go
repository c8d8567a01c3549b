package gitdata

import (
	"errors"
	"fmt"
)

const (
	notFoundKindMessageConstant             = "not found"
	conflictKindMessageConstant             = "conflict"
	remoteFailureKindMessageConstant        = "remote failure"
	operationErrorTemplateConstant          = "%s failed (%s)"
	operationErrorWithCauseTemplateConstant = "%s failed (%s): %v"
	invalidInputErrorTemplateConstant       = "%s: %s"
	serviceNotConfiguredMessageConstant     = "object service not configured"
	emptyHashResponseMessageConstant        = "service returned an empty object hash"
)

// OperationName identifies a git data operation in errors and logs.
type OperationName string

// Git data operations.
const (
	OperationGetBranch    OperationName = OperationName("GetBranch")
	OperationGetCommit    OperationName = OperationName("GetCommit")
	OperationGetTree      OperationName = OperationName("GetTree")
	OperationGetBlob      OperationName = OperationName("GetBlob")
	OperationCreateBlob   OperationName = OperationName("CreateBlob")
	OperationCreateTree   OperationName = OperationName("CreateTree")
	OperationCreateCommit OperationName = OperationName("CreateCommit")
	OperationCreateRef    OperationName = OperationName("CreateRef")
	OperationUpdateRef    OperationName = OperationName("UpdateRef")
	OperationGetRef       OperationName = OperationName("GetRef")
	OperationDeleteRef    OperationName = OperationName("DeleteRef")
)

var (
	// ErrNotFound marks a missing branch, reference, tree entry or object.
	ErrNotFound = errors.New(notFoundKindMessageConstant)
	// ErrConflict marks a reference that already exists or moved unexpectedly.
	ErrConflict = errors.New(conflictKindMessageConstant)
	// ErrRemoteFailure marks transport, authentication, rate limit and other service failures.
	ErrRemoteFailure = errors.New(remoteFailureKindMessageConstant)
	// ErrServiceNotConfigured indicates a component was constructed without an ObjectService.
	ErrServiceNotConfigured = errors.New(serviceNotConfiguredMessageConstant)

	errEmptyHashResponse = errors.New(emptyHashResponseMessageConstant)
)

// OperationError reports a failed git data operation together with its kind.
type OperationError struct {
	Operation OperationName
	Kind      error
	Cause     error
}

// NewOperationError classifies a cause under the provided kind.
func NewOperationError(operation OperationName, kind error, cause error) OperationError {
	return OperationError{Operation: operation, Kind: kind, Cause: cause}
}

// Error describes the failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.kind())
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.kind(), operationError.Cause)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (operationError OperationError) Unwrap() []error {
	unwrapped := []error{operationError.kind()}
	if operationError.Cause != nil {
		unwrapped = append(unwrapped, operationError.Cause)
	}
	return unwrapped
}

func (operationError OperationError) kind() error {
	if operationError.Kind == nil {
		return ErrRemoteFailure
	}
	return operationError.Kind
}

// InvalidInputError surfaces local validation failures.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// KindOf returns the taxonomy sentinel carried by the error.
// Unclassified errors are remote failures.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict
	default:
		return ErrRemoteFailure
	}
}

// IsNotFound reports whether the error carries the NotFound kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether the error carries the Conflict kind.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// classifyServiceError keeps errors already classified by the adapter and
// treats anything else as a remote failure of the operation.
func classifyServiceError(operation OperationName, serviceError error) error {
	if serviceError == nil {
		return nil
	}
	var operationError OperationError
	if errors.As(serviceError, &operationError) {
		return serviceError
	}
	return NewOperationError(operation, KindOf(serviceError), serviceError)
}

package graph

import "errors"

// Reference mutation errors. These reject the caller's mutation
// synchronously; recoverable conditions are reported through a Report
// instead and never fail an operation.
var (
	ErrInvalidReference  = errors.New("reference target is not attached to a container")
	ErrExternalDenied    = errors.New("property does not allow cross-container references")
	ErrSelfReference     = errors.New("entity cannot reference its own owner")
	ErrIncompatiblePaste = errors.New("incompatible property to paste to")
	ErrReentrantMutation = errors.New("property mutated while its change hooks are running")
	ErrLengthMismatch    = errors.New("target and subname counts differ")
)

// Container and entity lifecycle errors.
var (
	ErrNameTaken         = errors.New("entity name already in use")
	ErrInvalidName       = errors.New("invalid name")
	ErrEntityNotFound    = errors.New("entity not found")
	ErrContainerNotSaved = errors.New("owner container has no save location")
	ErrContainerClosed   = errors.New("container is closed")
)

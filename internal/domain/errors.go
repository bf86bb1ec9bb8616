package domain

import "errors"

var (
	ErrInvalidID             = errors.New("invalid id")
	ErrInvalidName           = errors.New("invalid name")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInvalidGlobalTag      = errors.New("invalid global tag")
	ErrInvalidValidationMode = errors.New("invalid validation mode")
	ErrInvalidOperationIndex = errors.New("invalid operation index")
	ErrOperationIndexGap     = errors.New("operation index gap")
	ErrUnknownOperation      = errors.New("unknown operation type")
)

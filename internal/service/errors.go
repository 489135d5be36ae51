package service

import (
	"errors"

	"dispatch-center/internal/domain"
)

var (
	ErrCallNotFound       = errors.New("call not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrCallNotActive      = errors.New("call is not active")
	ErrAlreadyAssigned    = errors.New("member is already assigned to this call")
	ErrAlreadyActive      = errors.New("member is already logged into this queue")
	ErrInvalidQueue       = errors.New("unknown queue name")
	ErrInternalServer     = errors.New("internal server error")

	// ErrInvalidTransition is surfaced unchanged from the domain state
	// machines: the request is rejected, the row is untouched and no event
	// is emitted.
	ErrInvalidTransition = domain.ErrInvalidTransition
)

package domain

import "errors"

// ErrInvalidTransition is returned when a call or assignment status change
// violates the state machine. The underlying row is left unchanged and no
// event is emitted for such a request.
var ErrInvalidTransition = errors.New("invalid status transition")

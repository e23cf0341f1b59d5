package parking

import "errors"

// Error kinds. Every error returned by the Manager for a rejected request
// matches exactly one of these with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

var (
	ErrInvalidPlate          = newError(ErrValidation, "invalid license plate")
	ErrInvalidFloor          = newError(ErrValidation, "invalid floor level")
	ErrInvalidSpaceCode      = newError(ErrValidation, "invalid space code")
	ErrAccessibilityMismatch = newError(ErrValidation, "space/accessibility mismatch")
	ErrExitBeforeEntry       = newError(ErrValidation, "exit time precedes entry time")

	ErrPersonNotFound  = newError(ErrNotFound, "person not found")
	ErrSpaceNotFound   = newError(ErrNotFound, "space not found")
	ErrSessionNotFound = newError(ErrNotFound, "session not found")

	ErrSpaceUnavailable     = newError(ErrConflict, "space unavailable")
	ErrVehicleAlreadyParked = newError(ErrConflict, "vehicle already parked")
	ErrNoActiveSession      = newError(ErrConflict, "no active session")
	ErrSpaceInUse           = newError(ErrConflict, "space in use")
	ErrDuplicateSpace       = newError(ErrConflict, "space code already exists")
)

// Error is a business-rule rejection. Kind is one of ErrValidation,
// ErrNotFound or ErrConflict.
type Error struct {
	Kind    error
	Message string
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// IsValidation, IsNotFound and IsConflict report the kind of err.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

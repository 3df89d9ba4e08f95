package types

import "errors"

// Lookup errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrWrongKind       = errors.New("entry holds the wrong kind of value")
	ErrAddressInUse    = errors.New("address already in use")
	ErrCorruptPayload  = errors.New("corrupt serialized payload")
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)

// Pipeline errors. The annotation interpreter and the composer report these
// per layer and keep going.
var (
	ErrDecode           = errors.New("cannot decode image")
	ErrParse            = errors.New("cannot parse argument")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrResource         = errors.New("resource unavailable")
)

// Session errors.
var (
	ErrFieldNotLoaded  = errors.New("field not loaded")
	ErrNoActiveImage   = errors.New("no active image")
	ErrNothingToSelect = errors.New("no addresses match pattern")
)

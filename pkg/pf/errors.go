package pf

import "errors"

// The error taxonomy shared by the mailbox dispatcher and the
// administrative surface. Mailbox handlers never let these escape: they are
// converted into single failure replies. Administrative callers receive
// them directly.
var (
	// ErrInvalidVF: VF index out of range. Always checked first; the
	// operation never proceeds to mutate state.
	ErrInvalidVF = errors.New("virtual function index out of range")

	// ErrInvalidCount: requested VF count exceeds the traffic-class tier.
	ErrInvalidCount = errors.New("requested VF count exceeds device limit")

	// ErrDenied: an administrative override blocks a VF self-request.
	ErrDenied = errors.New("denied by administrative configuration")

	// ErrPermissionDenied: a capability is not granted to the VF.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnsupported: the negotiated protocol revision is too old.
	ErrUnsupported = errors.New("not supported by negotiated version")

	// ErrOutOfRange: a numeric payload is outside accepted bounds.
	ErrOutOfRange = errors.New("value out of range")

	// ErrNoSpace: the shared filter tables are exhausted.
	ErrNoSpace = errors.New("no filter table space")

	// ErrResourceExhausted: capacity enable could not allocate VF storage.
	ErrResourceExhausted = errors.New("unable to allocate VF storage")

	// ErrBusy: capacity disable blocked by instances assigned to guests.
	ErrBusy = errors.New("virtual functions are assigned to guests")

	// ErrInvalidState: the operation does not apply in the current state.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrProtocol: unknown opcode or malformed message.
	ErrProtocol = errors.New("malformed or unknown mailbox message")
)

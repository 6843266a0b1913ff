package qkernel

import "errors"

// State store errors.
var (
	ErrUnknownKey             = errors.New("unknown qubit key")
	ErrDimensionMismatch      = errors.New("dimension mismatch")
	ErrAmplitudeBound         = errors.New("amplitude magnitude exceeds 1")
	ErrLiveSiblings           = errors.New("key still shares its state with live siblings")
	ErrMeasurementUnsupported = errors.New("measurement is not supported by the state store")
	ErrUnknownGate            = errors.New("unknown gate")
)

// Timeline and messaging errors.
var (
	ErrPastEvent          = errors.New("event scheduled in the past")
	ErrNoChannel          = errors.New("no classical channel to node")
	ErrNoRoute            = errors.New("no route to node")
	ErrDuplicateRoute     = errors.New("forwarding rule already exists")
	ErrUnknownProtocol    = errors.New("unknown protocol")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Purification protocol errors. All of them signal a caller or topology bug;
// a failed purification is an outcome, not an error.
var (
	ErrNotLinked          = errors.New("counterpart protocol is not linked")
	ErrAlreadyLinked      = errors.New("protocol is already linked")
	ErrAlreadyStarted     = errors.New("protocol already started")
	ErrInactive           = errors.New("protocol was expired or released")
	ErrRemoteMismatch     = errors.New("memories are entangled with different remote nodes")
	ErrFidelityMismatch   = errors.New("memories report different fidelities")
	ErrBelowThreshold     = errors.New("fidelity does not exceed 0.5")
	ErrWrongSender        = errors.New("message sender is not the linked counterpart")
	ErrForeignMemory      = errors.New("memory does not belong to this protocol")
	ErrDeadlineExceeded   = errors.New("memory expired after twice the channel delay")
	ErrOutcomeUnresolved  = errors.New("shared outcome has not been decided")
	ErrOutcomeResolved    = errors.New("shared outcome was already decided")
	ErrSameMemory         = errors.New("kept and measured memory must differ")
	ErrInvalidMemoryState = errors.New("invalid memory state")
)

// Campaign errors.
var (
	ErrCircuitOpen = errors.New("campaign circuit breaker is open")
)

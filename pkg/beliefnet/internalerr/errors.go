package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Structural errors, reported while authoring a network
var (
	ErrDuplicateName = errors.New("duplicate name")
	ErrInvalidArity  = errors.New("variable needs at least 2 distinct states")
	ErrSelfLoop      = errors.New("self loop")
	ErrCycle         = errors.New("edge would create a cycle")
	ErrDuplicateEdge = errors.New("duplicate edge")
)

// Specification errors, reported while filling in distributions
var (
	ErrRowCountMismatch         = errors.New("row count mismatch")
	ErrNormalization            = errors.New("row does not sum to 1")
	ErrDomain                   = errors.New("probability outside [0,1]")
	ErrNonDeterministicEquation = errors.New("equation is not deterministic")
	ErrIncompleteModel          = errors.New("incomplete model")
)

// Compilation errors
var (
	ErrDisconnectedModel = errors.New("moral graph is disconnected")
	ErrModelTooLarge     = errors.New("clique table exceeds size limit")
)

// Query-time errors
var (
	ErrUnknownState            = errors.New("unknown state")
	ErrUncompiledModel         = errors.New("network is not compiled")
	ErrZeroProbabilityEvidence = errors.New("evidence has zero probability")
)

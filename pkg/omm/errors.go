package omm

import "errors"

// Errors returned by the baker. Callers test them with errors.Is.
var (
	ErrFailure                   = errors.New("failure")
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrInsufficientScratchMemory = errors.New("insufficient scratch memory")
	ErrNotImplemented            = errors.New("not implemented")
	ErrWorkloadTooBig            = errors.New("workload too big")
)

// Result is the status taxonomy reported to integration layers.
type Result uint8

const (
	Success Result = iota
	Failure
	InvalidArgument
	InsufficientScratchMemory
	NotImplemented
	WorkloadTooBig
)

func (r Result) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case InsufficientScratchMemory:
		return "INSUFFICIENT_SCRATCH_MEMORY"
	case NotImplemented:
		return "NOT_IMPLEMENTED"
	case WorkloadTooBig:
		return "WORKLOAD_TOO_BIG"
	default:
		return "UNKNOWN"
	}
}

// ResultOf maps an error returned by the baker to its Result. Errors outside
// the taxonomy map to Failure.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInvalidArgument):
		return InvalidArgument
	case errors.Is(err, ErrWorkloadTooBig):
		return WorkloadTooBig
	case errors.Is(err, ErrNotImplemented):
		return NotImplemented
	case errors.Is(err, ErrInsufficientScratchMemory):
		return InsufficientScratchMemory
	default:
		return Failure
	}
}

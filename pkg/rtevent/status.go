// Package rtevent implements the three-phase mutation pipeline
// (pre_process/execute/post_process) and the concrete event catalogue
// that mutates the store/graph data model while the audio thread runs,
// without ever blocking it (spec.md §4.6-4.9).
package rtevent

// Status is the completion code carried on every event result
// (spec.md §7).
type Status int

const (
	Success Status = iota
	NotFound
	Exists
	ParentNotFound
	ParentDiffers
	PortNotFound
	PrototypeNotFound
	InvalidPoly
	InvalidPortIndex
	BadType
	TypeMismatch
	Cycle
	CreationFailed
	BadRequest
	InternalError
)

func (s Status) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case NotFound:
		return "NOT_FOUND"
	case Exists:
		return "EXISTS"
	case ParentNotFound:
		return "PARENT_NOT_FOUND"
	case ParentDiffers:
		return "PARENT_DIFFERS"
	case PortNotFound:
		return "PORT_NOT_FOUND"
	case PrototypeNotFound:
		return "PROTOTYPE_NOT_FOUND"
	case InvalidPoly:
		return "INVALID_POLY"
	case InvalidPortIndex:
		return "INVALID_PORT_INDEX"
	case BadType:
		return "BAD_TYPE"
	case TypeMismatch:
		return "TYPE_MISMATCH"
	case Cycle:
		return "CYCLE"
	case CreationFailed:
		return "CREATION_FAILED"
	case BadRequest:
		return "BAD_REQUEST"
	case InternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

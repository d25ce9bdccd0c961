package diag

// Code is the value carrier returned from fallible, non-hot-path APIs
// (spec §7). Hot-path event emission never returns one; it is void and
// funnels invariant breaches into Abort instead.
type Code int

const (
	Success Code = iota
	MemAllocFailed
	IndexOutOfBounds
	EndOfBuffer
	Invalid
	InvalidArgument
	InvalidSizeGiven
	FileCanNotOpen
	FileInteraction
	ParseNoSeparator
	UnknownType
)

func (c Code) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case MemAllocFailed:
		return "MEM_ALLOC_FAILED"
	case IndexOutOfBounds:
		return "INDEX_OUT_OF_BOUNDS"
	case EndOfBuffer:
		return "END_OF_BUFFER"
	case Invalid:
		return "INVALID"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case InvalidSizeGiven:
		return "INVALID_SIZE_GIVEN"
	case FileCanNotOpen:
		return "FILE_CAN_NOT_OPEN"
	case FileInteraction:
		return "FILE_INTERACTION"
	case ParseNoSeparator:
		return "PARSE_NO_SEPARATOR"
	case UnknownType:
		return "UNKNOWN_TYPE"
	default:
		return "UNKNOWN_CODE"
	}
}

// Error adapts a Code to the error interface so it can be returned
// through ordinary Go error-handling paths while still being
// comparable to the sentinel Codes with errors.Is via Unwrap-free
// equality on the Code itself.
type Error struct {
	Code    Code
	Context string
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Context
}

// Wrap builds an *Error, or nil if code is Success.
func Wrap(code Code, context string) error {
	if code == Success {
		return nil
	}
	return &Error{Code: code, Context: context}
}

package core

import "errors"

// Error taxonomy shared by every layer. Wrap with fmt.Errorf("%w: ...") and
// classify with errors.Is.
var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrDecode     = errors.New("decode")
	ErrPipeline   = errors.New("pipeline")
	ErrTransport  = errors.New("transport")
)

// ErrorKind maps an error onto the wire name reported to clients.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrPipeline):
		return "pipeline"
	case errors.Is(err, ErrTransport):
		return "unavailable"
	default:
		return "internal"
	}
}

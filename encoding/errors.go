package encoding

import "github.com/pkg/errors"

var (
	ErrNotPointer      = errors.New("value is not a non-nil pointer")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrReadOnly        = errors.New("stream is read only")
)

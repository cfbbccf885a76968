package loader

import "github.com/pkg/errors"

var (
	ErrSymbolIndex     = errors.New("symbol index out of range")
	ErrStringIndex     = errors.New("string index out of range")
	ErrDynamicMissing  = errors.New("dynamic entry missing")
	ErrTableFormat     = errors.New("relocation table format unsupported")
	ErrMachineMismatch = errors.New("elf machine does not match emulator")
)

package emulator

import "github.com/pkg/errors"

var (
	ErrArchUnsupported = errors.New("architecture unsupported")
	ErrArchMismatch    = errors.New("architecture mismatch")
	ErrMemUnmapped     = errors.New("memory unmapped")
	ErrMemProtection   = errors.New("memory protection violation")
	ErrMemOverlap      = errors.New("memory region overlaps existing mapping")
	ErrWidthInvalid    = errors.New("access width invalid")
	ErrAddressInvalid  = errors.New("address invalid")
)

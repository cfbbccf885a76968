package rtld

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrNotJmpSlot     = errors.New("relocation is not a jump slot")
	ErrLazyOffset     = errors.New("jmprel offset invalid")
	ErrUnresolved     = errors.New("unresolved relocations")
)

// Site locates a relocation record: the object it belongs to, the runtime
// address it patches, its symbolic type and the symbol name if any.
type Site struct {
	Object string
	Addr   uint64
	Type   string
	Symbol string
}

type RelocException interface {
	error
	Object() string
	Address() uint64
	Type() string
	Symbol() string
	// Fatal reports whether the error must terminate the process.
	Fatal() bool
}

type relocException struct {
	site Site
}

type UnknownRelocationError struct {
	relocException
	tag uint32
}

type DisplacementError struct {
	relocException
	disp int64
	bits uint
}

type JmpRelError struct {
	relocException
}

type LazyBindError struct {
	relocException
	off uint64
	err error
}

type MemoryError struct {
	relocException
	err error
}

type SymbolIndexError struct {
	relocException
	index uint32
	err   error
}

type UnresolvedSymbolError struct {
	relocException
}

type CopySourceError struct {
	relocException
}

func (e *relocException) String() string {
	return fmt.Sprintf("object: %s, addr: %08X, type: %s, symbol: %s", e.site.Object, e.site.Addr, e.site.Type, e.site.Symbol)
}

func (e *relocException) Object() string {
	return e.site.Object
}

func (e *relocException) Address() uint64 {
	return e.site.Addr
}

func (e *relocException) Type() string {
	return e.site.Type
}

func (e *relocException) Symbol() string {
	return e.site.Symbol
}

func (e *relocException) Fatal() bool {
	return true
}

func (e *UnknownRelocationError) Error() string {
	return fmt.Sprintf("[UnknownRelocation] %s, tag: %d", &e.relocException, e.tag)
}

func (e *UnknownRelocationError) Tag() uint32 {
	return e.tag
}

func (e *DisplacementError) Error() string {
	return fmt.Sprintf("[Displacement] %s, disp: %#x, bits: %d", &e.relocException, e.disp, e.bits)
}

func (e *DisplacementError) Displacement() int64 {
	return e.disp
}

func (e *JmpRelError) Error() string {
	return fmt.Sprintf("[JmpRel] %s", &e.relocException)
}

func (e *LazyBindError) Error() string {
	return fmt.Sprintf("[LazyBind] %s, offset: %#x, err: %v", &e.relocException, e.off, e.err)
}

func (e *LazyBindError) Offset() uint64 {
	return e.off
}

func (e *LazyBindError) Unwrap() error {
	return e.err
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("[Memory] %s, err: %v", &e.relocException, e.err)
}

func (e *MemoryError) Unwrap() error {
	return e.err
}

func (e *SymbolIndexError) Error() string {
	return fmt.Sprintf("[SymbolIndex] %s, index: %d, err: %v", &e.relocException, e.index, e.err)
}

func (e *SymbolIndexError) Unwrap() error {
	return e.err
}

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("[UnresolvedSymbol] %s", &e.relocException)
}

func (e *UnresolvedSymbolError) Fatal() bool {
	return false
}

func (e *UnresolvedSymbolError) Unwrap() error {
	return ErrSymbolNotFound
}

func (e *CopySourceError) Error() string {
	return fmt.Sprintf("[CopySource] %s", &e.relocException)
}

func (e *CopySourceError) Fatal() bool {
	return false
}

func (e *CopySourceError) Unwrap() error {
	return ErrSymbolNotFound
}

func NewUnknownRelocationError(site Site, tag uint32) RelocException {
	return &UnknownRelocationError{relocException{site}, tag}
}

func NewDisplacementError(site Site, disp int64, bits uint) RelocException {
	return &DisplacementError{relocException{site}, disp, bits}
}

func NewJmpRelError(site Site) RelocException {
	return &JmpRelError{relocException{site}}
}

func NewLazyBindError(site Site, off uint64, err error) RelocException {
	return &LazyBindError{relocException{site}, off, err}
}

func NewMemoryError(site Site, err error) RelocException {
	return &MemoryError{relocException{site}, err}
}

func NewSymbolIndexError(site Site, index uint32, err error) RelocException {
	return &SymbolIndexError{relocException{site}, index, err}
}

func NewUnresolvedSymbolError(site Site) RelocException {
	return &UnresolvedSymbolError{relocException{site}}
}

func NewCopySourceError(site Site) RelocException {
	return &CopySourceError{relocException{site}}
}

// IsFatal reports whether err carries a relocation error that must terminate
// the process.
func IsFatal(err error) bool {
	var e RelocException
	return errors.As(err, &e) && e.Fatal()
}

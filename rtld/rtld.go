package rtld

import (
	"io"

	"github.com/wnxd/microld/emulator"
	"github.com/wnxd/microld/loader"
	"go.uber.org/zap"
)

// Linker applies relocation tables of loaded objects. Relocation passes
// never terminate the process themselves; the drivers Startup and Bind turn
// their errors into a call to Fatal.
type Linker interface {
	io.Closer
	Emulator() emulator.Emulator
	Logger() *zap.Logger
	// ApplyDataRelocations applies the DT_RELA table of obj. COPY records are
	// left for ApplyCopyRelocations.
	ApplyDataRelocations(obj loader.Object) (uint, error)
	// ApplyPLTRelocations binds the DT_JMPREL table of obj now, or prepares
	// its slots for ResolveLazyPLTEntry when lazy is set.
	ApplyPLTRelocations(obj loader.Object, lazy bool) (uint, error)
	ApplyCopyRelocations(objs []loader.Object) (uint, error)
	// ResolveLazyPLTEntry binds the jump slot at byte offset off of the
	// JMPREL table of obj and returns the bound address.
	ResolveLazyPLTEntry(obj loader.Object, off uint64) (uint64, error)
	RelocName(typ uint32) string
	Fatal(err error)
}

func New(emu emulator.Emulator, opts ...Option) (Linker, error) {
	if ctor, ok := ldMap[emu.Arch()]; ok {
		return ctor(emu, NewOptions(opts...))
	}
	return nil, emulator.ErrArchUnsupported
}

package rtld

import (
	"sync"

	"github.com/wnxd/microld/emulator"
	"github.com/wnxd/microld/rtld"
	"go.uber.org/zap"
)

// Linker is implemented by the architecture ports on top of Ld.
type Linker interface {
	rtld.Linker
	// Kind maps a raw type tag to its relocation kind.
	Kind(typ uint32) RelocKind
	// LazyRebase reports whether jump slots hold link time addresses that
	// the lazy pre-pass must rebase by the load bias.
	LazyRebase() bool
	// Disasm renders the instruction word at addr for debug traces, or "".
	Disasm(addr uint64, insn uint32) string
}

type Ld struct {
	impl Linker
	emu  emulator.Emulator
	opts rtld.Options
	log  *zap.Logger
	mu   sync.Mutex
}

func (ld *Ld) Init(impl Linker, emu emulator.Emulator, opts rtld.Options) error {
	if emu.Arch().PointerSize() == 0 {
		return emulator.ErrArchUnsupported
	}
	ld.impl = impl
	ld.emu = emu
	ld.opts = opts
	if ld.opts.Logger == nil {
		ld.opts.Logger = zap.NewNop()
	}
	if ld.opts.Resolver == nil {
		ld.opts.Resolver = rtld.ScopeResolver{}
	}
	ld.log = ld.opts.Logger.With(zap.Stringer("arch", emu.Arch()))
	return nil
}

func (ld *Ld) Close() error {
	ld.log.Sync()
	return nil
}

func (ld *Ld) Emulator() emulator.Emulator {
	return ld.emu
}

func (ld *Ld) Logger() *zap.Logger {
	return ld.log
}

// Fatal reports err and terminates through the configured exit function.
func (ld *Ld) Fatal(err error) {
	ld.log.Error("fatal relocation error", zap.Error(err))
	ld.log.Sync()
	if ld.opts.Exit != nil {
		ld.opts.Exit(1)
	}
}

func (ld *Ld) wordSize() uint64 {
	return ld.emu.Arch().PointerSize()
}

func (ld *Ld) isBootstrap(name string) bool {
	return ld.opts.Bootstrap != nil && ld.opts.Bootstrap.IsBootstrapSymbol(name)
}

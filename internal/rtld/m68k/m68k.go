package m68k

import (
	"github.com/wnxd/microld/emulator"
	internal "github.com/wnxd/microld/internal/rtld"
	"github.com/wnxd/microld/rtld"
)

type M68kLd struct {
	internal.Ld
}

func NewM68kLinker(emu emulator.Emulator, opts rtld.Options) (rtld.Linker, error) {
	if emu.Arch() != emulator.ARCH_M68K {
		return nil, emulator.ErrArchMismatch
	}
	ld := new(M68kLd)
	err := ld.Init(ld, emu, opts)
	if err != nil {
		return nil, err
	}
	return ld, nil
}

func (ld *M68kLd) Kind(typ uint32) internal.RelocKind {
	switch R_68K(typ) {
	case R_68K_NONE:
		return internal.KindNone
	case R_68K_32:
		return internal.KindAbs32
	case R_68K_16:
		return internal.KindAbs16
	case R_68K_8:
		return internal.KindAbs8
	case R_68K_PC32:
		return internal.KindPC32
	case R_68K_PC16:
		return internal.KindPC16
	case R_68K_PC8:
		return internal.KindPC8
	case R_68K_GLOB_DAT:
		return internal.KindGlobDat
	case R_68K_JMP_SLOT:
		return internal.KindJmpSlot
	case R_68K_RELATIVE:
		return internal.KindRelative
	case R_68K_COPY:
		return internal.KindCopy
	}
	return internal.KindUnknown
}

func (ld *M68kLd) RelocName(typ uint32) string {
	return R_68K(typ).String()
}

// LazyRebase is set because m68k PLT slots are linked pointing back into the
// PLT and must follow the object to its load address.
func (ld *M68kLd) LazyRebase() bool {
	return true
}

func (ld *M68kLd) Disasm(addr uint64, insn uint32) string {
	return ""
}

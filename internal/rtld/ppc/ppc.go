package ppc

import (
	"debug/elf"
	"encoding/binary"

	"github.com/wnxd/microld/emulator"
	internal "github.com/wnxd/microld/internal/rtld"
	"github.com/wnxd/microld/rtld"
	"golang.org/x/arch/ppc64/ppc64asm"
)

type PPCLd struct {
	internal.Ld
}

func NewPPCLinker(emu emulator.Emulator, opts rtld.Options) (rtld.Linker, error) {
	if emu.Arch() != emulator.ARCH_PPC {
		return nil, emulator.ErrArchMismatch
	}
	ld := new(PPCLd)
	err := ld.Init(ld, emu, opts)
	if err != nil {
		return nil, err
	}
	return ld, nil
}

func (ld *PPCLd) Kind(typ uint32) internal.RelocKind {
	switch elf.R_PPC(typ) {
	case elf.R_PPC_NONE:
		return internal.KindNone
	case elf.R_PPC_ADDR32, elf.R_PPC_UADDR32:
		return internal.KindAbs32
	case elf.R_PPC_ADDR16, elf.R_PPC_UADDR16:
		return internal.KindAbs16
	case elf.R_PPC_ADDR16_LO:
		return internal.KindLo16
	case elf.R_PPC_ADDR16_HI:
		return internal.KindHi16
	case elf.R_PPC_ADDR16_HA:
		return internal.KindHa16
	case elf.R_PPC_REL24:
		return internal.KindBranch24
	case elf.R_PPC_REL14:
		return internal.KindBranch14
	case elf.R_PPC_REL32:
		return internal.KindPC32
	case elf.R_PPC_GLOB_DAT:
		return internal.KindGlobDat
	case elf.R_PPC_JMP_SLOT:
		return internal.KindJmpSlot
	case elf.R_PPC_RELATIVE:
		return internal.KindRelative
	case elf.R_PPC_COPY:
		return internal.KindCopy
	}
	return internal.KindUnknown
}

func (ld *PPCLd) RelocName(typ uint32) string {
	return elf.R_PPC(typ).String()
}

func (ld *PPCLd) LazyRebase() bool {
	return false
}

func (ld *PPCLd) Disasm(addr uint64, insn uint32) string {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], insn)
	inst, err := ppc64asm.Decode(buf[:], binary.BigEndian)
	if err != nil {
		return ""
	}
	return ppc64asm.GNUSyntax(inst, addr)
}

package loader

import (
	"debug/elf"
	"io"
	"slices"

	"github.com/pkg/errors"
	"github.com/wnxd/microld/emulator"
	"github.com/wnxd/microld/encoding"
)

func machineArch(m elf.Machine) emulator.Arch {
	switch m {
	case elf.EM_68K:
		return emulator.ARCH_M68K
	case elf.EM_PPC:
		return emulator.ARCH_PPC
	}
	return emulator.ARCH_UNKNOWN
}

// DetectArch reports the emulator architecture an ELF file targets.
func DetectArch(r io.ReaderAt) (emulator.Arch, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return emulator.ARCH_UNKNOWN, err
	}
	defer f.Close()
	arch := machineArch(f.Machine)
	if arch == emulator.ARCH_UNKNOWN {
		return arch, errors.Wrapf(emulator.ErrArchUnsupported, "%s", f.Machine)
	}
	return arch, nil
}

// LoadELF maps the PT_LOAD segments of r at bias and returns the image of its
// dynamic section. ET_EXEC files are always loaded at their link address.
func LoadELF(emu emulator.Emulator, name string, r io.ReaderAt, bias uint64, opts ...ImageOption) (*Image, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	defer f.Close()
	if arch := machineArch(f.Machine); arch != emu.Arch() {
		return nil, errors.Wrapf(ErrMachineMismatch, "%s: %s on %s", name, f.Machine, emu.Arch())
	}
	if f.Type == elf.ET_EXEC {
		bias = 0
		opts = append(opts, AsExecutable())
	}
	var regions []Region
	var dynamic *elf.Prog
	for _, prog := range f.Progs {
		switch prog.Type {
		case elf.PT_LOAD:
			regions = append(regions, Region{
				Addr:     prog.Vaddr,
				Size:     prog.Memsz,
				Length:   prog.Filesz,
				Align:    prog.Align,
				Prot:     progProt(prog.Flags),
				ReaderAt: prog.ReaderAt,
			})
		case elf.PT_DYNAMIC:
			dynamic = prog
		}
	}
	if dynamic == nil {
		return nil, errors.Wrapf(ErrDynamicMissing, "%s: PT_DYNAMIC", name)
	}
	slices.SortFunc(regions, func(a, b Region) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	if err = Map(emu, bias, regions); err != nil {
		return nil, errors.WithMessage(err, name)
	}
	p := emulator.ToPointer(emu, bias+dynamic.Vaddr)
	dyn, err := ParseDynamic(encoding.NewStream(p, emu.ByteOrder().Order(), 0), f.Class)
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	return NewImage(emu, name, bias, dyn, opts...)
}

func progProt(flags elf.ProgFlag) emulator.MemProt {
	var prot emulator.MemProt
	if flags&elf.PF_R != 0 {
		prot |= emulator.MEM_PROT_READ
	}
	if flags&elf.PF_W != 0 {
		prot |= emulator.MEM_PROT_WRITE
	}
	if flags&elf.PF_X != 0 {
		prot |= emulator.MEM_PROT_EXEC
	}
	return prot
}

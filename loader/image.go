package loader

import (
	"debug/elf"
	"sync"

	"github.com/pkg/errors"
	"github.com/wnxd/microld/emulator"
	"github.com/wnxd/microld/encoding"
)

type ImageOption func(*Image)

func AsInterpreter() ImageOption {
	return func(img *Image) { img.interp = true }
}

func AsExecutable() ImageOption {
	return func(img *Image) { img.exec = true }
}

// Image is an Object whose dynamic tables live in emulator memory.
type Image struct {
	emu     emulator.Emulator
	name    string
	bias    uint64
	class   elf.Class
	dynamic Dynamic
	interp  bool
	exec    bool
	scope   Scope
	hash    *hashTable
	symtab  uint64
	syment  uint64
	strtab  uint64
	strsz   uint64
	mu      sync.Mutex
	symbols map[uint32]*Symbol
}

// NewImage builds an image from the dynamic entries of an object mapped at
// bias. Only RELA relocation tables are accepted.
func NewImage(emu emulator.Emulator, name string, bias uint64, dynamic Dynamic, opts ...ImageOption) (*Image, error) {
	img := &Image{
		emu:     emu,
		name:    name,
		bias:    bias,
		dynamic: dynamic,
		symbols: make(map[uint32]*Symbol),
	}
	switch emu.Arch().PointerSize() {
	case 4:
		img.class = elf.ELFCLASS32
	case 8:
		img.class = elf.ELFCLASS64
	default:
		return nil, emulator.ErrArchUnsupported
	}
	for _, opt := range opts {
		opt(img)
	}
	img.scope = Scope{img}
	if err := img.checkTables(); err != nil {
		return nil, errors.WithMessage(err, name)
	}
	if err := img.parseSymbols(); err != nil {
		return nil, errors.WithMessage(err, name)
	}
	return img, nil
}

func (img *Image) checkTables() error {
	if dynamic := img.dynamic; dynamic.Has(elf.DT_REL) {
		return errors.Wrap(ErrTableFormat, "DT_REL")
	} else if ent, ok := dynamic.Value(elf.DT_RELAENT); ok && ent != img.relaSize() {
		return errors.Wrapf(ErrTableFormat, "DT_RELAENT %d", ent)
	} else if !dynamic.Has(elf.DT_JMPREL) {
		return nil
	} else if kind, _ := dynamic.Value(elf.DT_PLTREL); elf.DynTag(kind) != elf.DT_RELA {
		return errors.Wrapf(ErrTableFormat, "DT_PLTREL %s", elf.DynTag(kind))
	}
	return nil
}

func (img *Image) parseSymbols() error {
	symtab, ok := img.dynamic.Value(elf.DT_SYMTAB)
	if !ok {
		return nil
	}
	hash, ok := img.dynamic.Value(elf.DT_HASH)
	if !ok {
		return errors.Wrap(ErrDynamicMissing, "DT_HASH")
	}
	strtab, ok := img.dynamic.Value(elf.DT_STRTAB)
	if !ok {
		return errors.Wrap(ErrDynamicMissing, "DT_STRTAB")
	}
	var err error
	img.hash, err = readHashTable(emulator.ToPointer(img.emu, img.bias+hash))
	if err != nil {
		return err
	}
	img.symtab = img.bias + symtab
	img.strtab = img.bias + strtab
	img.strsz, _ = img.dynamic.Value(elf.DT_STRSZ)
	img.syment, ok = img.dynamic.Value(elf.DT_SYMENT)
	if !ok {
		img.syment = img.symSize()
	}
	return nil
}

func (img *Image) relaSize() uint64 {
	if img.class == elf.ELFCLASS64 {
		return 24
	}
	return 12
}

func (img *Image) symSize() uint64 {
	if img.class == elf.ELFCLASS64 {
		return elf.Sym64Size
	}
	return elf.Sym32Size
}

func (img *Image) Name() string {
	return img.name
}

func (img *Image) LoadBias() uint64 {
	return img.bias
}

func (img *Image) Class() elf.Class {
	return img.class
}

func (img *Image) IsInterpreter() bool {
	return img.interp
}

func (img *Image) IsExecutable() bool {
	return img.exec
}

func (img *Image) Scope() Scope {
	return img.scope
}

func (img *Image) SetScope(scope Scope) {
	img.scope = scope
}

func (img *Image) Dynamic() Dynamic {
	return img.dynamic
}

// Needed returns the DT_NEEDED library names.
func (img *Image) Needed() ([]string, error) {
	var names []string
	for _, off := range img.dynamic[elf.DT_NEEDED] {
		name, err := img.str(off)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (img *Image) Table(kind TableKind) (uint64, uint64) {
	var addrTag, sizeTag elf.DynTag
	switch kind {
	case TABLE_DATA:
		addrTag, sizeTag = elf.DT_RELA, elf.DT_RELASZ
	case TABLE_JMPREL:
		addrTag, sizeTag = elf.DT_JMPREL, elf.DT_PLTRELSZ
	default:
		return 0, 0
	}
	addr, ok := img.dynamic.Value(addrTag)
	if !ok {
		return 0, 0
	}
	size, _ := img.dynamic.Value(sizeTag)
	return img.bias + addr, size
}

func (img *Image) Symbol(index uint32) (*Symbol, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.symbol(index)
}

func (img *Image) symbol(index uint32) (*Symbol, error) {
	if sym, ok := img.symbols[index]; ok {
		return sym, nil
	} else if img.hash == nil || int(index) >= len(img.hash.chains) {
		return nil, errors.Wrapf(ErrSymbolIndex, "%d", index)
	}
	p := emulator.ToPointer(img.emu, img.symtab+uint64(index)*img.syment)
	s := encoding.NewStream(p, img.emu.ByteOrder().Order(), 0)
	var sym Symbol
	var name uint32
	var info uint8
	switch img.class {
	case elf.ELFCLASS32:
		var raw elf.Sym32
		if err := encoding.Decode(s, &raw); err != nil {
			return nil, errors.Wrapf(err, "symbol %d", index)
		}
		name, info = raw.Name, raw.Info
		sym.Value, sym.Size, sym.Section = uint64(raw.Value), uint64(raw.Size), elf.SectionIndex(raw.Shndx)
	case elf.ELFCLASS64:
		var raw elf.Sym64
		if err := encoding.Decode(s, &raw); err != nil {
			return nil, errors.Wrapf(err, "symbol %d", index)
		}
		name, info = raw.Name, raw.Info
		sym.Value, sym.Size, sym.Section = raw.Value, raw.Size, elf.SectionIndex(raw.Shndx)
	}
	sym.Bind, sym.Type = elf.ST_BIND(info), elf.ST_TYPE(info)
	var err error
	if sym.Name, err = img.str(uint64(name)); err != nil {
		return nil, errors.Wrapf(err, "symbol %d", index)
	}
	img.symbols[index] = &sym
	return &sym, nil
}

func (img *Image) str(off uint64) (string, error) {
	if img.strsz != 0 && off >= img.strsz {
		return "", errors.Wrapf(ErrStringIndex, "%#x", off)
	}
	return emulator.ToPointer(img.emu, img.strtab+off).MemReadString()
}

func (img *Image) Lookup(name string) (*Symbol, bool, error) {
	if img.hash == nil {
		return nil, false, nil
	}
	img.mu.Lock()
	defer img.mu.Unlock()
	var found *Symbol
	err := img.hash.lookup(name, func(index uint32) (bool, error) {
		sym, err := img.symbol(index)
		if err != nil {
			return true, err
		} else if sym.Name != name {
			return false, nil
		}
		found = sym
		return true, nil
	})
	if err != nil {
		return nil, false, errors.WithMessage(err, img.name)
	}
	return found, found != nil, nil
}

package rtld

import (
	"debug/elf"

	"github.com/pkg/errors"
	"github.com/wnxd/microld/emulator"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/rtld"
	"go.uber.org/zap"
)

// fixup carries the operands of one relocation: S is the symbol value, A the
// addend, P the patched address and B the load bias. An unresolved fixup
// writes a zero field as placeholder.
type fixup struct {
	kind       RelocKind
	site       rtld.Site
	S, P       uint64
	A          int64
	B          uint64
	unresolved bool
}

func (ld *Ld) site(obj loader.Object, rec record, sym *loader.Symbol) rtld.Site {
	site := rtld.Site{
		Object: obj.Name(),
		Addr:   obj.LoadBias() + rec.off,
		Type:   ld.impl.RelocName(rec.typ),
	}
	if sym != nil {
		site.Symbol = sym.Name
	}
	return site
}

func (ld *Ld) apply(obj loader.Object, rec record, p pass, cache *symCache) error {
	kind := ld.impl.Kind(rec.typ)
	var sym *loader.Symbol
	if rec.sym != 0 {
		var err error
		if sym, err = obj.Symbol(rec.sym); err != nil {
			return rtld.NewSymbolIndexError(ld.site(obj, rec, nil), rec.sym, err)
		}
	}
	site := ld.site(obj, rec, sym)
	if p != passCopy && obj.IsInterpreter() && (sym == nil || ld.isBootstrap(sym.Name)) {
		ld.log.Debug("skip bootstrap relocation", siteFields(site)...)
		return nil
	}
	switch p {
	case passLazy:
		return ld.applyLazy(obj, kind, rec.addend, site)
	case passCopy:
		if kind != KindCopy {
			return nil
		}
		return ld.applyCopy(obj, sym, site)
	}

	switch kind {
	case KindUnknown:
		return rtld.NewUnknownRelocationError(site, rec.typ)
	case KindNone:
		return nil
	case KindCopy:
		if p == passPLT {
			return rtld.NewJmpRelError(site)
		}
		// deferred to ApplyCopyRelocations
		return nil
	}
	f := fixup{kind: kind, site: site, P: site.Addr, A: rec.addend, B: obj.LoadBias()}
	var goof error
	if kind.NeedsSymbol() {
		var found bool
		f.S, found, goof = ld.symbolValue(obj, rec.sym, sym, kind == KindJmpSlot, site, cache)
		if rtld.IsFatal(goof) {
			return goof
		}
		f.unresolved = !found
	}
	if err := ld.fixup(f); err != nil {
		return err
	}
	return goof
}

// symbolValue returns S for a record and whether it was found. Index 0 is
// the null symbol, defined at the load bias. A missing GLOBAL definition
// returns an error to count; a missing WEAK definition is only traced.
func (ld *Ld) symbolValue(obj loader.Object, index uint32, sym *loader.Symbol, plt bool, site rtld.Site, cache *symCache) (uint64, bool, error) {
	switch {
	case sym == nil:
		return obj.LoadBias(), true, nil
	case sym.Bind == elf.STB_LOCAL && sym.Section == elf.SHN_ABS:
		return sym.Value, true, nil
	case sym.Bind == elf.STB_LOCAL:
		return obj.LoadBias() + sym.Value, true, nil
	}
	value, found, ok := cache.get(index, plt)
	if !ok {
		def, err := ld.opts.Resolver.FindSymbol(sym.Name, obj.Scope(), site.Addr, obj, plt)
		if err != nil && !errors.Is(err, rtld.ErrSymbolNotFound) {
			return 0, false, rtld.NewSymbolIndexError(site, index, err)
		}
		value, found = def.Addr, err == nil
		cache.put(index, plt, value, found)
	}
	switch {
	case found:
		return value, true, nil
	case sym.Bind == elf.STB_WEAK:
		ld.log.Debug("weak symbol unresolved", siteFields(site)...)
		return 0, false, nil
	}
	ld.log.Error("can't resolve symbol", siteFields(site)...)
	return 0, false, rtld.NewUnresolvedSymbolError(site)
}

func (ld *Ld) fixup(f fixup) error {
	word := ld.wordSize()
	sa := f.S + uint64(f.A)
	var value, width uint64
	switch f.kind {
	case KindAbs8:
		value, width = sa, 1
	case KindAbs16:
		value, width = sa, 2
	case KindAbs32:
		value, width = sa, 4
	case KindPC8:
		value, width = sa-f.P, 1
	case KindPC16:
		value, width = sa-f.P, 2
	case KindPC32:
		value, width = sa-f.P, 4
	case KindLo16:
		value, width = sa&0xffff, 2
	case KindHi16:
		value, width = sa>>16&0xffff, 2
	case KindHa16:
		value, width = (sa+0x8000)>>16&0xffff, 2
	case KindGlobDat, KindJmpSlot:
		value, width = sa, word
	case KindRelative:
		value, width = relativeFresh(f.B, f.A), word
	case KindBranch24, KindBranch14:
		return ld.branch(f)
	default:
		return rtld.NewUnknownRelocationError(f.site, 0)
	}
	if f.unresolved {
		value = 0
	}
	if err := ld.write(f.site, width, value); err != nil {
		return err
	}
	ld.trace(f, value, width)
	return nil
}

// relativeFresh is RELATIVE as applied by the eager passes.
func relativeFresh(bias uint64, addend int64) uint64 {
	return bias + uint64(addend)
}

// relativeAccumulate is RELATIVE as applied by the lazy pre-pass: the slot
// already holds a link time address.
func relativeAccumulate(slot, bias uint64, addend int64) uint64 {
	return slot + bias + uint64(addend)
}

type branchField struct {
	mask uint32
	bits uint
}

var branchFields = map[RelocKind]branchField{
	KindBranch24: {0x03fffffc, 26},
	KindBranch14: {0x0000fffc, 16},
}

// branch merges a PC relative displacement into the immediate field of the
// instruction at P. A misaligned displacement or one the field cannot
// encode is fatal.
func (ld *Ld) branch(f fixup) error {
	field := branchFields[f.kind]
	var disp int64
	if !f.unresolved {
		d := f.S + uint64(f.A) - f.P
		if ld.wordSize() == 4 {
			disp = int64(int32(d))
		} else {
			disp = int64(d)
		}
	}
	if limit := int64(1) << (field.bits - 1); disp < -limit || disp >= limit || disp&3 != 0 {
		return rtld.NewDisplacementError(f.site, disp, field.bits)
	}
	old, err := ld.read(f.site, 4)
	if err != nil {
		return err
	}
	insn := uint32(old)&^field.mask | uint32(disp)&field.mask
	if err = ld.write(f.site, 4, uint64(insn)); err != nil {
		return err
	}
	if ce := ld.log.Check(zap.DebugLevel, "relocate"); ce != nil {
		fields := append(siteFields(f.site), zap.Stringer("kind", f.kind), zap.Int64("disp", disp))
		if asm := ld.impl.Disasm(f.P, insn); asm != "" {
			fields = append(fields, zap.String("insn", asm))
		}
		ce.Write(fields...)
	}
	return nil
}

func (ld *Ld) read(site rtld.Site, width uint64) (uint64, error) {
	v, err := emulator.ToPointer(ld.emu, site.Addr).ReadUint(width)
	if err != nil {
		return 0, rtld.NewMemoryError(site, err)
	}
	return v, nil
}

// write stores the low width bytes of value at the site.
func (ld *Ld) write(site rtld.Site, width, value uint64) error {
	if err := emulator.ToPointer(ld.emu, site.Addr).WriteUint(width, value); err != nil {
		return rtld.NewMemoryError(site, err)
	}
	return nil
}

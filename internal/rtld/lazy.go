package rtld

import (
	"github.com/pkg/errors"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/rtld"
	"go.uber.org/zap"
)

// applyLazy prepares one JMPREL record for lazy binding. Only RELATIVE and
// JMP_SLOT records may appear in a lazily bound table.
func (ld *Ld) applyLazy(obj loader.Object, kind RelocKind, addend int64, site rtld.Site) error {
	switch kind {
	case KindRelative:
		slot, err := ld.read(site, ld.wordSize())
		if err != nil {
			return err
		}
		return ld.write(site, ld.wordSize(), relativeAccumulate(slot, obj.LoadBias(), addend))
	case KindJmpSlot:
		if !ld.impl.LazyRebase() || obj.LoadBias() == 0 {
			return nil
		}
		slot, err := ld.read(site, ld.wordSize())
		if err != nil {
			return err
		}
		return ld.write(site, ld.wordSize(), slot+obj.LoadBias())
	}
	return rtld.NewJmpRelError(site)
}

func (ld *Ld) ResolveLazyPLTEntry(obj loader.Object, off uint64) (uint64, error) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	table, size := obj.Table(loader.TABLE_JMPREL)
	n := recordSize(obj)
	if off%n != 0 || off >= size || size-off < n {
		site := rtld.Site{Object: obj.Name(), Addr: table + off, Type: loader.TABLE_JMPREL.String()}
		return 0, rtld.NewLazyBindError(site, off, errors.Wrapf(rtld.ErrLazyOffset, "%#x of %#x", off, size))
	}
	rec, err := ld.readRecord(obj, table+off)
	if err != nil {
		site := rtld.Site{Object: obj.Name(), Addr: table + off, Type: loader.TABLE_JMPREL.String()}
		return 0, rtld.NewLazyBindError(site, off, err)
	}
	var sym *loader.Symbol
	if rec.sym != 0 {
		if sym, err = obj.Symbol(rec.sym); err != nil {
			return 0, rtld.NewLazyBindError(ld.site(obj, rec, nil), off, err)
		}
	}
	site := ld.site(obj, rec, sym)
	if ld.impl.Kind(rec.typ) != KindJmpSlot {
		return 0, rtld.NewLazyBindError(site, off, rtld.ErrNotJmpSlot)
	}
	value := obj.LoadBias()
	if sym != nil {
		def, err := ld.opts.Resolver.FindSymbol(sym.Name, obj.Scope(), site.Addr, obj, true)
		if err != nil {
			return 0, rtld.NewLazyBindError(site, off, err)
		}
		value = def.Addr
	}
	value += uint64(rec.addend)
	if err = ld.write(site, ld.wordSize(), value); err != nil {
		return 0, rtld.NewLazyBindError(site, off, err)
	}
	ld.log.Debug("lazy bind", append(siteFields(site), zap.Stringer("value", hex(value)))...)
	return value, nil
}

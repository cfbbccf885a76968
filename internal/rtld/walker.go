package rtld

import (
	"debug/elf"
	"iter"

	"github.com/pkg/errors"
	"github.com/wnxd/microld/emulator"
	"github.com/wnxd/microld/encoding"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/rtld"
	"go.uber.org/multierr"
)

type pass int

const (
	passData pass = iota
	passPLT
	passLazy
	passCopy
)

// record is one decoded RELA entry. addr is the runtime address of the
// entry itself.
type record struct {
	addr   uint64
	off    uint64
	sym    uint32
	typ    uint32
	addend int64
}

func recordSize(obj loader.Object) uint64 {
	if obj.Class() == elf.ELFCLASS64 {
		return 24
	}
	return 12
}

func (ld *Ld) readRecord(obj loader.Object, addr uint64) (record, error) {
	s := encoding.NewStream(emulator.ToPointer(ld.emu, addr), ld.emu.ByteOrder().Order(), 0)
	rec := record{addr: addr}
	switch obj.Class() {
	case elf.ELFCLASS32:
		var rel elf.Rela32
		if err := encoding.Decode(s, &rel); err != nil {
			return rec, err
		}
		rec.off, rec.sym, rec.typ, rec.addend = uint64(rel.Off), elf.R_SYM32(rel.Info), elf.R_TYPE32(rel.Info), int64(rel.Addend)
	case elf.ELFCLASS64:
		var rel elf.Rela64
		if err := encoding.Decode(s, &rel); err != nil {
			return rec, err
		}
		rec.off, rec.sym, rec.typ, rec.addend = rel.Off, elf.R_SYM64(rel.Info), elf.R_TYPE64(rel.Info), rel.Addend
	default:
		return rec, errors.Errorf("unsupported elf class %s", obj.Class())
	}
	return rec, nil
}

// records yields the entries of a relocation table in table order. A
// trailing partial entry is ignored.
func (ld *Ld) records(obj loader.Object, kind loader.TableKind) iter.Seq2[record, error] {
	return func(yield func(record, error) bool) {
		addr, size := obj.Table(kind)
		n := recordSize(obj)
		for i := uint64(0); i < size/n; i++ {
			rec, err := ld.readRecord(obj, addr+i*n)
			if err != nil {
				site := rtld.Site{Object: obj.Name(), Addr: addr + i*n, Type: kind.String()}
				yield(rec, rtld.NewMemoryError(site, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// symCache remembers the last symbol resolution of a table walk. Adjacent
// records against the same symbol are common.
type symCache struct {
	valid bool
	index uint32
	plt   bool
	value uint64
	found bool
}

func (c *symCache) get(index uint32, plt bool) (uint64, bool, bool) {
	if !c.valid || c.index != index || c.plt != plt {
		return 0, false, false
	}
	return c.value, c.found, true
}

func (c *symCache) put(index uint32, plt bool, value uint64, found bool) {
	*c = symCache{true, index, plt, value, found}
}

// walk runs one pass over a table. Non-fatal errors are counted and combined;
// the first fatal error stops the walk.
func (ld *Ld) walk(obj loader.Object, kind loader.TableKind, p pass) (uint, error) {
	var goofs uint
	var errs error
	var cache symCache
	for rec, err := range ld.records(obj, kind) {
		if err == nil {
			err = ld.apply(obj, rec, p, &cache)
		}
		switch {
		case err == nil:
		case rtld.IsFatal(err):
			return goofs, err
		default:
			goofs++
			errs = multierr.Append(errs, err)
		}
	}
	return goofs, errs
}

func (ld *Ld) ApplyDataRelocations(obj loader.Object) (uint, error) {
	return ld.walk(obj, loader.TABLE_DATA, passData)
}

func (ld *Ld) ApplyPLTRelocations(obj loader.Object, lazy bool) (uint, error) {
	if lazy {
		return ld.walk(obj, loader.TABLE_JMPREL, passLazy)
	}
	return ld.walk(obj, loader.TABLE_JMPREL, passPLT)
}

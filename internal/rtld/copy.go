package rtld

import (
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/rtld"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ApplyCopyRelocations copies the initial contents of data symbols into the
// storage objs reserved for them. It must run after every other pass. COPY
// records only live in the DT_RELA table.
func (ld *Ld) ApplyCopyRelocations(objs []loader.Object) (uint, error) {
	var goofs uint
	var errs error
	for _, obj := range objs {
		n, err := ld.walk(obj, loader.TABLE_DATA, passCopy)
		goofs += n
		if rtld.IsFatal(err) {
			return goofs, err
		}
		errs = multierr.Append(errs, err)
	}
	return goofs, errs
}

// applyCopy copies the definition of sym found outside obj into the site.
func (ld *Ld) applyCopy(obj loader.Object, sym *loader.Symbol, site rtld.Site) error {
	if sym == nil {
		ld.log.Error("copy relocation without symbol", siteFields(site)...)
		return rtld.NewCopySourceError(site)
	}
	def, err := ld.opts.Resolver.FindSymbol(sym.Name, obj.Scope().Without(obj), site.Addr, obj, false)
	if err != nil {
		ld.log.Error("can't find copy source", append(siteFields(site), zap.Error(err))...)
		return rtld.NewCopySourceError(site)
	}
	size := sym.Size
	if def.Symbol != nil && def.Symbol.Size != size {
		size = min(size, def.Symbol.Size)
		ld.log.Warn("copy relocation size mismatch", append(siteFields(site),
			zap.Uint64("size", sym.Size), zap.Uint64("source_size", def.Symbol.Size))...)
	}
	if size == 0 {
		return nil
	}
	data, err := ld.emu.MemRead(def.Addr, size)
	if err != nil {
		return rtld.NewMemoryError(site, err)
	}
	if err = ld.emu.MemWrite(site.Addr, data); err != nil {
		return rtld.NewMemoryError(site, err)
	}
	ld.log.Debug("copy", append(siteFields(site), zap.Stringer("source", hex(def.Addr)), zap.Uint64("size", size))...)
	return nil
}

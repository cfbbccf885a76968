package loader

import (
	"io"

	"github.com/pkg/errors"
	"github.com/wnxd/microld/emulator"
)

// Region is a segment to be mapped at bias+Addr. Size bytes are reserved and
// the first Length bytes are filled from ReaderAt; the rest stays zero.
type Region struct {
	Addr, Size    uint64
	Length, Align uint64
	Prot          emulator.MemProt
	io.ReaderAt
}

// Map reserves and fills regions in ascending address order. Pages shared by
// adjacent regions are mapped once. Regions stay writable so relocations can
// patch text and RELRO data.
func Map(emu emulator.Emulator, bias uint64, regions []Region) error {
	page := emu.PageSize()
	var mapped uint64
	for _, r := range regions {
		if r.Size == 0 {
			continue
		}
		begin := emulator.AlignDown(bias+r.Addr, page)
		end := emulator.Align(bias+r.Addr+r.Size, page)
		if begin < mapped {
			begin = mapped
		}
		if begin < end {
			if err := emu.MemMap(begin, end-begin, r.Prot|emulator.MEM_PROT_READ|emulator.MEM_PROT_WRITE); err != nil {
				return errors.Wrapf(err, "map region %#x", r.Addr)
			}
			mapped = end
		}
		if r.Length == 0 || r.ReaderAt == nil {
			continue
		}
		data := make([]byte, min(r.Length, r.Size))
		if _, err := r.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
			return errors.Wrapf(err, "read region %#x", r.Addr)
		}
		if err := emu.MemWrite(bias+r.Addr, data); err != nil {
			return errors.Wrapf(err, "fill region %#x", r.Addr)
		}
	}
	return nil
}

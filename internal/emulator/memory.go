package emulator

import (
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/wnxd/microld/emulator"
)

const DefaultPageSize = 0x1000

type region struct {
	emulator.MemRegion
	data []byte
}

// Memory is a page granular address space. Regions are kept sorted by
// address and never overlap.
type Memory struct {
	arch     emulator.Arch
	order    emulator.ByteOrder
	pageSize uint64
	mu       sync.RWMutex
	regions  []*region
}

func New(arch emulator.Arch) (*Memory, error) {
	if arch.PointerSize() == 0 {
		return nil, emulator.ErrArchUnsupported
	}
	return &Memory{
		arch:     arch,
		order:    arch.ByteOrder(),
		pageSize: DefaultPageSize,
	}, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	for _, r := range m.regions {
		if e := freePages(r.data); e != nil && err == nil {
			err = e
		}
	}
	m.regions = nil
	return err
}

func (m *Memory) Arch() emulator.Arch {
	return m.arch
}

func (m *Memory) ByteOrder() emulator.ByteOrder {
	return m.order
}

func (m *Memory) PageSize() uint64 {
	return m.pageSize
}

func (m *Memory) MemMap(addr, size uint64, prot emulator.MemProt) error {
	if size == 0 {
		return errors.Wrapf(emulator.ErrAddressInvalid, "map empty region at %#x", addr)
	}
	begin := emulator.AlignDown(addr, m.pageSize)
	end := emulator.Align(addr+size, m.pageSize)
	if end <= begin {
		return errors.Wrapf(emulator.ErrAddressInvalid, "map [%#x, %#x) wraps", addr, addr+size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, _ := slices.BinarySearchFunc(m.regions, begin, func(r *region, addr uint64) int {
		switch {
		case r.Addr < addr:
			return -1
		case r.Addr > addr:
			return 1
		}
		return 0
	})
	if i > 0 && m.regions[i-1].End() > begin || i < len(m.regions) && m.regions[i].Addr < end {
		return errors.Wrapf(emulator.ErrMemOverlap, "map [%#x, %#x)", begin, end)
	}
	data, err := allocPages(end - begin)
	if err != nil {
		return errors.Wrapf(err, "allocate %#x bytes", end-begin)
	}
	r := &region{emulator.MemRegion{Addr: begin, Size: end - begin, Prot: prot}, data}
	m.regions = slices.Insert(m.regions, i, r)
	return nil
}

func (m *Memory) MemUnmap(addr, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	first, last, err := m.span(addr, size)
	if err != nil {
		return err
	}
	for _, r := range m.regions[first:last] {
		freePages(r.data)
	}
	m.regions = slices.Delete(m.regions, first, last)
	return nil
}

func (m *Memory) MemProtect(addr, size uint64, prot emulator.MemProt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	first, last, err := m.span(addr, size)
	if err != nil {
		return err
	}
	for _, r := range m.regions[first:last] {
		r.Prot = prot
	}
	return nil
}

// span returns the index range of the regions that exactly tile
// [addr, addr+size). Partial regions are rejected.
func (m *Memory) span(addr, size uint64) (int, int, error) {
	end := emulator.Align(addr+size, m.pageSize)
	first := slices.IndexFunc(m.regions, func(r *region) bool { return r.Addr == addr })
	if first == -1 {
		return 0, 0, errors.Wrapf(emulator.ErrAddressInvalid, "no region starts at %#x", addr)
	}
	last := first
	next := addr
	for last < len(m.regions) && m.regions[last].Addr == next && next < end {
		next = m.regions[last].End()
		last++
	}
	if next != end {
		return 0, 0, errors.Wrapf(emulator.ErrAddressInvalid, "[%#x, %#x) does not cover whole regions", addr, end)
	}
	return first, last, nil
}

func (m *Memory) MemRegions() ([]emulator.MemRegion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	regions := make([]emulator.MemRegion, len(m.regions))
	for i, r := range m.regions {
		regions[i] = r.MemRegion
	}
	return regions, nil
}

func (m *Memory) MemRead(addr, size uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var data []byte
	err := m.access(addr, size, emulator.MEM_PROT_READ, func(r *region, off, n, done uint64) {
		if data == nil {
			data = make([]byte, size)
		}
		copy(data[done:done+n], r.data[off:off+n])
	})
	if err != nil {
		return nil, err
	} else if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (m *Memory) MemWrite(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access(addr, uint64(len(data)), emulator.MEM_PROT_WRITE, func(r *region, off, n, done uint64) {
		copy(r.data[off:off+n], data[done:done+n])
	})
}

// access validates the whole range before fn touches any byte, so a failed
// access never leaves a partial write behind.
func (m *Memory) access(addr, size uint64, prot emulator.MemProt, fn func(r *region, off, n, done uint64)) error {
	if addr+size < addr {
		return errors.Wrapf(emulator.ErrAddressInvalid, "access [%#x, +%#x) wraps", addr, size)
	}
	type chunk struct {
		r            *region
		off, n, done uint64
	}
	var chunks []chunk
	for done := uint64(0); done < size; {
		cur := addr + done
		r := m.find(cur)
		if r == nil {
			return errors.Wrapf(emulator.ErrMemUnmapped, "access %#x", cur)
		} else if r.Prot&prot == 0 {
			return errors.Wrapf(emulator.ErrMemProtection, "access %#x (%s) needs %s", cur, r.Prot, prot)
		}
		off := cur - r.Addr
		n := min(r.Size-off, size-done)
		chunks = append(chunks, chunk{r, off, n, done})
		done += n
	}
	for _, c := range chunks {
		fn(c.r, c.off, c.n, c.done)
	}
	return nil
}

func (m *Memory) find(addr uint64) *region {
	i, found := slices.BinarySearchFunc(m.regions, addr, func(r *region, addr uint64) int {
		switch {
		case r.End() <= addr:
			return -1
		case r.Addr > addr:
			return 1
		}
		return 0
	})
	if !found {
		return nil
	}
	return m.regions[i]
}

package loader

import (
	"github.com/pkg/errors"
	"github.com/wnxd/microld/emulator"
)

type hashTable struct {
	buckets []uint32
	chains  []uint32
}

func elfHash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h<<4 + uint32(name[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
		}
		h &^= 0xf0000000
	}
	return h
}

func readHashTable(p emulator.Pointer) (*hashTable, error) {
	nbucket, err := p.ReadUint(4)
	if err != nil {
		return nil, errors.Wrap(err, "read hash header")
	}
	nchain, err := p.Add(4).ReadUint(4)
	if err != nil {
		return nil, errors.Wrap(err, "read hash header")
	}
	words, err := readWords(p.Add(8), nbucket+nchain)
	if err != nil {
		return nil, errors.Wrap(err, "read hash table")
	}
	return &hashTable{buckets: words[:nbucket], chains: words[nbucket:]}, nil
}

func readWords(p emulator.Pointer, n uint64) ([]uint32, error) {
	data, err := p.MemRead(n * 4)
	if err != nil {
		return nil, err
	}
	order := p.Emulator().ByteOrder().Order()
	words := make([]uint32, n)
	for i := range words {
		words[i] = order.Uint32(data[i*4:])
	}
	return words, nil
}

// lookup walks the hash chain of name. visit returns true to stop.
func (h *hashTable) lookup(name string, visit func(index uint32) (bool, error)) error {
	if len(h.buckets) == 0 {
		return nil
	}
	index := h.buckets[elfHash(name)%uint32(len(h.buckets))]
	for steps := 0; index != 0; steps++ {
		if int(index) >= len(h.chains) || steps > len(h.chains) {
			return errors.Wrapf(ErrSymbolIndex, "hash chain of %q", name)
		}
		if stop, err := visit(index); stop || err != nil {
			return err
		}
		index = h.chains[index]
	}
	return nil
}

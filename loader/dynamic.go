package loader

import (
	"debug/elf"

	"github.com/pkg/errors"
	"github.com/wnxd/microld/encoding"
)

// Dynamic holds the entries of a dynamic section. Tags such as DT_NEEDED may
// occur more than once and keep their section order.
type Dynamic map[elf.DynTag][]uint64

func (d Dynamic) Value(tag elf.DynTag) (uint64, bool) {
	if v := d[tag]; len(v) != 0 {
		return v[0], true
	}
	return 0, false
}

func (d Dynamic) Has(tag elf.DynTag) bool {
	_, ok := d[tag]
	return ok
}

// ParseDynamic decodes dynamic entries from s until DT_NULL.
func ParseDynamic(s encoding.Stream, class elf.Class) (Dynamic, error) {
	dyn := make(Dynamic)
	for {
		var tag elf.DynTag
		var val uint64
		switch class {
		case elf.ELFCLASS32:
			var d elf.Dyn32
			if err := encoding.Decode(s, &d); err != nil {
				return nil, errors.Wrap(err, "read dynamic entry")
			}
			tag, val = elf.DynTag(d.Tag), uint64(d.Val)
		case elf.ELFCLASS64:
			var d elf.Dyn64
			if err := encoding.Decode(s, &d); err != nil {
				return nil, errors.Wrap(err, "read dynamic entry")
			}
			tag, val = elf.DynTag(d.Tag), d.Val
		default:
			return nil, errors.Errorf("unsupported elf class %s", class)
		}
		if tag == elf.DT_NULL {
			return dyn, nil
		}
		dyn[tag] = append(dyn[tag], val)
	}
}

package loader

import (
	"debug/elf"
	"slices"
)

type Symbol struct {
	Name    string
	Value   uint64
	Size    uint64
	Bind    elf.SymBind
	Type    elf.SymType
	Section elf.SectionIndex
}

func (s *Symbol) IsDefined() bool {
	return s.Section != elf.SHN_UNDEF
}

// Object is a loaded object as seen by the relocation engine. The load bias
// must not change once relocation has started.
type Object interface {
	Name() string
	LoadBias() uint64
	Class() elf.Class
	IsInterpreter() bool
	IsExecutable() bool
	Scope() Scope
	// Table returns the runtime address and byte length of a relocation
	// table. An absent table has length 0.
	Table(kind TableKind) (uint64, uint64)
	// Symbol returns the symbol table entry at index. Out of range indexes
	// fail with ErrSymbolIndex.
	Symbol(index uint32) (*Symbol, error)
	// Lookup returns the first symbol table entry named name, defined or not.
	// A corrupt hash chain or symbol table is an error, not a miss.
	Lookup(name string) (*Symbol, bool, error)
}

// Scope is the ordered list of objects searched for a symbol definition.
type Scope []Object

func (s Scope) Without(obj Object) Scope {
	return slices.DeleteFunc(slices.Clone(s), func(o Object) bool { return o == obj })
}

func (s Scope) Names() []string {
	names := make([]string, len(s))
	for i, o := range s {
		names[i] = o.Name()
	}
	return names
}

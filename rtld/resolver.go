package rtld

import (
	"debug/elf"

	"github.com/pkg/errors"
	"github.com/wnxd/microld/loader"
)

// Definition is a resolved symbol. Object and Symbol are nil when the
// resolver does not track the defining object.
type Definition struct {
	Addr   uint64
	Object loader.Object
	Symbol *loader.Symbol
}

type Resolver interface {
	// FindSymbol searches scope for name on behalf of requester patching
	// addr. plt is set for jump slot lookups. A miss returns ErrSymbolNotFound;
	// any other error means a symbol table could not be searched.
	FindSymbol(name string, scope loader.Scope, addr uint64, requester loader.Object, plt bool) (Definition, error)
}

type ResolverFunc func(name string, scope loader.Scope, addr uint64, requester loader.Object, plt bool) (Definition, error)

func (f ResolverFunc) FindSymbol(name string, scope loader.Scope, addr uint64, requester loader.Object, plt bool) (Definition, error) {
	return f(name, scope, addr, requester, plt)
}

// ScopeResolver returns the first non-local definition of a symbol in scope
// order. An undefined symbol of an executable with a non-zero value is the
// canonical PLT address of a function and satisfies data lookups only.
type ScopeResolver struct{}

func (ScopeResolver) FindSymbol(name string, scope loader.Scope, addr uint64, requester loader.Object, plt bool) (Definition, error) {
	for _, obj := range scope {
		sym, ok, err := obj.Lookup(name)
		if err != nil {
			return Definition{}, errors.WithMessagef(err, "lookup %s", name)
		} else if !ok || sym.Bind == elf.STB_LOCAL {
			continue
		}
		switch {
		case sym.Section == elf.SHN_ABS:
			return Definition{sym.Value, obj, sym}, nil
		case sym.IsDefined():
		case plt || sym.Value == 0 || !obj.IsExecutable():
			continue
		}
		return Definition{obj.LoadBias() + sym.Value, obj, sym}, nil
	}
	return Definition{}, errors.Wrap(ErrSymbolNotFound, name)
}

type Bootstrap interface {
	IsBootstrapSymbol(name string) bool
}

type BootstrapFunc func(name string) bool

func (f BootstrapFunc) IsBootstrapSymbol(name string) bool {
	return f(name)
}

package rtld

import (
	"github.com/wnxd/microld/emulator"
)

type LinkerCtor func(emulator.Emulator, Options) (Linker, error)

var ldMap = make(map[emulator.Arch]LinkerCtor)

func Register(arch emulator.Arch, ctor LinkerCtor) bool {
	if _, ok := ldMap[arch]; ok {
		return false
	}
	ldMap[arch] = ctor
	return true
}

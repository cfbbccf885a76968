package m68k

import (
	"github.com/wnxd/microld/emulator"
	internal "github.com/wnxd/microld/internal/rtld/m68k"
	"github.com/wnxd/microld/rtld"
)

var _ = rtld.Register(emulator.ARCH_M68K, internal.NewM68kLinker)

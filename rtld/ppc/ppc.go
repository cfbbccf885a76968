package ppc

import (
	"github.com/wnxd/microld/emulator"
	internal "github.com/wnxd/microld/internal/rtld/ppc"
	"github.com/wnxd/microld/rtld"
)

var _ = rtld.Register(emulator.ARCH_PPC, internal.NewPPCLinker)

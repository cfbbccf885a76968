package emulator

type Arch int

const (
	ARCH_UNKNOWN Arch = iota
	ARCH_M68K
	ARCH_PPC
)

func (a Arch) String() string {
	switch a {
	case ARCH_M68K:
		return "m68k"
	case ARCH_PPC:
		return "ppc"
	}
	return "unknown"
}

// PointerSize returns the width of a target address in bytes, or 0 for an
// unknown architecture.
func (a Arch) PointerSize() uint64 {
	switch a {
	case ARCH_M68K, ARCH_PPC:
		return 4
	}
	return 0
}

// ByteOrder returns the native byte order of the architecture.
func (a Arch) ByteOrder() ByteOrder {
	return BO_BIG_ENDIAN
}

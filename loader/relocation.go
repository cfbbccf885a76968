package loader

type TableKind int

const (
	TABLE_DATA TableKind = iota
	TABLE_JMPREL
)

func (k TableKind) String() string {
	switch k {
	case TABLE_DATA:
		return "rela"
	case TABLE_JMPREL:
		return "jmprel"
	}
	return "unknown"
}

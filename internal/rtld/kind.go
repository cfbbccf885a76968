package rtld

// RelocKind is the architecture independent meaning of a relocation type.
// Ports map their type tags onto it with an exhaustive switch; anything they
// do not list is KindUnknown.
type RelocKind int

const (
	KindUnknown RelocKind = iota
	KindNone
	KindAbs8
	KindAbs16
	KindAbs32
	KindPC8
	KindPC16
	KindPC32
	KindLo16
	KindHi16
	KindHa16
	KindGlobDat
	KindJmpSlot
	KindRelative
	KindCopy
	KindBranch24
	KindBranch14
)

var kindNames = [...]string{
	KindUnknown:  "unknown",
	KindNone:     "none",
	KindAbs8:     "abs8",
	KindAbs16:    "abs16",
	KindAbs32:    "abs32",
	KindPC8:      "pc8",
	KindPC16:     "pc16",
	KindPC32:     "pc32",
	KindLo16:     "lo16",
	KindHi16:     "hi16",
	KindHa16:     "ha16",
	KindGlobDat:  "glob_dat",
	KindJmpSlot:  "jmp_slot",
	KindRelative: "relative",
	KindCopy:     "copy",
	KindBranch24: "branch24",
	KindBranch14: "branch14",
}

func (k RelocKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// NeedsSymbol reports whether the kind consumes the symbol value S.
func (k RelocKind) NeedsSymbol() bool {
	switch k {
	case KindNone, KindRelative, KindUnknown:
		return false
	}
	return true
}

package m68k

import "strconv"

// R_68K is a Motorola 68000 relocation type. debug/elf does not define it.
type R_68K uint32

const (
	R_68K_NONE R_68K = iota
	R_68K_32
	R_68K_16
	R_68K_8
	R_68K_PC32
	R_68K_PC16
	R_68K_PC8
	R_68K_GOT32
	R_68K_GOT16
	R_68K_GOT8
	R_68K_GOT32O
	R_68K_GOT16O
	R_68K_GOT8O
	R_68K_PLT32
	R_68K_PLT16
	R_68K_PLT8
	R_68K_PLT32O
	R_68K_PLT16O
	R_68K_PLT8O
	R_68K_COPY
	R_68K_GLOB_DAT
	R_68K_JMP_SLOT
	R_68K_RELATIVE
	R_68K_GNU_VTINHERIT
	R_68K_GNU_VTENTRY
	R_68K_TLS_GD32
	R_68K_TLS_GD16
	R_68K_TLS_GD8
	R_68K_TLS_LDM32
	R_68K_TLS_LDM16
	R_68K_TLS_LDM8
	R_68K_TLS_LDO32
	R_68K_TLS_LDO16
	R_68K_TLS_LDO8
	R_68K_TLS_IE32
	R_68K_TLS_IE16
	R_68K_TLS_IE8
	R_68K_TLS_LE32
	R_68K_TLS_LE16
	R_68K_TLS_LE8
	R_68K_TLS_DTPMOD32
	R_68K_TLS_DTPREL32
	R_68K_TLS_TPREL32
)

var r68kNames = [...]string{
	R_68K_NONE:          "R_68K_NONE",
	R_68K_32:            "R_68K_32",
	R_68K_16:            "R_68K_16",
	R_68K_8:             "R_68K_8",
	R_68K_PC32:          "R_68K_PC32",
	R_68K_PC16:          "R_68K_PC16",
	R_68K_PC8:           "R_68K_PC8",
	R_68K_GOT32:         "R_68K_GOT32",
	R_68K_GOT16:         "R_68K_GOT16",
	R_68K_GOT8:          "R_68K_GOT8",
	R_68K_GOT32O:        "R_68K_GOT32O",
	R_68K_GOT16O:        "R_68K_GOT16O",
	R_68K_GOT8O:         "R_68K_GOT8O",
	R_68K_PLT32:         "R_68K_PLT32",
	R_68K_PLT16:         "R_68K_PLT16",
	R_68K_PLT8:          "R_68K_PLT8",
	R_68K_PLT32O:        "R_68K_PLT32O",
	R_68K_PLT16O:        "R_68K_PLT16O",
	R_68K_PLT8O:         "R_68K_PLT8O",
	R_68K_COPY:          "R_68K_COPY",
	R_68K_GLOB_DAT:      "R_68K_GLOB_DAT",
	R_68K_JMP_SLOT:      "R_68K_JMP_SLOT",
	R_68K_RELATIVE:      "R_68K_RELATIVE",
	R_68K_GNU_VTINHERIT: "R_68K_GNU_VTINHERIT",
	R_68K_GNU_VTENTRY:   "R_68K_GNU_VTENTRY",
	R_68K_TLS_GD32:      "R_68K_TLS_GD32",
	R_68K_TLS_GD16:      "R_68K_TLS_GD16",
	R_68K_TLS_GD8:       "R_68K_TLS_GD8",
	R_68K_TLS_LDM32:     "R_68K_TLS_LDM32",
	R_68K_TLS_LDM16:     "R_68K_TLS_LDM16",
	R_68K_TLS_LDM8:      "R_68K_TLS_LDM8",
	R_68K_TLS_LDO32:     "R_68K_TLS_LDO32",
	R_68K_TLS_LDO16:     "R_68K_TLS_LDO16",
	R_68K_TLS_LDO8:      "R_68K_TLS_LDO8",
	R_68K_TLS_IE32:      "R_68K_TLS_IE32",
	R_68K_TLS_IE16:      "R_68K_TLS_IE16",
	R_68K_TLS_IE8:       "R_68K_TLS_IE8",
	R_68K_TLS_LE32:      "R_68K_TLS_LE32",
	R_68K_TLS_LE16:      "R_68K_TLS_LE16",
	R_68K_TLS_LE8:       "R_68K_TLS_LE8",
	R_68K_TLS_DTPMOD32:  "R_68K_TLS_DTPMOD32",
	R_68K_TLS_DTPREL32:  "R_68K_TLS_DTPREL32",
	R_68K_TLS_TPREL32:   "R_68K_TLS_TPREL32",
}

func (r R_68K) String() string {
	if uint64(r) < uint64(len(r68kNames)) {
		return r68kNames[r]
	}
	return "R_68K_" + strconv.FormatUint(uint64(r), 10)
}

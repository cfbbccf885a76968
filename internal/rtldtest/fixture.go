// Package rtldtest lays out dynamic symbol, string, hash and relocation tables
// in emulator memory so engine tests can work on real encoded records.
package rtldtest

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/microld/emulator"
	internal "github.com/wnxd/microld/internal/emulator"
	"github.com/wnxd/microld/encoding"
	"github.com/wnxd/microld/loader"
)

// Image layout relative to the load bias. Offsets below DataEnd are free for
// relocation targets.
const (
	DataEnd    = 0x1000
	SymtabOff  = 0x1000
	StrtabOff  = 0x1800
	HashOff    = 0x2000
	RelaOff    = 0x2800
	JmpRelOff  = 0x3000
	ImageSize  = 0x4000
	RelaSize   = 12
	hashBucket = 3
)

type Sym struct {
	Name    string
	Value   uint64
	Size    uint64
	Bind    elf.SymBind
	Type    elf.SymType
	Section elf.SectionIndex
}

// Global returns an undefined GLOBAL symbol.
func Global(name string) Sym {
	return Sym{Name: name, Bind: elf.STB_GLOBAL}
}

// Weak returns an undefined WEAK symbol.
func Weak(name string) Sym {
	return Sym{Name: name, Bind: elf.STB_WEAK}
}

// Defined returns a GLOBAL object defined in section 1 at value.
func Defined(name string, value, size uint64) Sym {
	return Sym{Name: name, Value: value, Size: size, Bind: elf.STB_GLOBAL, Type: elf.STT_OBJECT, Section: 1}
}

type Rela struct {
	Off    uint64
	Sym    uint32
	Type   uint32
	Addend int64
}

// Object describes a fixture. Symbol indexes start at 1; index 0 is the null
// symbol and is added by Build.
type Object struct {
	Name        string
	Bias        uint64
	Symbols     []Sym
	Data        []Rela
	JmpRel      []Rela
	Interpreter bool
	Executable  bool
}

func NewEmulator(t testing.TB, arch emulator.Arch) *internal.Memory {
	t.Helper()
	m, err := internal.New(arch)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// Build maps ImageSize bytes at obj.Bias, writes the tables and returns the
// image. The image scope is the image alone.
func Build(t testing.TB, emu emulator.Emulator, obj Object) *loader.Image {
	t.Helper()
	require.NoError(t, emu.MemMap(obj.Bias, ImageSize, emulator.MEM_PROT_ALL))
	require.LessOrEqual(t, (len(obj.Symbols)+1)*elf.Sym32Size, StrtabOff-SymtabOff)
	require.LessOrEqual(t, len(obj.Data)*RelaSize, JmpRelOff-RelaOff)
	require.LessOrEqual(t, len(obj.JmpRel)*RelaSize, ImageSize-JmpRelOff)

	order := emu.ByteOrder().Order()
	at := func(off uint64) encoding.Stream {
		return encoding.NewStream(emulator.ToPointer(emu, obj.Bias+off), order, 0)
	}

	strtab := []byte{0}
	symtab := at(SymtabOff)
	require.NoError(t, encoding.Encode(symtab, elf.Sym32{}))
	for _, sym := range obj.Symbols {
		raw := elf.Sym32{
			Name:  uint32(len(strtab)),
			Value: uint32(sym.Value),
			Size:  uint32(sym.Size),
			Info:  elf.ST_INFO(sym.Bind, sym.Type),
			Shndx: uint16(sym.Section),
		}
		strtab = append(append(strtab, sym.Name...), 0)
		require.NoError(t, encoding.Encode(symtab, raw))
	}
	require.LessOrEqual(t, len(strtab), HashOff-StrtabOff)
	require.NoError(t, emu.MemWrite(obj.Bias+StrtabOff, strtab))

	nchain := len(obj.Symbols) + 1
	buckets := make([]uint32, hashBucket)
	chains := make([]uint32, nchain)
	for i := len(obj.Symbols); i >= 1; i-- {
		b := hash(obj.Symbols[i-1].Name) % hashBucket
		chains[i] = buckets[b]
		buckets[b] = uint32(i)
	}
	hs := at(HashOff)
	for _, w := range append([]uint32{hashBucket, uint32(nchain)}, append(buckets, chains...)...) {
		require.NoError(t, encoding.Encode(hs, w))
	}

	writeRela(t, at(RelaOff), obj.Data)
	writeRela(t, at(JmpRelOff), obj.JmpRel)

	dyn := loader.Dynamic{
		elf.DT_SYMTAB:  {SymtabOff},
		elf.DT_SYMENT:  {elf.Sym32Size},
		elf.DT_STRTAB:  {StrtabOff},
		elf.DT_STRSZ:   {uint64(len(strtab))},
		elf.DT_HASH:    {HashOff},
		elf.DT_RELA:    {RelaOff},
		elf.DT_RELASZ:  {uint64(len(obj.Data) * RelaSize)},
		elf.DT_RELAENT: {RelaSize},
	}
	if len(obj.JmpRel) != 0 {
		dyn[elf.DT_JMPREL] = []uint64{JmpRelOff}
		dyn[elf.DT_PLTRELSZ] = []uint64{uint64(len(obj.JmpRel) * RelaSize)}
		dyn[elf.DT_PLTREL] = []uint64{uint64(elf.DT_RELA)}
	}
	var opts []loader.ImageOption
	if obj.Interpreter {
		opts = append(opts, loader.AsInterpreter())
	}
	if obj.Executable {
		opts = append(opts, loader.AsExecutable())
	}
	img, err := loader.NewImage(emu, obj.Name, obj.Bias, dyn, opts...)
	require.NoError(t, err)
	return img
}

func writeRela(t testing.TB, s encoding.Stream, relas []Rela) {
	for _, r := range relas {
		rel := elf.Rela32{Off: uint32(r.Off), Info: elf.R_INFO32(r.Sym, r.Type), Addend: int32(r.Addend)}
		require.NoError(t, encoding.Encode(s, rel))
	}
}

func hash(name string) uint32 {
	var h uint32
	for _, c := range []byte(name) {
		h = h<<4 + uint32(c)
		h ^= (h & 0xf0000000) >> 24
		h &^= 0xf0000000
	}
	return h
}

// Link sets every image's scope to objs in order.
func Link(objs ...*loader.Image) loader.Scope {
	scope := make(loader.Scope, len(objs))
	for i, o := range objs {
		scope[i] = o
	}
	for _, o := range objs {
		o.SetScope(scope)
	}
	return scope
}

// Word reads a pointer sized word at addr.
func Word(t testing.TB, emu emulator.Emulator, addr uint64) uint64 {
	t.Helper()
	v, err := emulator.ToPointer(emu, addr).ReadUint(emu.Arch().PointerSize())
	require.NoError(t, err)
	return v
}

func SetWord(t testing.TB, emu emulator.Emulator, addr, v uint64) {
	t.Helper()
	require.NoError(t, emulator.ToPointer(emu, addr).WriteUint(emu.Arch().PointerSize(), v))
}

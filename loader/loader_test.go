package loader_test

import (
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microld/emulator"
	"github.com/wnxd/microld/encoding"
	"github.com/wnxd/microld/internal/rtldtest"
	"github.com/wnxd/microld/loader"
)

func TestImageSymbols(t *testing.T) {
	emu := rtldtest.NewEmulator(t, emulator.ARCH_M68K)
	img := rtldtest.Build(t, emu, rtldtest.Object{
		Name: "libfoo.so",
		Bias: 0x40000,
		Symbols: []rtldtest.Sym{
			rtldtest.Global("puts"),
			rtldtest.Defined("counter", 0x100, 4),
			rtldtest.Weak("__gmon_start__"),
		},
	})

	sym, err := img.Symbol(2)
	require.NoError(t, err)
	assert.Equal(t, &loader.Symbol{Name: "counter", Value: 0x100, Size: 4, Bind: elf.STB_GLOBAL, Type: elf.STT_OBJECT, Section: 1}, sym)
	assert.True(t, sym.IsDefined())

	again, err := img.Symbol(2)
	require.NoError(t, err)
	assert.Same(t, sym, again)

	null, err := img.Symbol(0)
	require.NoError(t, err)
	assert.Equal(t, "", null.Name)

	_, err = img.Symbol(4)
	assert.ErrorIs(t, err, loader.ErrSymbolIndex)
	_, err = img.Symbol(1 << 23)
	assert.ErrorIs(t, err, loader.ErrSymbolIndex)
}

func TestImageLookup(t *testing.T) {
	emu := rtldtest.NewEmulator(t, emulator.ARCH_PPC)
	var syms []rtldtest.Sym
	for _, name := range []string{"a", "b", "c", "d", "e", "memcpy", "strlen"} {
		syms = append(syms, rtldtest.Defined(name, 0x10, 0))
	}
	syms = append(syms, rtldtest.Global("printf"))
	img := rtldtest.Build(t, emu, rtldtest.Object{Name: "libc.so", Bias: 0x10000, Symbols: syms})

	for _, s := range syms {
		sym, ok, err := img.Lookup(s.Name)
		require.NoError(t, err)
		require.True(t, ok, s.Name)
		assert.Equal(t, s.Name, sym.Name)
	}
	sym, ok, err := img.Lookup("printf")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, sym.IsDefined())

	_, ok, err = img.Lookup("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestImageLookupCorruptName(t *testing.T) {
	emu := rtldtest.NewEmulator(t, emulator.ARCH_M68K)
	img := rtldtest.Build(t, emu, rtldtest.Object{
		Name:    "libbad.so",
		Bias:    0x10000,
		Symbols: []rtldtest.Sym{rtldtest.Defined("environ", 0x40, 4)},
	})
	// st_name of symbol 1 now points far past the string table.
	rtldtest.SetWord(t, emu, 0x10000+rtldtest.SymtabOff+elf.Sym32Size, 0x00ffffff)

	sym, ok, err := img.Lookup("environ")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Nil(t, sym)
	assert.Contains(t, err.Error(), "libbad.so")
}

func TestImageTables(t *testing.T) {
	emu := rtldtest.NewEmulator(t, emulator.ARCH_M68K)
	img := rtldtest.Build(t, emu, rtldtest.Object{
		Bias:   0x20000,
		Data:   []rtldtest.Rela{{Off: 0x10}, {Off: 0x14}},
		JmpRel: []rtldtest.Rela{{Off: 0x20}},
	})
	addr, size := img.Table(loader.TABLE_DATA)
	assert.Equal(t, uint64(0x20000+rtldtest.RelaOff), addr)
	assert.Equal(t, uint64(24), size)
	addr, size = img.Table(loader.TABLE_JMPREL)
	assert.Equal(t, uint64(0x20000+rtldtest.JmpRelOff), addr)
	assert.Equal(t, uint64(12), size)

	empty := rtldtest.Build(t, emu, rtldtest.Object{Bias: 0x30000})
	_, size = empty.Table(loader.TABLE_JMPREL)
	assert.Zero(t, size)
}

func TestImageRejectsRel(t *testing.T) {
	emu := rtldtest.NewEmulator(t, emulator.ARCH_PPC)
	for _, dyn := range []loader.Dynamic{
		{elf.DT_REL: {0x100}},
		{elf.DT_RELAENT: {8}},
		{elf.DT_JMPREL: {0x100}, elf.DT_PLTREL: {uint64(elf.DT_REL)}},
	} {
		_, err := loader.NewImage(emu, "bad.so", 0, dyn)
		assert.ErrorIs(t, err, loader.ErrTableFormat)
	}
	_, err := loader.NewImage(emu, "nohash.so", 0, loader.Dynamic{elf.DT_SYMTAB: {0x100}})
	assert.ErrorIs(t, err, loader.ErrDynamicMissing)
}

func TestScopeWithout(t *testing.T) {
	emu := rtldtest.NewEmulator(t, emulator.ARCH_M68K)
	a := rtldtest.Build(t, emu, rtldtest.Object{Name: "a", Bias: 0x10000})
	b := rtldtest.Build(t, emu, rtldtest.Object{Name: "b", Bias: 0x20000})
	scope := rtldtest.Link(a, b)
	assert.Equal(t, []string{"b"}, scope.Without(a).Names())
	assert.Equal(t, []string{"a", "b"}, scope.Names())
	assert.Equal(t, []string{"a", "b"}, b.Scope().Names())
}

func TestParseDynamic(t *testing.T) {
	emu := rtldtest.NewEmulator(t, emulator.ARCH_M68K)
	require.NoError(t, emu.MemMap(0x10000, 0x1000, emulator.MEM_PROT_ALL))
	s := encoding.NewStream(emulator.ToPointer(emu, 0x10000), binary.BigEndian, 0)
	for _, d := range []elf.Dyn32{
		{Tag: int32(elf.DT_NEEDED), Val: 1},
		{Tag: int32(elf.DT_NEEDED), Val: 9},
		{Tag: int32(elf.DT_HASH), Val: 0x200},
		{Tag: int32(elf.DT_NULL)},
		{Tag: int32(elf.DT_SYMTAB), Val: 0x300},
	} {
		require.NoError(t, encoding.Encode(s, d))
	}
	dyn, err := loader.ParseDynamic(encoding.NewStream(emulator.ToPointer(emu, 0x10000), binary.BigEndian, 0), elf.ELFCLASS32)
	require.NoError(t, err)
	assert.Equal(t, loader.Dynamic{elf.DT_NEEDED: {1, 9}, elf.DT_HASH: {0x200}}, dyn)
	v, ok := dyn.Value(elf.DT_HASH)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x200), v)
	assert.False(t, dyn.Has(elf.DT_SYMTAB))
}

func TestMapRegions(t *testing.T) {
	emu := rtldtest.NewEmulator(t, emulator.ARCH_PPC)
	text := []byte{0x48, 0x00, 0x00, 0x01}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	err := loader.Map(emu, 0x100000, []loader.Region{
		{Addr: 0, Size: 0x800, Length: 4, Prot: emulator.MEM_PROT_READ | emulator.MEM_PROT_EXEC, ReaderAt: bytesReader(text)},
		{Addr: 0xf00, Size: 0x1200, Length: 4, Prot: emulator.MEM_PROT_READ | emulator.MEM_PROT_WRITE, ReaderAt: bytesReader(data)},
	})
	require.NoError(t, err)
	regions, err := emu.MemRegions()
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, uint64(0x100000), regions[0].Addr)
	assert.Equal(t, uint64(0x101000), regions[1].Addr)
	assert.Equal(t, uint64(0x103000), regions[1].End())

	got, err := emu.MemRead(0x100f00, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, got)
}

type bytesReader []byte

func (b bytesReader) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, b[off:]), nil
}

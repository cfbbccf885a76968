package rtld_test

import (
	"bytes"
	"debug/elf"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microld/emulator"
	"github.com/wnxd/microld/internal/rtld/m68k"
	"github.com/wnxd/microld/internal/rtldtest"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/rtld"
	"go.uber.org/multierr"
)

func TestNoneNeverWrites(t *testing.T) {
	f := newFixture(t, emulator.ARCH_M68K, map[string]uint64{"foo": 0x20000})
	obj := f.build(t, rtldtest.Object{
		Bias:    0x10000,
		Symbols: []rtldtest.Sym{rtldtest.Global("foo"), rtldtest.Global("missing")},
		Data: []rtldtest.Rela{
			{Off: 0x0, Type: typ(m68k.R_68K_NONE)},
			{Off: 0x10, Sym: 1, Type: typ(m68k.R_68K_NONE), Addend: 0x55},
			{Off: 0x21, Sym: 2, Type: typ(m68k.R_68K_NONE), Addend: -1},
			{Off: 0xffc, Type: typ(m68k.R_68K_NONE)},
		},
	})
	pattern := bytes.Repeat([]byte{0xa5, 0x5a, 0xc3, 0x3c}, rtldtest.DataEnd/4)
	require.NoError(t, f.emu.MemWrite(0x10000, pattern))

	goofs, err := f.ld.ApplyDataRelocations(obj)
	require.NoError(t, err)
	assert.Zero(t, goofs)
	got, err := f.emu.MemRead(0x10000, rtldtest.DataEnd)
	require.NoError(t, err)
	assert.Equal(t, pattern, got)
	assert.Zero(t, f.res.calls)
}

func TestNullSymbolIsLoadBias(t *testing.T) {
	f := newFixture(t, emulator.ARCH_M68K, nil, rtld.WithResolver(rtld.ResolverFunc(
		func(name string, scope loader.Scope, addr uint64, requester loader.Object, plt bool) (rtld.Definition, error) {
			t.Errorf("resolver called for %q", name)
			return rtld.Definition{}, rtld.ErrSymbolNotFound
		})))
	for i, addend := range []int64{0, 5, -4, 0x7fff} {
		bias := uint64(0x10000 + i*rtldtest.ImageSize)
		obj := f.build(t, rtldtest.Object{
			Bias:    bias,
			Symbols: []rtldtest.Sym{rtldtest.Defined("junk", 0xdead, 4)},
			Data: []rtldtest.Rela{
				{Off: 0x10, Type: typ(m68k.R_68K_32), Addend: addend},
				{Off: 0x14, Type: typ(m68k.R_68K_RELATIVE), Addend: addend},
				{Off: 0x18, Type: typ(m68k.R_68K_GLOB_DAT), Addend: addend},
			},
		})
		_, err := f.ld.ApplyDataRelocations(obj)
		require.NoError(t, err)
		want := uint64(uint32(int64(bias) + addend))
		for _, off := range []uint64{0x10, 0x14, 0x18} {
			assert.Equal(t, want, rtldtest.Word(t, f.emu, bias+off), "addend %d off %#x", addend, off)
		}
	}
}

func TestBiasShift(t *testing.T) {
	const ext = 0x800000
	f := newFixture(t, emulator.ARCH_M68K, map[string]uint64{"ext": ext})
	relocate := func(bias uint64) (pc, abs uint64) {
		obj := f.build(t, rtldtest.Object{
			Bias:    bias,
			Symbols: []rtldtest.Sym{rtldtest.Global("ext")},
			Data: []rtldtest.Rela{
				{Off: 0x40, Sym: 1, Type: typ(m68k.R_68K_PC32), Addend: -2},
				{Off: 0x44, Type: typ(m68k.R_68K_32), Addend: 0x100},
			},
		})
		_, err := f.ld.ApplyDataRelocations(obj)
		require.NoError(t, err)
		return rtldtest.Word(t, f.emu, bias+0x40), rtldtest.Word(t, f.emu, bias+0x44)
	}
	const b1, b2 = 0x10000, 0x50000
	pc1, abs1 := relocate(b1)
	pc2, abs2 := relocate(b2)
	assert.Equal(t, uint64(uint32(ext-2-(b1+0x40))), pc1)
	assert.Equal(t, uint64(b2-b1), uint64(uint32(pc1-pc2)))
	assert.Equal(t, uint64(b2-b1), abs2-abs1)
	assert.Equal(t, uint64(b1+0x100), abs1)
}

func TestLazyResolveConcurrent(t *testing.T) {
	f := newFixture(t, emulator.ARCH_M68K, map[string]uint64{"bar": 0x30000})
	obj := f.build(t, rtldtest.Object{
		Bias:    0x10000,
		Symbols: []rtldtest.Sym{rtldtest.Global("bar")},
		JmpRel:  []rtldtest.Rela{{Off: 0x100, Sym: 1, Type: typ(m68k.R_68K_JMP_SLOT)}},
	})
	const n = 16
	addrs := make([]uint64, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr, err := f.ld.ResolveLazyPLTEntry(obj, 0)
			assert.NoError(t, err)
			addrs[i] = addr
		}()
	}
	wg.Wait()
	for _, addr := range addrs {
		assert.Equal(t, uint64(0x30000), addr)
	}
	addr, err := f.ld.ResolveLazyPLTEntry(obj, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x30000), addr)
	assert.Equal(t, uint64(0x30000), rtldtest.Word(t, f.emu, 0x10100))
}

func TestNarrowWidthsTruncate(t *testing.T) {
	f := newFixture(t, emulator.ARCH_M68K, map[string]uint64{"big": 0x12345678})
	obj := f.build(t, rtldtest.Object{
		Bias:    0x10000,
		Symbols: []rtldtest.Sym{rtldtest.Global("big")},
		Data: []rtldtest.Rela{
			{Off: 0x11, Type: typ(m68k.R_68K_8), Addend: 0x1234 - 0x10000},
			{Off: 0x21, Sym: 1, Type: typ(m68k.R_68K_16)},
			{Off: 0x31, Sym: 1, Type: typ(m68k.R_68K_8), Addend: 1},
			{Off: 0x40, Sym: 1, Type: typ(m68k.R_68K_PC8), Addend: 0x10048 - 0x12345678},
			{Off: 0x50, Sym: 1, Type: typ(m68k.R_68K_PC16), Addend: 0x10050 - 0x12345678 - 2},
		},
	})
	fill := bytes.Repeat([]byte{0xee}, 0x60)
	require.NoError(t, f.emu.MemWrite(0x10000, fill))

	goofs, err := f.ld.ApplyDataRelocations(obj)
	require.NoError(t, err)
	assert.Zero(t, goofs)
	read := func(addr, n uint64) []byte {
		b, err := f.emu.MemRead(addr, n)
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, []byte{0xee, 0x34, 0xee}, read(0x10010, 3))
	assert.Equal(t, []byte{0xee, 0x56, 0x78, 0xee}, read(0x10020, 4))
	assert.Equal(t, []byte{0xee, 0x79, 0xee}, read(0x10030, 3))
	assert.Equal(t, []byte{0x08, 0xee}, read(0x10040, 2))
	assert.Equal(t, []byte{0xff, 0xfe, 0xee}, read(0x10050, 3))
}

func TestGoofCountIgnoresWeak(t *testing.T) {
	f := newFixture(t, emulator.ARCH_M68K, map[string]uint64{"found": 0x40000})
	obj := f.build(t, rtldtest.Object{
		Bias: 0x10000,
		Symbols: []rtldtest.Sym{
			rtldtest.Global("g1"),
			rtldtest.Weak("w1"),
			rtldtest.Global("found"),
			rtldtest.Global("g2"),
			{Name: "w2", Bind: elf.STB_WEAK, Type: elf.STT_FUNC},
		},
		Data: []rtldtest.Rela{
			{Off: 0x00, Sym: 1, Type: typ(m68k.R_68K_32)},
			{Off: 0x04, Sym: 2, Type: typ(m68k.R_68K_GLOB_DAT)},
			{Off: 0x08, Sym: 3, Type: typ(m68k.R_68K_32)},
			{Off: 0x0c, Sym: 4, Type: typ(m68k.R_68K_GLOB_DAT)},
			{Off: 0x10, Sym: 5, Type: typ(m68k.R_68K_JMP_SLOT)},
			{Off: 0x14, Sym: 1, Type: typ(m68k.R_68K_GLOB_DAT)},
			{Off: 0x18, Sym: 2, Type: typ(m68k.R_68K_32)},
		},
	})
	goofs, err := f.ld.ApplyDataRelocations(obj)
	assert.Equal(t, uint(3), goofs)
	assert.Len(t, multierr.Errors(err), 3)
	assert.False(t, rtld.IsFatal(err))
	var symbols []string
	for _, e := range multierr.Errors(err) {
		var unresolved *rtld.UnresolvedSymbolError
		require.ErrorAs(t, e, &unresolved)
		symbols = append(symbols, unresolved.Symbol())
	}
	assert.Equal(t, []string{"g1", "g2", "g1"}, symbols)
	assert.Equal(t, uint64(0x40000), rtldtest.Word(t, f.emu, 0x10008))
	assert.Equal(t, 3, f.logs.FilterMessage("can't resolve symbol").Len())
}

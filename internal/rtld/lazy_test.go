package rtld_test

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microld/emulator"
	"github.com/wnxd/microld/internal/rtld/m68k"
	"github.com/wnxd/microld/internal/rtldtest"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/rtld"
)

func TestLazyPrePass(t *testing.T) {
	for _, tc := range []struct {
		arch     emulator.Arch
		relative uint32
		jmpSlot  uint32
		slot     uint64
	}{
		{emulator.ARCH_M68K, typ(m68k.R_68K_RELATIVE), typ(m68k.R_68K_JMP_SLOT), 0x10200},
		{emulator.ARCH_PPC, ppcType(elf.R_PPC_RELATIVE), ppcType(elf.R_PPC_JMP_SLOT), 0x200},
	} {
		t.Run(tc.arch.String(), func(t *testing.T) {
			f := newFixture(t, tc.arch, map[string]uint64{"bar": 0x30000})
			obj := f.build(t, rtldtest.Object{
				Bias:    0x10000,
				Symbols: []rtldtest.Sym{rtldtest.Global("bar")},
				JmpRel: []rtldtest.Rela{
					{Off: 0x100, Type: tc.relative, Addend: 0x7777},
					{Off: 0x104, Sym: 1, Type: tc.jmpSlot},
				},
			})
			rtldtest.SetWord(t, f.emu, 0x10100, 0x100)
			rtldtest.SetWord(t, f.emu, 0x10104, 0x200)

			goofs, err := f.ld.ApplyPLTRelocations(obj, true)
			require.NoError(t, err)
			assert.Zero(t, goofs)
			// link time contents plus bias plus addend
			assert.Equal(t, uint64(0x100+0x10000+0x7777), rtldtest.Word(t, f.emu, 0x10100))
			assert.Equal(t, tc.slot, rtldtest.Word(t, f.emu, 0x10104))
			assert.Zero(t, f.res.calls)
		})
	}
}

func TestLazyRelativeNegativeAddend(t *testing.T) {
	f := newFixture(t, emulator.ARCH_PPC, nil)
	obj := f.build(t, rtldtest.Object{
		Bias:   0x10000,
		JmpRel: []rtldtest.Rela{{Off: 0x100, Type: ppcType(elf.R_PPC_RELATIVE), Addend: -0x10}},
	})
	rtldtest.SetWord(t, f.emu, 0x10100, 0x100)

	_, err := f.ld.ApplyPLTRelocations(obj, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x100f0), rtldtest.Word(t, f.emu, 0x10100))
}

func TestBindNow(t *testing.T) {
	f := newFixture(t, emulator.ARCH_M68K, map[string]uint64{"bar": 0x30000})
	obj := f.build(t, rtldtest.Object{
		Bias:    0x10000,
		Symbols: []rtldtest.Sym{rtldtest.Global("bar"), rtldtest.Global("gone")},
		JmpRel: []rtldtest.Rela{
			{Off: 0x100, Type: typ(m68k.R_68K_RELATIVE), Addend: 8},
			{Off: 0x104, Sym: 1, Type: typ(m68k.R_68K_JMP_SLOT)},
			{Off: 0x108, Sym: 2, Type: typ(m68k.R_68K_JMP_SLOT)},
		},
	})
	rtldtest.SetWord(t, f.emu, 0x10100, 0x100)
	rtldtest.SetWord(t, f.emu, 0x10104, 0x200)

	goofs, err := f.ld.ApplyPLTRelocations(obj, false)
	assert.Equal(t, uint(1), goofs)
	assert.ErrorIs(t, err, rtld.ErrSymbolNotFound)
	assert.False(t, rtld.IsFatal(err))
	assert.Equal(t, uint64(0x10008), rtldtest.Word(t, f.emu, 0x10100))
	assert.Equal(t, uint64(0x30000), rtldtest.Word(t, f.emu, 0x10104))
	assert.Zero(t, rtldtest.Word(t, f.emu, 0x10108))
}

func TestLazyResolveErrors(t *testing.T) {
	f := newFixture(t, emulator.ARCH_M68K, map[string]uint64{"bar": 0x30000})
	obj := f.build(t, rtldtest.Object{
		Name:    "liba.so",
		Bias:    0x10000,
		Symbols: []rtldtest.Sym{rtldtest.Global("bar"), rtldtest.Global("gone")},
		JmpRel: []rtldtest.Rela{
			{Off: 0x100, Sym: 1, Type: typ(m68k.R_68K_JMP_SLOT)},
			{Off: 0x104, Type: typ(m68k.R_68K_RELATIVE)},
			{Off: 0x108, Sym: 2, Type: typ(m68k.R_68K_JMP_SLOT)},
			{Off: 0x10c, Sym: 9, Type: typ(m68k.R_68K_JMP_SLOT)},
		},
	})
	for _, tc := range []struct {
		name string
		off  uint64
		want error
	}{
		{"misaligned", 4, rtld.ErrLazyOffset},
		{"past table", 4 * rtldtest.RelaSize, rtld.ErrLazyOffset},
		{"not a jump slot", rtldtest.RelaSize, rtld.ErrNotJmpSlot},
		{"unresolved", 2 * rtldtest.RelaSize, rtld.ErrSymbolNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			addr, err := f.ld.ResolveLazyPLTEntry(obj, tc.off)
			assert.Zero(t, addr)
			var lazy *rtld.LazyBindError
			require.ErrorAs(t, err, &lazy)
			assert.True(t, rtld.IsFatal(err))
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.off, lazy.Offset())
		})
	}

	_, err := f.ld.ResolveLazyPLTEntry(obj, 3*rtldtest.RelaSize)
	assert.ErrorIs(t, err, loader.ErrSymbolIndex)
	assert.Zero(t, rtldtest.Word(t, f.emu, 0x10108))
}

package emulator

import (
	"slices"

	"github.com/pkg/errors"
)

type Uintptr32 = uint32
type Uintptr64 = uint64

type Pointer struct {
	emu  Emulator
	addr uint64
}

func ToPointer(emu Emulator, addr uint64) Pointer {
	return Pointer{emu, addr}
}

func (p Pointer) IsNil() bool {
	return p.addr == 0
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.emu, p.addr + offset}
}

func (p Pointer) Sub(offset uint64) Pointer {
	return Pointer{p.emu, p.addr - offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	return p.emu.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	return p.emu.MemWrite(p.addr, data)
}

// ReadUint reads a size byte unsigned integer in the target byte order.
func (p Pointer) ReadUint(size uint64) (uint64, error) {
	switch size {
	case 1, 2, 4, 8:
	default:
		return 0, errors.Wrapf(ErrWidthInvalid, "read %d bytes at %#x", size, p.addr)
	}
	b, err := p.emu.MemRead(p.addr, size)
	if err != nil {
		return 0, err
	}
	order := p.emu.ByteOrder().Order()
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(order.Uint16(b)), nil
	case 4:
		return uint64(order.Uint32(b)), nil
	}
	return order.Uint64(b), nil
}

// WriteUint stores the low size bytes of v in the target byte order. Bits
// above the width are discarded without error.
func (p Pointer) WriteUint(size uint64, v uint64) error {
	var buf [8]byte
	order := p.emu.ByteOrder().Order()
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		order.PutUint16(buf[:], uint16(v))
	case 4:
		order.PutUint32(buf[:], uint32(v))
	case 8:
		order.PutUint64(buf[:], v)
	default:
		return errors.Wrapf(ErrWidthInvalid, "write %d bytes at %#x", size, p.addr)
	}
	return p.emu.MemWrite(p.addr, buf[:size])
}

func (p Pointer) MemReadString() (string, error) {
	var data []byte
	const chunk = 0x10
	for begin := p.addr; ; begin += chunk {
		buf, err := p.emu.MemRead(begin, chunk)
		if err != nil {
			// The string may end right before an unmapped page.
			buf, err = p.readTail(begin, chunk)
			if err != nil {
				return "", err
			}
		}
		i := slices.Index(buf, 0)
		if i != -1 {
			data = append(data, buf[:i]...)
			break
		}
		data = append(data, buf...)
	}
	return string(data), nil
}

func (p Pointer) readTail(begin, size uint64) ([]byte, error) {
	var data []byte
	for i := uint64(0); i < size; i++ {
		b, err := p.emu.MemRead(begin+i, 1)
		if err != nil {
			if len(data) == 0 {
				return nil, err
			}
			return nil, errors.Wrapf(err, "unterminated string at %#x", p.addr)
		}
		data = append(data, b[0])
		if b[0] == 0 {
			break
		}
	}
	return data, nil
}

func (p Pointer) MemReadPointer() (ptr Pointer, err error) {
	size := p.emu.Arch().PointerSize()
	if size == 0 {
		err = ErrArchUnsupported
		return
	}
	addr, err := p.ReadUint(size)
	if err != nil {
		return
	}
	ptr.emu, ptr.addr = p.emu, addr
	return
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	data, err := p.emu.MemRead(p.addr+uint64(off), uint64(len(b)))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (p Pointer) WriteAt(b []byte, off int64) (n int, err error) {
	err = p.emu.MemWrite(p.addr+uint64(off), b)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (p Pointer) Emulator() Emulator {
	return p.emu
}

// Package encoding reads and writes fixed layout target records such as ELF
// relocation, symbol and dynamic entries. Integer fields are converted to and
// from the stream's byte order; the wire layout is the Go layout of the record
// type, which matches the ELF structures in debug/elf.
package encoding

import "github.com/pkg/errors"

// Size returns the wire size of val, which may be a record or a pointer to one.
func Size(val any) (int, error) {
	c, _, err := valueCodec(val, false)
	if err != nil {
		return 0, err
	}
	return c.size, nil
}

func Decode(stream Stream, val any) error {
	c, ptr, err := valueCodec(val, true)
	if err != nil {
		return err
	}
	buf := make([]byte, c.size)
	if _, err := stream.Read(buf); err != nil {
		return errors.Wrapf(err, "decode %d bytes at %#x", c.size, stream.Offset())
	}
	c.decode(buf, ptr, stream.Order())
	return nil
}

func Encode(stream Stream, val any) error {
	c, ptr, err := valueCodec(val, false)
	if err != nil {
		return err
	}
	buf := make([]byte, c.size)
	c.encode(buf, ptr, stream.Order())
	if _, err := stream.Write(buf); err != nil {
		return errors.Wrapf(err, "encode %d bytes at %#x", c.size, stream.Offset())
	}
	return nil
}

package encoding

import (
	"encoding/binary"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
	"github.com/pkg/errors"
)

// field is one integer scalar of a fixed layout record. Nested structs and
// arrays are flattened into their scalars.
type field struct {
	get  func(unsafe.Pointer) unsafe.Pointer
	off  int
	size int
}

type codec struct {
	size   int
	fields []field
}

var codecs sync.Map

func getCodec(typ reflect2.Type) (*codec, error) {
	key := typ.RType()
	if v, ok := codecs.Load(key); ok {
		return v.(*codec), nil
	}
	c, err := newCodec(typ)
	if err != nil {
		return nil, err
	}
	codecs.Store(key, c)
	return c, nil
}

func newCodec(typ reflect2.Type) (*codec, error) {
	size := int(typ.Type1().Size())
	switch typ.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &codec{size, []field{{get: self, size: size}}}, nil
	case reflect.Array:
		arr := typ.(reflect2.ArrayType)
		elem, err := getCodec(arr.Elem())
		if err != nil {
			return nil, err
		}
		c := &codec{size: size}
		for i := 0; i < arr.Len(); i++ {
			index := i
			get := func(ptr unsafe.Pointer) unsafe.Pointer {
				return arr.UnsafeGetIndex(ptr, index)
			}
			c.fields = append(c.fields, nest(get, i*elem.size, elem)...)
		}
		return c, nil
	case reflect.Struct:
		st := typ.(reflect2.StructType)
		c := &codec{size: size}
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if f.Tag().Get("encoding") == "ignore" {
				continue
			}
			sub, err := getCodec(f.Type())
			if err != nil {
				return nil, errors.Wrapf(err, "field %s", f.Name())
			}
			c.fields = append(c.fields, nest(f.UnsafeGet, int(f.Offset()), sub)...)
		}
		return c, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedType, "%s", typ.String())
}

func self(ptr unsafe.Pointer) unsafe.Pointer {
	return ptr
}

func nest(outer func(unsafe.Pointer) unsafe.Pointer, off int, c *codec) []field {
	fields := make([]field, len(c.fields))
	for i, f := range c.fields {
		inner := f.get
		fields[i] = field{
			get:  func(ptr unsafe.Pointer) unsafe.Pointer { return inner(outer(ptr)) },
			off:  off + f.off,
			size: f.size,
		}
	}
	return fields
}

func (c *codec) decode(buf []byte, ptr unsafe.Pointer, order binary.ByteOrder) {
	for _, f := range c.fields {
		p, b := f.get(ptr), buf[f.off:]
		switch f.size {
		case 1:
			*(*uint8)(p) = b[0]
		case 2:
			*(*uint16)(p) = order.Uint16(b)
		case 4:
			*(*uint32)(p) = order.Uint32(b)
		case 8:
			*(*uint64)(p) = order.Uint64(b)
		}
	}
}

func (c *codec) encode(buf []byte, ptr unsafe.Pointer, order binary.ByteOrder) {
	for _, f := range c.fields {
		p, b := f.get(ptr), buf[f.off:]
		switch f.size {
		case 1:
			b[0] = *(*uint8)(p)
		case 2:
			order.PutUint16(b, *(*uint16)(p))
		case 4:
			order.PutUint32(b, *(*uint32)(p))
		case 8:
			order.PutUint64(b, *(*uint64)(p))
		}
	}
}

// valueCodec resolves the codec for val and a pointer to its data. val may
// be a pointer to a record or, for encoding, a record value.
func valueCodec(val any, wantPtr bool) (*codec, unsafe.Pointer, error) {
	typ := reflect2.TypeOf(val)
	if typ == nil {
		return nil, nil, errors.WithStack(ErrNotPointer)
	}
	ptr := reflect2.PtrOf(val)
	if typ.Kind() == reflect.Ptr {
		if ptr == nil {
			return nil, nil, errors.WithStack(ErrNotPointer)
		}
		typ = typ.(reflect2.PtrType).Elem()
	} else if wantPtr {
		return nil, nil, errors.WithStack(ErrNotPointer)
	}
	c, err := getCodec(typ)
	if err != nil {
		return nil, nil, err
	}
	return c, ptr, nil
}

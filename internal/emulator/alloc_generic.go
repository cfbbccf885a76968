//go:build !linux

package emulator

func allocPages(size uint64) ([]byte, error) {
	return make([]byte, size), nil
}

func freePages(b []byte) error {
	return nil
}

//go:build linux

package emulator

import "golang.org/x/sys/unix"

// allocPages backs a region with anonymous private pages so large images do
// not live on the Go heap.
func allocPages(size uint64) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func freePages(b []byte) error {
	return unix.Munmap(b)
}

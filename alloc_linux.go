//go:build linux

package transtable

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// hugePageAllocator backs the table with an anonymous mmap region, trying
// MAP_HUGETLB first and falling back to a regular anonymous mapping if
// the kernel has no huge pages reserved. Grounded on the pack's shared
// dependency on golang.org/x/sys for raw syscalls (domino14-macondo and
// codewanderer42820-evm_triarb both require it directly).
type hugePageAllocator struct{}

// NewHugePageAllocator returns a PageAllocator that requests huge-page
// backed memory from the kernel when available. On any mmap failure
// (including ENOMEM from a lack of reserved huge pages) it retries with a
// regular anonymous mapping before giving up.
func NewHugePageAllocator() PageAllocator { return hugePageAllocator{} }

func (hugePageAllocator) Alloc(size int) ([]byte, error) {
	// size is passed to mmap unchanged: mmap already returns page-aligned
	// addresses, and a page is always a multiple of ClusterBytes on every
	// platform Go supports, so the mapping starts cluster-aligned and no
	// extra padding is needed here unlike heapAllocator.
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	if err == nil {
		return b, nil
	}

	b, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return b, nil
}

func (hugePageAllocator) Free(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munmap(b)
}

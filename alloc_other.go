//go:build !linux

package transtable

// NewHugePageAllocator degrades to the portable heap allocator on
// platforms without Linux's explicit huge-page mmap flags. There is no
// portable huge-page API to reach for instead, so the fallback is the
// same heap allocator used when HugePages is disabled in Config.
func NewHugePageAllocator() PageAllocator { return NewHeapAllocator() }

// Package physical simulates the physical memory a VM translates into: a
// flat array of words carved into frames, backed by a swap store that holds
// evicted pages.
package physical

import (
	"fmt"

	"github.com/NebulousLabs/Sia/build"

	"github.com/ilanvys/vmem"
)

type (
	// Memory is a word-addressable array of NumFrames*PageSize words plus a
	// swap store for evicted pages. It implements vmem.Memory. The four
	// access calls never fail; internal I/O errors from the swap store are
	// treated as fatal.
	Memory struct {
		// geo describes the sizes of the array and its frames
		geo vmem.Geometry

		// words is the flat physical memory array
		words []vmem.Word

		// swap holds the content of evicted pages keyed by page index
		swap SwapStore

		// stats counts the operations performed on the memory
		stats Stats
	}

	// Stats counts the operations performed on a Memory since its creation
	Stats struct {
		Reads     uint64
		Writes    uint64
		Evictions uint64
		Restores  uint64
	}

	// Option configures a Memory during New
	Option func(*Memory)
)

// WithSwapStore backs the memory with the supplied swap store instead of the
// default in-memory one
func WithSwapStore(swap SwapStore) Option {
	return func(m *Memory) {
		m.swap = swap
	}
}

// New creates a zeroed physical memory for the given geometry
func New(geo vmem.Geometry, opts ...Option) (*Memory, error) {
	if err := geo.Validate(); err != nil {
		return nil, build.ExtendErr("invalid geometry", err)
	}

	m := &Memory{
		geo:   geo,
		words: make([]vmem.Word, geo.PhysicalMemorySize()),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.swap == nil {
		m.swap = newMemSwap()
	}
	return m, nil
}

// ReadWord returns the word at a physical address
func (m *Memory) ReadWord(addr uint64) vmem.Word {
	m.checkAddr(addr)
	m.stats.Reads++
	return m.words[addr]
}

// WriteWord stores a word at a physical address
func (m *Memory) WriteWord(addr uint64, val vmem.Word) {
	m.checkAddr(addr)
	m.stats.Writes++
	m.words[addr] = val
}

// Evict saves the words of a frame to the swap store under the given page
// index. The frame itself is left untouched.
func (m *Memory) Evict(frame, page uint64) {
	m.checkFrame(frame)
	m.checkPage(page)
	m.stats.Evictions++

	start := frame * m.geo.PageSize()
	if err := m.swap.Store(page, m.words[start:start+m.geo.PageSize()]); err != nil {
		panic(fmt.Sprintf("sanity check failed: swap store rejected page %v: %v", page, err))
	}
}

// Restore loads the words of a page from the swap store into a frame. A page
// that was never evicted restores to all zeros.
func (m *Memory) Restore(frame, page uint64) {
	m.checkFrame(frame)
	m.checkPage(page)
	m.stats.Restores++

	start := frame * m.geo.PageSize()
	target := m.words[start : start+m.geo.PageSize()]
	found, err := m.swap.Load(page, target)
	if err != nil {
		panic(fmt.Sprintf("sanity check failed: swap store failed to load page %v: %v", page, err))
	}
	if !found {
		for i := range target {
			target[i] = 0
		}
	}
}

// Stats returns the operation counts accumulated so far
func (m *Memory) Stats() Stats {
	return m.stats
}

// Close releases the swap store
func (m *Memory) Close() error {
	return m.swap.Close()
}

func (m *Memory) checkAddr(addr uint64) {
	if addr >= uint64(len(m.words)) {
		panic(fmt.Sprintf("sanity check failed: physical address %v outside memory of %v words",
			addr, len(m.words)))
	}
}

func (m *Memory) checkFrame(frame uint64) {
	if frame >= m.geo.NumFrames {
		panic(fmt.Sprintf("sanity check failed: frame %v outside pool of %v frames",
			frame, m.geo.NumFrames))
	}
}

func (m *Memory) checkPage(page uint64) {
	if page >= m.geo.NumPages() {
		panic(fmt.Sprintf("sanity check failed: page %v outside address space of %v pages",
			page, m.geo.NumPages()))
	}
}

package vmem

import (
	"errors"
	"fmt"
)

// DefaultGeometry is the geometry the simulator uses when the caller doesn't
// provide one: 16-word pages, a 20-bit virtual address space and 16 physical
// frames.
var DefaultGeometry = Geometry{
	OffsetWidth:         4,
	VirtualAddressWidth: 20,
	NumFrames:           16,
}

type (
	// Geometry describes the shape of the simulated memory system. The three
	// fields fully determine the address space; everything else is derived
	// from them.
	Geometry struct {
		// OffsetWidth is the number of bits per table level and the log2 of
		// the page size
		OffsetWidth uint64 `yaml:"offsetWidth"`

		// VirtualAddressWidth is the total number of bits in a virtual
		// address
		VirtualAddressWidth uint64 `yaml:"virtualAddressWidth"`

		// NumFrames is the number of physical frames available to the
		// translator
		NumFrames uint64 `yaml:"numFrames"`
	}
)

// PageSize returns the number of words per frame and entries per table
func (g Geometry) PageSize() uint64 {
	return 1 << g.OffsetWidth
}

// NumPages returns the number of pages in the virtual address space
func (g Geometry) NumPages() uint64 {
	return 1 << (g.VirtualAddressWidth - g.OffsetWidth)
}

// TablesDepth returns the number of table levels above the leaf page. The top
// level may use fewer than OffsetWidth bits if the widths don't divide
// evenly.
func (g Geometry) TablesDepth() uint64 {
	return (g.VirtualAddressWidth - g.OffsetWidth + g.OffsetWidth - 1) / g.OffsetWidth
}

// VirtualMemorySize returns the size of the virtual address space in words
func (g Geometry) VirtualMemorySize() uint64 {
	return g.NumPages() * g.PageSize()
}

// PhysicalMemorySize returns the size of the physical memory in words
func (g Geometry) PhysicalMemorySize() uint64 {
	return g.NumFrames * g.PageSize()
}

// Validate checks that the geometry describes a workable memory system
func (g Geometry) Validate() error {
	if g.OffsetWidth == 0 {
		return errors.New("offset width must be at least 1")
	}
	if g.VirtualAddressWidth <= g.OffsetWidth {
		return errors.New("virtual address width must exceed the offset width")
	}
	if g.VirtualAddressWidth > 62 {
		return errors.New("virtual address space must fit a signed 64-bit word")
	}
	if g.NumFrames == 0 {
		return errors.New("at least one physical frame is required")
	}

	// A translation needs TablesDepth table frames plus the page itself. With
	// fewer frames than that the allocator would hand out a frame that is
	// already part of the chain being built.
	if g.NumFrames < g.TablesDepth()+1 {
		return fmt.Errorf("%v frames cannot host a root-to-leaf chain of depth %v",
			g.NumFrames, g.TablesDepth())
	}
	return nil
}

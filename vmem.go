package vmem

import (
	"errors"

	"github.com/NebulousLabs/Sia/build"
	"github.com/go-logr/logr"
)

// rootFrame is the frame that permanently holds the root page table
const rootFrame = 0

// ErrAddressOutOfRange is returned by Read and Write when the virtual
// address doesn't fit the configured address space. No state is touched when
// this error is returned.
var ErrAddressOutOfRange = errors.New("virtual address out of range")

type (
	// Word is a single cell of simulated memory. It is wide enough to hold
	// any frame index, so table frames store their child pointers as words.
	Word int64

	// Memory is the physical memory the VM translates into. ReadWord and
	// WriteWord access a flat array of NumFrames*PageSize words. Evict saves
	// a frame's words to backing store under a page index and Restore loads
	// them back; restoring a page that was never evicted fills the frame with
	// zeros. All four calls are infallible by contract.
	Memory interface {
		ReadWord(addr uint64) Word
		WriteWord(addr uint64, val Word)
		Evict(frame, page uint64)
		Restore(frame, page uint64)
	}

	// VM demand-pages a virtual address space into a small pool of physical
	// frames. The page-table tree lives in the same pool it indexes: frame 0
	// is always the root table and every other frame holds either a deeper
	// table or a page of data. A VM is not safe for concurrent use.
	VM struct {
		// mem is the physical memory being translated into
		mem Memory

		// geo describes the shape of the address space
		geo Geometry

		// log receives page-fault and eviction events at V(1)
		log logr.Logger
	}

	// Option configures a VM during New
	Option func(*VM)
)

// WithLogger makes the VM log paging events to the supplied logger
func WithLogger(log logr.Logger) Option {
	return func(vm *VM) {
		vm.log = log
	}
}

// New creates a VM over the supplied physical memory. The root frame is
// zeroed so the table tree starts out empty.
func New(mem Memory, geo Geometry, opts ...Option) (*VM, error) {
	if err := geo.Validate(); err != nil {
		return nil, build.ExtendErr("invalid geometry", err)
	}

	vm := &VM{
		mem: mem,
		geo: geo,
		log: logr.Discard(),
	}
	for _, opt := range opts {
		opt(vm)
	}

	vm.Initialize()
	return vm, nil
}

// Initialize resets the VM by zeroing the root table. Frames below the old
// tree are not reclaimed eagerly; they are rediscovered by the allocator once
// nothing points at them.
func (vm *VM) Initialize() {
	vm.cleanFrame(rootFrame)
}

// Geometry returns the geometry the VM was created with
func (vm *VM) Geometry() Geometry {
	return vm.geo
}

// Read returns the word stored at the given virtual address, paging it in
// first if necessary
func (vm *VM) Read(virtualAddr uint64) (Word, error) {
	if virtualAddr >= vm.geo.VirtualMemorySize() {
		return 0, ErrAddressOutOfRange
	}
	return vm.mem.ReadWord(vm.translate(virtualAddr)), nil
}

// Write stores a word at the given virtual address, paging it in first if
// necessary
func (vm *VM) Write(virtualAddr uint64, val Word) error {
	if virtualAddr >= vm.geo.VirtualMemorySize() {
		return ErrAddressOutOfRange
	}
	vm.mem.WriteWord(vm.translate(virtualAddr), val)
	return nil
}

package vmem

import (
	"testing"
)

// smallGeometry keeps the table tree tiny enough to build by hand in tests:
// 4-word pages, 16 pages, two table levels.
var smallGeometry = Geometry{
	OffsetWidth:         2,
	VirtualAddressWidth: 6,
	NumFrames:           8,
}

// pageOp records a single eviction or restore
type pageOp struct {
	frame uint64
	page  uint64
}

// testMemory implements Memory over a plain word slice with a map-backed
// swap. It records every eviction and restore so tests can assert on paging
// behaviour.
type testMemory struct {
	geo   Geometry
	words []Word
	swap  map[uint64][]Word

	reads    int
	writes   int
	evicts   []pageOp
	restores []pageOp
}

func newTestMemory(geo Geometry) *testMemory {
	return &testMemory{
		geo:   geo,
		words: make([]Word, geo.PhysicalMemorySize()),
		swap:  make(map[uint64][]Word),
	}
}

func (m *testMemory) ReadWord(addr uint64) Word {
	m.reads++
	return m.words[addr]
}

func (m *testMemory) WriteWord(addr uint64, val Word) {
	m.writes++
	m.words[addr] = val
}

func (m *testMemory) Evict(frame, page uint64) {
	start := frame * m.geo.PageSize()
	stored := make([]Word, m.geo.PageSize())
	copy(stored, m.words[start:start+m.geo.PageSize()])
	m.swap[page] = stored
	m.evicts = append(m.evicts, pageOp{frame: frame, page: page})
}

func (m *testMemory) Restore(frame, page uint64) {
	start := frame * m.geo.PageSize()
	target := m.words[start : start+m.geo.PageSize()]
	if stored, found := m.swap[page]; found {
		copy(target, stored)
	} else {
		for i := range target {
			target[i] = 0
		}
	}
	m.restores = append(m.restores, pageOp{frame: frame, page: page})
}

// resetCounters clears the recorded operations, typically right after setup
// so assertions only see the accesses under test
func (m *testMemory) resetCounters() {
	m.reads = 0
	m.writes = 0
	m.evicts = nil
	m.restores = nil
}

// vmemTester is a helper object to simplify testing
type vmemTester struct {
	mem *testMemory
	vm  *VM
}

// newVMTester returns a ready-to-rock vmemTester
func newVMTester(geo Geometry) (*vmemTester, error) {
	mem := newTestMemory(geo)
	vm, err := New(mem, geo)
	if err != nil {
		return nil, err
	}
	mem.resetCounters()
	return &vmemTester{
		mem: mem,
		vm:  vm,
	}, nil
}

// setEntry links a child frame into a table frame, bypassing the translator.
// Tests use it to build trees by hand.
func (vt *vmemTester) setEntry(table, index, child uint64) {
	vt.mem.words[table*vt.vm.geo.PageSize()+index] = Word(child)
}

// checkTreeShape walks the live table tree and fails the test if any two
// entries point at the same frame or at a frame outside the pool
func checkTreeShape(t *testing.T, vt *vmemTester) {
	t.Helper()
	geo := vt.vm.geo
	seen := map[uint64]bool{rootFrame: true}

	var walk func(frame, depth uint64)
	walk = func(frame, depth uint64) {
		if depth == geo.TablesDepth() {
			return
		}
		frameAddr := frame * geo.PageSize()
		for i := uint64(0); i < geo.PageSize(); i++ {
			child := vt.mem.words[frameAddr+i]
			if child == 0 {
				continue
			}
			childFrame := uint64(child)
			if childFrame >= geo.NumFrames {
				t.Fatalf("entry %v of frame %v points at frame %v outside the pool",
					i, frame, childFrame)
			}
			if seen[childFrame] {
				t.Fatalf("frame %v is linked from more than one table entry", childFrame)
			}
			seen[childFrame] = true
			walk(childFrame, depth+1)
		}
	}
	walk(rootFrame, 0)
}

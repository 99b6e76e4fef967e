package vmem

type (
	// scanResult aggregates the three facts a single pass over the live
	// table tree establishes: an empty table that can be recycled, the
	// highest frame index in use, and the page whose virtual index is
	// cyclically farthest from the page being faulted in. The has* flags
	// distinguish "frame 0" from "nothing found" so page 0 remains a valid
	// eviction candidate.
	scanResult struct {
		// emptyFrame is the first all-zero table frame found in post-order,
		// excluding the root and the skip frame. emptyParent is the table
		// pointing at it. Only meaningful when hasEmpty is set.
		emptyFrame  uint64
		emptyParent uint64
		hasEmpty    bool

		// maxInUse is the highest frame index observed anywhere in the tree
		maxInUse uint64

		// farFrame holds the page at index farPage, the page with the
		// greatest cyclic distance from the scan target. farParent is its
		// parent table and farDist the distance itself. Only meaningful when
		// hasFar is set.
		farFrame  uint64
		farPage   uint64
		farParent uint64
		farDist   uint64
		hasFar    bool
	}

	// treeScanner carries the fixed inputs of a scan so the recursion only
	// threads position state
	treeScanner struct {
		vm *VM

		// target is the page index being faulted in
		target uint64

		// skip is the translator's current parent frame. It must not be
		// offered as an empty table or the walk in progress would sever its
		// own branch.
		skip uint64

		res scanResult
	}
)

// scanTree walks the live table tree once and reports what the frame
// allocator needs to know. The walk is pure over ReadWord.
func (vm *VM) scanTree(target, skip uint64) scanResult {
	s := &treeScanner{vm: vm, target: target, skip: skip}
	s.walk(rootFrame, 0, 0, rootFrame)
	return s.res
}

// walk visits the subtree below frame. partial accumulates the virtual page
// index spelled by the path so far, depth counts levels below the root and
// parent is the table that pointed here.
func (s *treeScanner) walk(frame, partial, depth, parent uint64) {
	if frame > s.res.maxInUse {
		s.res.maxInUse = frame
	}

	geo := s.vm.geo

	// At full depth the frame holds a page, not a table. Keep it if it is
	// the farthest candidate so far; ties keep the earlier page.
	if depth == geo.TablesDepth() {
		dist := cyclicDistance(geo.NumPages(), s.target, partial)
		if !s.res.hasFar || dist > s.res.farDist {
			s.res.farFrame = frame
			s.res.farPage = partial
			s.res.farParent = parent
			s.res.farDist = dist
			s.res.hasFar = true
		}
		return
	}

	// Recurse into every linked child in ascending entry order
	frameAddr := frame * geo.PageSize()
	for i := uint64(0); i < geo.PageSize(); i++ {
		child := s.vm.mem.ReadWord(frameAddr + i)
		if child != 0 {
			s.walk(uint64(child), (partial<<geo.OffsetWidth)|i, depth+1, frame)
		}
	}

	// A table with no children left is reusable, unless it is the root or
	// the frame the translator is currently standing on
	if !s.res.hasEmpty && frame != rootFrame && frame != s.skip && s.vm.frameEmpty(frame) {
		s.res.emptyFrame = frame
		s.res.emptyParent = parent
		s.res.hasEmpty = true
	}
}

package vmem

// obtainFrame selects a frame for the page table walk to link in next.
// target is the page index being faulted in, skip is the frame the
// translator is currently standing on and willBePage tells the allocator
// whether the caller will restore page content into the frame, in which case
// zeroing it first would be wasted work.
//
// Three tiers, tried in order: recycle an empty table frame, extend into a
// never-used frame, evict the page cyclically farthest from target.
func (vm *VM) obtainFrame(target, skip uint64, willBePage bool) uint64 {
	res := vm.scanTree(target, skip)

	// An all-zero table frame costs nothing to reclaim. It is already
	// zeroed, so detaching it from its parent is the whole job.
	if res.hasEmpty {
		vm.unlinkChild(res.emptyParent, res.emptyFrame)
		return res.emptyFrame
	}

	// The pool isn't exhausted yet, hand out the next untouched frame
	if res.maxInUse+1 < vm.geo.NumFrames {
		frame := res.maxInUse + 1
		if !willBePage {
			vm.cleanFrame(frame)
		}
		return frame
	}

	// Evict the farthest page. A full pool always contains at least one
	// page frame as long as the geometry passed validation.
	if !res.hasFar {
		panic("sanity check failed: frame pool exhausted with no page to evict")
	}
	vm.log.V(1).Info("evicting page", "frame", res.farFrame, "page", res.farPage)
	vm.mem.Evict(res.farFrame, res.farPage)
	vm.unlinkChild(res.farParent, res.farFrame)
	if !willBePage {
		vm.cleanFrame(res.farFrame)
	}
	return res.farFrame
}

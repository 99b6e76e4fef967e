package vmem

// translate walks the table tree from the root and returns the physical
// address backing a virtual address, materializing missing levels along the
// way. Any zero entry on the path means the page is not resident; once one
// level is freshly allocated every deeper level is missing too, since the
// new table starts out zeroed. The page content is restored from backing
// store at most once per translation.
func (vm *VM) translate(virtualAddr uint64) uint64 {
	geo := vm.geo
	mask := geo.PageSize() - 1
	pageIndex := virtualAddr >> geo.OffsetWidth

	current := uint64(rootFrame)
	pathExists := true
	for level := geo.TablesDepth(); level > 0; level-- {
		slot := current*geo.PageSize() + ((virtualAddr >> (level * geo.OffsetWidth)) & mask)
		next := vm.mem.ReadWord(slot)
		if next == 0 {
			pathExists = false

			// The frame we are standing on must not be recycled out from
			// under us, and the last level links a page rather than a table
			frame := vm.obtainFrame(pageIndex, current, level == 1)
			vm.mem.WriteWord(slot, Word(frame))
			next = Word(frame)
		}
		current = uint64(next)
	}

	if !pathExists {
		vm.log.V(1).Info("page fault", "page", pageIndex, "frame", current)
		vm.mem.Restore(current, pageIndex)
	}

	return current*geo.PageSize() + (virtualAddr & mask)
}

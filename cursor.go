package vmem

import (
	"errors"
	"io"
)

type (
	// Cursor is a seekable word stream over a VM's virtual address space. It
	// is a convenience layer on top of Read and Write; all paging still goes
	// through the translator. Offsets are counted in words.
	Cursor struct {
		// vm is the VM the cursor reads from and writes to
		vm *VM

		// off is the virtual address the next access starts at
		off uint64
	}
)

// NewCursor returns a cursor positioned at the start of the address space
func (vm *VM) NewCursor() *Cursor {
	return &Cursor{vm: vm}
}

// ReadWords reads words starting at the cursor position until p is full or
// the end of the address space is reached. It returns io.EOF when the cursor
// starts at or past the end.
func (c *Cursor) ReadWords(p []Word) (int, error) {
	size := c.vm.geo.VirtualMemorySize()
	if c.off >= size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && c.off < size {
		val, err := c.vm.Read(c.off)
		if err != nil {
			return n, err
		}
		p[n] = val
		n++
		c.off++
	}
	return n, nil
}

// WriteWords writes words starting at the cursor position until p is
// exhausted or the end of the address space is reached. It returns io.EOF
// when the cursor starts at or past the end.
func (c *Cursor) WriteWords(p []Word) (int, error) {
	size := c.vm.geo.VirtualMemorySize()
	if c.off >= size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && c.off < size {
		if err := c.vm.Write(c.off, p[n]); err != nil {
			return n, err
		}
		n++
		c.off++
	}
	return n, nil
}

// Seek moves the cursor, interpreting offset in words according to whence.
// Seeking past the end is allowed; the next access will report io.EOF.
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(c.off)
	case io.SeekEnd:
		base = int64(c.vm.geo.VirtualMemorySize())
	default:
		return 0, errors.New("invalid whence value")
	}

	if base+offset < 0 {
		return 0, errors.New("cannot set cursor to negative position")
	}

	c.off = uint64(base + offset)
	return int64(c.off), nil
}

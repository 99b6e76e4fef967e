package physical

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/NebulousLabs/Sia/build"

	"github.com/ilanvys/vmem"
)

type (
	// FileSwap is a SwapStore that keeps evicted pages in a file. The file
	// starts with an index region mapping page indices to slot offsets,
	// followed by fixed-size page slots. Reopening an existing file recovers
	// the index, so swap content survives a restart of the simulator.
	FileSwap struct {
		// file is the underlying file the pages are written to
		file *os.File

		// geo determines the slot size and the index capacity
		geo vmem.Geometry

		// slots maps a page index to the file offset of its slot
		slots map[uint64]int64
	}
)

// NewFileSwap opens a file-backed swap store, recovering the slot index if
// the file already exists
func NewFileSwap(path string, geo vmem.Geometry) (*FileSwap, error) {
	if err := geo.Validate(); err != nil {
		return nil, build.ExtendErr("invalid geometry", err)
	}

	fs := &FileSwap{
		geo:   geo,
		slots: make(map[uint64]int64),
	}

	// Try to open an existing swap file and recover its index
	file, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err == nil {
		fs.file = file
		if err := fs.loadSlotsFromDisk(); err != nil {
			return nil, build.ExtendErr("failed to read swap index", err)
		}
		return fs, nil
	} else if !os.IsNotExist(err) {
		return nil, build.ExtendErr("failed to open existing swap file", err)
	}

	// The file doesn't exist, create a new one with an empty index
	file, err = os.Create(path)
	if err != nil {
		return nil, build.ExtendErr("failed to create swap file", err)
	}
	fs.file = file
	if err := fs.writeSlotsToDisk(); err != nil {
		return nil, build.ExtendErr("failed to write swap index", err)
	}
	return fs, nil
}

// Store writes a page's words to its slot, allocating one at the end of the
// file on first eviction of the page
func (fs *FileSwap) Store(page uint64, words []vmem.Word) error {
	off, found := fs.slots[page]
	if !found {
		var err error
		off, err = fs.allocateSlot()
		if err != nil {
			return build.ExtendErr("failed to allocate swap slot", err)
		}
		fs.slots[page] = off
	}

	// Marshal the words of the page
	buffer := bytes.NewBuffer(make([]byte, 0, fs.slotSize()))
	for i := range words {
		if err := binary.Write(buffer, binary.LittleEndian, words[i]); err != nil {
			return err
		}
	}

	// Sanity check the marshalled length of the page
	if int64(buffer.Len()) != fs.slotSize() {
		panic("sanity check failed: marshalled page does not fill its slot")
	}

	if _, err := fs.file.WriteAt(buffer.Bytes(), off); err != nil {
		return err
	}

	// Keep the on-disk index current so a crashed simulator can recover
	return fs.writeSlotsToDisk()
}

// Load reads a page's words out of its slot. Pages without a slot were never
// evicted.
func (fs *FileSwap) Load(page uint64, words []vmem.Word) (bool, error) {
	off, found := fs.slots[page]
	if !found {
		return false, nil
	}

	data := make([]byte, fs.slotSize())
	n, err := fs.file.ReadAt(data, off)
	if err != nil {
		return false, err
	}
	if int64(n) != fs.slotSize() {
		panic(fmt.Sprintf("sanity check failed: ReadAt should have read %v bytes", fs.slotSize()))
	}

	buffer := bytes.NewBuffer(data)
	for i := range words {
		if err := binary.Read(buffer, binary.LittleEndian, &words[i]); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Close writes the index one last time and closes the file
func (fs *FileSwap) Close() error {
	if err := fs.writeSlotsToDisk(); err != nil {
		return build.ExtendErr("failed to write swap index", err)
	}
	return fs.file.Close()
}

// slotSize is the size of a page slot in bytes
func (fs *FileSwap) slotSize() int64 {
	return int64(fs.geo.PageSize()) * 8
}

// dataOff is the offset of the first page slot. The index region before it
// is sized to hold an entry for every page of the address space, rounded up
// to a whole number of slots.
func (fs *FileSwap) dataOff() int64 {
	indexSize := int64(8) + int64(fs.geo.NumPages())*16
	if rem := indexSize % fs.slotSize(); rem != 0 {
		indexSize += fs.slotSize() - rem
	}
	return indexSize
}

// allocateSlot reserves a zeroed slot at the end of the file and returns its
// offset
func (fs *FileSwap) allocateSlot() (int64, error) {
	fileOff, err := fs.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}

	// The index region might not be fully written yet and the last slot
	// might be short, so align the offset up
	if fileOff < fs.dataOff() {
		fileOff = fs.dataOff()
	}
	if rem := fileOff % fs.slotSize(); rem != 0 {
		fileOff += fs.slotSize() - rem
	}

	// Extend the file by writing the empty slot
	n, err := fs.file.WriteAt(make([]byte, fs.slotSize()), fileOff)
	if int64(n) != fs.slotSize() || err != nil {
		return 0, fmt.Errorf("couldn't extend swap file, wrote %v bytes: %v", n, err)
	}
	return fileOff, nil
}

// writeSlotsToDisk serializes the slot index into the index region at the
// start of the file
func (fs *FileSwap) writeSlotsToDisk() error {
	buffer := bytes.NewBuffer(make([]byte, 0))

	// Write the number of slots to the buffer
	numSlots := uint64(len(fs.slots))
	if err := binary.Write(buffer, binary.LittleEndian, &numSlots); err != nil {
		return err
	}

	// Write each page index and slot offset to the buffer
	for page, off := range fs.slots {
		if err := binary.Write(buffer, binary.LittleEndian, page); err != nil {
			return err
		}
		if err := binary.Write(buffer, binary.LittleEndian, off); err != nil {
			return err
		}
	}

	// Sanity check buffer length
	if int64(buffer.Len()) > fs.dataOff() {
		panic("sanity check failed: swap index larger than index region")
	}

	_, err := fs.file.WriteAt(buffer.Bytes(), 0)
	return err
}

// loadSlotsFromDisk recovers the slot index from the start of the file
func (fs *FileSwap) loadSlotsFromDisk() error {
	// Read the whole index region. Check for EOF in case the file was closed
	// before any page was evicted into it.
	indexData := make([]byte, fs.dataOff())
	if n, err := fs.file.ReadAt(indexData, 0); err != nil && !(err == io.EOF && n > 0) {
		return err
	}

	buffer := bytes.NewBuffer(indexData)
	numSlots := uint64(0)
	if err := binary.Read(buffer, binary.LittleEndian, &numSlots); err != nil {
		return err
	}

	for i := uint64(0); i < numSlots; i++ {
		var page uint64
		var off int64
		if err := binary.Read(buffer, binary.LittleEndian, &page); err != nil {
			return err
		}
		if err := binary.Read(buffer, binary.LittleEndian, &off); err != nil {
			return err
		}
		fs.slots[page] = off
	}
	return nil
}

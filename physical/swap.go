package physical

import "github.com/ilanvys/vmem"

type (
	// SwapStore is the backing store evicted pages are written to. Store
	// saves a page's words under its page index, overwriting any previous
	// content. Load fills words with the stored content and reports whether
	// the page was present.
	SwapStore interface {
		Store(page uint64, words []vmem.Word) error
		Load(page uint64, words []vmem.Word) (bool, error)
		Close() error
	}

	// memSwap keeps evicted pages in a map. It is the default store.
	memSwap struct {
		pages map[uint64][]vmem.Word
	}
)

// newMemSwap returns an empty in-memory swap store
func newMemSwap() *memSwap {
	return &memSwap{
		pages: make(map[uint64][]vmem.Word),
	}
}

// Store copies the words into the map
func (s *memSwap) Store(page uint64, words []vmem.Word) error {
	stored := make([]vmem.Word, len(words))
	copy(stored, words)
	s.pages[page] = stored
	return nil
}

// Load copies the stored words out of the map
func (s *memSwap) Load(page uint64, words []vmem.Word) (bool, error) {
	stored, found := s.pages[page]
	if !found {
		return false, nil
	}
	copy(words, stored)
	return true, nil
}

// Close is a no-op
func (s *memSwap) Close() error {
	return nil
}

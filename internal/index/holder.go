package index

import (
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// Holder publishes a finished index to concurrent readers. Readers see either
// the previous index or the new one, never a partial build.
type Holder struct {
	current atomic.Pointer[FieldIndex]
}

func (h *Holder) Publish(idx *FieldIndex) {
	h.current.Store(idx)
}

// Load returns the published index or nil.
func (h *Holder) Load() *FieldIndex {
	return h.current.Load()
}

// Current returns the published index, or ErrEmptyIndex when nothing with
// at least one document has been published.
func (h *Holder) Current() (*FieldIndex, error) {
	idx := h.current.Load()
	if idx == nil {
		return nil, apperrors.New(apperrors.ErrEmptyIndex, "index.Holder", "no index published")
	}
	if idx.TotalDocs() == 0 {
		return nil, apperrors.New(apperrors.ErrEmptyIndex, "index.Holder", "published index has no documents")
	}
	return idx, nil
}

package ltr

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// Slot holds the active model. Training through a slot is serialised;
// prediction reads the current model without locking.
type Slot struct {
	mu    sync.Mutex
	model atomic.Pointer[Model]
}

func (s *Slot) Model() (*Model, error) {
	m := s.model.Load()
	if m == nil {
		return nil, apperrors.New(apperrors.ErrModelNotTrained, "ltr.Slot", "no model has been trained or loaded")
	}
	return m, nil
}

func (s *Slot) Set(m *Model) {
	s.model.Store(m)
}

func (s *Slot) Predict(features []float64) (float64, error) {
	m, err := s.Model()
	if err != nil {
		return 0, err
	}
	return m.Predict(features)
}

// Train fits a model and publishes it on success. A failed run leaves the
// previous model in place.
func (s *Slot) Train(ctx context.Context, train, val Dataset, p Params, opts TrainOptions) (*Model, TrainReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, report, err := Train(ctx, train, val, p, opts)
	if err != nil {
		return nil, report, err
	}
	s.model.Store(m)
	return m, report, nil
}

func (s *Slot) Load(path string) (*Model, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.model.Store(m)
	s.mu.Unlock()
	return m, nil
}

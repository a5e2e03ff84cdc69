package testutil

import (
	"context"
	"sync"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	apperrors "github.com/turtacn/defectkit/pkg/errors"
)

// MemoryRepository is an in-memory chempot.Repository. Setting Err makes
// every call fail with it.
type MemoryRepository struct {
	mu       sync.RWMutex
	energies chempot.CompositionEnergies
	Err      error
}

var _ chempot.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns a repository seeded with a copy of initial.
func NewMemoryRepository(initial chempot.CompositionEnergies) *MemoryRepository {
	r := &MemoryRepository{energies: chempot.CompositionEnergies{}}
	for k, v := range initial {
		r.energies[k] = v
	}
	return r
}

func (r *MemoryRepository) Save(ctx context.Context, formula string, energy chempot.CompositionEnergy) error {
	if r.Err != nil {
		return r.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.energies[formula] = energy
	return nil
}

func (r *MemoryRepository) SaveAll(ctx context.Context, energies chempot.CompositionEnergies) error {
	if r.Err != nil {
		return r.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range energies {
		r.energies[k] = v
	}
	return nil
}

func (r *MemoryRepository) FindByFormula(ctx context.Context, formula string) (chempot.CompositionEnergy, error) {
	if r.Err != nil {
		return chempot.CompositionEnergy{}, r.Err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.energies[formula]
	if !ok {
		return chempot.CompositionEnergy{}, apperrors.New(apperrors.CodeCompositionNotFound, "composition not found").WithDetail("formula=" + formula)
	}
	return e, nil
}

func (r *MemoryRepository) FindAll(ctx context.Context) (chempot.CompositionEnergies, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(chempot.CompositionEnergies, len(r.energies))
	for k, v := range r.energies {
		out[k] = v
	}
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, formula string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.energies[formula]; !ok {
		return apperrors.New(apperrors.CodeCompositionNotFound, "composition not found").WithDetail("formula=" + formula)
	}
	delete(r.energies, formula)
	return nil
}

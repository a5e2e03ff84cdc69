package chempot

import "context"

// Repository persists composition energies keyed by formula.
type Repository interface {
	// Save inserts or replaces the energy of formula.
	Save(ctx context.Context, formula string, energy CompositionEnergy) error

	// SaveAll stores every entry in a single transaction.
	SaveAll(ctx context.Context, energies CompositionEnergies) error

	// FindByFormula returns errors.CodeCompositionNotFound when formula is
	// not stored.
	FindByFormula(ctx context.Context, formula string) (CompositionEnergy, error)

	// FindAll returns every stored entry; an empty store yields an empty map.
	FindAll(ctx context.Context) (CompositionEnergies, error)

	// Delete returns errors.CodeCompositionNotFound when formula is not
	// stored.
	Delete(ctx context.Context, formula string) error
}

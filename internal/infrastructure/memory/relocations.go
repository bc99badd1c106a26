package memory

import (
	"context"
	"fmt"

	"reflights/internal/domain/relocation"
)

type RelocationRepository struct {
	s *Store
}

func (r *RelocationRepository) Create(ctx context.Context, rec *relocation.Record) error {
	return r.s.update(ctx, func(undo func(func())) error {
		if _, ok := r.s.relocations[rec.MessageID]; ok {
			return fmt.Errorf("relocation %s already recorded", rec.MessageID)
		}
		cp := *rec
		r.s.relocations[rec.MessageID] = &cp
		undo(func() { delete(r.s.relocations, rec.MessageID) })
		return nil
	})
}

func (r *RelocationRepository) Get(ctx context.Context, messageID string) (*relocation.Record, error) {
	var out *relocation.Record
	err := r.s.view(ctx, func() error {
		if rec, ok := r.s.relocations[messageID]; ok {
			cp := *rec
			out = &cp
		}
		return nil
	})
	return out, err
}

package engine

import (
	"context"

	"github.com/incisive-io/tabled/internal/policy"
	"github.com/incisive-io/tabled/internal/storage"
)

const markupTable = "product_lab_markup"

// The special (lab, product) operations bypass the generic single-row
// path: they address rows by the pair rather than a primary key, and the
// rev-share writes touch many relation rows at once. They still go through
// the same policy gate as the tables they mutate.

// UpdateMarkup mutates the pricing columns of a (lab, product) markup row.
func (e *Engine) UpdateMarkup(ctx context.Context, payload map[string]any, role policy.Role, actorID string) (storage.Row, error) {
	if _, err := e.gate(markupTable, role, policy.ActionUpdate); err != nil {
		return nil, err
	}
	return e.rev.MarkupUpdate(ctx, payload, actorID)
}

// DeleteMarkup removes a (lab, product) markup row.
func (e *Engine) DeleteMarkup(ctx context.Context, payload map[string]any, role policy.Role, actorID string) error {
	if _, err := e.gate(markupTable, role, policy.ActionDelete); err != nil {
		return err
	}
	return e.rev.MarkupDelete(ctx, payload, actorID)
}

// UpsertRevShare writes one or many schedule entries for a (lab, product)
// pair and returns the pivoted pair after the write.
func (e *Engine) UpsertRevShare(ctx context.Context, payload map[string]any, role policy.Role, actorID string) ([]storage.Row, error) {
	if _, err := e.gate(revShareTable, role, policy.ActionUpdate); err != nil {
		return nil, err
	}
	return e.rev.Upsert(ctx, payload, actorID)
}

// DeleteRevShare removes every schedule row for a (lab, product) pair and
// returns the count removed.
func (e *Engine) DeleteRevShare(ctx context.Context, payload map[string]any, role policy.Role, actorID string) (int, error) {
	if _, err := e.gate(revShareTable, role, policy.ActionDelete); err != nil {
		return 0, err
	}
	return e.rev.DeletePair(ctx, payload, actorID)
}

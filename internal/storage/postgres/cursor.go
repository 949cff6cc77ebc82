package postgres

import (
	"context"

	"poolscope/internal/derive"
)

// DeriveCursorStore keeps the derive cursor in the derive_state table so the
// cursor and the flushed state share one backing database.
type DeriveCursorStore struct {
	store *Store
	name  string
}

func NewDeriveCursorStore(store *Store, name string) *DeriveCursorStore {
	return &DeriveCursorStore{store: store, name: name}
}

func (c *DeriveCursorStore) Load(ctx context.Context) (derive.Cursor, bool, error) {
	block, logIndex, ok, err := c.store.LoadCursor(ctx, c.name)
	if err != nil || !ok {
		return derive.Cursor{}, false, err
	}
	return derive.Cursor{BlockNumber: block, LogIndex: logIndex}, true, nil
}

func (c *DeriveCursorStore) Save(ctx context.Context, cursor derive.Cursor) error {
	return c.store.SaveCursor(ctx, c.name, cursor.BlockNumber, cursor.LogIndex)
}

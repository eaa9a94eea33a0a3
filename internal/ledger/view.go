// Package ledger fetches the block list and keeps the per-block expansion
// state used to render it.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/pixledger/internal/types"
)

// DefaultPreviewLimit is how many transactions a collapsed block shows.
const DefaultPreviewLimit = 5

// Expansion maps a block index to whether it is expanded. It lives as long
// as the View that owns it.
type Expansion map[int]bool

// Row is one block as it should be displayed.
type Row struct {
	Block types.Block
	// Shown is the visible prefix of the block's transactions.
	Shown []types.Transaction
	// Hidden counts transactions left out of Shown.
	Hidden   int
	Expanded bool
}

// Empty reports whether the block carries no transactions at all.
func (r Row) Empty() bool { return len(r.Block.Transactions) == 0 }

// View is one activation of the ledger screen.
type View struct {
	source   types.ChainSource
	limit    int
	expanded Expansion
	blocks   []types.Block
}

// NewView creates a view with fresh expansion state. A limit below 1 uses
// DefaultPreviewLimit.
func NewView(source types.ChainSource, limit int) *View {
	if limit < 1 {
		limit = DefaultPreviewLimit
	}
	return &View{
		source:   source,
		limit:    limit,
		expanded: make(Expansion),
	}
}

// Load fetches the chain. On failure the view holds no blocks, so nothing
// partial is ever rendered.
func (v *View) Load(ctx context.Context) error {
	blocks, err := v.source.FetchChain(ctx)
	if err != nil {
		v.blocks = nil
		return fmt.Errorf("load ledger: %w", err)
	}
	v.blocks = blocks
	slog.Debug("ledger loaded", "blocks", len(blocks))
	return nil
}

// Blocks returns the blocks in the order the ledger service sent them.
func (v *View) Blocks() []types.Block { return v.blocks }

// Toggle flips the expansion of the block at index and nothing else.
func (v *View) Toggle(index int) {
	if v.expanded[index] {
		delete(v.expanded, index)
		return
	}
	v.expanded[index] = true
}

func (v *View) Expanded(index int) bool { return v.expanded[index] }

// ExpandAll marks every loaded block as expanded.
func (v *View) ExpandAll() {
	for _, b := range v.blocks {
		v.expanded[b.Index] = true
	}
}

// Rows applies the expansion state to the loaded blocks without reordering
// them.
func (v *View) Rows() []Row {
	rows := make([]Row, len(v.blocks))
	for i, b := range v.blocks {
		row := Row{Block: b, Shown: b.Transactions, Expanded: v.expanded[b.Index]}
		if !row.Expanded && len(b.Transactions) > v.limit {
			row.Shown = b.Transactions[:v.limit]
			row.Hidden = len(b.Transactions) - v.limit
		}
		rows[i] = row
	}
	return rows
}

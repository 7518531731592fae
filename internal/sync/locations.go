package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcmelo/snkbridge/internal/hierarchy"
	"github.com/rcmelo/snkbridge/internal/odoo"
)

// ErrNoWarehouse means no warehouse with a stock location exists on the
// target, leaving the location sync without an anchor.
var ErrNoWarehouse = errors.New("sync: no warehouse with a stock location found")

// Locations reconciles Sankhya stock locations into stock.location. Every
// node is anchored to the default warehouse's stock location during Phase A;
// the external code rides in the barcode field.
func Locations(ctx context.Context, src Source, store hierarchy.Store, opts Options) (*hierarchy.Report, error) {
	anchor, err := stockAnchor(store)
	if err != nil {
		return nil, err
	}

	rows, err := fetch(ctx, src, "locais", opts)
	if err != nil {
		return nil, err
	}

	nodes := hierarchy.NodesFromRows(rows, hierarchy.FieldMap{
		Code:   "CODLOCAL",
		Parent: "CODLOCALPAI",
		Name:   "DESCRLOCAL",
		Level:  "GRAU",
	})

	eng := &hierarchy.Engine{
		Store: store,
		Log:   opts.Log,
		Jobs:  opts.Jobs,
		Spec: hierarchy.Spec{
			Entity:         "location",
			Model:          "stock.location",
			ParentField:    "location_id",
			CodeProxyField: "barcode",
			Statics: map[string]any{
				"usage":  "internal",
				"active": true,
			},
			AnchorID: anchor,
		},
	}
	return eng.Run(nodes)
}

// stockAnchor resolves the lot_stock_id of the first warehouse. Its absence
// is fatal: without an anchor no location can be created.
func stockAnchor(store hierarchy.Store) (int64, error) {
	records, err := store.SearchRead("stock.warehouse", nil, []string{"lot_stock_id"}, 1)
	if err != nil {
		return 0, fmt.Errorf("sync: read warehouse: %w", err)
	}
	if len(records) == 0 {
		return 0, ErrNoWarehouse
	}
	id, ok := odoo.RelationID(records[0]["lot_stock_id"])
	if !ok || id == 0 {
		return 0, ErrNoWarehouse
	}
	return id, nil
}

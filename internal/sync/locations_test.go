package sync

import (
	"context"
	"errors"
	"testing"
)

func seedWarehouse(store *fakeStore) int64 {
	anchorID := store.seed("stock.location", map[string]any{"name": "WH/Stock"})
	store.seed("stock.warehouse", map[string]any{
		"name":         "WH",
		"lot_stock_id": []any{anchorID, "WH/Stock"},
	})
	return anchorID
}

func TestLocationsAnchoredToWarehouse(t *testing.T) {
	store := newFakeStore()
	anchorID := seedWarehouse(store)
	src := &fakeSource{rows: []map[string]string{
		{"CODLOCAL": "1", "DESCRLOCAL": "Galpao", "CODLOCALPAI": "0", "GRAU": "1"},
		{"CODLOCAL": "2", "DESCRLOCAL": "Corredor", "CODLOCALPAI": "1", "GRAU": "2"},
	}}

	report, err := Locations(context.Background(), src, store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 2 || report.ParentsLinked != 1 {
		t.Fatalf("report: %+v", report)
	}

	// Top-level nodes stay under the warehouse stock location.
	depot := store.byField(t, "stock.location", "barcode", "1")
	if got, _ := asInt(depot["location_id"]); got != anchorID {
		t.Errorf("top-level location_id = %v, want anchor %d", depot["location_id"], anchorID)
	}
	if depot["usage"] != "internal" || depot["active"] != true {
		t.Errorf("statics missing: %v", depot)
	}

	aisle := store.byField(t, "stock.location", "barcode", "2")
	if got, _ := asInt(aisle["location_id"]); got != depot["id"] {
		t.Errorf("child location_id = %v, want parent id %v", aisle["location_id"], depot["id"])
	}
}

func TestLocationsMissingWarehouseIsFatal(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{rows: []map[string]string{
		{"CODLOCAL": "1", "DESCRLOCAL": "Galpao", "CODLOCALPAI": "0", "GRAU": "1"},
	}}

	_, err := Locations(context.Background(), src, store, Options{})
	if !errors.Is(err, ErrNoWarehouse) {
		t.Fatalf("err = %v, want ErrNoWarehouse", err)
	}
	if store.count("stock.location") != 0 {
		t.Errorf("locations created without an anchor")
	}
}

package sync

import (
	"context"
	"testing"
)

func TestStockUpsert(t *testing.T) {
	store := newFakeStore()
	productID := store.seed("product.product", map[string]any{"default_code": "1", "name": "Martelo"})
	locationID := store.seed("stock.location", map[string]any{"barcode": "20", "name": "Prateleira A"})
	src := &fakeSource{rows: []map[string]string{
		{"CODPROD": "1", "CODLOCAL": "20", "ESTOQUE": "10", "RESERVADO": "4"},
	}}

	report, err := Stock(context.Background(), src, store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 1 || report.Errors != 0 {
		t.Fatalf("first run: %+v", report)
	}

	quant := store.byField(t, "stock.quant", "product_id", productID)
	if got, _ := asInt(quant["location_id"]); got != locationID {
		t.Errorf("location_id = %v, want %d", quant["location_id"], locationID)
	}
	if quant["inventory_quantity"] != 6.0 {
		t.Errorf("quantity = %v, want on-hand minus reserved", quant["inventory_quantity"])
	}

	// New balance updates the same quant.
	src.rows[0]["ESTOQUE"] = "15"
	src.rows[0]["RESERVADO"] = "0"
	report, err = Stock(context.Background(), src, store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 0 || report.Updated != 1 {
		t.Fatalf("second run: %+v", report)
	}
	if store.count("stock.quant") != 1 {
		t.Errorf("quant duplicated")
	}
	quant = store.byField(t, "stock.quant", "product_id", productID)
	if quant["inventory_quantity"] != 15.0 {
		t.Errorf("quantity = %v after update", quant["inventory_quantity"])
	}
}

func TestStockUnknownReferenceSkipped(t *testing.T) {
	store := newFakeStore()
	store.seed("product.product", map[string]any{"default_code": "1"})
	src := &fakeSource{rows: []map[string]string{
		{"CODPROD": "1", "CODLOCAL": "999", "ESTOQUE": "5", "RESERVADO": "0"},
		{"CODPROD": "404", "CODLOCAL": "999", "ESTOQUE": "5", "RESERVADO": "0"},
	}}

	report, err := Stock(context.Background(), src, store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.RunOrphans != 2 || report.Errors != 0 {
		t.Fatalf("report: %+v", report)
	}
	if store.count("stock.quant") != 0 {
		t.Errorf("quant created for unresolved references")
	}
	if store.count("product.product") != 1 || store.count("stock.location") != 0 {
		t.Errorf("placeholder records created")
	}
}

func TestStockEmptyKeysCounted(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{rows: []map[string]string{
		{"CODPROD": "", "CODLOCAL": "20", "ESTOQUE": "1"},
	}}

	report, err := Stock(context.Background(), src, store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Errors != 1 {
		t.Fatalf("report: %+v", report)
	}
}

package sync

import (
	"context"
	"testing"
)

func TestProductsCategoryResolution(t *testing.T) {
	store := newFakeStore()
	categID := store.seed("product.category", map[string]any{"name": "[10] Ferramentas"})
	src := &fakeSource{rows: []map[string]string{
		{"CODPROD": "1", "DESCRPROD": "Martelo", "CODGRUPOPROD": "10", "USOPROD": "R"},
		{"CODPROD": "2", "DESCRPROD": "Frete", "CODGRUPOPROD": "99", "USOPROD": "S"},
	}}

	report, err := Products(context.Background(), src, store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 2 || report.Errors != 0 {
		t.Fatalf("report: %+v", report)
	}

	hammer := store.byField(t, "product.template", "default_code", "1")
	if got, _ := asInt(hammer["categ_id"]); got != categID {
		t.Errorf("categ_id = %v, want %d", hammer["categ_id"], categID)
	}
	if hammer["type"] != "consu" || hammer["is_storable"] != true {
		t.Errorf("goods product mismapped: %v", hammer)
	}

	// Unknown group: product still created, counted, no category fabricated.
	freight := store.byField(t, "product.template", "default_code", "2")
	if _, ok := freight["categ_id"]; ok {
		t.Errorf("unknown group must not link a category: %v", freight)
	}
	if freight["type"] != "service" {
		t.Errorf("service product mismapped: %v", freight)
	}
	if report.RunOrphans != 1 {
		t.Errorf("run orphans = %d, want 1", report.RunOrphans)
	}
	if store.count("product.category") != 1 {
		t.Errorf("placeholder category created")
	}
}

func TestProductsIdempotent(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{rows: []map[string]string{
		{"CODPROD": "1", "DESCRPROD": "Martelo", "PESOBRUTO": "1.25", "REFFORN": "HAM-01"},
	}}

	if _, err := Products(context.Background(), src, store, Options{}); err != nil {
		t.Fatal(err)
	}
	report, err := Products(context.Background(), src, store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 0 || report.Updated != 1 {
		t.Fatalf("second run: %+v", report)
	}
	if store.count("product.template") != 1 {
		t.Errorf("product duplicated")
	}

	rec := store.byField(t, "product.template", "default_code", "1")
	if rec["weight"] != 1.25 || rec["barcode"] != "HAM-01" {
		t.Errorf("attributes mismapped: %v", rec)
	}
}

func TestProductsKeyFieldPreferredForCategories(t *testing.T) {
	store := newFakeStore()
	store.fields["product.category"] = map[string]map[string]any{
		"x_sankhya_id": {"type": "char"},
	}
	categID := store.seed("product.category", map[string]any{
		"name":         "Renamed By Hand",
		"x_sankhya_id": "10",
	})
	src := &fakeSource{rows: []map[string]string{
		{"CODPROD": "1", "DESCRPROD": "Martelo", "CODGRUPOPROD": "10"},
	}}

	if _, err := Products(context.Background(), src, store, Options{}); err != nil {
		t.Fatal(err)
	}
	rec := store.byField(t, "product.template", "default_code", "1")
	if got, _ := asInt(rec["categ_id"]); got != categID {
		t.Errorf("categ_id = %v, want %d via key field", rec["categ_id"], categID)
	}
}

package hierarchy

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// fakeStore is an in-memory Store with per-record failure injection.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	records []map[string]any
	fields  map[string]map[string]any

	failCreate func(values map[string]any) error
	failWrite  func(id int64, values map[string]any) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fields: map[string]map[string]any{},
	}
}

func (s *fakeStore) FieldsGet(model string) (map[string]map[string]any, error) {
	return s.fields, nil
}

func (s *fakeStore) SearchRead(model string, domain []any, fields []string, limit int) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(domain) == 0 {
		return nil, fmt.Errorf("fake store requires a filter")
	}
	cond, ok := domain[0].([]any)
	if !ok || len(cond) != 3 {
		return nil, fmt.Errorf("malformed domain %v", domain)
	}
	field, _ := cond[0].(string)
	op, _ := cond[1].(string)
	want := fmt.Sprintf("%v", cond[2])

	var out []map[string]any
	for _, rec := range s.records {
		got := fmt.Sprintf("%v", rec[field])
		match := false
		switch op {
		case "=":
			match = got == want
		case "like":
			match = strings.HasPrefix(got, strings.TrimSuffix(want, "%"))
		}
		if match {
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) Create(model string, values map[string]any) (int64, error) {
	if s.failCreate != nil {
		if err := s.failCreate(values); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec := map[string]any{"id": s.nextID}
	for k, v := range values {
		rec[k] = v
	}
	s.records = append(s.records, rec)
	return s.nextID, nil
}

func (s *fakeStore) Write(model string, id int64, values map[string]any) error {
	if s.failWrite != nil {
		if err := s.failWrite(id, values); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec["id"] == id {
			for k, v := range values {
				rec[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("no record %d", id)
}

// seed inserts a record directly, simulating a prior run or manual entry.
func (s *fakeStore) seed(values map[string]any) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec := map[string]any{"id": s.nextID}
	for k, v := range values {
		rec[k] = v
	}
	s.records = append(s.records, rec)
	return s.nextID
}

// byCode finds a record by its proxy code field.
func (s *fakeStore) byCode(field, code string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if fmt.Sprintf("%v", rec[field]) == code {
			return rec
		}
	}
	return nil
}

func locationSpec(anchor int64) Spec {
	return Spec{
		Entity:         "location",
		Model:          "stock.location",
		ParentField:    "location_id",
		CodeProxyField: "barcode",
		Statics:        map[string]any{"usage": "internal", "active": true},
		AnchorID:       anchor,
	}
}

func groupSpec() Spec {
	return Spec{
		Entity:          "group",
		Model:           "product.category",
		ParentField:     "parent_id",
		EmbedCodeInName: true,
	}
}

func node(code, parent, name string, level int) *Node {
	return &Node{Code: code, ParentCode: parent, Name: name, Level: level, LevelKnown: true}
}

func run(t *testing.T, store Store, spec Spec, nodes []*Node) *Report {
	t.Helper()
	eng := &Engine{Store: store, Spec: spec}
	report, err := eng.Run(nodes)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return report
}

func TestChainCreatesHierarchy(t *testing.T) {
	store := newFakeStore()
	anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})

	nodes := []*Node{
		node("A", "0", "Central", 1),
		node("B", "A", "Aisle", 2),
		node("C", "B", "Shelf", 3),
	}

	report := run(t, store, locationSpec(anchor), nodes)

	if report.Created != 3 || report.Updated != 0 || report.Errors != 0 {
		t.Fatalf("phase A counts wrong: %+v", report)
	}
	if report.ParentsLinked != 2 || report.RunOrphans != 0 || report.LinkErrors != 0 {
		t.Fatalf("phase B counts wrong: %+v", report)
	}

	a := store.byCode("barcode", "A")
	b := store.byCode("barcode", "B")
	c := store.byCode("barcode", "C")
	if a == nil || b == nil || c == nil {
		t.Fatal("missing records")
	}
	// A declared the root sentinel: it stays at the anchor.
	if a["location_id"] != anchor {
		t.Errorf("A should stay anchored, got parent %v", a["location_id"])
	}
	if b["location_id"] != a["id"] {
		t.Errorf("B parent = %v, want A (%v)", b["location_id"], a["id"])
	}
	if c["location_id"] != b["id"] {
		t.Errorf("C parent = %v, want B (%v)", c["location_id"], b["id"])
	}
	if a["usage"] != "internal" || a["active"] != true {
		t.Errorf("statics not applied: %v", a)
	}
}

func TestIdempotentRerun(t *testing.T) {
	store := newFakeStore()
	anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})

	batch := func() []*Node {
		return []*Node{
			node("A", "0", "Central", 1),
			node("B", "A", "Aisle", 2),
			node("C", "B", "Shelf", 3),
		}
	}

	first := run(t, store, locationSpec(anchor), batch())
	if first.Created != 3 {
		t.Fatalf("first run created = %d, want 3", first.Created)
	}

	recordsAfterFirst := len(store.records)
	bParent := store.byCode("barcode", "B")["location_id"]

	second := run(t, store, locationSpec(anchor), batch())
	if second.Created != 0 || second.Updated != 3 {
		t.Fatalf("second run should only update: %+v", second)
	}
	if len(store.records) != recordsAfterFirst {
		t.Errorf("rerun duplicated records: %d -> %d", recordsAfterFirst, len(store.records))
	}
	if store.byCode("barcode", "B")["location_id"] != bParent {
		t.Errorf("parent link drifted across reruns")
	}
}

func TestCycleNeverMaterializes(t *testing.T) {
	store := newFakeStore()
	anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})

	nodes := []*Node{
		node("A", "B", "First", 1),
		node("B", "A", "Second", 1),
	}

	report := run(t, store, locationSpec(anchor), nodes)

	if report.Cycles != 1 {
		t.Errorf("validator cycles = %d, want 1", report.Cycles)
	}
	if report.Created != 2 {
		t.Errorf("both cycle members must still be created, got %d", report.Created)
	}
	if report.ParentsLinked != 1 || report.CycleSkips != 1 {
		t.Errorf("exactly one edge applies and one is skipped: %+v", report)
	}

	// Follow the parent chain from each record; it must never return to
	// its origin.
	for _, code := range []string{"A", "B"} {
		seen := map[any]bool{}
		rec := store.byCode("barcode", code)
		for rec != nil {
			id := rec["id"]
			if seen[id] {
				t.Fatalf("parent chain from %s loops", code)
			}
			seen[id] = true
			parent, _ := rec["location_id"].(int64)
			rec = nil
			for _, r := range store.records {
				if r["id"] == parent {
					rec = r
					break
				}
			}
		}
	}
}

func TestSelfReferenceNeutralized(t *testing.T) {
	store := newFakeStore()
	anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})

	report := run(t, store, locationSpec(anchor), []*Node{
		node("A", "A", "Selfie", 1),
	})

	if report.SelfRefs != 1 {
		t.Errorf("self refs = %d, want 1", report.SelfRefs)
	}
	if report.ParentsLinked != 0 {
		t.Errorf("self reference must not be linked")
	}
	a := store.byCode("barcode", "A")
	if a["location_id"] != anchor {
		t.Errorf("A must end the run at the anchor, got %v", a["location_id"])
	}
}

func TestOrphanAccounting(t *testing.T) {
	store := newFakeStore()
	anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})

	report := run(t, store, locationSpec(anchor), []*Node{
		node("A", "Z", "Lost", 1),
	})

	if report.SourceOrphans != 1 || report.RunOrphans != 1 {
		t.Errorf("orphan counts wrong: %+v", report)
	}
	if report.ParentsLinked != 0 {
		t.Errorf("no link should be applied")
	}
	// The missing parent must never be fabricated: anchor + A only.
	if len(store.records) != 2 {
		t.Errorf("placeholder parent was created: %d records", len(store.records))
	}
}

func TestParentResolvedByStoreLookup(t *testing.T) {
	store := newFakeStore()
	anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})
	// Parent exists in the target from an earlier load, absent from this
	// batch.
	parentID := store.seed(map[string]any{"barcode": "P", "name": "Earlier"})

	report := run(t, store, locationSpec(anchor), []*Node{
		node("C", "P", "Child", 2),
	})

	if report.ParentsLinked != 1 || report.RunOrphans != 0 {
		t.Fatalf("lookup fallback failed: %+v", report)
	}
	if store.byCode("barcode", "C")["location_id"] != parentID {
		t.Errorf("C not linked to pre-existing parent")
	}
}

func TestPhaseAFailureMakesChildrenOrphans(t *testing.T) {
	store := newFakeStore()
	anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})
	store.failCreate = func(values map[string]any) error {
		if values["barcode"] == "B" {
			return fmt.Errorf("remote validation error")
		}
		return nil
	}

	report := run(t, store, locationSpec(anchor), []*Node{
		node("B", "0", "Flaky", 1),
		node("C", "B", "Child", 2),
	})

	if report.Errors != 1 {
		t.Errorf("phase A errors = %d, want 1", report.Errors)
	}
	if report.Created != 1 {
		t.Errorf("created = %d, want 1 (C only)", report.Created)
	}
	// B never got an id, so C's parent is unresolvable this run.
	if report.RunOrphans != 1 {
		t.Errorf("run orphans = %d, want 1", report.RunOrphans)
	}
	c := store.byCode("barcode", "C")
	if c["location_id"] != anchor {
		t.Errorf("C must remain anchored, got %v", c["location_id"])
	}
}

func TestEmptyCodeIsCounted(t *testing.T) {
	store := newFakeStore()
	anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})

	report := run(t, store, locationSpec(anchor), []*Node{
		{Code: "", ParentCode: "0", Name: "Nameless", Level: LevelSentinel},
		node("A", "0", "Fine", 1),
	})

	if report.Errors != 1 || report.Created != 1 {
		t.Errorf("empty code not isolated: %+v", report)
	}
}

func TestShuffledInputSameLinks(t *testing.T) {
	build := func(order []int) []*Node {
		all := []*Node{
			{Code: "A", ParentCode: "0", Name: "Root"},
			{Code: "B", ParentCode: "A", Name: "Mid"},
			{Code: "C", ParentCode: "B", Name: "Leaf"},
		}
		out := make([]*Node, len(all))
		for i, idx := range order {
			out[i] = all[idx]
		}
		return out
	}

	links := func(store *fakeStore) map[string]any {
		out := map[string]any{}
		for _, code := range []string{"A", "B", "C"} {
			out[code] = store.byCode("barcode", code)["location_id"]
		}
		return out
	}

	var baseline map[string]string
	for _, order := range [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}} {
		store := newFakeStore()
		anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})
		report := run(t, store, locationSpec(anchor), build(order))
		if report.Errors != 0 || report.LinkErrors != 0 {
			t.Fatalf("order %v errored: %+v", order, report)
		}

		// Compare by parent code, ids differ across stores.
		byID := map[any]string{anchor: "anchor"}
		for _, code := range []string{"A", "B", "C"} {
			byID[store.byCode("barcode", code)["id"]] = code
		}
		got := map[string]string{}
		for code, parent := range links(store) {
			got[code] = byID[parent]
		}

		if baseline == nil {
			baseline = got
			continue
		}
		for code, parent := range baseline {
			if got[code] != parent {
				t.Errorf("order %v: %s parent = %s, want %s", order, code, got[code], parent)
			}
		}
	}
}

func TestKeyFieldPreferredAndImmutable(t *testing.T) {
	store := newFakeStore()
	store.fields = map[string]map[string]any{
		"x_sankhya_id": {"type": "char"},
	}

	spec := groupSpec()
	report := run(t, store, spec, []*Node{node("10", "0", "Widgets", 1)})
	if report.Created != 1 {
		t.Fatalf("create failed: %+v", report)
	}

	rec := store.byCode("x_sankhya_id", "10")
	if rec == nil {
		t.Fatal("key field not written")
	}
	if rec["name"] != "[10] Widgets" {
		t.Errorf("label = %v, want [10] Widgets", rec["name"])
	}

	// Second run must find the record through the key field and update it
	// without touching the key.
	report = run(t, store, spec, []*Node{node("10", "0", "Widgets renamed", 1)})
	if report.Updated != 1 || report.Created != 0 {
		t.Fatalf("rerun should update: %+v", report)
	}
	if store.byCode("x_sankhya_id", "10")["name"] != "[10] Widgets renamed" {
		t.Errorf("update not applied")
	}
}

func TestLabelFallbackLookup(t *testing.T) {
	store := newFakeStore()

	spec := groupSpec()
	run(t, store, spec, []*Node{node("10", "0", "Widgets", 1)})

	// No key field, no proxy: the rerun must re-find the record through
	// the "[10]%" label prefix.
	report := run(t, store, spec, []*Node{node("10", "0", "Widgets", 1)})
	if report.Created != 0 || report.Updated != 1 {
		t.Errorf("label lookup failed, record duplicated: %+v", report)
	}
	if len(store.records) != 1 {
		t.Errorf("expected a single record, got %d", len(store.records))
	}
}

func TestParallelPhaseA(t *testing.T) {
	store := newFakeStore()
	anchor := store.seed(map[string]any{"barcode": "WH-STOCK", "name": "WH/Stock"})

	var nodes []*Node
	nodes = append(nodes, node("R", "0", "Root", 1))
	for i := 0; i < 40; i++ {
		nodes = append(nodes, node(fmt.Sprintf("N%02d", i), "R", "Leaf", 2))
	}

	eng := &Engine{Store: store, Spec: locationSpec(anchor), Jobs: 8}
	report, err := eng.Run(nodes)
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 41 || report.Errors != 0 {
		t.Fatalf("parallel phase A miscounted: %+v", report)
	}
	if report.ParentsLinked != 40 || report.RunOrphans != 0 {
		t.Fatalf("parallel phase B miscounted: %+v", report)
	}
}

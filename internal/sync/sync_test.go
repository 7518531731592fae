package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
)

// fakeSource returns one canned row set regardless of the statement.
type fakeSource struct {
	rows []map[string]string
	err  error
}

func (s *fakeSource) Query(_ context.Context, _ string) ([]map[string]string, error) {
	return s.rows, s.err
}

// fakeStore is an in-memory multi-model store. Domains are conjunctions of
// [field, op, value] triples with "=" and prefix "like" support, which is
// all the sync layer emits.
type fakeStore struct {
	mu      stdsync.Mutex
	nextID  int64
	records map[string][]map[string]any
	fields  map[string]map[string]map[string]any

	failWrite func(model string, id int64) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string][]map[string]any),
		fields:  make(map[string]map[string]map[string]any),
	}
}

func (s *fakeStore) seed(model string, values map[string]any) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec := map[string]any{"id": s.nextID}
	for k, v := range values {
		rec[k] = v
	}
	s.records[model] = append(s.records[model], rec)
	return s.nextID
}

func (s *fakeStore) SearchRead(model string, domain []any, _ []string, limit int) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []map[string]any
	for _, rec := range s.records[model] {
		if matchDomain(rec, domain) {
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) Create(model string, values map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec := map[string]any{"id": s.nextID}
	for k, v := range values {
		rec[k] = v
	}
	s.records[model] = append(s.records[model], rec)
	return s.nextID, nil
}

func (s *fakeStore) Write(model string, id int64, values map[string]any) error {
	if s.failWrite != nil {
		if err := s.failWrite(model, id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records[model] {
		if rec["id"] == id {
			for k, v := range values {
				rec[k] = v
			}
			return nil
		}
	}
	return errors.New("no such record")
}

func (s *fakeStore) FieldsGet(model string) (map[string]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fields[model]; ok {
		return f, nil
	}
	return map[string]map[string]any{}, nil
}

func matchDomain(rec map[string]any, domain []any) bool {
	for _, clause := range domain {
		triple, ok := clause.([]any)
		if !ok || len(triple) != 3 {
			return false
		}
		field, _ := triple[0].(string)
		op, _ := triple[1].(string)
		if !matchValue(rec[field], op, triple[2]) {
			return false
		}
	}
	return true
}

func matchValue(have any, op string, want any) bool {
	switch op {
	case "=":
		if wi, ok := asInt(want); ok {
			hi, ok := asInt(have)
			return ok && hi == wi
		}
		return have == want
	case "like":
		pattern, _ := want.(string)
		value, _ := have.(string)
		if len(pattern) > 0 && pattern[len(pattern)-1] == '%' {
			prefix := pattern[:len(pattern)-1]
			return len(value) >= len(prefix) && value[:len(prefix)] == prefix
		}
		return value == pattern
	default:
		return false
	}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func (s *fakeStore) byField(t *testing.T, model, field string, value any) map[string]any {
	t.Helper()
	records, _ := s.SearchRead(model, []any{[]any{field, "=", value}}, nil, 0)
	if len(records) != 1 {
		t.Fatalf("%s with %s=%v: got %d records, want 1", model, field, value, len(records))
	}
	return records[0]
}

func (s *fakeStore) count(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[model])
}

package hierarchy

import (
	"fmt"
	"sync"
)

// Resolver maps external codes to target ids for one model outside a full
// reconciliation run. The flat entity loads use it to resolve references
// into hierarchy-managed models (a product's category, a stock row's
// location) without re-running the engine.
type Resolver struct {
	store Store
	model string
	proxy string
	caps  Capabilities

	mu    sync.Mutex
	cache map[string]int64
}

// NewResolver probes the model's schema once and returns a resolver with an
// empty cache. A failed probe degrades to the proxy-field or label
// convention, same as the engine.
func NewResolver(store Store, model, proxyField string) *Resolver {
	caps, err := ProbeCapabilities(store, model)
	if err != nil {
		caps = Capabilities{}
	}
	return &Resolver{
		store: store,
		model: model,
		proxy: proxyField,
		caps:  caps,
		cache: make(map[string]int64),
	}
}

// Preload reads every record of the model in one query and fills the cache,
// trading a single large read for per-reference lookups. Records whose code
// cannot be derived are skipped.
func (r *Resolver) Preload() error {
	codeField := "name"
	switch {
	case r.caps.KeyField != "":
		codeField = r.caps.KeyField
	case r.proxy != "":
		codeField = r.proxy
	}

	records, err := r.store.SearchRead(r.model, nil, []string{"id", codeField}, 0)
	if err != nil {
		return fmt.Errorf("preload %s: %w", r.model, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		id, ok := toID(rec["id"])
		if !ok {
			continue
		}
		code, _ := rec[codeField].(string)
		if codeField == "name" {
			code = CodeFromLabel(code)
		}
		if code == "" {
			continue
		}
		r.cache[code] = id
	}
	return nil
}

// ID resolves one external code, consulting the cache first and falling back
// to a store lookup. Returns 0 with a nil error when no record matches.
func (r *Resolver) ID(code string) (int64, error) {
	if code == "" || code == RootSentinel {
		return 0, nil
	}

	r.mu.Lock()
	id, ok := r.cache[code]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	var domain []any
	switch {
	case r.caps.KeyField != "":
		domain = []any{[]any{r.caps.KeyField, "=", code}}
	case r.proxy != "":
		domain = []any{[]any{r.proxy, "=", code}}
	default:
		domain = []any{[]any{"name", "like", LabelPattern(code)}}
	}

	records, err := r.store.SearchRead(r.model, domain, []string{"id"}, 1)
	if err != nil {
		return 0, fmt.Errorf("resolve %s %s: %w", r.model, code, err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	id, ok = toID(records[0]["id"])
	if !ok {
		return 0, fmt.Errorf("record for %s has malformed id %v", code, records[0]["id"])
	}

	r.mu.Lock()
	r.cache[code] = id
	r.mu.Unlock()
	return id, nil
}

package hierarchy

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rcmelo/snkbridge/internal/batch"
)

// Store is the target-store adapter the engine writes through. Every
// Phase A/B step is one or two of these calls; the engine never assumes
// batched writes, transactions, or server-side upsert.
type Store interface {
	SearchRead(model string, domain []any, fields []string, limit int) ([]map[string]any, error)
	Create(model string, values map[string]any) (int64, error)
	Write(model string, id int64, values map[string]any) error
	FieldsGet(model string) (map[string]map[string]any, error)
}

// Spec describes how one entity type maps onto its target model.
type Spec struct {
	// Entity tags log lines and the report ("group", "location").
	Entity string

	// Model is the target model name.
	Model string

	// ParentField is the target field carrying the parent link.
	ParentField string

	// CodeProxyField, when set, is a native target field that stores the
	// external code verbatim (e.g. barcode) and serves as the lookup key
	// when no dedicated key field exists. When empty, the code is embedded
	// in the record label instead and lookups match on the label prefix.
	CodeProxyField string

	// EmbedCodeInName assembles the record label as "[code] name".
	EmbedCodeInName bool

	// Statics are constant attribute values written on every upsert.
	Statics map[string]any

	// AnchorID is the provisional parent every node is pinned to during
	// Phase A. Zero means the model tolerates an absent parent and nodes
	// are created at the top level instead.
	AnchorID int64
}

// Engine runs the two-phase reconciliation for one entity type.
type Engine struct {
	Store Store
	Spec  Spec
	Log   *logrus.Logger

	// Jobs is the Phase A/B worker count; 0 or 1 preserves the leveled
	// processing order.
	Jobs int
}

// runState is the per-run shared context: the append-only code→id map and
// the parent edges applied so far. It replaces the module-level caches the
// load scripts used to share, and is discarded when Run returns.
type runState struct {
	mu    sync.Mutex
	ids   map[string]int64
	edges map[string]string // child code → parent code, applied this run
	caps  Capabilities
}

func (s *runState) id(code string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[code]
	return id, ok
}

func (s *runState) setID(code string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[code] = id
}

// reserveEdge registers child→parent unless doing so would close a cycle
// among the edges already applied this run. Registration happens under the
// lock so concurrent workers cannot jointly close a loop.
func (s *runState) reserveEdge(child, parent string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Walk up from the prospective parent; reaching the child means this
	// edge would close a loop. The applied edges are acyclic by
	// construction, so the walk terminates.
	for current := parent; current != ""; current = s.edges[current] {
		if current == child {
			return false
		}
	}

	s.edges[child] = parent
	return true
}

func (s *runState) releaseEdge(child string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, child)
}

// Run materializes the batch into the target store and returns the run
// report. Per-node failures are counted, never propagated; the returned
// error is reserved for conditions that invalidate the whole run.
func (e *Engine) Run(nodes []*Node) (*Report, error) {
	log := e.logger()

	report := &Report{
		Entity:    e.Spec.Entity,
		Total:     len(nodes),
		StartedAt: time.Now(),
	}

	state := &runState{
		ids:   make(map[string]int64, len(nodes)),
		edges: make(map[string]string, len(nodes)),
	}

	// One schema probe per run. A failed probe degrades to the label (or
	// proxy field) convention, the same as a schema with no custom fields.
	caps, err := ProbeCapabilities(e.Store, e.Spec.Model)
	if err != nil {
		log.WithError(err).WithField("model", e.Spec.Model).
			Warn("schema probe failed, using label-based code matching")
		caps = Capabilities{}
	}
	state.caps = caps

	anomalies := Validate(nodes)
	report.SelfRefs = anomalies.SelfRefs
	report.SourceOrphans = anomalies.Orphans
	report.Cycles = anomalies.Cycles
	if anomalies.Any() {
		log.WithFields(logrus.Fields{
			"entity":    e.Spec.Entity,
			"self_refs": anomalies.SelfRefs,
			"orphans":   anomalies.Orphans,
			"cycles":    anomalies.Cycles,
		}).Warn("source hierarchy has anomalies, proceeding anyway")
	}

	ordered := Order(nodes)

	op := &batch.Operation{Jobs: e.Jobs, ContinueOnError: true}

	// Phase A: upsert every node with the anchor as provisional parent and
	// collect target ids. No real parent is resolved here.
	var created, updated int
	resA := op.Execute(len(ordered), func(i int) error {
		node := ordered[i]
		madeNew, err := e.upsertBase(state, node)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"entity": e.Spec.Entity,
				"code":   node.Code,
			}).Error("base upsert failed")
			return err
		}
		state.mu.Lock()
		if madeNew {
			created++
		} else {
			updated++
		}
		state.mu.Unlock()
		return nil
	})
	report.Created = created
	report.Updated = updated
	report.Errors = resA.Failed

	// Phase B: rewire the real parent links. Strictly after Phase A so the
	// code→id map is complete before any lookup consults it.
	var linked, orphans, cycleSkips int
	resB := op.Execute(len(ordered), func(i int) error {
		node := ordered[i]
		outcome, err := e.linkParent(state, node)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"entity": e.Spec.Entity,
				"code":   node.Code,
				"parent": node.ParentCode,
			}).Error("parent link failed")
			return err
		}
		state.mu.Lock()
		switch outcome {
		case linkApplied:
			linked++
		case linkOrphan:
			orphans++
		case linkCycleSkip:
			cycleSkips++
		}
		state.mu.Unlock()
		return nil
	})
	report.ParentsLinked = linked
	report.RunOrphans = orphans
	report.CycleSkips = cycleSkips
	report.LinkErrors = resB.Failed

	report.FinishedAt = time.Now()
	return report, nil
}

// upsertBase creates or updates one target record from the node's
// self-describing attributes, parent pinned to the anchor. Returns whether
// a new record was created.
func (e *Engine) upsertBase(state *runState, node *Node) (bool, error) {
	if node.Code == "" {
		return false, fmt.Errorf("node has empty code (name %q)", node.Name)
	}

	values := e.buildValues(state.caps, node)

	existingID, err := e.findByCode(state.caps, node.Code)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", node.Code, err)
	}

	if existingID > 0 {
		// The identifying code fields are immutable on update.
		update := make(map[string]any, len(values))
		for k, v := range values {
			if k == state.caps.KeyField || k == e.Spec.CodeProxyField {
				continue
			}
			update[k] = v
		}
		if err := e.Store.Write(e.Spec.Model, existingID, update); err != nil {
			return false, fmt.Errorf("update %s: %w", node.Code, err)
		}
		node.TargetID = existingID
		state.setID(node.Code, existingID)
		return false, nil
	}

	id, err := e.Store.Create(e.Spec.Model, values)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", node.Code, err)
	}
	node.TargetID = id
	state.setID(node.Code, id)
	return true, nil
}

type linkOutcome int

const (
	linkSkipped linkOutcome = iota
	linkApplied
	linkOrphan
	linkCycleSkip
)

// linkParent resolves the node's declared parent and issues the single
// update that promotes the node from the anchor to its real place in the
// hierarchy.
func (e *Engine) linkParent(state *runState, node *Node) (linkOutcome, error) {
	// Sentinel parents, self-references and nodes that errored in Phase A
	// are terminal: no write, no error.
	if !node.HasParent() || node.TargetID == 0 {
		return linkSkipped, nil
	}

	parentID, ok := state.id(node.ParentCode)
	if !ok {
		// The parent may predate this run (earlier load, manual creation).
		id, err := e.findByCode(state.caps, node.ParentCode)
		if err != nil {
			return 0, fmt.Errorf("resolve parent %s: %w", node.ParentCode, err)
		}
		if id > 0 {
			parentID = id
			state.setID(node.ParentCode, id)
			ok = true
		}
	}
	if !ok || parentID == 0 {
		// Never create a placeholder parent; the node stays at the anchor.
		return linkOrphan, nil
	}

	if !state.reserveEdge(node.Code, node.ParentCode) {
		// This edge would close a loop. Which edge of a cycle ends up
		// skipped depends on processing order; the guarantee is only that
		// no circular chain reaches the target store.
		return linkCycleSkip, nil
	}

	if err := e.Store.Write(e.Spec.Model, node.TargetID, map[string]any{e.Spec.ParentField: parentID}); err != nil {
		state.releaseEdge(node.Code)
		return 0, fmt.Errorf("link %s -> %s: %w", node.Code, node.ParentCode, err)
	}
	return linkApplied, nil
}

// buildValues assembles the attribute set for a Phase A upsert.
func (e *Engine) buildValues(caps Capabilities, node *Node) map[string]any {
	name := node.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", e.Spec.Entity, node.Code)
	}
	if e.Spec.EmbedCodeInName {
		name = Label(node.Code, name)
	}

	values := map[string]any{
		"name": name,
	}
	for k, v := range e.Spec.Statics {
		values[k] = v
	}
	if e.Spec.CodeProxyField != "" {
		values[e.Spec.CodeProxyField] = node.Code
	}
	if caps.KeyField != "" {
		values[caps.KeyField] = node.Code
	}
	if caps.StagingField != "" {
		values[caps.StagingField] = node.ParentCode
	}
	if caps.DegreeField != "" {
		degree := 0
		if node.LevelKnown {
			degree = node.Level
		}
		values[caps.DegreeField] = degree
	}
	if e.Spec.AnchorID > 0 {
		values[e.Spec.ParentField] = e.Spec.AnchorID
	}
	return values
}

// findByCode locates an existing target record for an external code.
// Preference order: dedicated key field, proxy field, label prefix match.
// Returns 0 when no record matches.
func (e *Engine) findByCode(caps Capabilities, code string) (int64, error) {
	if code == "" || code == RootSentinel {
		return 0, nil
	}

	var domain []any
	switch {
	case caps.KeyField != "":
		domain = []any{[]any{caps.KeyField, "=", code}}
	case e.Spec.CodeProxyField != "":
		domain = []any{[]any{e.Spec.CodeProxyField, "=", code}}
	default:
		domain = []any{[]any{"name", "like", LabelPattern(code)}}
	}

	records, err := e.Store.SearchRead(e.Spec.Model, domain, []string{"id"}, 1)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	id, ok := toID(records[0]["id"])
	if !ok {
		return 0, fmt.Errorf("record for %s has malformed id %v", code, records[0]["id"])
	}
	return id, nil
}

func (e *Engine) logger() *logrus.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

// toID coerces a store-returned id to int64. The RPC layer may hand back
// int64, int or float64 depending on the transport.
func toID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Package hierarchy reconciles tree-structured reference data into a
// target store that enforces referential integrity on the parent link.
//
// The source hands over an unordered batch of nodes, each carrying its own
// code and its parent's code. The target offers no deferred-constraint or
// create-subtree primitive, so the engine loads in two phases: Phase A
// upserts every node anchored to a provisional parent, Phase B rewires the
// real parent links once every node has an id. Cycles, self-references and
// orphans in the source must never abort the run or materialize in the
// target.
package hierarchy

import (
	"fmt"
	"strconv"
	"strings"
)

// RootSentinel is the source convention for "no parent".
const RootSentinel = "0"

// LevelSentinel sorts nodes without a usable depth hint after everything
// else.
const LevelSentinel = 999999

// Node is the in-memory representation of one hierarchical record for the
// duration of a run. The target store's records are the durable artifact;
// the Node itself is discarded at run end.
type Node struct {
	// Code is the source system's stable identifier (idempotence key).
	Code string

	// ParentCode is the declared parent's code. May be empty, the root
	// sentinel, self-referential, or dangling.
	ParentCode string

	// Name is the human-readable label from the source.
	Name string

	// Level is the declared depth hint, or LevelSentinel when the source
	// did not provide a usable one. Used only for ordering.
	Level int

	// LevelKnown records whether Level came from the source.
	LevelKnown bool

	// TargetID is the target-store id, populated during Phase A and
	// consumed during Phase B. Zero means unknown (not yet created, or
	// errored in Phase A).
	TargetID int64
}

// FieldMap names the source columns a Node is built from.
type FieldMap struct {
	Code   string
	Parent string
	Name   string
	Level  string
}

// NodesFromRows converts raw source rows into Nodes using the given field
// mapping. Rows are kept even when the code is empty; Phase A rejects and
// counts those individually.
func NodesFromRows(rows []map[string]string, fm FieldMap) []*Node {
	nodes := make([]*Node, 0, len(rows))
	for _, row := range rows {
		level, known := ParseLevel(row[fm.Level])
		nodes = append(nodes, &Node{
			Code:       strings.TrimSpace(row[fm.Code]),
			ParentCode: strings.TrimSpace(row[fm.Parent]),
			Name:       strings.TrimSpace(row[fm.Name]),
			Level:      level,
			LevelKnown: known,
		})
	}
	return nodes
}

// ParseLevel interprets a source depth hint. Missing or non-numeric values
// yield the sentinel.
func ParseLevel(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LevelSentinel, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return LevelSentinel, false
	}
	return n, true
}

// HasParent reports whether the node declares a real, non-trivial parent:
// not empty, not the root sentinel, not itself.
func (n *Node) HasParent() bool {
	return n.ParentCode != "" && n.ParentCode != RootSentinel && n.ParentCode != n.Code
}

// Label assembles the "[code] name" display label. The code prefix lets a
// record be found again even when the target schema has no dedicated
// external-code field.
func Label(code, name string) string {
	return fmt.Sprintf("[%s] %s", code, name)
}

// LabelPattern is the search pattern that matches a label built with Label.
func LabelPattern(code string) string {
	return "[" + code + "]%"
}

// CodeFromLabel re-derives the external code from a "[code] name" label.
// Returns "" when the label does not carry a code prefix.
func CodeFromLabel(label string) string {
	if !strings.HasPrefix(label, "[") {
		return ""
	}
	end := strings.Index(label, "]")
	if end <= 1 {
		return ""
	}
	return label[1:end]
}

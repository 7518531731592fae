// Package verify rebuilds an entity's parent/child tree from the source
// and from the target and reports the difference. Read-only: it never
// writes to either system.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/rcmelo/snkbridge/internal/hierarchy"
	"github.com/rcmelo/snkbridge/internal/sankhya"
	"github.com/rcmelo/snkbridge/internal/sync"
)

// Entity describes one verifiable hierarchy.
type Entity struct {
	Name            string
	Model           string
	ParentField     string
	CodeProxyField  string
	EmbedCodeInName bool
	Fields          hierarchy.FieldMap
	SQLEntity       string
}

// Groups verifies product groups against product.category.
var Groups = Entity{
	Name:            "group",
	Model:           "product.category",
	ParentField:     "parent_id",
	EmbedCodeInName: true,
	Fields: hierarchy.FieldMap{
		Code:   "CODGRUPOPROD",
		Parent: "CODGRUPAI",
		Name:   "DESCRGRUPOPROD",
		Level:  "GRAU",
	},
	SQLEntity: "grupos",
}

// Locations verifies stock locations against stock.location.
var Locations = Entity{
	Name:           "location",
	Model:          "stock.location",
	ParentField:    "location_id",
	CodeProxyField: "barcode",
	Fields: hierarchy.FieldMap{
		Code:   "CODLOCAL",
		Parent: "CODLOCALPAI",
		Name:   "DESCRLOCAL",
		Level:  "GRAU",
	},
	SQLEntity: "locais",
}

// ByName returns the entity for a command argument.
func ByName(name string) (Entity, error) {
	switch name {
	case Groups.Name, "groups":
		return Groups, nil
	case Locations.Name, "locations":
		return Locations, nil
	default:
		return Entity{}, fmt.Errorf("verify: unknown entity %q (want group or location)", name)
	}
}

// Diff fetches both trees and returns their unified diff. An empty diff
// means source and target agree.
func Diff(ctx context.Context, src sync.Source, store hierarchy.Store, ent Entity, sqlOverride string) (string, error) {
	sql := sqlOverride
	if sql == "" {
		var err error
		sql, err = sankhya.EntitySQL(ent.SQLEntity)
		if err != nil {
			return "", err
		}
	}
	rows, err := src.Query(ctx, sql)
	if err != nil {
		return "", fmt.Errorf("verify: fetch %s: %w", ent.Name, err)
	}
	nodes := hierarchy.NodesFromRows(rows, ent.Fields)

	sourceLines := sourceTree(ent, nodes)
	targetLines, err := targetTree(store, ent)
	if err != nil {
		return "", err
	}

	diff := difflib.UnifiedDiff{
		A:        sourceLines,
		B:        targetLines,
		FromFile: "sankhya/" + ent.Name,
		ToFile:   "odoo/" + ent.Model,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// sourceTree renders the declared hierarchy, one sorted line per node.
func sourceTree(ent Entity, nodes []*hierarchy.Node) []string {
	var lines []string
	for _, node := range nodes {
		if node.Code == "" {
			continue
		}
		name := node.Name
		if ent.EmbedCodeInName {
			name = hierarchy.Label(node.Code, name)
		}
		parent := "-"
		if node.HasParent() {
			parent = node.ParentCode
		}
		lines = append(lines, treeLine(node.Code, parent, name))
	}
	sort.Strings(lines)
	return lines
}

// targetTree reads every record of the model and renders the same line
// format. Records whose external code cannot be derived (the anchor, manual
// records) are left out; their children show parent "-".
func targetTree(store hierarchy.Store, ent Entity) ([]string, error) {
	caps, err := hierarchy.ProbeCapabilities(store, ent.Model)
	if err != nil {
		caps = hierarchy.Capabilities{}
	}

	fields := []string{"id", "name", ent.ParentField}
	if caps.KeyField != "" {
		fields = append(fields, caps.KeyField)
	}
	if ent.CodeProxyField != "" {
		fields = append(fields, ent.CodeProxyField)
	}

	records, err := store.SearchRead(ent.Model, nil, fields, 0)
	if err != nil {
		return nil, fmt.Errorf("verify: read %s: %w", ent.Model, err)
	}

	code := func(rec map[string]any) string {
		if caps.KeyField != "" {
			if v, ok := rec[caps.KeyField].(string); ok && v != "" {
				return v
			}
		}
		if ent.CodeProxyField != "" {
			if v, ok := rec[ent.CodeProxyField].(string); ok && v != "" {
				return v
			}
		}
		name, _ := rec["name"].(string)
		return hierarchy.CodeFromLabel(name)
	}

	codeByID := make(map[int64]string, len(records))
	for _, rec := range records {
		id, ok := recID(rec)
		if !ok {
			continue
		}
		if c := code(rec); c != "" {
			codeByID[id] = c
		}
	}

	var lines []string
	for _, rec := range records {
		c := code(rec)
		if c == "" {
			continue
		}
		parent := "-"
		if pid, ok := parentID(rec[ent.ParentField]); ok {
			if pc, ok := codeByID[pid]; ok {
				parent = pc
			}
		}
		name, _ := rec["name"].(string)
		lines = append(lines, treeLine(c, parent, name))
	}
	sort.Strings(lines)
	return lines, nil
}

func treeLine(code, parent, name string) string {
	return fmt.Sprintf("%s\tparent=%s\t%s\n", code, parent, strings.TrimSpace(name))
}

func recID(rec map[string]any) (int64, bool) {
	return toInt(rec["id"])
}

// parentID accepts both the [id, display_name] pair the RPC layer returns
// and a bare id from test fakes.
func parentID(v any) (int64, bool) {
	if pair, ok := v.([]any); ok {
		if len(pair) == 0 {
			return 0, false
		}
		return toInt(pair[0])
	}
	return toInt(v)
}

func toInt(v any) (int64, bool) {
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

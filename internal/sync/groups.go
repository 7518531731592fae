package sync

import (
	"context"

	"github.com/rcmelo/snkbridge/internal/hierarchy"
)

// Groups reconciles Sankhya product groups into product.category. The
// category model tolerates an absent parent, so Phase A creates nodes at
// the top level and the external code is embedded in the category label.
func Groups(ctx context.Context, src Source, store hierarchy.Store, opts Options) (*hierarchy.Report, error) {
	rows, err := fetch(ctx, src, "grupos", opts)
	if err != nil {
		return nil, err
	}

	nodes := hierarchy.NodesFromRows(rows, hierarchy.FieldMap{
		Code:   "CODGRUPOPROD",
		Parent: "CODGRUPAI",
		Name:   "DESCRGRUPOPROD",
		Level:  "GRAU",
	})

	eng := &hierarchy.Engine{
		Store: store,
		Log:   opts.Log,
		Jobs:  opts.Jobs,
		Spec: hierarchy.Spec{
			Entity:          "group",
			Model:           "product.category",
			ParentField:     "parent_id",
			EmbedCodeInName: true,
		},
	}
	return eng.Run(nodes)
}

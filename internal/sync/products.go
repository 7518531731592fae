package sync

import (
	"context"
	"fmt"
	"strings"
	stdsync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rcmelo/snkbridge/internal/batch"
	"github.com/rcmelo/snkbridge/internal/hierarchy"
)

// Products upserts Sankhya products into product.template, keyed on
// default_code. The product's group resolves to a category through the
// "[code] name" label convention (or a key field when the schema has one);
// a missing group is counted, never fabricated.
func Products(ctx context.Context, src Source, store hierarchy.Store, opts Options) (*hierarchy.Report, error) {
	rows, err := fetch(ctx, src, "produtos", opts)
	if err != nil {
		return nil, err
	}

	log := opts.logger()
	report := &hierarchy.Report{Entity: "product", Total: len(rows), StartedAt: time.Now()}

	categories := hierarchy.NewResolver(store, "product.category", "")
	if err := categories.Preload(); err != nil {
		log.WithError(err).Warn("category preload failed, resolving per product")
	}

	var mu stdsync.Mutex
	op := &batch.Operation{Jobs: opts.Jobs, ContinueOnError: true}
	res := op.Execute(len(rows), func(i int) error {
		row := rows[i]
		code := strings.TrimSpace(row["CODPROD"])
		if code == "" {
			return fmt.Errorf("product row has empty code (name %q)", row["DESCRPROD"])
		}

		values := productValues(code, row)

		var missingGroup bool
		if group := strings.TrimSpace(row["CODGRUPOPROD"]); group != "" && group != hierarchy.RootSentinel {
			categID, err := categories.ID(group)
			if err != nil {
				return fmt.Errorf("product %s: %w", code, err)
			}
			if categID > 0 {
				values["categ_id"] = categID
			} else {
				missingGroup = true
			}
		}

		created, err := upsertKeyed(store, "product.template", "default_code", code, values)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"entity": "product",
				"code":   code,
			}).Error("product upsert failed")
			return err
		}

		mu.Lock()
		if created {
			report.Created++
		} else {
			report.Updated++
		}
		if missingGroup {
			report.RunOrphans++
		}
		mu.Unlock()
		return nil
	})

	report.Errors = res.Failed
	report.FinishedAt = time.Now()
	return report, nil
}

func productValues(code string, row map[string]string) map[string]any {
	name := strings.TrimSpace(row["DESCRPROD"])
	if name == "" {
		name = code
	}

	values := map[string]any{"name": name}
	setIfPresent(values, "barcode", row["REFFORN"])
	if w := parseFloat(row["PESOBRUTO"]); w > 0 {
		values["weight"] = w
	}

	if strings.EqualFold(strings.TrimSpace(row["USOPROD"]), "S") {
		values["type"] = "service"
	} else {
		values["type"] = "consu"
		values["is_storable"] = true
	}
	return values
}

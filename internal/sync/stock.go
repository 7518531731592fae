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
	"github.com/rcmelo/snkbridge/internal/odoo"
)

// Stock upserts Sankhya on-hand balances into stock.quant, keyed on the
// (product, location) pair. The available quantity is on-hand minus
// reserved. Product and location codes resolve through preloaded maps with
// a store-lookup fallback; rows whose references cannot be resolved are
// counted and skipped, never created as placeholders.
func Stock(ctx context.Context, src Source, store hierarchy.Store, opts Options) (*hierarchy.Report, error) {
	rows, err := fetch(ctx, src, "estoque", opts)
	if err != nil {
		return nil, err
	}

	log := opts.logger()
	report := &hierarchy.Report{Entity: "stock", Total: len(rows), StartedAt: time.Now()}

	products := hierarchy.NewResolver(store, "product.product", "default_code")
	if err := products.Preload(); err != nil {
		log.WithError(err).Warn("product preload failed, resolving per row")
	}
	locations := hierarchy.NewResolver(store, "stock.location", "barcode")
	if err := locations.Preload(); err != nil {
		log.WithError(err).Warn("location preload failed, resolving per row")
	}

	var mu stdsync.Mutex
	op := &batch.Operation{Jobs: opts.Jobs, ContinueOnError: true}
	res := op.Execute(len(rows), func(i int) error {
		row := rows[i]
		productCode := strings.TrimSpace(row["CODPROD"])
		locationCode := strings.TrimSpace(row["CODLOCAL"])
		if productCode == "" || locationCode == "" {
			return fmt.Errorf("stock row has empty keys (product %q, location %q)", productCode, locationCode)
		}

		productID, err := products.ID(productCode)
		if err != nil {
			return err
		}
		locationID, err := locations.ID(locationCode)
		if err != nil {
			return err
		}
		if productID == 0 || locationID == 0 {
			log.WithFields(logrus.Fields{
				"entity":   "stock",
				"product":  productCode,
				"location": locationCode,
			}).Warn("stock row references unknown records, skipped")
			mu.Lock()
			report.RunOrphans++
			mu.Unlock()
			return nil
		}

		quantity := parseFloat(row["ESTOQUE"]) - parseFloat(row["RESERVADO"])

		created, err := upsertQuant(store, productID, locationID, quantity)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"entity":   "stock",
				"product":  productCode,
				"location": locationCode,
			}).Error("quant upsert failed")
			return err
		}

		mu.Lock()
		if created {
			report.Created++
		} else {
			report.Updated++
		}
		mu.Unlock()
		return nil
	})

	report.Errors = res.Failed
	report.FinishedAt = time.Now()
	return report, nil
}

func upsertQuant(store hierarchy.Store, productID, locationID int64, quantity float64) (bool, error) {
	domain := []any{
		[]any{"product_id", "=", productID},
		[]any{"location_id", "=", locationID},
	}
	records, err := store.SearchRead("stock.quant", domain, []string{"id"}, 1)
	if err != nil {
		return false, fmt.Errorf("lookup quant %d/%d: %w", productID, locationID, err)
	}

	if len(records) > 0 {
		id, ok := odoo.ToInt64(records[0]["id"])
		if !ok {
			return false, fmt.Errorf("quant %d/%d has malformed id %v", productID, locationID, records[0]["id"])
		}
		err := store.Write("stock.quant", id, map[string]any{"inventory_quantity": quantity})
		if err != nil {
			return false, fmt.Errorf("update quant %d/%d: %w", productID, locationID, err)
		}
		return false, nil
	}

	_, err = store.Create("stock.quant", map[string]any{
		"product_id":         productID,
		"location_id":        locationID,
		"inventory_quantity": quantity,
	})
	if err != nil {
		return false, fmt.Errorf("create quant %d/%d: %w", productID, locationID, err)
	}
	return true, nil
}

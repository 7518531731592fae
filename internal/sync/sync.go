// Package sync wires the Sankhya source entities onto their Odoo models.
// Groups and locations go through the hierarchy engine; partners, products
// and stock are flat single-pass upserts keyed on a stable source code.
package sync

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rcmelo/snkbridge/internal/hierarchy"
	"github.com/rcmelo/snkbridge/internal/odoo"
	"github.com/rcmelo/snkbridge/internal/sankhya"
)

// Source produces raw rows for an entity query.
type Source interface {
	Query(ctx context.Context, sql string) ([]map[string]string, error)
}

// Options tune one sync invocation.
type Options struct {
	// SQL overrides the embedded statement for the entity.
	SQL string

	// Jobs is the worker count for per-row processing; 0 or 1 keeps the
	// source order.
	Jobs int

	Log *logrus.Logger
}

func (o Options) logger() *logrus.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logrus.StandardLogger()
}

func fetch(ctx context.Context, src Source, entity string, opts Options) ([]map[string]string, error) {
	sql := opts.SQL
	if sql == "" {
		var err error
		sql, err = sankhya.EntitySQL(entity)
		if err != nil {
			return nil, err
		}
	}
	rows, err := src.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("sync: fetch %s: %w", entity, err)
	}
	return rows, nil
}

// upsertKeyed creates or updates a record identified by an exact match on
// one field. The key field is written on create and immutable afterwards.
// Returns whether a new record was created.
func upsertKeyed(store hierarchy.Store, model, keyField, key string, values map[string]any) (bool, error) {
	records, err := store.SearchRead(model, []any{[]any{keyField, "=", key}}, []string{"id"}, 1)
	if err != nil {
		return false, fmt.Errorf("lookup %s %s: %w", model, key, err)
	}

	if len(records) > 0 {
		id, ok := odoo.ToInt64(records[0]["id"])
		if !ok {
			return false, fmt.Errorf("%s record for %s has malformed id %v", model, key, records[0]["id"])
		}
		if err := store.Write(model, id, values); err != nil {
			return false, fmt.Errorf("update %s %s: %w", model, key, err)
		}
		return false, nil
	}

	create := make(map[string]any, len(values)+1)
	for k, v := range values {
		create[k] = v
	}
	create[keyField] = key
	if _, err := store.Create(model, create); err != nil {
		return false, fmt.Errorf("create %s %s: %w", model, key, err)
	}
	return true, nil
}

// parseFloat reads a source numeric cell. Sankhya emits dot decimals, but
// operator-supplied SQL can surface comma-formatted values.
func parseFloat(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	raw = strings.ReplaceAll(raw, ",", ".")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}

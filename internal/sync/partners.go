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

// Partners upserts Sankhya business partners into res.partner, keyed on the
// ref field. Flat: no hierarchy, one pass.
func Partners(ctx context.Context, src Source, store hierarchy.Store, opts Options) (*hierarchy.Report, error) {
	rows, err := fetch(ctx, src, "parceiros", opts)
	if err != nil {
		return nil, err
	}

	log := opts.logger()
	report := &hierarchy.Report{Entity: "partner", Total: len(rows), StartedAt: time.Now()}

	var mu stdsync.Mutex
	op := &batch.Operation{Jobs: opts.Jobs, ContinueOnError: true}
	res := op.Execute(len(rows), func(i int) error {
		row := rows[i]
		code := strings.TrimSpace(row["CODPARC"])
		if code == "" {
			return fmt.Errorf("partner row has empty code (name %q)", row["NOMEPARC"])
		}

		created, err := upsertKeyed(store, "res.partner", "ref", code, partnerValues(code, row))
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"entity": "partner",
				"code":   code,
			}).Error("partner upsert failed")
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

func partnerValues(code string, row map[string]string) map[string]any {
	name := strings.TrimSpace(row["NOMEPARC"])
	if name == "" {
		name = strings.TrimSpace(row["RAZAOSOCIAL"])
	}
	if name == "" {
		name = code
	}

	isCompany := strings.EqualFold(strings.TrimSpace(row["TIPPESSOA"]), "J")
	companyType := "person"
	if isCompany {
		companyType = "company"
	}

	values := map[string]any{
		"name":         name,
		"is_company":   isCompany,
		"company_type": companyType,
	}
	setIfPresent(values, "vat", row["CGC_CPF"])
	setIfPresent(values, "email", row["EMAIL"])
	setIfPresent(values, "phone", row["TELEFONE"])
	setIfPresent(values, "zip", row["CEP"])
	return values
}

func setIfPresent(values map[string]any, field, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		values[field] = v
	}
}

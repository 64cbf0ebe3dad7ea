package dupcheck

import (
	"fmt"

	"github.com/leaguevault/leaguevault/internal/batch"
	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// CheckBatch runs all three uniqueness checks over an in-memory batch,
// before any store mutation. Primary-key and business-key violations
// are high severity (the batch is rejectable); exact-duplicate content
// across distinct primary keys is informational.
//
// A record missing a key field is returned as an error, not silently
// grouped under an empty key: it cannot be merged and the caller must
// account for it explicitly.
func CheckBatch(reg *registry.Registry, b *batch.Batch) (Report, error) {
	var report Report

	for _, et := range b.Types(reg) {
		schema, err := reg.Describe(et)
		if err != nil {
			return Report{}, err
		}

		recs := b.Records[et]
		vios, err := checkRecords(schema, recs)
		if err != nil {
			return Report{}, fmt.Errorf("%s: %w", et, err)
		}
		report.Violations = append(report.Violations, vios...)
	}
	return report, nil
}

func checkRecords(schema registry.Schema, recs []record.Record) ([]Violation, error) {
	var out []Violation

	// 1. Primary-key check.
	byPK := make(map[string][]int, len(recs))
	for i, rec := range recs {
		pk, err := rec.Key(schema.PrimaryKey)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		byPK[pk] = append(byPK[pk], i)
	}
	if keys := offendingKeys(byPK); len(keys) > 0 {
		out = append(out, Violation{
			Kind:       KindPrimaryKey,
			EntityType: schema.Type,
			Severity:   SeverityHigh,
			Keys:       keys,
		})
	}

	// 2. Business-key check.
	byBK := make(map[string][]int, len(recs))
	for i, rec := range recs {
		bk, err := rec.CompositeKey(schema.BusinessKey)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		byBK[bk] = append(byBK[bk], i)
	}
	if keys := offendingKeys(byBK); len(keys) > 0 {
		out = append(out, Violation{
			Kind:       KindBusinessKey,
			EntityType: schema.Type,
			Severity:   SeverityHigh,
			Keys:       keys,
		})
	}

	// 3. Exact-duplicate check: content hash minus volatile fields and
	// the primary key itself, flagged only across distinct primary keys
	// (same-key collisions are already primary-key violations).
	exclude := append([]string{schema.PrimaryKey}, schema.VolatileFields...)
	byHash := make(map[string][]string, len(recs))
	for _, rec := range recs {
		h, err := record.ContentHash(rec, exclude)
		if err != nil {
			return nil, err
		}
		pk, err := rec.Key(schema.PrimaryKey)
		if err != nil {
			return nil, err
		}
		byHash[h] = append(byHash[h], pk)
	}
	var dupPKs []string
	for _, pks := range byHash {
		if len(distinct(pks)) > 1 {
			dupPKs = append(dupPKs, distinct(pks)...)
		}
	}
	if len(dupPKs) > 0 {
		out = append(out, Violation{
			Kind:       KindExactDuplicate,
			EntityType: schema.Type,
			Severity:   SeverityInfo,
			Keys:       record.SortKeys(dupPKs),
		})
	}

	return out, nil
}

// offendingKeys returns the sorted keys whose groups hold more than
// one record.
func offendingKeys(groups map[string][]int) []string {
	var keys []string
	for k, idxs := range groups {
		if len(idxs) > 1 {
			keys = append(keys, k)
		}
	}
	return record.SortKeys(keys)
}

func distinct(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

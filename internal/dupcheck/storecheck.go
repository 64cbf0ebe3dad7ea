package dupcheck

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leaguevault/leaguevault/internal/registry"
)

// Querier is the read surface the store-side checks need. Both *sql.DB
// and *sql.Tx satisfy it; the coordinator runs the post-apply check
// inside its open transaction so the verdict covers exactly the state
// it is about to commit.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CheckStore runs the primary-key and business-key checks against the
// persisted store for the given entity types. Any violation found here
// is critical: the storage layer's own unique constraints should have
// made it impossible, so its presence means corruption or an executor
// defect.
//
// Table and column names come from the compiled registry, never from
// input data.
func CheckStore(ctx context.Context, q Querier, reg *registry.Registry, types []registry.EntityType) (Report, error) {
	var report Report

	for _, et := range types {
		schema, err := reg.Describe(et)
		if err != nil {
			return Report{}, err
		}

		pkKeys, err := duplicateGroups(ctx, q, schema.Type, []string{schema.PrimaryKey})
		if err != nil {
			return Report{}, fmt.Errorf("%s primary-key check: %w", et, err)
		}
		if len(pkKeys) > 0 {
			report.Violations = append(report.Violations, Violation{
				Kind:       KindPrimaryKey,
				EntityType: et,
				Severity:   SeverityCritical,
				Keys:       pkKeys,
			})
		}

		bkKeys, err := duplicateGroups(ctx, q, schema.Type, schema.BusinessKey)
		if err != nil {
			return Report{}, fmt.Errorf("%s business-key check: %w", et, err)
		}
		if len(bkKeys) > 0 {
			report.Violations = append(report.Violations, Violation{
				Kind:       KindBusinessKey,
				EntityType: et,
				Severity:   SeverityCritical,
				Keys:       bkKeys,
			})
		}
	}
	return report, nil
}

// duplicateGroups returns the rendered key tuples of groups holding
// more than one row.
func duplicateGroups(ctx context.Context, q Querier, table registry.EntityType, cols []string) ([]string, error) {
	colList := strings.Join(cols, ", ")
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS cnt
		FROM %s
		GROUP BY %s
		HAVING COUNT(*) > 1
		ORDER BY %s
	`, colList, table, colList, colList)

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	vals := make([]any, len(cols)+1)
	for i := range vals {
		vals[i] = new(any)
	}
	for rows.Next() {
		if err := rows.Scan(vals...); err != nil {
			return nil, fmt.Errorf("scan duplicate group: %w", err)
		}
		parts := make([]string, len(cols))
		for i := range cols {
			parts[i] = fmt.Sprintf("%v", *(vals[i].(*any)))
		}
		keys = append(keys, strings.Join(parts, "\x1f"))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate groups: %w", err)
	}
	return keys, nil
}

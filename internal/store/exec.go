package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leaguevault/leaguevault/internal/merge"
	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// Result counts what one plan's execution actually did to the store.
type Result struct {
	Inserted int
	Updated  int
	Deleted  int
	Skipped  int
}

// Add accumulates another result into this one.
func (r *Result) Add(other Result) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Deleted += other.Deleted
	r.Skipped += other.Skipped
}

// ExecutePlan applies one entity type's plan inside the caller's
// transaction: scope deletions first, then inserts, then updates.
// Constraint violations surface as errors — the unique constraints are
// the storage layer's second line of defense behind the duplicate
// detector, and tripping one must fail the batch, not pass silently.
func (s *Store) ExecutePlan(ctx context.Context, tx *sql.Tx, schema registry.Schema, plan merge.Plan) (Result, error) {
	res := Result{Skipped: len(plan.SkippedKeys)}

	for _, scope := range plan.DeleteScopes {
		n, err := deleteScope(ctx, tx, schema, scope.Value)
		if err != nil {
			return Result{}, fmt.Errorf("%s scope %s: %w", schema.Type, scope.Key, err)
		}
		res.Deleted += n
	}

	for i, rec := range plan.Inserts {
		if err := insertRecord(ctx, tx, schema, rec); err != nil {
			return Result{}, fmt.Errorf("%s insert [%d]: %w", schema.Type, i, err)
		}
		res.Inserted++
	}

	for _, up := range plan.Updates {
		if err := updateRecord(ctx, tx, schema, up); err != nil {
			return Result{}, fmt.Errorf("%s update %s: %w", schema.Type, up.Key, err)
		}
		res.Updated++
	}

	return res, nil
}

func deleteScope(ctx context.Context, tx *sql.Tx, schema registry.Schema, scope any) (int, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", schema.Type, schema.TemporalField)
	result, err := tx.ExecContext(ctx, query, toSQL(scope))
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete rows affected: %w", err)
	}
	return int(n), nil
}

// insertRecord inserts the record's declared fields. Columns the
// record does not carry are left to their defaults (NULL), matching
// how partial upstream payloads behave everywhere else.
func insertRecord(ctx context.Context, tx *sql.Tx, schema registry.Schema, rec record.Record) error {
	var cols []string
	var args []any
	for _, f := range schema.Fields {
		v, ok := rec[f]
		if !ok {
			continue
		}
		cols = append(cols, f)
		args = append(args, toSQL(v))
	}
	if len(cols) == 0 {
		return fmt.Errorf("record carries no declared fields")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		schema.Type, strings.Join(cols, ", "), placeholders,
	)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// updateRecord rewrites exactly the planned fields of one row,
// identified by primary key. Field order follows the registry's
// updatable list for deterministic SQL.
func updateRecord(ctx context.Context, tx *sql.Tx, schema registry.Schema, up merge.Update) error {
	var sets []string
	var args []any
	for _, f := range schema.UpdatableFields {
		v, ok := up.Fields[f]
		if !ok {
			continue
		}
		sets = append(sets, f+" = ?")
		args = append(args, toSQL(v))
	}
	if len(sets) == 0 {
		return fmt.Errorf("update has no fields")
	}
	args = append(args, up.Key)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		schema.Type, strings.Join(sets, ", "), schema.PrimaryKey,
	)
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update matched no row")
	}
	return nil
}

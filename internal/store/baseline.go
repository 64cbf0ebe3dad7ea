package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// keyChunkSize bounds the IN (...) list per query. SQLite's default
// variable limit is 999.
const keyChunkSize = 500

// BaselineByKeys loads the persisted records with the given primary
// keys, as a map from rendered key to record. Absent keys are simply
// missing from the map: absence is expected, not exceptional.
func (s *Store) BaselineByKeys(ctx context.Context, q Querier, schema registry.Schema, keys []string) (map[string]record.Record, error) {
	out := make(map[string]record.Record, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	for start := 0; start < len(keys); start += keyChunkSize {
		end := start + keyChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		query := fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE %s IN (%s)
		`, strings.Join(schema.Fields, ", "), schema.Type, schema.PrimaryKey, placeholders)

		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("baseline %s by keys: %w", schema.Type, err)
		}
		recs, err := scanRecords(rows, schema)
		if err != nil {
			return nil, fmt.Errorf("baseline %s by keys: %w", schema.Type, err)
		}
		for _, rec := range recs {
			pk, err := rec.Key(schema.PrimaryKey)
			if err != nil {
				return nil, fmt.Errorf("baseline %s: %w", schema.Type, err)
			}
			out[pk] = rec
		}
	}
	return out, nil
}

// BaselineByScope loads all persisted records of a time-sliced type
// within one temporal scope value, ordered by primary key for
// deterministic output. Empty for unknown scopes.
func (s *Store) BaselineByScope(ctx context.Context, q Querier, schema registry.Schema, scope any) ([]record.Record, error) {
	if schema.TemporalField == "" {
		return nil, fmt.Errorf("baseline %s by scope: entity type has no temporal field", schema.Type)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = ?
		ORDER BY %s ASC
	`, strings.Join(schema.Fields, ", "), schema.Type, schema.TemporalField, schema.PrimaryKey)

	rows, err := q.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("baseline %s by scope: %w", schema.Type, err)
	}
	recs, err := scanRecords(rows, schema)
	if err != nil {
		return nil, fmt.Errorf("baseline %s by scope: %w", schema.Type, err)
	}
	return recs, nil
}

// Count returns the number of persisted rows for an entity type.
func (s *Store) Count(ctx context.Context, schema registry.Schema) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", schema.Type)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", schema.Type, err)
	}
	return n, nil
}

// scanRecords reads all rows into Records, converting SQLite's scan
// types back into the record scalar set (see convert.go).
func scanRecords(rows *sql.Rows, schema registry.Schema) ([]record.Record, error) {
	defer rows.Close()

	var out []record.Record
	vals := make([]any, len(schema.Fields))
	for i := range vals {
		vals[i] = new(any)
	}

	for rows.Next() {
		if err := rows.Scan(vals...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", schema.Type, err)
		}
		rec := make(record.Record, len(schema.Fields))
		for i, f := range schema.Fields {
			rec[f] = fromSQL(f, *(vals[i].(*any)))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", schema.Type, err)
	}
	return out, nil
}

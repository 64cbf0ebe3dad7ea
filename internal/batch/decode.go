package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// envelope is the preferred batch file layout. The extractor's legacy
// layout puts entity types at the top level with no metadata; Decode
// accepts both.
type envelope struct {
	BatchID     string                     `json:"batch_id"`
	ExtractedAt string                     `json:"extracted_at"`
	Entities    map[string]json.RawMessage `json:"entities"`
}

// Decode reads a batch from JSON. Numbers are decoded via json.Number
// and coerced per field (see coerce.go) so that 10 and 10.0 do not
// produce type-divergent records across extraction runs.
func Decode(r io.Reader) (*Batch, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Entities != nil {
		return decodeEntities(env.Entities, env.BatchID, env.ExtractedAt)
	}

	// Legacy layout: {"leagues": [...], "teams": [...], ...}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return decodeEntities(flat, "", "")
}

// DecodeFile reads a batch from a JSON file on disk.
func DecodeFile(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	b, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func decodeEntities(entities map[string]json.RawMessage, id, extractedAt string) (*Batch, error) {
	if id == "" {
		id = uuid.NewString()
	}
	b := &Batch{
		ID:          id,
		ExtractedAt: extractedAt,
		Records:     make(map[registry.EntityType][]record.Record, len(entities)),
	}

	for name, raw := range entities {
		recs, err := decodeRecords(raw)
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", name, err)
		}
		b.Records[registry.EntityType(name)] = recs
	}
	return b, nil
}

func decodeRecords(raw json.RawMessage) ([]record.Record, error) {
	var rows []map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}

	recs := make([]record.Record, len(rows))
	for i, row := range rows {
		rec := make(record.Record, len(row))
		for k, v := range row {
			cv, err := coerceValue(k, v)
			if err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", i, k, err)
			}
			rec[k] = cv
		}
		recs[i] = rec
	}
	return recs, nil
}

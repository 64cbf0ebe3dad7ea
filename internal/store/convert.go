package store

import (
	"github.com/leaguevault/leaguevault/internal/batch"
)

// fromSQL converts a scanned SQLite value back into the record scalar
// set. SQLite has no boolean storage class, so declared boolean
// columns come back as 0/1 integers and are restored here; the same
// normalization the batch decoder applies on ingress, applied on
// egress, keeps baseline comparisons type-stable.
func fromSQL(field string, v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int64:
		if batch.IsBooleanField(field) {
			return val != 0
		}
		if batch.IsFloatField(field) {
			// REAL columns normally scan as float64; guard against
			// integer-affinity storage from older loaders.
			return float64(val)
		}
		return val
	case float64:
		return val
	case bool:
		return val
	case string:
		return val
	case nil:
		return nil
	default:
		return val
	}
}

// toSQL converts a record scalar for use as a SQL parameter. The
// driver handles the full record scalar set natively; nil maps to
// NULL.
func toSQL(v any) any {
	return v
}

// Package dupcheck finds duplicate-key and duplicate-content
// violations in an incoming batch and in the persisted store. It only
// ever reports; nothing here mutates data or drops records.
package dupcheck

import (
	"fmt"
	"strings"

	"github.com/leaguevault/leaguevault/internal/registry"
)

// Kind classifies a violation.
type Kind string

const (
	// KindPrimaryKey: two or more records share a primary key.
	KindPrimaryKey Kind = "primary-key"

	// KindBusinessKey: two or more records share a business-key tuple.
	// Catches logically equivalent records with distinct primary keys,
	// a data-quality bug class that must be surfaced, not masked.
	KindBusinessKey Kind = "business-key"

	// KindExactDuplicate: records with distinct primary keys whose
	// non-volatile content hashes collide. Harmless no-ops, reported
	// for visibility.
	KindExactDuplicate Kind = "exact-duplicate"
)

// Severity ranks a violation's consequence.
type Severity string

const (
	// SeverityCritical: the violation exists in the persisted store.
	// Post-apply criticals mean an executor defect and force rollback.
	SeverityCritical Severity = "critical"

	// SeverityHigh: the violation exists only within an incoming
	// batch and is rejectable before commit.
	SeverityHigh Severity = "high"

	// SeverityInfo: exact-duplicate content, a harmless no-op.
	SeverityInfo Severity = "informational"
)

// Violation is one detected uniqueness breach.
type Violation struct {
	Kind       Kind                `json:"kind"`
	EntityType registry.EntityType `json:"entity_type"`
	Severity   Severity            `json:"severity"`

	// Keys identifies the offending records: primary keys for
	// primary-key and exact-duplicate violations, rendered key tuples
	// for business-key violations. Sorted for deterministic reports.
	Keys []string `json:"keys"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s/%s %s [%s]", v.EntityType, v.Kind, v.Severity, strings.Join(v.Keys, ", "))
}

// Report is the detector's full output for one check run.
type Report struct {
	Violations []Violation `json:"violations"`
}

// Empty reports whether no violations were found at any severity.
func (r Report) Empty() bool {
	return len(r.Violations) == 0
}

// HasSeverity reports whether any violation is at least as severe as
// the given level (critical > high > informational).
func (r Report) HasSeverity(min Severity) bool {
	rank := map[Severity]int{SeverityInfo: 0, SeverityHigh: 1, SeverityCritical: 2}
	for _, v := range r.Violations {
		if rank[v.Severity] >= rank[min] {
			return true
		}
	}
	return false
}

// Of returns the violations of a given kind.
func (r Report) Of(kind Kind) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

// Merge appends another report's violations.
func (r Report) Merge(other Report) Report {
	return Report{Violations: append(r.Violations, other.Violations...)}
}

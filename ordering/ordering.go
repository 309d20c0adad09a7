// Package ordering assigns fractional position keys for drag-and-drop lists.
// Inserting between two neighbors takes their midpoint, so a single move
// never rewrites the rest of the list. Once the gap between two neighbors
// falls below the precision floor the whole partition has to be renumbered
// to the canonical spacing in one atomic batch.
package ordering

import (
	"fmt"
	"sort"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

const (
	// MinGap is the smallest resolvable distance between two adjacent keys.
	MinGap = 1e-6
	// Step is the distance used when appending at either end of a list and
	// the spacing produced by Renumber.
	Step = 1.0
)

// Between returns a key strictly between prev and next. A nil prev or next
// marks the corresponding end of the list. When both neighbors exist and
// their gap is below MinGap it returns ErrConflictNormalizationRequired; the
// caller must renumber the partition and retry.
func Between(prev, next *float64) (float64, error) {
	switch {
	case prev == nil && next == nil:
		return 0, nil
	case prev == nil:
		return *next - Step, nil
	case next == nil:
		return *prev + Step, nil
	}
	if *next-*prev < MinGap {
		return 0, fmt.Errorf("%w: gap %g between %g and %g", domain.ErrConflictNormalizationRequired, *next-*prev, *prev, *next)
	}
	return *prev + (*next-*prev)/2, nil
}

// Reassignment maps a task to its renumbered position key.
type Reassignment struct {
	TaskID string
	Order  float64
}

// Renumber produces canonical keys (0, 1, 2, ...) for a partition, keeping
// the current relative order. The result must be applied as a single batched
// mutation so concurrent readers never observe a half-renumbered list.
func Renumber(tasks []domain.Task) []Reassignment {
	sorted := make([]domain.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	out := make([]Reassignment, len(sorted))
	for i := range sorted {
		out[i] = Reassignment{TaskID: sorted[i].ID, Order: float64(i) * Step}
	}
	return out
}

// Neighbors returns the position keys surrounding an insertion at index in an
// already-sorted list of keys. index == len(orders) appends at the end.
func Neighbors(orders []float64, index int) (prev, next *float64) {
	if index > 0 && index-1 < len(orders) {
		p := orders[index-1]
		prev = &p
	}
	if index < len(orders) {
		n := orders[index]
		next = &n
	}
	return prev, next
}

package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

// MaxInValues bounds "IN"-style filters, matching the remote store contract.
const MaxInValues = 30

// TaskQuery describes a live query over the tasks collection. The store
// supports equality filters and a bounded IN filter over sprint ids; nothing
// richer may be assumed.
type TaskQuery struct {
	ProjectID   string
	SprintID    string
	BacklogOnly bool
	AssigneeID  string
	SprintIDs   []string
}

// Validate rejects descriptors the remote store cannot serve.
func (q TaskQuery) Validate() error {
	if q.ProjectID == "" && q.SprintID == "" && q.AssigneeID == "" && len(q.SprintIDs) == 0 {
		return errors.New("task query needs at least one filter")
	}
	if q.BacklogOnly && q.ProjectID == "" {
		return errors.New("backlog query needs a project id")
	}
	if len(q.SprintIDs) > MaxInValues {
		return fmt.Errorf("in filter accepts at most %d values, got %d", MaxInValues, len(q.SprintIDs))
	}
	if q.SprintID != "" && (q.BacklogOnly || len(q.SprintIDs) > 0) {
		return errors.New("conflicting sprint filters")
	}
	return nil
}

// Key returns a canonical cache/identity key for the query.
func (q TaskQuery) Key() string {
	var b strings.Builder
	b.WriteString("tasks")
	if q.ProjectID != "" {
		b.WriteString(":p=" + q.ProjectID)
	}
	if q.SprintID != "" {
		b.WriteString(":s=" + q.SprintID)
	}
	if q.BacklogOnly {
		b.WriteString(":backlog")
	}
	if q.AssigneeID != "" {
		b.WriteString(":a=" + q.AssigneeID)
	}
	if len(q.SprintIDs) > 0 {
		b.WriteString(":in=" + strings.Join(q.SprintIDs, ","))
	}
	return b.String()
}

// Matches reports whether a change event may alter this query's result set.
// Deciding relevance from the event alone keeps refetches bounded; a false
// positive only costs one extra snapshot fetch.
func (q TaskQuery) Matches(ev domain.ChangeEvent) bool {
	if ev.Collection != "tasks" {
		return false
	}
	if q.ProjectID != "" && ev.ProjectID != q.ProjectID {
		return false
	}
	if q.AssigneeID != "" && ev.AssigneeID != q.AssigneeID {
		return false
	}
	if q.SprintID != "" && ev.SprintID != q.SprintID {
		// A move out of the sprint also changes the result set, and the
		// event carries only the new sprint id, so stay conservative for
		// moves within the same project.
		return q.ProjectID == "" || ev.ProjectID == q.ProjectID
	}
	if len(q.SprintIDs) > 0 {
		for _, id := range q.SprintIDs {
			if ev.SprintID == id {
				return true
			}
		}
		// A move out of the subscribed set carries only the new sprint id,
		// so stay conservative like the single-sprint filter.
		return q.ProjectID == "" || ev.ProjectID == q.ProjectID
	}
	return true
}

// BuildTaskFilter renders the query as an OData filter string.
func BuildTaskFilter(q TaskQuery) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	parts := make([]string, 0, 4)
	if q.ProjectID != "" {
		parts = append(parts, "PartitionKey eq '"+escapeQuotes(q.ProjectID)+"'")
	}
	switch {
	case q.BacklogOnly:
		parts = append(parts, "SprintId eq ''")
	case q.SprintID != "":
		parts = append(parts, "SprintId eq '"+escapeQuotes(q.SprintID)+"'")
	case len(q.SprintIDs) > 0:
		alts := make([]string, len(q.SprintIDs))
		for i, id := range q.SprintIDs {
			alts[i] = "SprintId eq '" + escapeQuotes(id) + "'"
		}
		parts = append(parts, "("+strings.Join(alts, " or ")+")")
	}
	if q.AssigneeID != "" {
		parts = append(parts, "AssigneeId eq '"+escapeQuotes(q.AssigneeID)+"'")
	}
	return strings.Join(parts, " and "), nil
}

func escapeQuotes(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

package domain

// Change event types published on the change feed.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// ChangeEvent announces that a document in a collection changed. Subscribers
// use it only to decide whether their query result set may have changed; the
// event is not a patch, consumers refetch the full result set.
type ChangeEvent struct {
	Collection string `json:"collection"`
	EntityID   string `json:"entityId"`
	Type       string `json:"type"`
	ProjectID  string `json:"projectId,omitempty"`
	SprintID   string `json:"sprintId,omitempty"`
	AssigneeID string `json:"assigneeId,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

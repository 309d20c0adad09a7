package domain

import "time"

// TaskPatch carries a partial update for a task. Nil fields are left
// untouched. Setting SprintID to the empty string moves the task back to the
// product backlog. ClearCompletedAt wins over CompletedAt when both are set.
type TaskPatch struct {
	Title            *string     `json:"title,omitempty"`
	Description      *string     `json:"description,omitempty"`
	Type             *TaskType   `json:"type,omitempty"`
	StoryPoints      *int        `json:"storyPoints,omitempty"`
	AssigneeID       *string     `json:"assigneeId,omitempty"`
	AssigneeEmail    *string     `json:"assigneeEmail,omitempty"`
	SprintID         *string     `json:"sprintId,omitempty"`
	Status           *TaskStatus `json:"status,omitempty"`
	Order            *float64    `json:"order,omitempty"`
	CompletedAt      *time.Time  `json:"completedAt,omitempty"`
	ClearCompletedAt bool        `json:"clearCompletedAt,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p TaskPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Type == nil &&
		p.StoryPoints == nil && p.AssigneeID == nil && p.AssigneeEmail == nil &&
		p.SprintID == nil && p.Status == nil && p.Order == nil &&
		p.CompletedAt == nil && !p.ClearCompletedAt
}

// Apply merges the patch into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.StoryPoints != nil {
		t.StoryPoints = *p.StoryPoints
	}
	if p.AssigneeID != nil {
		t.AssigneeID = *p.AssigneeID
	}
	if p.AssigneeEmail != nil {
		t.AssigneeEmail = *p.AssigneeEmail
	}
	if p.SprintID != nil {
		t.SprintID = *p.SprintID
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.ClearCompletedAt {
		t.CompletedAt = nil
	} else if p.CompletedAt != nil {
		ts := *p.CompletedAt
		t.CompletedAt = &ts
	}
}

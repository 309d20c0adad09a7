package domain

import (
	"fmt"
	"strings"
)

// ValidateTask checks form-level constraints before a task is written.
func ValidateTask(t *Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title is required", ErrValidation)
	}
	if t.StoryPoints < 0 {
		return fmt.Errorf("%w: story points must not be negative", ErrValidation)
	}
	switch t.Type {
	case TypeStory, TypeTask, TypeBug:
	default:
		return fmt.Errorf("%w: unknown task type %q", ErrValidation, t.Type)
	}
	switch t.Status {
	case StatusToDo, StatusInProgress, StatusReview, StatusDone:
	default:
		return fmt.Errorf("%w: unknown task status %q", ErrValidation, t.Status)
	}
	if (t.Status == StatusDone) != (t.CompletedAt != nil) {
		return fmt.Errorf("%w: completedAt must be set exactly when status is Done", ErrValidation)
	}
	return nil
}

// ValidateSprint checks sprint fields before a write.
func ValidateSprint(s *Sprint) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: sprint name is required", ErrValidation)
	}
	if s.StartDate.IsZero() || s.EndDate.IsZero() {
		return fmt.Errorf("%w: sprint start and end dates are required", ErrValidation)
	}
	if s.EndDate.Before(s.StartDate) {
		return fmt.Errorf("%w: sprint end date precedes start date", ErrValidation)
	}
	if s.VelocityTarget < 0 {
		return fmt.Errorf("%w: velocity target must not be negative", ErrValidation)
	}
	return nil
}

// ValidateProject checks project fields before a write.
func ValidateProject(p *Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: project name is required", ErrValidation)
	}
	owners := 0
	for _, role := range p.TeamRoles {
		if role == RoleOwner {
			owners++
		}
	}
	if owners != 1 {
		return fmt.Errorf("%w: project must have exactly one owner, has %d", ErrValidation, owners)
	}
	if len(p.TeamRoles) != len(p.TeamUids) {
		return fmt.Errorf("%w: teamRoles and teamUids diverged", ErrValidation)
	}
	for _, uid := range p.TeamUids {
		if _, ok := p.TeamRoles[uid]; !ok {
			return fmt.Errorf("%w: teamRoles and teamUids diverged", ErrValidation)
		}
	}
	return nil
}

package domain

import "time"

// Role is a per-project membership role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// GlobalRoleSuperAdmin marks an account with unrestricted access across
// projects. Any other value is an ordinary account.
const GlobalRoleSuperAdmin = "super-admin"

// Project is a shared container of sprints and tasks. TeamRoles and TeamUids
// describe the same membership set; every membership mutation must change
// both in one write so they never diverge. Exactly one UID maps to RoleOwner.
type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	OwnerID     string          `json:"ownerId"`
	TeamRoles   map[string]Role `json:"teamRoles"`
	TeamUids    []string        `json:"teamUids"`
	Status      string          `json:"status,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// HasMember reports whether uid holds any role on the project.
func (p *Project) HasMember(uid string) bool {
	_, ok := p.TeamRoles[uid]
	return ok
}

// SprintStatus is the lifecycle state of a sprint.
type SprintStatus string

const (
	SprintUpcoming  SprintStatus = "Upcoming"
	SprintActive    SprintStatus = "Active"
	SprintCompleted SprintStatus = "Completed"
)

// Sprint is a time-boxed iteration owned by a project.
type Sprint struct {
	ID             string       `json:"id"`
	ProjectID      string       `json:"projectId"`
	Name           string       `json:"name"`
	Goal           string       `json:"goal,omitempty"`
	StartDate      time.Time    `json:"startDate"`
	EndDate        time.Time    `json:"endDate"`
	Status         SprintStatus `json:"status"`
	VelocityTarget int          `json:"velocityTarget"`
	IsLocked       bool         `json:"isLocked"`
}

// TaskType classifies a work item.
type TaskType string

const (
	TypeStory TaskType = "Story"
	TypeTask  TaskType = "Task"
	TypeBug   TaskType = "Bug"
)

// TaskStatus is a kanban column id.
type TaskStatus string

const (
	StatusToDo       TaskStatus = "ToDo"
	StatusInProgress TaskStatus = "InProgress"
	StatusReview     TaskStatus = "Review"
	StatusDone       TaskStatus = "Done"
)

// BoardColumns is the fixed column order of a sprint board.
var BoardColumns = []TaskStatus{StatusToDo, StatusInProgress, StatusReview, StatusDone}

// Task is a single work item. SprintID == "" means the task sits in the
// product backlog. Order is a fractional position key, unique within the
// (SprintID, Status) partition. CompletedAt is non-nil iff Status == Done.
type Task struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"projectId"`
	SprintID      string     `json:"sprintId,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Type          TaskType   `json:"type"`
	StoryPoints   int        `json:"storyPoints"`
	AssigneeID    string     `json:"assigneeId,omitempty"`
	AssigneeEmail string     `json:"assigneeEmail,omitempty"`
	Status        TaskStatus `json:"status"`
	Order         float64    `json:"order"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// Comment belongs to a task and is deletable only by its author.
type Comment struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	AuthorID    string    `json:"authorId"`
	AuthorEmail string    `json:"authorEmail"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notification is a per-user message produced by comment mentions.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is an account as stored in the users collection.
type User struct {
	UID   string `json:"uid"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

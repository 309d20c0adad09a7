package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

type projectEntity struct {
	aztables.Entity
	Name          string `json:"Name"`
	Description   string `json:"Description"`
	OwnerID       string `json:"OwnerId"`
	TeamRoles     string `json:"TeamRoles"`
	TeamUids      string `json:"TeamUids"`
	Status        string `json:"Status"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

func projectToEntity(p *domain.Project) (projectEntity, error) {
	roles, err := json.Marshal(p.TeamRoles)
	if err != nil {
		return projectEntity{}, err
	}
	uids, err := json.Marshal(p.TeamUids)
	if err != nil {
		return projectEntity{}, err
	}
	return projectEntity{
		Entity:        aztables.Entity{PartitionKey: projectsPartition, RowKey: p.ID},
		Name:          p.Name,
		Description:   p.Description,
		OwnerID:       p.OwnerID,
		TeamRoles:     string(roles),
		TeamUids:      string(uids),
		Status:        p.Status,
		CreatedAt:     p.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
	}, nil
}

func projectFromEntity(ent *projectEntity) (domain.Project, error) {
	p := domain.Project{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Description: ent.Description,
		OwnerID:     ent.OwnerID,
		Status:      ent.Status,
		CreatedAt:   time.UnixMilli(ent.CreatedAt).UTC(),
		TeamRoles:   map[string]domain.Role{},
	}
	if ent.TeamRoles != "" {
		if err := json.Unmarshal([]byte(ent.TeamRoles), &p.TeamRoles); err != nil {
			return domain.Project{}, err
		}
	}
	if ent.TeamUids != "" {
		if err := json.Unmarshal([]byte(ent.TeamUids), &p.TeamUids); err != nil {
			return domain.Project{}, err
		}
	}
	return p, nil
}

// GetProject fetches a single project document.
func (s *Storage) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	resp, err := s.projects.GetEntity(ctx, projectsPartition, projectID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var ent projectEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	p, err := projectFromEntity(&ent)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// QueryProjects lists projects where uid holds a role. An empty uid lists
// every project (super-admin view). The store offers no filter over the
// encoded membership array, so containment is evaluated after the partition
// scan; the query shape exposed to callers stays within the store contract.
func (s *Storage) QueryProjects(ctx context.Context, uid string) ([]domain.Project, error) {
	filter := "PartitionKey eq '" + projectsPartition + "'"
	pager := s.projects.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	projects := []domain.Project{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent projectEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			p, err := projectFromEntity(&ent)
			if err != nil {
				return nil, err
			}
			if uid == "" || p.HasMember(uid) {
				projects = append(projects, p)
			}
		}
	}
	return projects, nil
}

// UpsertProject writes the full project document. Membership mutations go
// through here as one replacing write, which keeps teamRoles and teamUids in
// a single atomic unit.
func (s *Storage) UpsertProject(ctx context.Context, p *domain.Project) error {
	ent, err := projectToEntity(p)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.projects.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// DeleteProject removes a project document.
func (s *Storage) DeleteProject(ctx context.Context, projectID string) error {
	_, err := s.projects.DeleteEntity(ctx, projectsPartition, projectID, nil)
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

type sprintEntity struct {
	aztables.Entity
	Name           string `json:"Name"`
	Goal           string `json:"Goal"`
	StartDate      int64  `json:"StartDate,string"`
	StartDateType  string `json:"StartDate@odata.type"`
	EndDate        int64  `json:"EndDate,string"`
	EndDateType    string `json:"EndDate@odata.type"`
	Status         string `json:"Status"`
	VelocityTarget int    `json:"VelocityTarget"`
	IsLocked       bool   `json:"IsLocked"`
}

func sprintFromEntity(ent *sprintEntity) domain.Sprint {
	return domain.Sprint{
		ID:             ent.RowKey,
		ProjectID:      ent.PartitionKey,
		Name:           ent.Name,
		Goal:           ent.Goal,
		StartDate:      time.UnixMilli(ent.StartDate).UTC(),
		EndDate:        time.UnixMilli(ent.EndDate).UTC(),
		Status:         domain.SprintStatus(ent.Status),
		VelocityTarget: ent.VelocityTarget,
		IsLocked:       ent.IsLocked,
	}
}

// GetSprint fetches a single sprint document.
func (s *Storage) GetSprint(ctx context.Context, projectID, sprintID string) (*domain.Sprint, error) {
	resp, err := s.sprints.GetEntity(ctx, projectID, sprintID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var ent sprintEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	sp := sprintFromEntity(&ent)
	return &sp, nil
}

// QuerySprints lists the sprints of one project.
func (s *Storage) QuerySprints(ctx context.Context, projectID string) ([]domain.Sprint, error) {
	filter := "PartitionKey eq '" + escapeQuotes(projectID) + "'"
	return s.listSprints(ctx, filter)
}

// QuerySprintsIn lists sprints across projects with a bounded IN filter.
func (s *Storage) QuerySprintsIn(ctx context.Context, sprintIDs []string) ([]domain.Sprint, error) {
	if len(sprintIDs) == 0 {
		return []domain.Sprint{}, nil
	}
	if len(sprintIDs) > MaxInValues {
		return nil, fmt.Errorf("in filter accepts at most %d values, got %d", MaxInValues, len(sprintIDs))
	}
	parts := make([]string, len(sprintIDs))
	for i, id := range sprintIDs {
		parts[i] = "RowKey eq '" + escapeQuotes(id) + "'"
	}
	return s.listSprints(ctx, "("+strings.Join(parts, " or ")+")")
}

func (s *Storage) listSprints(ctx context.Context, filter string) ([]domain.Sprint, error) {
	pager := s.sprints.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	sprints := []domain.Sprint{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent sprintEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			sprints = append(sprints, sprintFromEntity(&ent))
		}
	}
	return sprints, nil
}

// UpsertSprint writes a sprint document.
func (s *Storage) UpsertSprint(ctx context.Context, sp *domain.Sprint) error {
	ent := sprintEntity{
		Entity:         aztables.Entity{PartitionKey: sp.ProjectID, RowKey: sp.ID},
		Name:           sp.Name,
		Goal:           sp.Goal,
		StartDate:      sp.StartDate.UnixMilli(),
		StartDateType:  edmInt64,
		EndDate:        sp.EndDate.UnixMilli(),
		EndDateType:    edmInt64,
		Status:         string(sp.Status),
		VelocityTarget: sp.VelocityTarget,
		IsLocked:       sp.IsLocked,
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.sprints.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

type userEntity struct {
	aztables.Entity
	Name  string `json:"Name"`
	Email string `json:"Email"`
	Role  string `json:"Role"`
}

func userFromEntity(ent *userEntity) domain.User {
	return domain.User{UID: ent.RowKey, Name: ent.Name, Email: ent.Email, Role: ent.Role}
}

// GetUser fetches an account by uid.
func (s *Storage) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	resp, err := s.users.GetEntity(ctx, usersPartition, uid, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	u := userFromEntity(&ent)
	return &u, nil
}

// FindUserByEmail resolves an account from an e-mail address, returning
// (nil, nil) when no account matches.
func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	filter := "Email eq '" + escapeQuotes(email) + "'"
	pager := s.users.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent userEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			u := userFromEntity(&ent)
			return &u, nil
		}
	}
	return nil, nil
}

// UpsertUser writes an account document.
func (s *Storage) UpsertUser(ctx context.Context, u *domain.User) error {
	ent := userEntity{
		Entity: aztables.Entity{PartitionKey: usersPartition, RowKey: u.UID},
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.users.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

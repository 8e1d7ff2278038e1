package task

import (
	"encoding/json"
	"time"

	"github.com/GoCodeAlone/taskboard/entity"
)

// Ref is a reference to another record. Until it is expanded it marshals as
// the bare id; once Doc is set it marshals as the joined document.
type Ref struct {
	ID  string
	Doc *entity.Document
}

// MarshalJSON implements json.Marshaler.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Doc != nil {
		return json.Marshal(r.Doc)
	}
	return json.Marshal(r.ID)
}

// View is a task as returned to clients, with some references expanded.
type View struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Project        Ref       `json:"project"`
	Team           Ref       `json:"team"`
	Owners         []Ref     `json:"owners"`
	Tags           []Ref     `json:"tags"`
	TimeToComplete float64   `json:"timeToComplete"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func newView(t *Task) *View {
	return &View{
		ID:             t.ID,
		Name:           t.Name,
		Project:        Ref{ID: t.Project},
		Team:           Ref{ID: t.Team},
		Owners:         refs(t.Owners),
		Tags:           refs(t.Tags),
		TimeToComplete: t.TimeToComplete,
		Status:         t.Status,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func refs(ids []string) []Ref {
	out := make([]Ref, len(ids))
	for i, id := range ids {
		out[i] = Ref{ID: id}
	}
	return out
}

// field selects which reference of a View an expansion fills in.
type field int

const (
	fieldProject field = iota
	fieldTeam
	fieldOwners
	fieldTags
)

func (f field) collection() entity.Collection {
	switch f {
	case fieldProject:
		return entity.Projects
	case fieldTeam:
		return entity.Teams
	case fieldOwners:
		return entity.Users
	default:
		return entity.Tags
	}
}

// refsOf returns pointers to the refs of v that f selects.
func (f field) refsOf(v *View) []*Ref {
	switch f {
	case fieldProject:
		return []*Ref{&v.Project}
	case fieldTeam:
		return []*Ref{&v.Team}
	case fieldOwners:
		out := make([]*Ref, len(v.Owners))
		for i := range v.Owners {
			out[i] = &v.Owners[i]
		}
		return out
	default:
		out := make([]*Ref, len(v.Tags))
		for i := range v.Tags {
			out[i] = &v.Tags[i]
		}
		return out
	}
}

// expansion is one field to join and how much of the document to keep.
type expansion struct {
	field    field
	nameOnly bool
}

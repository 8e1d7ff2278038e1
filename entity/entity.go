// Package entity defines the records shared by the task, report and auth
// packages and the error values every layer uses to classify failures.
package entity

import "time"

// Collection names a kind of stored record that a reference can point at.
type Collection string

const (
	Teams    Collection = "teams"
	Projects Collection = "projects"
	Tags     Collection = "tags"
	Users    Collection = "users"
	Tasks    Collection = "tasks"
)

// Team groups the people a task is assigned through. Names are unique.
type Team struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Project is the unit of work a task belongs to.
type Project struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Tag is a free-form label attached to tasks.
type Tag struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is an account that can own tasks and log in.
// Password holds the bcrypt hash and is never serialized to clients.
type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Document is the projection of a referenced record returned by a lookup.
// Only the fields relevant to the source collection are set.
type Document struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Email       string `json:"email,omitempty"`
}

// NameOnly drops everything but the id and display name.
func (d Document) NameOnly() Document {
	return Document{ID: d.ID, Name: d.Name}
}
